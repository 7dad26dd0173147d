// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"fmt"
	"time"
)

const (
	// DefaultPollInterval is the granularity of receipt and transaction
	// drain polling when the config leaves it unset.
	DefaultPollInterval = time.Millisecond

	// DefaultSubscriptionBuffer is the per-subscription delivery channel
	// capacity when the config leaves it unset.
	DefaultSubscriptionBuffer = 32
)

// BrokerConnectorConfig describes one broker session to establish. It is
// populated by the caller; this engine does not parse configuration files.
type BrokerConnectorConfig struct {
	Username   string
	Password   string
	ServerAddr string // host:port

	// UseWS selects the WebSocket transport; WSPath is the endpoint path.
	UseWS  bool
	WSPath string

	// HostHeader is the CONNECT host header, defaulting to "/".
	HostHeader string

	// AcceptVersions lists acceptable protocol versions in preference
	// order. Defaults to 1.2 then 1.1.
	AcceptVersions []string

	// HeartBeatOut is the period we offer to send heartbeats at,
	// HeartBeatIn the period we would like to receive them at. Zero means
	// "will not send" / "does not need to receive".
	HeartBeatOut time.Duration
	HeartBeatIn  time.Duration

	// MaxChunkSize bounds each socket read; the largest accepted frame is
	// a small fixed multiple of it.
	MaxChunkSize int

	// PollInterval is the receipt/drain polling granularity.
	PollInterval time.Duration

	// SubscriptionBuffer is the delivery channel capacity per subscription.
	SubscriptionBuffer int
}

func checkConfig(config *BrokerConnectorConfig) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.ServerAddr == "" {
		return fmt.Errorf("config invalid, config missing server address")
	}
	if config.HeartBeatOut < 0 || config.HeartBeatIn < 0 {
		return fmt.Errorf("config invalid, heartbeat periods cannot be negative")
	}
	return nil
}

func (config *BrokerConnectorConfig) applyDefaults() {
	if config.HostHeader == "" {
		config.HostHeader = "/"
	}
	if len(config.AcceptVersions) == 0 {
		config.AcceptVersions = []string{"1.2", "1.1"}
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.SubscriptionBuffer <= 0 {
		config.SubscriptionBuffer = DefaultSubscriptionBuffer
	}
}
