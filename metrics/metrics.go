// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package metrics exposes prometheus counters for the protocol engine.
// They are registered on the default registry; applications that serve a
// /metrics endpoint pick them up automatically.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FramesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stompwire_frames_read_total",
		Help: "Frames decoded from the broker, heartbeats included",
	})

	FramesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stompwire_frames_written_total",
		Help: "Frames written to the broker, heartbeats included",
	})

	HeartbeatsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stompwire_heartbeats_sent_total",
		Help: "Heartbeat frames emitted by the heartbeat monitor",
	})

	HeartbeatsMissed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stompwire_heartbeats_missed_total",
		Help: "Missing-heartbeat violations reported by the monitor",
	})

	BrokerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stompwire_broker_errors_total",
		Help: "ERROR frames received from the broker",
	})
)

func init() {
	prometheus.MustRegister(FramesRead, FramesWritten, HeartbeatsSent, HeartbeatsMissed, BrokerErrors)
}
