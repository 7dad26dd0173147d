// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package bridge drives one or more negotiated STOMP sessions: the connect
// handshake with version and heartbeat negotiation, the listener goroutine
// that routes inbound frames, the heartbeat monitor, and the transaction,
// receipt and acknowledgment bookkeeping layered on top.
package bridge

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gridfabric/stompwire/frame"
	"github.com/gridfabric/stompwire/log"
	"github.com/gridfabric/stompwire/transport"
)

// BrokerConnector establishes connections to a STOMP message broker over
// TCP or WebSocket.
type BrokerConnector interface {
	Connect(config *BrokerConnectorConfig) (*Connection, error)
}

type brokerConnector struct {
	registry *ConnectionRegistry
}

// NewBrokerConnector creates a connector registering its connections in
// the supplied registry. A nil registry gets a private one.
func NewBrokerConnector(registry *ConnectionRegistry) BrokerConnector {
	if registry == nil {
		registry = NewConnectionRegistry()
	}
	return &brokerConnector{registry: registry}
}

// Connect dials the broker, performs the CONNECT/CONNECTED handshake and
// starts the connection's background goroutines. On any handshake failure
// the transport is closed and the connection is never registered.
func (bc *brokerConnector) Connect(config *BrokerConnectorConfig) (*Connection, error) {
	if err := checkConfig(config); err != nil {
		return nil, err
	}
	config.applyDefaults()

	tr, err := dialTransport(config)
	if err != nil {
		return nil, &ConnectError{Reason: "broker unreachable", Err: err}
	}

	conn, err := handshake(tr, config, bc.registry)
	if err != nil {
		tr.Close()
		return nil, err
	}
	return conn, nil
}

// ConnectOverTransport performs the CONNECT handshake over an already
// established transport, bypassing the dialer. The caller owns the socket;
// on handshake failure it is closed. A nil registry gets a private one.
func ConnectOverTransport(tr transport.Transport, config *BrokerConnectorConfig, registry *ConnectionRegistry) (*Connection, error) {
	if config == nil {
		config = &BrokerConnectorConfig{}
	}
	if config.HeartBeatOut < 0 || config.HeartBeatIn < 0 {
		return nil, fmt.Errorf("config invalid, heartbeat periods cannot be negative")
	}
	config.applyDefaults()
	if registry == nil {
		registry = NewConnectionRegistry()
	}

	conn, err := handshake(tr, config, registry)
	if err != nil {
		tr.Close()
		return nil, err
	}
	return conn, nil
}

func dialTransport(config *BrokerConnectorConfig) (transport.Transport, error) {
	if config.UseWS {
		u := &url.URL{Scheme: "ws", Host: config.ServerAddr, Path: config.WSPath}
		return transport.DialWebSocket(u, http.Header{})
	}
	host, portStr, err := net.SplitHostPort(config.ServerAddr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	return transport.Dial(host, port, config.MaxChunkSize)
}

// handshake sends CONNECT and interprets the broker's answer. Anything
// other than an affirmative CONNECTED is a connect failure.
func handshake(tr transport.Transport, config *BrokerConnectorConfig, registry *ConnectionRegistry) (*Connection, error) {
	connectFrame := frame.NewConnect(
		config.HostHeader,
		config.Username,
		config.Password,
		strings.Join(config.AcceptVersions, ","),
		frame.FormatHeartBeat(config.HeartBeatOut, config.HeartBeatIn))

	if err := tr.SendFrame(connectFrame); err != nil {
		return nil, &ConnectError{Reason: "unable to send CONNECT", Err: err}
	}

	reply, err := tr.ReadFrame()
	for err == nil && reply.IsHeartbeat() {
		reply, err = tr.ReadFrame()
	}
	if err != nil {
		return nil, &ConnectError{Reason: "no handshake response", Err: err}
	}

	switch reply.Command {
	case frame.CONNECTED:
		// fall through to negotiation
	case frame.ERROR:
		return nil, &ConnectError{Reason: "broker rejected handshake: " + reply.Header.Get(frame.Message)}
	default:
		return nil, &ConnectError{Reason: "unexpected handshake response '" + reply.Command + "'"}
	}

	version, ok := reply.Header.Contains(frame.Version)
	if !ok {
		return nil, &ConnectError{Reason: "CONNECTED frame missing version header"}
	}

	var serverSend, serverReceive time.Duration
	if hb, ok := reply.Header.Contains(frame.HeartBeat); ok {
		serverSend, serverReceive, err = frame.ParseHeartBeat(hb)
		if err != nil {
			return nil, &ConnectError{Reason: "invalid heart-beat header", Err: err}
		}
	}
	sendPeriod, receivePeriod := negotiateHeartBeat(
		config.HeartBeatOut, config.HeartBeatIn, serverSend, serverReceive)

	conn := newConnection(tr, config, registry, version, sendPeriod, receivePeriod)
	registry.register(conn)
	conn.start()
	return conn, nil
}

func newConnection(tr transport.Transport, config *BrokerConnectorConfig, registry *ConnectionRegistry,
	version string, sendPeriod, receivePeriod time.Duration) *Connection {

	id := uuid.New()
	c := &Connection{
		Id:            id,
		Version:       version,
		SendPeriod:    sendPeriod,
		ReceivePeriod: receivePeriod,
		tr:            tr,
		registry:      registry,
		subs:          newSubscriptionRegistry(),
		receipts:      newReceiptTracker(),
		acks:          newAckTracker(),
		transactions:  newTransactionManager(),
		events:        make(chan *ConnEvent, 32),
		done:          make(chan struct{}),
		state:         stateConnected,
		pollInterval:  config.PollInterval,
		subBuffer:     config.SubscriptionBuffer,
		log:           log.Log.WithField("conn", id.String()),
	}
	c.markSent()
	c.markReceived()
	return c
}

// start launches the listener and, only when a send period was negotiated,
// the heartbeat monitor.
func (c *Connection) start() {
	c.log.Infof("connected, STOMP %s, heart-beat %s", c.Version,
		frame.FormatHeartBeat(c.SendPeriod, c.ReceivePeriod))
	c.emit(&ConnEvent{Type: ConnectionEstablished, ConnId: c.Id})

	go c.listen()
	if c.SendPeriod > 0 {
		go c.heartbeatLoop()
	}
}
