// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridfabric/stompwire/frame"
)

func TestNegotiateHeartBeat(t *testing.T) {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }

	cases := []struct {
		name                       string
		clientSend, clientReceive  time.Duration
		serverSend, serverReceive  time.Duration
		wantSend, wantReceive      time.Duration
	}{
		{"both sides disabled", 0, 0, 0, 0, 0, 0},
		{"server refuses to receive", ms(100), ms(100), ms(100), 0, 0, ms(100)},
		{"server refuses to send", ms(100), ms(100), 0, ms(100), ms(100), 0},
		{"slower side wins outbound", ms(100), 0, 0, ms(500), ms(500), 0},
		{"slower side wins inbound", 0, ms(100), ms(500), 0, 0, ms(500)},
		{"client is the slower side", ms(500), ms(500), ms(100), ms(100), ms(500), ms(500)},
		{"symmetric agreement", ms(250), ms(250), ms(250), ms(250), ms(250), ms(250)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			send, receive := negotiateHeartBeat(tc.clientSend, tc.clientReceive, tc.serverSend, tc.serverReceive)
			assert.Equal(t, tc.wantSend, send)
			assert.Equal(t, tc.wantReceive, receive)
		})
	}
}

func TestHandshake_AppliesNegotiatedPeriods(t *testing.T) {
	mock := newMockTransport()
	mock.deliver(frame.NewConnected("1.2", "200,0"))

	config := &BrokerConnectorConfig{HeartBeatOut: 100 * time.Millisecond, HeartBeatIn: 100 * time.Millisecond}
	conn, err := ConnectOverTransport(mock, config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Disconnect() })

	// server will not receive, so our send direction is off; the server
	// sends at 200ms, slower than what we asked for, so that rate wins
	assert.Equal(t, time.Duration(0), conn.SendPeriod)
	assert.Equal(t, 200*time.Millisecond, conn.ReceivePeriod)
}

func TestHeartbeat_SentOnIdleConnection(t *testing.T) {
	mock := newMockTransport()
	mock.deliver(frame.NewConnected("1.2", "0,5"))

	config := &BrokerConnectorConfig{HeartBeatOut: 5 * time.Millisecond}
	conn, err := ConnectOverTransport(mock, config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Disconnect() })
	require.Equal(t, 5*time.Millisecond, conn.SendPeriod)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, f := range mock.sentFrames() {
			if f.IsHeartbeat() {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no heartbeat frame was sent on an idle connection")
}

func TestHeartbeat_SilentBrokerRaisesMissedEvent(t *testing.T) {
	mock := newMockTransport()
	mock.deliver(frame.NewConnected("1.2", "5,5"))

	config := &BrokerConnectorConfig{
		HeartBeatOut: 5 * time.Millisecond,
		HeartBeatIn:  5 * time.Millisecond,
	}
	conn, err := ConnectOverTransport(mock, config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Disconnect() })
	require.Equal(t, 5*time.Millisecond, conn.ReceivePeriod)

	// nothing arrives after CONNECTED; past four receive periods of
	// silence the monitor must flag the broker
	evt := waitEvent(t, conn, HeartbeatMissed)
	assert.ErrorIs(t, evt.Err, ErrHeartbeatMissed)
}

func TestHeartbeat_InboundTrafficCountsAsLiveness(t *testing.T) {
	mock := newMockTransport()
	mock.deliver(frame.NewConnected("1.2", "50,50"))

	config := &BrokerConnectorConfig{
		HeartBeatOut: 50 * time.Millisecond,
		HeartBeatIn:  50 * time.Millisecond,
	}
	conn, err := ConnectOverTransport(mock, config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Disconnect() })
	waitEvent(t, conn, ConnectionEstablished)

	// keep feeding heartbeats well inside the tolerance window
	stop := make(chan struct{})
	fed := make(chan struct{})
	go func() {
		defer close(fed)
		for i := 0; i < 10; i++ {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
				mock.deliver(frame.NewHeartbeat())
			}
		}
	}()

	select {
	case evt := <-conn.Events():
		if evt.Type == HeartbeatMissed {
			t.Fatal("missed-heartbeat raised despite steady inbound traffic")
		}
	case <-time.After(150 * time.Millisecond):
	}
	close(stop)
	<-fed
}
