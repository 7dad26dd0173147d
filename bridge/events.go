// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import "github.com/google/uuid"

// ConnEventType classifies events delivered on a connection's event stream.
type ConnEventType int

const (
	// ConnectionEstablished fires once, after a successful handshake.
	ConnectionEstablished ConnEventType = iota
	// ConnectionClosed fires when the connection is torn down.
	ConnectionClosed
	// ProtocolViolation carries a *ProtocolViolationError observed by the
	// listener: unroutable message, unparseable receipt, out-of-band frame
	// kind, or a transport fault.
	ProtocolViolation
	// BrokerFault carries a *BrokerError for an explicit ERROR frame.
	BrokerFault
	// HeartbeatMissed fires when the broker has been silent past the
	// negotiated tolerance.
	HeartbeatMissed
)

// ConnEvent is one entry on a connection's event stream. Faults detected by
// the listener goroutine reach the connection's owner this way, since the
// listener runs independently of any caller.
type ConnEvent struct {
	Type   ConnEventType
	ConnId uuid.UUID
	Err    error
}

// emit publishes an event without blocking. The stream is buffered; if the
// owner is not draining it, the oldest-unread events are simply not
// replaced and the new event is dropped, matching a monitoring channel that
// may have no listener.
func (c *Connection) emit(evt *ConnEvent) {
	select {
	case c.events <- evt:
	default:
		c.log.Warnf("event stream full, dropping event type %d", evt.Type)
	}
}
