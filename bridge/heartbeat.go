// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"sync/atomic"
	"time"

	"github.com/gridfabric/stompwire/frame"
	"github.com/gridfabric/stompwire/metrics"
)

// heartbeatTolerance scales the negotiated receive period into the window
// the broker is allowed to stay silent before a missing-heartbeat violation
// is raised. The slack absorbs scheduling jitter on both sides.
const heartbeatTolerance = 4

// heartbeatLoop runs on the connection's negotiated send period. Each tick
// it first checks whether the broker has gone silent past the tolerance
// window, then emits a heartbeat frame if one is due. Any outbound frame
// counts as traffic, so heartbeats only fill idle gaps.
func (c *Connection) heartbeatLoop() {
	for {
		if c.ReceivePeriod > 0 {
			silence := int64(heartbeatTolerance * c.ReceivePeriod)
			if time.Now().UnixNano() > atomic.LoadInt64(&c.lastReceived)+silence {
				metrics.HeartbeatsMissed.Inc()
				c.emit(&ConnEvent{
					Type:   HeartbeatMissed,
					ConnId: c.Id,
					Err:    ErrHeartbeatMissed,
				})
			}
		}

		if time.Now().UnixNano() >= atomic.LoadInt64(&c.lastSent)+int64(c.SendPeriod) {
			if err := c.tr.SendFrame(frame.NewHeartbeat()); err != nil {
				if c.isLive() {
					c.log.Warnf("heartbeat send failed: %v", err)
				}
				return
			}
			c.markSent()
			metrics.HeartbeatsSent.Inc()
		}

		select {
		case <-c.done:
			return
		case <-time.After(c.SendPeriod):
		}
	}
}

// negotiateHeartBeat resolves the effective heartbeat periods from what we
// proposed and what the broker answered. A direction is active only when
// both sides accept it, and then runs at the slower of the two rates.
func negotiateHeartBeat(clientSend, clientReceive, serverSend, serverReceive time.Duration) (send, receive time.Duration) {
	if clientSend > 0 && serverReceive > 0 {
		send = clientSend
		if serverReceive > send {
			send = serverReceive
		}
	}
	if clientReceive > 0 && serverSend > 0 {
		receive = clientReceive
		if serverSend > receive {
			receive = serverSend
		}
	}
	return send, receive
}
