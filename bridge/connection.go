// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gridfabric/stompwire/frame"
	"github.com/gridfabric/stompwire/metrics"
	"github.com/gridfabric/stompwire/transport"
)

const (
	stateConnected int32 = iota
	stateClosed
)

// A Connection is one negotiated broker session. It owns exactly two
// background goroutines: the listener, which decodes and routes every
// inbound frame, and - when a send period was negotiated - the heartbeat
// monitor. Any number of application goroutines may use the connection's
// readers, writers and transactions concurrently; socket writes are
// serialized by the transport's write lock and socket reads happen only on
// the listener.
type Connection struct {
	Id uuid.UUID

	// Version is the protocol version the broker selected.
	Version string

	// SendPeriod and ReceivePeriod are the negotiated heartbeat periods.
	// Zero disables the respective direction.
	SendPeriod    time.Duration
	ReceivePeriod time.Duration

	tr           transport.Transport
	registry     *ConnectionRegistry
	subs         *subscriptionRegistry
	receipts     *receiptTracker
	acks         *ackTracker
	transactions *transactionManager
	events       chan *ConnEvent
	done         chan struct{}
	state        int32
	closeOnce    sync.Once
	lastSent     int64 // unix nanos, atomic
	lastReceived int64 // unix nanos, atomic

	pollInterval time.Duration
	subBuffer    int
	log          *logrus.Entry
}

// Events exposes the connection's fault/event stream. Transport faults and
// protocol violations observed by the listener arrive here asynchronously;
// the owner is expected to drain it.
func (c *Connection) Events() <-chan *ConnEvent {
	return c.events
}

func (c *Connection) isLive() bool {
	return atomic.LoadInt32(&c.state) == stateConnected
}

// SendFrame writes a frame on the connection. Safe for concurrent use.
func (c *Connection) SendFrame(f *frame.Frame) error {
	if !c.isLive() {
		return ErrNotConnected
	}
	if err := c.tr.SendFrame(f); err != nil {
		return err
	}
	c.markSent()
	return nil
}

// Subscribe opens a subscription on destination with the given ack mode.
func (c *Connection) Subscribe(destination string, mode AckMode) (*Subscription, error) {
	if !c.isLive() {
		return nil, ErrNotConnected
	}
	sub := &Subscription{
		Id:          uuid.New(),
		Destination: destination,
		AckMode:     mode,
		C:           make(chan *frame.Frame, c.subBuffer),
	}
	c.subs.add(sub)
	if err := c.SendFrame(frame.NewSubscribe(sub.Id.String(), destination, string(mode))); err != nil {
		c.subs.remove(sub)
		return nil, err
	}
	c.log.Debugf("subscribed to '%s' (id %s)", destination, sub.Id)
	return sub, nil
}

// Unsubscribe removes a subscription and tells the broker to stop
// delivering on it. Pending acknowledgments for the subscription are
// forgotten.
func (c *Connection) Unsubscribe(sub *Subscription) error {
	if !c.isLive() {
		return ErrNotConnected
	}
	c.subs.remove(sub)
	c.acks.dropSubscription(sub.Id.String())
	return c.SendFrame(frame.NewUnsubscribe(sub.Id.String()))
}

// NewReceipt allocates and registers a fresh receipt token. The caller
// attaches it to an outgoing frame's receipt header and may wait on it.
func (c *Connection) NewReceipt() Receipt {
	r := Receipt(uuid.New().String())
	c.receipts.register(r)
	return r
}

// WaitReceipt blocks until the broker confirms the receipt token or ctx
// ends. Waiting on NoReceipt returns immediately. The broker may never
// answer; bound the wait through ctx.
func (c *Connection) WaitReceipt(ctx context.Context, r Receipt) error {
	return c.receipts.wait(ctx, r, c.pollInterval)
}

// Disconnect tears the session down: a DISCONNECT frame is sent, both
// background goroutines are stopped, and the connection is removed from the
// registry. Removal is unconditional - it happens even when part of the
// teardown fails, so the registry never retains a dead entry.
func (c *Connection) Disconnect() error {
	if !atomic.CompareAndSwapInt32(&c.state, stateConnected, stateClosed) {
		return ErrNotConnected
	}

	sendErr := c.tr.SendFrame(frame.NewDisconnect(""))

	var closeErr error
	c.closeOnce.Do(func() {
		close(c.done)
		closeErr = c.tr.Close()
	})

	c.registry.remove(c.Id)
	c.emit(&ConnEvent{Type: ConnectionClosed, ConnId: c.Id})
	c.log.Info("disconnected from broker")

	if sendErr != nil {
		return sendErr
	}
	return closeErr
}

// shutdown closes the connection after a fatal listener fault, keeping the
// registry clean without attempting a DISCONNECT.
func (c *Connection) shutdown() {
	if !atomic.CompareAndSwapInt32(&c.state, stateConnected, stateClosed) {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
		c.tr.Close()
	})
	c.registry.remove(c.Id)
	c.emit(&ConnEvent{Type: ConnectionClosed, ConnId: c.Id})
}

func (c *Connection) markSent() {
	atomic.StoreInt64(&c.lastSent, time.Now().UnixNano())
}

func (c *Connection) markReceived() {
	atomic.StoreInt64(&c.lastReceived, time.Now().UnixNano())
}

// listen runs until the connection is torn down, decoding inbound frames
// and routing them. Only MESSAGE, RECEIPT, ERROR and heartbeat frames are
// legal unsolicited server traffic at this point.
func (c *Connection) listen() {
	for {
		f, err := c.tr.ReadFrame()
		if err != nil {
			if c.isLive() {
				c.emit(&ConnEvent{
					Type:   ProtocolViolation,
					ConnId: c.Id,
					Err:    &ProtocolViolationError{Reason: "receive failed", Err: err},
				})
				c.shutdown()
			}
			return
		}
		c.markReceived()

		switch f.Command {
		case frame.MESSAGE:
			c.routeMessage(f)

		case frame.RECEIPT:
			c.routeReceipt(f)

		case frame.ERROR:
			metrics.BrokerErrors.Inc()
			c.emit(&ConnEvent{
				Type:   BrokerFault,
				ConnId: c.Id,
				Err:    &BrokerError{Message: f.Header.Get(frame.Message), Body: f.Body},
			})

		default:
			if f.IsHeartbeat() {
				continue
			}
			c.emit(&ConnEvent{
				Type:   ProtocolViolation,
				ConnId: c.Id,
				Err:    &ProtocolViolationError{Reason: "unexpected command '" + f.Command + "'", Err: ErrUnexpectedCommand},
			})
		}
	}
}

func (c *Connection) routeMessage(f *frame.Frame) {
	subId := f.Header.Get(frame.Subscription)
	destination := f.Header.Get(frame.Destination)

	sub, ok := c.subs.route(subId, destination)
	if !ok {
		c.emit(&ConnEvent{
			Type:   ProtocolViolation,
			ConnId: c.Id,
			Err:    &ProtocolViolationError{Reason: "no subscription for '" + destination + "'", Err: ErrUnknownDelivery},
		})
		return
	}

	select {
	case sub.C <- f:
	case <-c.done:
	}
}

func (c *Connection) routeReceipt(f *frame.Frame) {
	token := f.Header.Get(frame.ReceiptId)
	if _, err := uuid.Parse(token); err != nil {
		c.emit(&ConnEvent{
			Type:   ProtocolViolation,
			ConnId: c.Id,
			Err:    &ProtocolViolationError{Reason: "unparseable receipt-id '" + token + "'", Err: err},
		})
		return
	}
	if !c.receipts.satisfy(Receipt(token)) {
		c.emit(&ConnEvent{
			Type:   ProtocolViolation,
			ConnId: c.Id,
			Err:    &ProtocolViolationError{Reason: "receipt-id '" + token + "'", Err: ErrUnknownReceipt},
		})
	}
}
