// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"context"

	"github.com/gridfabric/stompwire/frame"
)

// RecordPendingAck notes a delivered message as awaiting acknowledgment.
// Readers call this for non-automatic ack modes when they defer the ack to
// an explicit call.
func (c *Connection) RecordPendingAck(sub *Subscription, messageId string) {
	c.acks.record(sub.Id.String(), messageId)
}

// PendingAckCount returns the number of delivered messages still awaiting
// acknowledgment on this connection.
func (c *Connection) PendingAckCount() int {
	return c.acks.count()
}

// Ack acknowledges a delivered message. In client mode the acknowledgment
// is cumulative: every earlier unacknowledged message on the same
// subscription is cleared with it. The frame is tagged with the calling
// goroutine's transaction, if any. With withReceipt set the call blocks
// until the broker confirms, bounded by ctx.
func (c *Connection) Ack(ctx context.Context, sub *Subscription, messageId string, withReceipt bool) error {
	return c.acknowledge(ctx, sub, messageId, true, withReceipt)
}

// Nack rejects a delivered message. Pending-ack bookkeeping and transaction
// tagging follow the same rules as Ack.
func (c *Connection) Nack(ctx context.Context, sub *Subscription, messageId string, withReceipt bool) error {
	return c.acknowledge(ctx, sub, messageId, false, withReceipt)
}

func (c *Connection) acknowledge(ctx context.Context, sub *Subscription, messageId string, positive, withReceipt bool) error {
	if !c.isLive() {
		return ErrNotConnected
	}

	tx := c.CurrentTransaction()
	txId := ""
	if tx != nil {
		txId = tx.Id
	}

	var f *frame.Frame
	if positive {
		f = frame.NewAck(messageId, sub.Id.String(), txId)
	} else {
		f = frame.NewNack(messageId, sub.Id.String(), txId)
	}

	r := NoReceipt
	if withReceipt {
		r = c.NewReceipt()
		f.Header.Add(frame.Receipt, string(r))
		if tx != nil {
			tx.TrackReceipt(r)
		}
	}

	if err := c.SendFrame(f); err != nil {
		return err
	}
	c.acks.clear(sub.Id.String(), messageId, sub.AckMode == AckClient)

	if withReceipt {
		return c.WaitReceipt(ctx, r)
	}
	return nil
}
