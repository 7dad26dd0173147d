// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package queue

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gridfabric/stompwire/bridge"
	"github.com/gridfabric/stompwire/frame"
	"github.com/gridfabric/stompwire/model"
)

// ReaderConfig describes one inbound queue binding.
type ReaderConfig struct {
	Destination string

	// AckMode defaults to auto. In client and client-individual modes a
	// read either acks immediately (AckOnRead) or records the message as
	// pending until an explicit Ack/Nack.
	AckMode   bridge.AckMode
	AckOnRead bool

	// Unmarshal decodes the body into the message's Payload. Nil leaves
	// Payload unset; the raw body is always available.
	Unmarshal func(body []byte) (interface{}, error)
}

// Reader consumes typed messages from one destination.
type Reader struct {
	conn *bridge.Connection
	cfg  ReaderConfig
	sub  *bridge.Subscription
}

// NewReader subscribes to the destination and returns a reader bound to
// the new subscription.
func NewReader(conn *bridge.Connection, cfg ReaderConfig) (*Reader, error) {
	if cfg.Destination == "" {
		return nil, bridge.QueueUsageError("reader requires a destination")
	}
	if cfg.AckMode == "" {
		cfg.AckMode = bridge.AckAuto
	}
	sub, err := conn.Subscribe(cfg.Destination, cfg.AckMode)
	if err != nil {
		return nil, err
	}
	return &Reader{conn: conn, cfg: cfg, sub: sub}, nil
}

// Subscription exposes the reader's underlying subscription.
func (r *Reader) Subscription() *bridge.Subscription {
	return r.sub
}

// Read blocks until a message arrives on the subscription or ctx ends.
// For non-automatic ack modes the message is either acknowledged on the
// spot (AckOnRead) or recorded as pending for a later Ack/Nack. The
// returned message is owned by the caller.
func (r *Reader) Read(ctx context.Context) (*model.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f := <-r.sub.C:
		msg := r.toMessage(f)
		if r.cfg.Unmarshal != nil && len(msg.Body) > 0 {
			payload, err := r.cfg.Unmarshal(msg.Body)
			if err != nil {
				return nil, errors.Wrap(err, "unable to convert received message")
			}
			msg.Payload = payload
		}

		if r.sub.AckMode != bridge.AckAuto {
			if r.cfg.AckOnRead {
				if err := r.conn.Ack(ctx, r.sub, msg.Id, false); err != nil {
					return msg, err
				}
			} else {
				r.conn.RecordPendingAck(r.sub, msg.Id)
			}
		}
		return msg, nil
	}
}

// Ack acknowledges the message; cumulative in client mode.
func (r *Reader) Ack(ctx context.Context, m *model.Message) error {
	return r.conn.Ack(ctx, r.sub, m.Id, false)
}

// AckWithReceipt acknowledges the message and waits for the broker's
// confirmation, bounded by ctx.
func (r *Reader) AckWithReceipt(ctx context.Context, m *model.Message) error {
	return r.conn.Ack(ctx, r.sub, m.Id, true)
}

// Nack rejects the message.
func (r *Reader) Nack(ctx context.Context, m *model.Message) error {
	return r.conn.Nack(ctx, r.sub, m.Id, false)
}

// NackWithReceipt rejects the message and waits for the broker's
// confirmation, bounded by ctx.
func (r *Reader) NackWithReceipt(ctx context.Context, m *model.Message) error {
	return r.conn.Nack(ctx, r.sub, m.Id, true)
}

// Close unsubscribes the reader from its destination.
func (r *Reader) Close() error {
	return r.conn.Unsubscribe(r.sub)
}

func (r *Reader) toMessage(f *frame.Frame) *model.Message {
	length := len(f.Body)
	if declared, ok, err := f.ContentLength(); err == nil && ok {
		length = declared
	}
	return &model.Message{
		Id:             f.Header.Get(frame.MessageId),
		SubscriptionId: f.Header.Get(frame.Subscription),
		Destination:    f.Header.Get(frame.Destination),
		ContentType:    f.Header.Get(frame.ContentType),
		ContentLength:  length,
		Body:           f.Body,
	}
}
