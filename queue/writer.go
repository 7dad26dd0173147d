// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package queue is the public unidirectional queue abstraction over a
// broker connection: a Writer wraps send plus an optional receipt, a
// Reader wraps a subscription, its inbound channel and an acknowledgment
// policy.
package queue

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/gridfabric/stompwire/bridge"
	"github.com/gridfabric/stompwire/frame"
)

// WriterConfig describes one outbound queue binding. The zero value of the
// optional fields selects JSON marshaling and no receipts.
type WriterConfig struct {
	Destination string

	// ContentType stamped on outgoing frames, defaulting to
	// application/json.
	ContentType string

	// RequestReceipt attaches a receipt header to every send.
	// WaitForReceipt additionally blocks Write until the broker confirms;
	// it has no effect without RequestReceipt.
	RequestReceipt bool
	WaitForReceipt bool

	// RequireTransaction makes Write fail fast when the calling goroutine
	// has no active transaction. Nothing is sent in that case.
	RequireTransaction bool

	// Marshal converts the value to body bytes, defaulting to
	// json.Marshal.
	Marshal func(v interface{}) ([]byte, error)
}

// Writer publishes typed values to one destination.
type Writer struct {
	conn *bridge.Connection
	cfg  WriterConfig
}

// NewWriter binds a writer to a destination on the connection.
func NewWriter(conn *bridge.Connection, cfg WriterConfig) (*Writer, error) {
	if cfg.Destination == "" {
		return nil, bridge.QueueUsageError("writer requires a destination")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	if cfg.Marshal == nil {
		cfg.Marshal = json.Marshal
	}
	return &Writer{conn: conn, cfg: cfg}, nil
}

// Write converts value to bytes and sends it, tagged with the calling
// goroutine's transaction when one is active. The returned receipt is
// NoReceipt unless the writer requests receipts; with WaitForReceipt set
// the call blocks until the broker confirms, bounded by ctx.
func (w *Writer) Write(ctx context.Context, value interface{}) (bridge.Receipt, error) {
	tx := w.conn.CurrentTransaction()
	if w.cfg.RequireTransaction && tx == nil {
		return bridge.NoReceipt, bridge.QueueUsageError("writer requires an active transaction")
	}

	body, err := w.cfg.Marshal(value)
	if err != nil {
		return bridge.NoReceipt, errors.Wrap(err, "unable to convert value for send")
	}

	f := frame.NewSend(w.cfg.Destination, w.cfg.ContentType, body)
	if tx != nil {
		f.Header.Add(frame.Transaction, tx.Id)
	}

	r := bridge.NoReceipt
	if w.cfg.RequestReceipt {
		r = w.conn.NewReceipt()
		f.Header.Add(frame.Receipt, string(r))
		if tx != nil {
			tx.TrackReceipt(r)
		}
	}

	if err := w.conn.SendFrame(f); err != nil {
		return bridge.NoReceipt, err
	}

	if w.cfg.RequestReceipt && w.cfg.WaitForReceipt {
		if err := w.conn.WaitReceipt(ctx, r); err != nil {
			return r, err
		}
	}
	return r, nil
}
