// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package transport owns the raw byte stream under a STOMP session. It
// serializes outgoing frames behind a write lock and turns incoming byte
// chunks into complete frames by driving the incremental parser, carrying
// any left-over bytes into the next read.
package transport

import (
	"github.com/gridfabric/stompwire/frame"
)

// Transport is a bidirectional frame pipe over some byte stream. SendFrame
// may be called from any goroutine; ReadFrame must only be called from a
// single reader (the connection's listener), which is what lets the
// look-ahead buffer go unlocked.
type Transport interface {
	// SendFrame serializes and writes one frame under the write lock.
	SendFrame(f *frame.Frame) error
	// ReadFrame blocks until one complete frame has been decoded.
	ReadFrame() (*frame.Frame, error)
	// Close shuts the underlying stream, unblocking any pending read.
	Close() error
}

// maxReadContinuations bounds how many additional socket reads a single
// ReadFrame may issue while the parser keeps asking for more bytes. With a
// chunk size of c the largest accepted frame is roughly c multiplied by
// this, which guards against a peer streaming an unterminated frame.
const maxReadContinuations = 8
