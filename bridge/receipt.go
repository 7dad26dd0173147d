// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"context"
	"sync"
	"time"
)

// Receipt is an opaque token correlating one outstanding broker interaction
// with the RECEIPT frame that eventually confirms it.
type Receipt string

// NoReceipt is the valid sentinel meaning "none requested". Waiting on it
// returns immediately.
const NoReceipt Receipt = ""

// receiptTracker holds the set of outstanding receipt tokens for one
// connection. The listener goroutine satisfies tokens as RECEIPT frames
// arrive; any number of application goroutines may wait on them.
type receiptTracker struct {
	lock    sync.Mutex
	pending map[Receipt]struct{}
}

func newReceiptTracker() *receiptTracker {
	return &receiptTracker{pending: make(map[Receipt]struct{})}
}

func (t *receiptTracker) register(r Receipt) {
	if r == NoReceipt {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.pending[r] = struct{}{}
}

// satisfy clears an outstanding token. It returns false when the token was
// never registered, which the listener reports as a protocol violation.
func (t *receiptTracker) satisfy(r Receipt) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if _, ok := t.pending[r]; !ok {
		return false
	}
	delete(t.pending, r)
	return true
}

func (t *receiptTracker) isPending(r Receipt) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	_, ok := t.pending[r]
	return ok
}

// wait polls until the token is satisfied or ctx ends. The broker may never
// answer, so callers requiring bounded latency attach a deadline to ctx.
func (t *receiptTracker) wait(ctx context.Context, r Receipt, interval time.Duration) error {
	if r == NoReceipt {
		return nil
	}
	for t.isPending(r) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil
}
