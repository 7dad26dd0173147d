// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import "sync"

// ackTracker records delivered-but-unacknowledged message ids, ordered by
// arrival per subscription. Client-mode acknowledgment is cumulative over
// that order; client-individual clears a single entry.
type ackTracker struct {
	lock    sync.Mutex
	pending map[string][]string // subscription id -> message ids in arrival order
}

func newAckTracker() *ackTracker {
	return &ackTracker{pending: make(map[string][]string)}
}

func (t *ackTracker) record(subId, messageId string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.pending[subId] = append(t.pending[subId], messageId)
}

// clear removes messageId from the pending set. With cumulative set, every
// earlier unacknowledged message on the same subscription is cleared with
// it. The cleared ids are returned in order; an unknown id clears nothing.
func (t *ackTracker) clear(subId, messageId string, cumulative bool) []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	ids := t.pending[subId]
	for i, id := range ids {
		if id != messageId {
			continue
		}
		var cleared []string
		if cumulative {
			cleared = append(cleared, ids[:i+1]...)
			ids = ids[i+1:]
		} else {
			cleared = []string{id}
			ids = append(ids[:i], ids[i+1:]...)
		}
		if len(ids) == 0 {
			delete(t.pending, subId)
		} else {
			t.pending[subId] = ids
		}
		return cleared
	}
	return nil
}

// count returns the total number of pending acknowledgments on the
// connection.
func (t *ackTracker) count() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	n := 0
	for _, ids := range t.pending {
		n += len(ids)
	}
	return n
}

// dropSubscription forgets all pending entries for a removed subscription.
func (t *ackTracker) dropSubscription(subId string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	delete(t.pending, subId)
}
