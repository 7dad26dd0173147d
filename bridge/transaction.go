// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gridfabric/stompwire/frame"
)

const (
	// DefaultDrainTimeout bounds the wait for pending receipts at
	// transaction termination when the options leave it unset.
	DefaultDrainTimeout = 10 * time.Second
)

const (
	txActive int32 = iota
	txEnded
)

// TransactionOptions tune one transaction's termination behavior.
type TransactionOptions struct {
	// RequestReceipt asks the broker to confirm the BEGIN and the closing
	// COMMIT/ABORT. The BEGIN receipt is never awaited at begin time;
	// awaiting happens uniformly at termination.
	RequestReceipt bool

	// DrainTimeout bounds the poll for pending receipts at termination.
	DrainTimeout time.Duration

	// ReceiptTimeout bounds the wait for the COMMIT/ABORT frame's own
	// receipt. Zero falls back to DrainTimeout.
	ReceiptTimeout time.Duration
}

func (o TransactionOptions) withDefaults() TransactionOptions {
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = o.DrainTimeout
	}
	return o
}

// A Transaction groups sends and acknowledgments into one atomic unit. It
// is a capability owned by the goroutine that began it: every call through
// it revalidates the caller, and any other goroutine's attempt is rejected
// with a QueueUsageError.
type Transaction struct {
	Id string

	owner string
	conn  *Connection
	opts  TransactionOptions
	state int32

	lock     sync.Mutex
	receipts []Receipt
}

// transactionManager tracks at most one active transaction per owning
// goroutine on a connection.
type transactionManager struct {
	lock   sync.Mutex
	active map[string]*Transaction // goroutine id -> transaction
}

func newTransactionManager() *transactionManager {
	return &transactionManager{active: make(map[string]*Transaction)}
}

func (m *transactionManager) register(tx *Transaction) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, exists := m.active[tx.owner]; exists {
		return QueueUsageError("a transaction is already active on this goroutine")
	}
	m.active[tx.owner] = tx
	return nil
}

func (m *transactionManager) release(owner string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.active, owner)
}

func (m *transactionManager) current(owner string) *Transaction {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.active[owner]
}

// Begin opens a transaction owned by the calling goroutine and sends the
// BEGIN frame. The returned transaction must be finished with Commit or
// Abort from the same goroutine.
func (c *Connection) Begin(opts TransactionOptions) (*Transaction, error) {
	if !c.isLive() {
		return nil, ErrNotConnected
	}

	tx := &Transaction{
		Id:    uuid.New().String(),
		owner: goroutineID(),
		conn:  c,
		opts:  opts.withDefaults(),
	}
	if err := c.transactions.register(tx); err != nil {
		return nil, err
	}

	f := frame.NewBegin(tx.Id)
	if tx.opts.RequestReceipt {
		r := c.NewReceipt()
		f.Header.Add(frame.Receipt, string(r))
		tx.receipts = append(tx.receipts, r)
	}
	if err := c.SendFrame(f); err != nil {
		c.transactions.release(tx.owner)
		return nil, errors.Wrap(err, "unable to begin transaction")
	}
	c.log.Debugf("transaction %s started", tx.Id)
	return tx, nil
}

// CurrentTransaction returns the transaction owned by the calling
// goroutine, or nil when it has none.
func (c *Connection) CurrentTransaction() *Transaction {
	return c.transactions.current(goroutineID())
}

// InTransaction runs fn inside a transaction owned by the calling
// goroutine. When fn returns an error - including the explicit
// ErrTransactionAborted sentinel - the transaction is aborted and the error
// returned. Otherwise pending receipts and acknowledgments are drained and
// the transaction commits, per the Commit rules.
func (c *Connection) InTransaction(ctx context.Context, opts TransactionOptions, fn func(tx *Transaction) error) error {
	tx, err := c.Begin(opts)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if abortErr := tx.Abort(ctx); abortErr != nil {
			c.log.Warnf("abort of transaction %s failed: %v", tx.Id, abortErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

func (tx *Transaction) checkOwner() error {
	if goroutineID() != tx.owner {
		return QueueUsageError("transaction is owned by another goroutine")
	}
	return nil
}

// TrackReceipt ties an outstanding receipt to the transaction so that
// termination waits for it. Writers call this for receipts requested on
// sends inside the transaction.
func (tx *Transaction) TrackReceipt(r Receipt) {
	if r == NoReceipt {
		return
	}
	tx.lock.Lock()
	defer tx.lock.Unlock()
	tx.receipts = append(tx.receipts, r)
}

func (tx *Transaction) pendingReceipts() int {
	tx.lock.Lock()
	defer tx.lock.Unlock()
	n := 0
	for _, r := range tx.receipts {
		if tx.conn.receipts.isPending(r) {
			n++
		}
	}
	return n
}

// Commit terminates the transaction. Pending acknowledgments are a hard
// precondition: if any remain when the drain starts the transaction is
// aborted immediately, regardless of remaining time budget. Otherwise any
// receipts requested inside the transaction are polled until they clear or
// DrainTimeout expires; on expiry the transaction is aborted and the error
// names the unmet condition.
func (tx *Transaction) Commit(ctx context.Context) error {
	if err := tx.checkOwner(); err != nil {
		return err
	}
	if !atomic.CompareAndSwapInt32(&tx.state, txActive, txEnded) {
		return QueueUsageError("transaction already ended")
	}
	defer tx.conn.transactions.release(tx.owner)

	if tx.conn.acks.count() > 0 {
		if err := tx.terminate(ctx, false); err != nil {
			tx.conn.log.Warnf("abort of transaction %s failed: %v", tx.Id, err)
		}
		return &TransactionError{TxId: tx.Id, Unmet: "acks"}
	}

	if tx.opts.RequestReceipt || tx.pendingReceipts() > 0 {
		deadline := time.Now().Add(tx.opts.DrainTimeout)
		for tx.pendingReceipts() > 0 {
			if time.Now().After(deadline) {
				if err := tx.terminate(ctx, false); err != nil {
					tx.conn.log.Warnf("abort of transaction %s failed: %v", tx.Id, err)
				}
				return &TransactionError{TxId: tx.Id, Unmet: "receipts"}
			}
			select {
			case <-ctx.Done():
				if err := tx.terminate(context.Background(), false); err != nil {
					tx.conn.log.Warnf("abort of transaction %s failed: %v", tx.Id, err)
				}
				return ctx.Err()
			case <-time.After(tx.conn.pollInterval):
			}
		}
	}

	return tx.terminate(ctx, true)
}

// Abort terminates the transaction without committing.
func (tx *Transaction) Abort(ctx context.Context) error {
	if err := tx.checkOwner(); err != nil {
		return err
	}
	if !atomic.CompareAndSwapInt32(&tx.state, txActive, txEnded) {
		return QueueUsageError("transaction already ended")
	}
	defer tx.conn.transactions.release(tx.owner)
	return tx.terminate(ctx, false)
}

// terminate sends the closing COMMIT or ABORT. When the options request
// receipts, the closing frame carries its own receipt; if that receipt does
// not arrive within ReceiptTimeout the broker's decision is unverifiable
// and an indeterminate-outcome error is returned.
func (tx *Transaction) terminate(ctx context.Context, commit bool) error {
	var f *frame.Frame
	if commit {
		f = frame.NewCommit(tx.Id)
	} else {
		f = frame.NewAbort(tx.Id)
	}

	r := NoReceipt
	if tx.opts.RequestReceipt {
		r = tx.conn.NewReceipt()
		f.Header.Add(frame.Receipt, string(r))
	}

	if err := tx.conn.SendFrame(f); err != nil {
		return errors.Wrapf(err, "unable to terminate transaction %s", tx.Id)
	}

	if r != NoReceipt {
		waitCtx, cancel := context.WithTimeout(ctx, tx.opts.ReceiptTimeout)
		defer cancel()
		if err := tx.conn.WaitReceipt(waitCtx, r); err != nil {
			return &TransactionError{TxId: tx.Id, Indeterminate: true}
		}
	}

	if commit {
		tx.conn.log.Debugf("transaction %s committed", tx.Id)
	} else {
		tx.conn.log.Debugf("transaction %s aborted", tx.Id)
	}
	return nil
}
