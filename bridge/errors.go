// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import "fmt"

const (
	ErrNotConnected      = bridgeErrorMessage("not connected to broker")
	ErrHeartbeatMissed   = bridgeErrorMessage("broker heartbeat missed")
	ErrUnknownReceipt    = bridgeErrorMessage("receipt does not match any outstanding request")
	ErrUnknownDelivery   = bridgeErrorMessage("message does not match any subscription")
	ErrUnexpectedCommand = bridgeErrorMessage("unexpected frame command from broker")

	// ErrTransactionAborted is the sentinel an application returns from an
	// InTransaction body to abort without reporting a failure of its own.
	ErrTransactionAborted = bridgeErrorMessage("transaction aborted by application")
)

type bridgeErrorMessage string

func (e bridgeErrorMessage) Error() string {
	return string(e)
}

// ConnectError reports a failed handshake or an unreachable broker. The
// connection is never registered when one of these is returned.
type ConnectError struct {
	Reason string
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("connect failed: %s", e.Reason)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// BrokerError carries an explicit ERROR frame from the peer. It is reported
// on the connection's event channel and never retried.
type BrokerError struct {
	Message string
	Body    []byte
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker error: %s", e.Message)
}

// ProtocolViolationError reports a well-formed but semantically unexpected
// frame, or a transport fault observed by the listener.
type ProtocolViolationError struct {
	Reason string
	Err    error
}

func (e *ProtocolViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol violation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol violation: %s", e.Reason)
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

// QueueUsageError reports operating on a queue or transaction outside its
// valid scope, or from a goroutine that does not own it.
type QueueUsageError string

func (e QueueUsageError) Error() string {
	return string(e)
}

// TransactionError reports a failed or indeterminate transaction
// termination. Unmet names the precondition that blocked the commit
// ("acks" or "receipts"); Indeterminate is set when the COMMIT/ABORT's own
// receipt timed out, leaving the broker's decision unverifiable.
type TransactionError struct {
	TxId          string
	Unmet         string
	Indeterminate bool
}

func (e *TransactionError) Error() string {
	if e.Indeterminate {
		return fmt.Sprintf("transaction %s outcome unknown: termination receipt timed out", e.TxId)
	}
	return fmt.Sprintf("transaction %s aborted: pending %s did not clear", e.TxId, e.Unmet)
}
