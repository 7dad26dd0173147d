// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package transport

const (
	ErrMessageTooLong = transportErrorMessage("message too long")
	ErrPeerClosed     = transportErrorMessage("peer closed the connection")
	ErrShortWrite     = transportErrorMessage("short write to broker")
	ErrClosed         = transportErrorMessage("transport is closed")
)

type transportErrorMessage string

func (e transportErrorMessage) Error() string {
	return string(e)
}
