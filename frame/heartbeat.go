// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseHeartBeat decodes a heart-beat header value: two comma-separated
// non-negative integers in milliseconds, "what the sender will send, what
// the sender wants to receive". Zero means "will not send" or "does not
// need to receive".
func ParseHeartBeat(value string) (send, receive time.Duration, err error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, &ParseError{Reason: "invalid heart-beat header", Text: value}
	}
	sendMs, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || sendMs < 0 {
		return 0, 0, &ParseError{Reason: "invalid heart-beat header", Text: value}
	}
	receiveMs, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || receiveMs < 0 {
		return 0, 0, &ParseError{Reason: "invalid heart-beat header", Text: value}
	}
	return time.Duration(sendMs) * time.Millisecond, time.Duration(receiveMs) * time.Millisecond, nil
}

// FormatHeartBeat encodes a heart-beat header value from the send and
// receive periods.
func FormatHeartBeat(send, receive time.Duration) string {
	return fmt.Sprintf("%d,%d", send/time.Millisecond, receive/time.Millisecond)
}
