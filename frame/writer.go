// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import (
	"bytes"
	"io"
)

// WriteTo serializes the frame to its wire representation: the command
// line, one 'key:value' line per header entry in order, a blank line, the
// body bytes, and the single NUL terminator. A heartbeat frame serializes
// to a lone line terminator.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	var total int64

	write := func(b []byte) error {
		n, err := w.Write(b)
		total += int64(n)
		return err
	}

	if f.IsHeartbeat() {
		err := write([]byte("\n"))
		return total, err
	}

	if err := write([]byte(f.Command + "\n")); err != nil {
		return total, err
	}
	for i := 0; i < f.Header.Len(); i++ {
		k, v := f.Header.GetAt(i)
		if err := write([]byte(k + ":" + v + "\n")); err != nil {
			return total, err
		}
	}
	if err := write([]byte("\n")); err != nil {
		return total, err
	}
	if err := write(f.Body); err != nil {
		return total, err
	}
	err := write([]byte{0})
	return total, err
}

// Marshal returns the frame's full wire representation as a byte slice.
func Marshal(f *Frame) []byte {
	var b bytes.Buffer
	f.WriteTo(&b)
	return b.Bytes()
}
