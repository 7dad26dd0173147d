// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import "fmt"

// UnknownCommandError reports a command token that is not part of the
// protocol. The token itself is carried for diagnostics.
type UnknownCommandError string

func (e UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown STOMP command '%s'", string(e))
}

// BodyLengthError reports a declared content-length contradicted by the
// actual body bytes seen on the wire.
type BodyLengthError struct {
	Declared int
	Actual   int
}

func (e *BodyLengthError) Error() string {
	return fmt.Sprintf("content-length mismatch: declared %d, body has %d bytes", e.Declared, e.Actual)
}

// ParseError reports malformed frame syntax, carrying the offending text.
type ParseError struct {
	Reason string
	Text   string
}

func (e *ParseError) Error() string {
	if e.Text == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: '%s'", e.Reason, e.Text)
}

func invalidContentLengthError(raw string) error {
	return &ParseError{Reason: "invalid content-length header", Text: raw}
}

type validationError string

func (e validationError) Error() string {
	return string(e)
}
