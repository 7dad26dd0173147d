// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package frame holds the STOMP wire frame model: the frame type itself,
// typed constructors for every client and server command, validation of
// required headers, and serialization back to wire bytes. The incremental
// parser that turns raw bytes back into frames also lives here, since the
// two sides share the same grammar.
package frame

import (
	"fmt"
	"strconv"
)

// STOMP command tokens. An empty command denotes a heartbeat pseudo-frame.
const (
	CONNECT     = "CONNECT"
	STOMP       = "STOMP"
	CONNECTED   = "CONNECTED"
	DISCONNECT  = "DISCONNECT"
	SEND        = "SEND"
	SUBSCRIBE   = "SUBSCRIBE"
	UNSUBSCRIBE = "UNSUBSCRIBE"
	BEGIN       = "BEGIN"
	COMMIT      = "COMMIT"
	ABORT       = "ABORT"
	ACK         = "ACK"
	NACK        = "NACK"
	MESSAGE     = "MESSAGE"
	RECEIPT     = "RECEIPT"
	ERROR       = "ERROR"
)

// Common header names.
const (
	AcceptVersion = "accept-version"
	Ack           = "ack"
	ContentLength = "content-length"
	ContentType   = "content-type"
	Destination   = "destination"
	HeartBeat     = "heart-beat"
	Host          = "host"
	Id            = "id"
	Login         = "login"
	Message       = "message"
	MessageId     = "message-id"
	Passcode      = "passcode"
	Receipt       = "receipt"
	ReceiptId     = "receipt-id"
	Server        = "server"
	Subscription  = "subscription"
	Transaction   = "transaction"
	Version       = "version"
)

var commands = map[string]bool{
	CONNECT:     true,
	STOMP:       true,
	CONNECTED:   true,
	DISCONNECT:  true,
	SEND:        true,
	SUBSCRIBE:   true,
	UNSUBSCRIBE: true,
	BEGIN:       true,
	COMMIT:      true,
	ABORT:       true,
	ACK:         true,
	NACK:        true,
	MESSAGE:     true,
	RECEIPT:     true,
	ERROR:       true,
}

// IsCommand returns true when token is a recognized STOMP command.
func IsCommand(token string) bool {
	return commands[token]
}

// A Frame is a single STOMP protocol message: a command, an ordered set of
// headers and an optional body. Frames are treated as immutable once built;
// nothing in this package mutates a frame after returning it.
type Frame struct {
	Command string
	Header  *Header
	Body    []byte
}

// New builds a frame from a command and alternating header key/value pairs.
func New(command string, headers ...string) *Frame {
	return &Frame{Command: command, Header: NewHeader(headers...)}
}

// NewHeartbeat returns the heartbeat pseudo-frame: no command, no headers,
// no body. On the wire it is a single line terminator.
func NewHeartbeat() *Frame {
	return &Frame{Header: NewHeader()}
}

// IsHeartbeat returns true for the heartbeat pseudo-frame.
func (f *Frame) IsHeartbeat() bool {
	return f.Command == ""
}

// ContentLength returns the declared content-length header and whether one
// was present. An unparseable or negative declared length reports an error.
func (f *Frame) ContentLength() (int, bool, error) {
	raw, ok := f.Header.Contains(ContentLength)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, true, invalidContentLengthError(raw)
	}
	return n, true, nil
}

// required headers by command, checked by Validate.
var requiredHeaders = map[string][]string{
	CONNECT:     {AcceptVersion},
	STOMP:       {AcceptVersion},
	CONNECTED:   {Version},
	SEND:        {Destination},
	SUBSCRIBE:   {Destination, Id},
	UNSUBSCRIBE: {Id},
	BEGIN:       {Transaction},
	COMMIT:      {Transaction},
	ABORT:       {Transaction},
	ACK:         {Id},
	NACK:        {Id},
	MESSAGE:     {Destination, MessageId, Subscription},
	RECEIPT:     {ReceiptId},
}

// bodyCommands lists the commands permitted to carry a body.
var bodyCommands = map[string]bool{
	SEND:    true,
	MESSAGE: true,
	ERROR:   true,
}

// Validate checks that the frame uses a recognized command, carries every
// header its command requires, only carries a body where one is allowed,
// and that any declared content-length agrees with the actual body.
func (f *Frame) Validate() error {
	if f.IsHeartbeat() {
		if f.Header.Len() > 0 || len(f.Body) > 0 {
			return validationError("heartbeat frame cannot carry headers or a body")
		}
		return nil
	}
	if !IsCommand(f.Command) {
		return UnknownCommandError(f.Command)
	}
	for _, h := range requiredHeaders[f.Command] {
		if _, ok := f.Header.Contains(h); !ok {
			return validationError(fmt.Sprintf("%s frame missing required header '%s'", f.Command, h))
		}
	}
	if len(f.Body) > 0 && !bodyCommands[f.Command] {
		return validationError(fmt.Sprintf("%s frame cannot carry a body", f.Command))
	}
	declared, ok, err := f.ContentLength()
	if err != nil {
		return err
	}
	if ok && declared != len(f.Body) {
		return &BodyLengthError{Declared: declared, Actual: len(f.Body)}
	}
	if !ok && bodyCommands[f.Command] {
		return validationError(fmt.Sprintf("%s frame requires a content-length header", f.Command))
	}
	return nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	body := make([]byte, len(f.Body))
	copy(body, f.Body)
	return &Frame{Command: f.Command, Header: f.Header.Clone(), Body: body}
}

func withBody(f *Frame, body []byte) *Frame {
	f.Body = body
	f.Header.Set(ContentLength, strconv.Itoa(len(body)))
	return f
}

// NewConnect builds the CONNECT handshake frame. acceptVersions is the
// comma-joined list of protocol versions in preference order, heartBeat the
// "send-ms,receive-ms" proposal. Login and passcode headers are only set
// when non-empty.
func NewConnect(host, login, passcode, acceptVersions, heartBeat string) *Frame {
	f := New(CONNECT,
		AcceptVersion, acceptVersions,
		Host, host,
		HeartBeat, heartBeat)
	if login != "" {
		f.Header.Add(Login, login)
	}
	if passcode != "" {
		f.Header.Add(Passcode, passcode)
	}
	return f
}

// NewConnected builds the server's CONNECTED handshake response.
func NewConnected(version, heartBeat string) *Frame {
	return New(CONNECTED, Version, version, HeartBeat, heartBeat)
}

// NewSend builds a SEND frame carrying body to destination. The
// content-length header is always set from the actual body length.
func NewSend(destination, contentType string, body []byte) *Frame {
	f := New(SEND, Destination, destination)
	if contentType != "" {
		f.Header.Add(ContentType, contentType)
	}
	return withBody(f, body)
}

// NewMessage builds the broker's MESSAGE delivery frame.
func NewMessage(destination, messageId, subscription string, body []byte) *Frame {
	f := New(MESSAGE,
		Destination, destination,
		MessageId, messageId,
		Subscription, subscription)
	return withBody(f, body)
}

// NewSubscribe builds a SUBSCRIBE frame for the given subscription id,
// destination and ack mode.
func NewSubscribe(id, destination, ackMode string) *Frame {
	return New(SUBSCRIBE, Id, id, Destination, destination, Ack, ackMode)
}

// NewUnsubscribe builds an UNSUBSCRIBE frame for the subscription id.
func NewUnsubscribe(id string) *Frame {
	return New(UNSUBSCRIBE, Id, id)
}

// NewBegin builds a BEGIN frame opening the given transaction.
func NewBegin(transaction string) *Frame {
	return New(BEGIN, Transaction, transaction)
}

// NewCommit builds a COMMIT frame for the given transaction.
func NewCommit(transaction string) *Frame {
	return New(COMMIT, Transaction, transaction)
}

// NewAbort builds an ABORT frame for the given transaction.
func NewAbort(transaction string) *Frame {
	return New(ABORT, Transaction, transaction)
}

// NewAck builds an ACK frame for a delivered message. The transaction
// header is only attached when transaction is non-empty.
func NewAck(id, subscription, transaction string) *Frame {
	f := New(ACK, Id, id, Subscription, subscription)
	if transaction != "" {
		f.Header.Add(Transaction, transaction)
	}
	return f
}

// NewNack builds a NACK frame for a delivered message. The transaction
// header is only attached when transaction is non-empty.
func NewNack(id, subscription, transaction string) *Frame {
	f := New(NACK, Id, id, Subscription, subscription)
	if transaction != "" {
		f.Header.Add(Transaction, transaction)
	}
	return f
}

// NewDisconnect builds a DISCONNECT frame, attaching a receipt header when
// receipt is non-empty.
func NewDisconnect(receipt string) *Frame {
	f := New(DISCONNECT)
	if receipt != "" {
		f.Header.Add(Receipt, receipt)
	}
	return f
}

// NewReceipt builds the server's RECEIPT frame correlated by receiptId.
func NewReceipt(receiptId string) *Frame {
	return New(RECEIPT, ReceiptId, receiptId)
}

// NewError builds the server's ERROR frame with a short message header and
// an optional longer body.
func NewError(message string, body []byte) *Frame {
	f := New(ERROR, Message, message)
	return withBody(f, body)
}
