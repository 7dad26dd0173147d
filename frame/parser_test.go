// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// every command kind, with and without bodies, used by the round-trip and
// resumability tests below.
func sampleFrames() []*Frame {
	return []*Frame{
		NewConnect("/", "guest", "secret", "1.2,1.1", "5000,5000"),
		New(STOMP, AcceptVersion, "1.2", Host, "/"),
		NewConnected("1.2", "0,0"),
		NewDisconnect("r-77"),
		NewSend("/q/orders", "application/json", []byte(`{"qty":3}`)),
		NewSubscribe("sub-1", "/q/orders", "client"),
		NewUnsubscribe("sub-1"),
		NewBegin("tx-1"),
		NewCommit("tx-1"),
		NewAbort("tx-1"),
		NewAck("m-5", "sub-1", "tx-1"),
		NewNack("m-6", "sub-1", ""),
		NewMessage("/q/orders", "m-5", "sub-1", []byte("payload")),
		NewReceipt("r-77"),
		NewError("malformed frame received", []byte("the details")),
		NewHeartbeat(),
	}
}

func assertFramesEqual(t *testing.T, want, got *Frame) {
	t.Helper()
	assert.Equal(t, want.Command, got.Command)
	assert.Equal(t, want.Header.Len(), got.Header.Len())
	for i := 0; i < want.Header.Len(); i++ {
		k, _ := want.Header.GetAt(i)
		assert.Equal(t, want.Header.Get(k), got.Header.Get(k), "header '%s'", k)
	}
	assert.Equal(t, want.Body, got.Body)
}

func TestParse_RoundTripEveryCommand(t *testing.T) {
	for _, want := range sampleFrames() {
		name := want.Command
		if want.IsHeartbeat() {
			name = "heartbeat"
		}
		t.Run(name, func(t *testing.T) {
			got, rest, err := Parse(Marshal(want))
			assert.NoError(t, err)
			assert.Nil(t, rest)
			assertFramesEqual(t, want, got)
		})
	}
}

func TestParser_ResumableAtEverySplit(t *testing.T) {
	for _, want := range sampleFrames() {
		wire := Marshal(want)
		for split := 0; split <= len(wire); split++ {
			p := NewParser()

			got, rest, err := p.Parse(wire[:split])
			assert.NoError(t, err, "split %d", split)
			if got == nil {
				got, rest, err = p.Parse(wire[split:])
				assert.NoError(t, err, "split %d", split)
			}

			if assert.NotNil(t, got, "frame should complete at split %d", split) {
				assertFramesEqual(t, want, got)
			}
			assert.Nil(t, rest)
		}
	}
}

func TestParser_ByteAtATime(t *testing.T) {
	want := NewSend("/q/a", "text/plain", []byte("hello"))
	wire := Marshal(want)

	p := NewParser()
	var got *Frame
	for _, b := range wire {
		f, rest, err := p.Parse([]byte{b})
		assert.NoError(t, err)
		assert.Nil(t, rest)
		if f != nil {
			got = f
		}
	}
	if assert.NotNil(t, got) {
		assertFramesEqual(t, want, got)
	}
}

func TestParse_HeartbeatIsJustALineTerminator(t *testing.T) {
	f, rest, err := Parse([]byte("\n"))
	assert.NoError(t, err)
	assert.Nil(t, rest)
	assert.True(t, f.IsHeartbeat())
}

func TestParse_UnknownCommandNamesToken(t *testing.T) {
	_, _, err := Parse([]byte("BLURT\n\n\x00"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "BLURT")
}

func TestParse_BodyLongerThanDeclaredNamesBothLengths(t *testing.T) {
	wire := []byte("SEND\ndestination:/q/a\ncontent-length:3\n\nhello\x00")
	_, _, err := Parse(wire)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "3")
	assert.Contains(t, err.Error(), "5")

	var mismatch *BodyLengthError
	if assert.ErrorAs(t, err, &mismatch) {
		assert.Equal(t, 3, mismatch.Declared)
		assert.Equal(t, 5, mismatch.Actual)
	}
}

func TestParse_DeclaredLengthAllowsEmbeddedNULs(t *testing.T) {
	body := []byte("a\x00b\x00c")
	wire := []byte(fmt.Sprintf("SEND\ndestination:/q/a\ncontent-length:%d\n\n%s\x00", len(body), body))

	f, rest, err := Parse(wire)
	assert.NoError(t, err)
	assert.Nil(t, rest)
	assert.Equal(t, body, f.Body)
}

func TestParse_UndeclaredBodyEndsAtFirstNUL(t *testing.T) {
	wire := []byte("MESSAGE\ndestination:/q/a\nmessage-id:m-1\nsubscription:s-1\n\nhello\x00")
	f, rest, err := Parse(wire)
	assert.NoError(t, err)
	assert.Nil(t, rest)
	assert.Equal(t, []byte("hello"), f.Body)
}

func TestParse_TrimsSpacesAroundCommandAndSeparator(t *testing.T) {
	wire := []byte("  RECEIPT  \n receipt-id :  r-1  \n\n\x00")
	f, _, err := Parse(wire)
	assert.NoError(t, err)
	assert.Equal(t, RECEIPT, f.Command)
	assert.Equal(t, "r-1", f.Header.Get(ReceiptId))
}

func TestParse_DuplicateHeadersKeepOrderAndPrecedence(t *testing.T) {
	wire := []byte("MESSAGE\ndestination:/q/a\nmessage-id:m-1\nsubscription:s-1\nfoo:first\nfoo:second\n\n\x00")
	f, _, err := Parse(wire)
	assert.NoError(t, err)
	assert.Equal(t, "first", f.Header.Get("foo"))
	assert.Equal(t, 5, f.Header.Len())
}

func TestParse_MalformedHeaderFails(t *testing.T) {
	wire := []byte("SEND\nthis-is-not-a-header\n\n\x00")
	_, _, err := Parse(wire)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "this-is-not-a-header")
}

func TestParse_NegativeContentLengthFails(t *testing.T) {
	wire := []byte("SEND\ndestination:/q/a\ncontent-length:-4\n\n\x00")
	_, _, err := Parse(wire)
	assert.Error(t, err)
}

func TestParse_RemainderIsReturnedNotDiscarded(t *testing.T) {
	first := Marshal(NewBegin("tx-1"))
	second := Marshal(NewCommit("tx-1"))
	wire := append(append([]byte{}, first...), second...)

	f, rest, err := Parse(wire)
	assert.NoError(t, err)
	assert.Equal(t, BEGIN, f.Command)

	f2, rest2, err := Parse(rest)
	assert.NoError(t, err)
	assert.Nil(t, rest2)
	assert.Equal(t, COMMIT, f2.Command)
}

func TestParse_IncompleteBufferFails(t *testing.T) {
	_, _, err := Parse([]byte("SEND\ndestination:/q/a\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
}

func TestParser_FailureIsSticky(t *testing.T) {
	p := NewParser()
	_, _, err := p.Parse([]byte("NOPE\n"))
	assert.Error(t, err)

	_, _, err = p.Parse([]byte("SEND\n"))
	assert.Error(t, err)

	p.Reset()
	f, _, err := p.Parse(Marshal(NewBegin("tx-2")))
	assert.NoError(t, err)
	assert.Equal(t, BEGIN, f.Command)
}
