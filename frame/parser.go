// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import (
	"bytes"
	"strings"
)

type parseState int

const (
	awaitingCommand parseState = iota
	awaitingHeaders
	awaitingBody
	failed
)

// Parser is a resumable decoder for the STOMP frame grammar:
//
//	command-line → headers* → blank line → body → NUL
//
// A parser can be fed an arbitrary split of the input: when the buffer runs
// out mid-frame the parser suspends, and the next call to Parse continues
// from the suspended state without rescanning consumed input. A parser is
// not safe for concurrent use; in this engine only the listener goroutine
// drives it.
type Parser struct {
	state       parseState
	buf         []byte
	scanned     int // offset into buf already scanned for a line terminator
	command     string
	header      *Header
	declaredLen int // -1 when no content-length was declared
	err         error
}

// NewParser returns a parser positioned at the start of a frame.
func NewParser() *Parser {
	return &Parser{declaredLen: -1}
}

// Parse feeds data into the parser and attempts to complete one frame.
// It returns:
//
//   - (frame, rest, nil) when a frame completed; rest holds any bytes
//     beyond the frame, which the caller must replay before reading more
//     input. The parser is reset and ready for the next frame.
//   - (nil, nil, nil) when more bytes are required; call Parse again with
//     the next chunk.
//   - (nil, nil, err) on a parse failure. The parser stays failed until
//     Reset is called.
func (p *Parser) Parse(data []byte) (*Frame, []byte, error) {
	if p.state == failed {
		return nil, nil, p.err
	}
	if len(data) > 0 {
		p.buf = append(p.buf, data...)
	}

	for {
		switch p.state {

		case awaitingCommand:
			line, ok := p.takeLine()
			if !ok {
				return nil, nil, nil
			}
			token := strings.TrimSpace(line)
			if token == "" {
				// a bare line terminator is a heartbeat, not an error
				return p.complete(NewHeartbeat())
			}
			if !IsCommand(token) {
				return p.fail(UnknownCommandError(token))
			}
			p.command = token
			p.header = NewHeader()
			p.state = awaitingHeaders

		case awaitingHeaders:
			line, ok := p.takeLine()
			if !ok {
				return nil, nil, nil
			}
			if line == "" {
				declared, ok, err := (&Frame{Header: p.header}).ContentLength()
				if err != nil {
					return p.fail(err)
				}
				if ok {
					p.declaredLen = declared
				}
				p.state = awaitingBody
				continue
			}
			sep := strings.IndexByte(line, ':')
			if sep < 0 {
				return p.fail(&ParseError{Reason: "malformed header, missing separator", Text: line})
			}
			key := strings.TrimSpace(line[:sep])
			value := strings.TrimSpace(line[sep+1:])
			if key == "" {
				return p.fail(&ParseError{Reason: "malformed header, empty key", Text: line})
			}
			p.header.Add(key, value)

		case awaitingBody:
			if p.declaredLen >= 0 {
				return p.takeSizedBody()
			}
			return p.takeUnsizedBody()
		}
	}
}

// takeSizedBody completes a frame whose body length was declared via
// content-length. The body may legally contain NUL bytes; the terminator
// is the single NUL immediately after the declared length.
func (p *Parser) takeSizedBody() (*Frame, []byte, error) {
	if len(p.buf) <= p.declaredLen {
		p.scanned = len(p.buf)
		return nil, nil, nil
	}
	if p.buf[p.declaredLen] != 0 {
		// the real body runs past the declared length; find the actual
		// terminator so the error can name both lengths
		actual := bytes.IndexByte(p.buf[p.declaredLen:], 0)
		if actual < 0 {
			p.scanned = len(p.buf)
			return nil, nil, nil
		}
		return p.fail(&BodyLengthError{Declared: p.declaredLen, Actual: p.declaredLen + actual})
	}
	body := make([]byte, p.declaredLen)
	copy(body, p.buf[:p.declaredLen])
	p.consume(p.declaredLen + 1)
	return p.complete(&Frame{Command: p.command, Header: p.header, Body: body})
}

// takeUnsizedBody completes a frame with no declared length: the body runs
// up to, and excludes, the first NUL byte.
func (p *Parser) takeUnsizedBody() (*Frame, []byte, error) {
	end := bytes.IndexByte(p.buf[p.scanned:], 0)
	if end < 0 {
		p.scanned = len(p.buf)
		return nil, nil, nil
	}
	end += p.scanned
	body := make([]byte, end)
	copy(body, p.buf[:end])
	p.consume(end + 1)
	return p.complete(&Frame{Command: p.command, Header: p.header, Body: body})
}

// takeLine removes one line from the buffer, excluding the terminator and
// any trailing carriage return. Scanning resumes where the last call left
// off, so partial lines are never rescanned.
func (p *Parser) takeLine() (string, bool) {
	i := bytes.IndexByte(p.buf[p.scanned:], '\n')
	if i < 0 {
		p.scanned = len(p.buf)
		return "", false
	}
	end := p.scanned + i
	line := string(p.buf[:end])
	p.consume(end + 1)
	line = strings.TrimSuffix(line, "\r")
	return line, true
}

func (p *Parser) consume(n int) {
	p.buf = p.buf[n:]
	p.scanned = 0
}

func (p *Parser) complete(f *Frame) (*Frame, []byte, error) {
	rest := p.buf
	p.Reset()
	if len(rest) == 0 {
		rest = nil
	}
	return f, rest, nil
}

func (p *Parser) fail(err error) (*Frame, []byte, error) {
	p.state = failed
	p.err = err
	return nil, nil, err
}

// Reset returns the parser to the start-of-frame state, discarding any
// buffered input and any recorded failure.
func (p *Parser) Reset() {
	p.state = awaitingCommand
	p.buf = nil
	p.scanned = 0
	p.command = ""
	p.header = nil
	p.declaredLen = -1
	p.err = nil
}

// Parse decodes exactly one frame from a complete buffer. It fails when the
// buffer does not contain a full frame. Bytes beyond the first frame are
// returned to the caller, never discarded.
func Parse(data []byte) (*Frame, []byte, error) {
	p := NewParser()
	f, rest, err := p.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	if f == nil {
		return nil, nil, &ParseError{Reason: "incomplete frame"}
	}
	return f, rest, nil
}
