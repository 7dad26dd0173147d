// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package transport

import (
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gridfabric/stompwire/frame"
	"github.com/gridfabric/stompwire/log"
	"github.com/gridfabric/stompwire/metrics"
)

// DefaultChunkSize is the receive buffer size used when the caller does not
// supply one.
const DefaultChunkSize = 4096

type tcpTransport struct {
	conn      net.Conn
	writeLock sync.Mutex
	parser    *frame.Parser
	chunk     []byte
	remainder []byte
	log       *logrus.Entry
}

// Dial resolves host and connects to the first address that accepts a TCP
// connection on port, logging and skipping addresses that fail. It returns
// an error only when every resolved address failed. chunkSize sets the
// receive buffer; zero selects DefaultChunkSize.
func Dial(host string, port int, chunkSize int) (Transport, error) {
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve host '%s'", host)
	}

	l := log.Log.WithField("host", host)
	var lastErr error
	for _, addr := range addrs {
		conn, dialErr := net.Dial("tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
		if dialErr != nil {
			l.WithField("addr", addr).Warnf("address failed, trying next: %v", dialErr)
			lastErr = dialErr
			continue
		}
		return NewTCPTransport(conn, chunkSize), nil
	}
	return nil, errors.Wrapf(lastErr, "no reachable address for '%s:%d'", host, port)
}

// NewTCPTransport wraps an established stream connection. The caller hands
// over ownership of conn.
func NewTCPTransport(conn net.Conn, chunkSize int) Transport {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &tcpTransport{
		conn:   conn,
		parser: frame.NewParser(),
		chunk:  make([]byte, chunkSize),
		log:    log.Log.WithField("remote", conn.RemoteAddr().String()),
	}
}

func (t *tcpTransport) SendFrame(f *frame.Frame) error {
	b := frame.Marshal(f)

	t.writeLock.Lock()
	defer t.writeLock.Unlock()

	n, err := t.conn.Write(b)
	if err != nil {
		return errors.Wrap(err, "unable to write frame")
	}
	if n != len(b) {
		return ErrShortWrite
	}
	metrics.FramesWritten.Inc()
	return nil
}

func (t *tcpTransport) ReadFrame() (*frame.Frame, error) {
	// replay bytes read past the previous frame before touching the socket
	data := t.remainder
	t.remainder = nil

	for reads := 0; ; reads++ {
		f, rest, err := t.parser.Parse(data)
		if err != nil {
			return nil, err
		}
		if f != nil {
			t.remainder = rest
			metrics.FramesRead.Inc()
			return f, nil
		}
		if reads >= maxReadContinuations {
			return nil, ErrMessageTooLong
		}

		n, err := t.conn.Read(t.chunk)
		if err != nil {
			if err == io.EOF {
				return nil, ErrPeerClosed
			}
			return nil, errors.Wrap(err, "unable to read from broker")
		}
		if n == 0 {
			return nil, ErrPeerClosed
		}
		data = t.chunk[:n]
	}
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}
