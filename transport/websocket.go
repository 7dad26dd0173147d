// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package transport

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gridfabric/stompwire/frame"
	"github.com/gridfabric/stompwire/log"
	"github.com/gridfabric/stompwire/metrics"
)

// wsTransport carries one STOMP frame per WebSocket text message. Brokers
// occasionally batch frames into a single message, so the remainder of each
// message is replayed before the next websocket read, same as on TCP.
type wsTransport struct {
	conn      *websocket.Conn
	writeLock sync.Mutex
	parser    *frame.Parser
	remainder []byte
	log       *logrus.Entry
}

// DialWebSocket connects to a STOMP endpoint exposed over a WebSocket URL.
func DialWebSocket(u *url.URL, headers http.Header) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to dial websocket endpoint '%s'", u.String())
	}
	return NewWebSocketTransport(conn), nil
}

// NewWebSocketTransport wraps an established websocket connection.
func NewWebSocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{
		conn:   conn,
		parser: frame.NewParser(),
		log:    log.Log.WithField("remote", conn.RemoteAddr().String()),
	}
}

func (t *wsTransport) SendFrame(f *frame.Frame) error {
	t.writeLock.Lock()
	defer t.writeLock.Unlock()

	w, err := t.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return errors.Wrap(err, "unable to open websocket writer")
	}
	if _, err = f.WriteTo(w); err != nil {
		w.Close()
		return errors.Wrap(err, "unable to write frame")
	}
	if err = w.Close(); err != nil {
		return errors.Wrap(err, "unable to flush frame")
	}
	metrics.FramesWritten.Inc()
	return nil
}

func (t *wsTransport) ReadFrame() (*frame.Frame, error) {
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

		kind, p, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrPeerClosed
			}
			return nil, errors.Wrap(err, "unable to read from broker")
		}
		if kind != websocket.TextMessage || len(p) == 0 {
			// a bare message with no payload is treated as a liveness ping
			data = []byte("\n")
			continue
		}
		data = p
	}
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
