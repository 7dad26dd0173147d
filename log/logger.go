// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package log carries the shared logrus instance used across the engine.
// Components derive scoped entries from Log with WithField, so every line
// names the connection or subscription it belongs to.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log is the engine-wide logger. Applications embedding the engine may
// retune it (level, formatter, output) before connecting.
var Log *WireLogger

// WireLogger wraps logrus so future cross-cutting fields can be attached in
// one place without touching call sites.
type WireLogger struct {
	*logrus.Logger
}

func init() {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	Log = &WireLogger{l}
}

// SetOutput redirects all engine logging to w.
func SetOutput(w io.Writer) {
	Log.Logger.SetOutput(w)
}

// SetLevel adjusts the engine-wide log level.
func SetLevel(level logrus.Level) {
	Log.Logger.SetLevel(level)
}
