/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package ksahlog wraps github.com/uber-go/zap the way
// cloudfoundry-gorouter/logger does: a Logger interface with a Session
// method for component-scoped children, built on a JSON encoder.
package ksahlog

import "github.com/uber-go/zap"

// Logger is the structured logger the engine and static handler take.
// Session returns a child logger carrying an extra "source" component,
// the same pattern gorouter uses to scope log lines per subsystem
// (acceptor, connection, handler) without threading a component string
// through every call site.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Session(component string) Logger
}

type logger struct {
	source string
	base   zap.Logger
}

// New returns a JSON-encoding Logger rooted at component.
func New(component string) Logger {
	enc := zap.NewJSONEncoder(
		zap.LevelString("log_level"),
		zap.MessageKey("message"),
		zap.EpochFormatter("timestamp"),
	)
	base := zap.New(enc)
	return &logger{
		source: component,
		base:   base.With(zap.String("source", component)),
	}
}

func (l *logger) Session(component string) Logger {
	source := l.source + "." + component
	return &logger{source: source, base: l.base.With(zap.String("source", source))}
}

func (l *logger) Debug(msg string, fields ...zap.Field) { l.base.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...zap.Field)  { l.base.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...zap.Field)  { l.base.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...zap.Field) { l.base.Error(msg, fields...) }

// Discard returns a Logger that drops everything, for tests that don't
// want log noise and benchmarks that don't want the I/O.
func Discard() Logger { return discard{} }

type discard struct{}

func (discard) Debug(string, ...zap.Field) {}
func (discard) Info(string, ...zap.Field)  {}
func (discard) Warn(string, ...zap.Field)  {}
func (discard) Error(string, ...zap.Field) {}
func (d discard) Session(string) Logger    { return d }
