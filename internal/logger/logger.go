// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logger provides the structured, leveled logging interface every
// other component accepts and logs through — never the concrete type.
// It is a small functional-options wrapper over log/slog, fanning out to
// multiple handlers (console plus an optional log file) via
// github.com/samber/slog-multi.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the leveled logging interface every core component depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// With returns a Logger that attaches args to every subsequent record.
	With(args ...any) Logger
	// WithGroup returns a Logger that nests subsequent attributes under name.
	WithGroup(name string) Logger
}

// Option configures NewLogger.
type Option func(*options)

type options struct {
	debug  bool
	quiet  bool
	format string
	writer io.Writer
	file   *os.File
}

// WithDebug lowers the level to slog.LevelDebug.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithFormat selects the console handler: "json" or "text" (the default).
func WithFormat(format string) Option { return func(o *options) { o.format = format } }

// WithQuiet raises the level to slog.LevelError, overriding WithDebug if
// both are given.
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

// WithWriter overrides the console destination (os.Stderr by default).
// Primarily useful for tests.
func WithWriter(w io.Writer) Option { return func(o *options) { o.writer = w } }

// WithLogFile adds a second JSON handler writing to f, fanned out alongside
// the console handler.
func WithLogFile(f *os.File) Option { return func(o *options) { o.file = f } }

type slogLogger struct {
	inner *slog.Logger
}

// NewLogger builds a Logger from the given options. With no options it logs
// text at Info level to stderr.
func NewLogger(opts ...Option) Logger {
	o := &options{format: "text", writer: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	level := slog.LevelInfo
	switch {
	case o.quiet:
		level = slog.LevelError
	case o.debug:
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: o.debug}

	var handlers []slog.Handler
	if o.format == "json" {
		handlers = append(handlers, slog.NewJSONHandler(o.writer, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(o.writer, handlerOpts))
	}
	if o.file != nil {
		handlers = append(handlers, slog.NewJSONHandler(o.file, handlerOpts))
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = slogmulti.Fanout(handlers...)
	}

	return &slogLogger{inner: slog.New(handler)}
}

func (l *slogLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.inner.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.inner.Handler().Handle(ctx, r)
}

func (l *slogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *slogLogger) Debugf(format string, args ...any) { l.log(slog.LevelDebug, fmt.Sprintf(format, args...)) }
func (l *slogLogger) Infof(format string, args ...any)  { l.log(slog.LevelInfo, fmt.Sprintf(format, args...)) }
func (l *slogLogger) Warnf(format string, args ...any)  { l.log(slog.LevelWarn, fmt.Sprintf(format, args...)) }
func (l *slogLogger) Errorf(format string, args ...any) { l.log(slog.LevelError, fmt.Sprintf(format, args...)) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{inner: l.inner.With(args...)}
}

func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{inner: l.inner.WithGroup(name)}
}

var _ Logger = (*slogLogger)(nil)
