// Copyright 2025 The tumix Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
//
// Modified for toolloop: adds New, With and Debug.

// Package log attaches a [slog.Logger] to a [context.Context] so that code deep in
// the tool-call loop, the gateways and the capabilities can log with the attributes
// of the conversation that is running, without threading a logger through every call.
//
// Packages in this module log through this package rather than using [slog.Logger]
// directly.
package log

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"
	"time"
)

type loggerKey struct{}

// WithLogger returns a new [context.Context] that carries the provided [*slog.Logger].
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// With returns a context whose logger has args added to every record.
func With(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(args...))
}

var captureCaller atomic.Bool

func init() {
	captureCaller.Store(true)
}

// SetCaptureCaller toggles whether log records include call-site information.
func SetCaptureCaller(enabled bool) {
	captureCaller.Store(enabled)
}

// FromContext returns the [*slog.Logger] associated with ctx, or [slog.Default].
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// New builds a logger writing to w. format is "json" or "text"; anything else
// falls back to text.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, AddSource: true}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Log invokes [slog.Logger.Log] on the logger associated with ctx.
func Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	doLog(ctx, level, msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	doLog(ctx, slog.LevelDebug, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	doLog(ctx, slog.LevelInfo, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	doLog(ctx, slog.LevelWarn, msg, args...)
}

// Error logs at error level with err attached under the "error" key.
func Error(ctx context.Context, msg string, err error, args ...any) {
	doLog(ctx, slog.LevelError, msg, slices.Concat([]any{"error", err}, args)...)
}

// Calling [slog.Logger.Log] from the helpers above would report them as the call site.
func doLog(ctx context.Context, level slog.Level, msg string, args ...any) {
	if logger := FromContext(ctx); logger.Enabled(ctx, level) {
		var pc uintptr
		if captureCaller.Load() {
			var pcs [1]uintptr
			// skip [runtime.Callers], [doLog], and caller
			runtime.Callers(3, pcs[:])
			pc = pcs[0]
		}

		record := slog.NewRecord(time.Now(), level, msg, pc)
		record.Add(args...)
		logger.Handler().Handle(ctx, record) //nolint:errcheck
	}
}
