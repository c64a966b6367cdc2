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
// Modified for toolloop.

// Package httputil provides the HTTP clients shared by gateways and remote
// capabilities: a pooled transport, optional OpenTelemetry tracing and a JSON
// call helper with retries.
package httputil

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// TraceEnv enables request tracing when set to a true value.
const TraceEnv = "TOOLLOOP_HTTP_TRACE"

var (
	pooledBaseOnce sync.Once
	pooledBase     http.RoundTripper

	tracedTransport   *Transport
	untracedTransport *Transport
	transportsOnce    sync.Once
)

func baseTransport() http.RoundTripper {
	pooledBaseOnce.Do(func() {
		if dt, ok := http.DefaultTransport.(*http.Transport); ok {
			clone := dt.Clone()
			clone.MaxIdleConns = 256
			clone.MaxIdleConnsPerHost = 64
			clone.IdleConnTimeout = 90 * time.Second
			pooledBase = clone
		} else {
			pooledBase = http.DefaultTransport
		}
	})
	return pooledBase
}

func defaultTransports() {
	transportsOnce.Do(func() {
		base := baseTransport()
		tracedTransport = NewTransportWithTrace(base, true)
		untracedTransport = NewTransportWithTrace(base, false)
	})
}

// NewClient returns a client on the shared pool with tracing decided by TraceEnv.
// A zero timeout means no client-side timeout.
func NewClient(timeout time.Duration) *http.Client {
	return NewClientWithTracing(timeout, DefaultTraceEnabled())
}

func NewClientWithTracing(timeout time.Duration, traceEnabled bool) *http.Client {
	defaultTransports()

	transport := tracedTransport
	if !traceEnabled {
		transport = untracedTransport
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

var (
	traceOnce sync.Once
	traceEnv  bool
)

// DefaultTraceEnabled reads TraceEnv once. Unset or invalid values disable tracing.
func DefaultTraceEnabled() bool {
	traceOnce.Do(func() {
		raw := os.Getenv(TraceEnv)
		if raw == "" {
			traceEnv = false
			return
		}
		val, err := strconv.ParseBool(raw)
		traceEnv = err == nil && val
	})
	return traceEnv
}
