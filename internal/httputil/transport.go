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

package httputil

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// Transport is an http.RoundTripper with optional OpenTelemetry tracing.
type Transport struct {
	Base http.RoundTripper
	rt   http.RoundTripper
}

// NewTransportWithTrace wraps base, or a clone of http.DefaultTransport when base
// is nil.
func NewTransportWithTrace(base http.RoundTripper, traceEnabled bool) *Transport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	rt := base
	if traceEnabled {
		rt = otelhttp.NewTransport(base,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithMeterProvider(otel.GetMeterProvider()),
			otelhttp.WithServerName("toolloop"),
		)
	}
	return &Transport{Base: base, rt: rt}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.rt.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("round trip to %s failed: %w", req.URL.Host, err)
	}
	return resp, nil
}
