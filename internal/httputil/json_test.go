package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/go-cmp/cmp"
)

func fastRetry() []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(time.Millisecond)),
		backoff.WithMaxTries(3),
	}
}

type echo struct {
	Query string `json:"query"`
	Depth string `json:"depth,omitempty"`
}

func TestDoJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var in echo
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Error(err)
			return
		}
		in.Depth = "standard"
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer server.Close()

	var out echo
	err := DoJSON(context.Background(), server.Client(), Request{
		URL:    server.URL,
		Header: http.Header{"Authorization": {"Bearer secret"}},
		Body:   echo{Query: "golang"},
	}, &out, fastRetry()...)
	if err != nil {
		t.Fatalf("DoJSON() error = %v", err)
	}
	if diff := cmp.Diff(echo{Query: "golang", Depth: "standard"}, out); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestDoJSON_Failures(t *testing.T) {
	testCases := []struct {
		name      string
		handler   func(calls int32) (int, string)
		wantKind  FailureKind
		wantCalls int32
		wantErr   bool
	}{
		{
			name: "server error then success",
			handler: func(calls int32) (int, string) {
				if calls == 1 {
					return http.StatusServiceUnavailable, `{"error": "busy"}`
				}
				return http.StatusOK, `{"query": "ok"}`
			},
			wantCalls: 2,
		},
		{
			name:      "rate limited until exhausted",
			handler:   func(int32) (int, string) { return http.StatusTooManyRequests, `{"error": "slow down"}` },
			wantKind:  Status,
			wantCalls: 3,
			wantErr:   true,
		},
		{
			name:      "bad request is not retried",
			handler:   func(int32) (int, string) { return http.StatusBadRequest, `{"error": "missing query"}` },
			wantKind:  Status,
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "invalid json",
			handler:   func(int32) (int, string) { return http.StatusOK, `not json` },
			wantKind:  Decode,
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				status, body := tc.handler(calls.Add(1))
				w.WriteHeader(status)
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			var out echo
			err := DoJSON(context.Background(), server.Client(), Request{URL: server.URL, Body: echo{Query: "q"}}, &out, fastRetry()...)
			if got := calls.Load(); got != tc.wantCalls {
				t.Errorf("server called %d times, want %d", got, tc.wantCalls)
			}
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("DoJSON() error = %v", err)
				}
				return
			}
			var callErr *CallErr
			if !errors.As(err, &callErr) {
				t.Fatalf("DoJSON() error = %v, want *CallErr", err)
			}
			if callErr.Kind != tc.wantKind {
				t.Errorf("Kind = %s, want %s", callErr.Kind, tc.wantKind)
			}
		})
	}
}

func TestDoJSON_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := DoJSON(ctx, server.Client(), Request{Method: http.MethodGet, URL: server.URL}, nil, fastRetry()...)
	var callErr *CallErr
	if !errors.As(err, &callErr) || callErr.Kind != Timeout {
		t.Fatalf("DoJSON() error = %v, want timeout CallErr", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("DoJSON() error = %v, want it to wrap context.DeadlineExceeded", err)
	}
}

func TestDoJSON_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := DoJSON(context.Background(), nil, Request{URL: url}, nil, fastRetry()...)
	var callErr *CallErr
	if !errors.As(err, &callErr) || callErr.Kind != Connection {
		t.Fatalf("DoJSON() error = %v, want connection CallErr", err)
	}
}

func TestDoJSON_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := DoJSON(ctx, server.Client(), Request{URL: server.URL}, nil, fastRetry()...)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("DoJSON() error = %v, want context.Canceled", err)
	}
	var callErr *CallErr
	if errors.As(err, &callErr) {
		t.Errorf("cancellation should not be reported as *CallErr, got %v", callErr)
	}
}

func TestCallErr_Temporary(t *testing.T) {
	testCases := []struct {
		err  *CallErr
		want bool
	}{
		{&CallErr{Kind: Timeout}, true},
		{&CallErr{Kind: Connection}, true},
		{&CallErr{Kind: Status, StatusCode: 429}, true},
		{&CallErr{Kind: Status, StatusCode: 502}, true},
		{&CallErr{Kind: Status, StatusCode: 404}, false},
		{&CallErr{Kind: Decode}, false},
	}
	for _, tc := range testCases {
		if got := tc.err.Temporary(); got != tc.want {
			t.Errorf("%+v.Temporary() = %v, want %v", tc.err, got, tc.want)
		}
	}
}
