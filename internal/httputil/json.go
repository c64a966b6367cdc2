package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxResponseBytes bounds the response bodies read by DoJSON.
const maxResponseBytes = 10 << 20

// FailureKind classifies a CallErr.
type FailureKind string

const (
	Timeout    FailureKind = "timeout"
	Connection FailureKind = "connection"
	Status     FailureKind = "status"
	Decode     FailureKind = "decode"
)

// CallErr is returned by DoJSON when a call fails.
type CallErr struct {
	Kind       FailureKind
	URL        string
	StatusCode int
	// Body holds the start of an error response body
	Body string
	Err  error
}

func (e *CallErr) Error() string {
	switch e.Kind {
	case Status:
		if e.Body != "" {
			return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
	case Timeout:
		return fmt.Sprintf("%s timed out: %v", e.URL, e.Err)
	case Decode:
		return fmt.Sprintf("failed to decode response from %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("failed to reach %s: %v", e.URL, e.Err)
	}
}

func (e *CallErr) Unwrap() error { return e.Err }

// Temporary reports whether the call may succeed when repeated.
func (e *CallErr) Temporary() bool {
	switch e.Kind {
	case Timeout, Connection:
		return true
	case Status:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return false
}

// Request describes a JSON call. Method defaults to POST.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any
}

// DefaultRetryOptions retries temporary failures three times with a short
// exponential backoff.
func DefaultRetryOptions() []backoff.RetryOption {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 250 * time.Millisecond
	exp.MaxInterval = 5 * time.Second
	return []backoff.RetryOption{
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(3),
	}
}

// DoJSON sends req and decodes the JSON response into out, which may be nil.
// Temporary failures are retried with opts, or DefaultRetryOptions when none are
// given. Failures are reported as *CallErr, except for context cancellation.
func DoJSON(ctx context.Context, client *http.Client, req Request, out any, opts ...backoff.RetryOption) error {
	if client == nil {
		client = NewClient(0)
	}
	if len(opts) == 0 {
		opts = DefaultRetryOptions()
	}

	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	operation := func() ([]byte, error) {
		body, err := do(ctx, client, req, payload)
		if err == nil {
			return body, nil
		}
		var callErr *CallErr
		if errors.As(err, &callErr) && callErr.Temporary() && ctx.Err() == nil {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	body, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &CallErr{Kind: Decode, URL: req.URL, Err: err}
	}
	return nil
}

func do(ctx context.Context, client *http.Client, req Request, payload []byte) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		return nil, classify(req.URL, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(b)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &CallErr{Kind: Status, URL: req.URL, StatusCode: resp.StatusCode, Body: snippet}
	}
	return b, nil
}

func classify(url string, err error) *CallErr {
	if errors.Is(err, context.DeadlineExceeded) {
		return &CallErr{Kind: Timeout, URL: url, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &CallErr{Kind: Timeout, URL: url, Err: err}
	}
	return &CallErr{Kind: Connection, URL: url, Err: err}
}
