package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/MimoJanra/DriftWatch/internal/models"
)

const (
	// SlowThreshold separates the fast and slow latency buckets.
	SlowThreshold = 200 * time.Millisecond

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Kind tags the variant carried by an Outcome.
type Kind int

const (
	// KindResponse means the target answered; StatusCode is set.
	KindResponse Kind = iota
	// KindTimeout means no response arrived before the deadline.
	KindTimeout
	// KindConnectionError means the target refused the connection.
	KindConnectionError
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindTimeout:
		return "timeout"
	case KindConnectionError:
		return "connection_error"
	default:
		return "unknown"
	}
}

// Request describes a single probe.
type Request struct {
	URL     string
	Method  string
	Query   map[string]any
	Body    any
	Timeout time.Duration
}

// Outcome is the classified result of one probe. Faults that are neither a
// timeout nor a refused connection are returned as errors instead.
type Outcome struct {
	Kind        Kind
	URL         string
	StatusCode  int
	ContentType string
	LatencyMS   int64
	Latency     models.LatencyBucket
	// Fields is the sorted top-level key set of a JSON body.
	Fields []string
	// Data is the decoded JSON body, nil for other content types.
	Data any
	// Error describes a timeout or connection failure, or a response body
	// too large to inspect.
	Error string
}

// ProbeError reports a transport failure that is not classified as a
// timeout or connection error.
type ProbeError struct {
	Method string
	URL    string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Executor issues probes. It performs exactly one attempt per probe.
type Executor struct {
	client *http.Client
}

// NewExecutor returns an Executor using client, or a default client when nil.
// Deadlines come from each Request, not from the client.
func NewExecutor(client *http.Client) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	return &Executor{client: client}
}

// Probe makes exactly one attempt at req. Timeouts and refused connections
// come back as an Outcome; only other faults are returned as a *ProbeError.
func (e *Executor) Probe(ctx context.Context, req Request) (Outcome, error) {
	fullURL, err := BuildURL(req.URL, req.Query)
	if err != nil {
		return Outcome{}, &ProbeError{Method: req.Method, URL: req.URL, Err: err}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := normalizeMethod(req.Method)
	httpReq, err := createHTTPRequest(ctx, method, fullURL, req.Body)
	if err != nil {
		return Outcome{}, &ProbeError{Method: method, URL: fullURL, Err: err}
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return handleRequestError(err, method, fullURL, timeout)
	}
	defer closeResponseBody(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return handleRequestError(err, method, fullURL, timeout)
	}
	duration := time.Since(start)

	return createResponseOutcome(resp, fullURL, body, duration), nil
}

func normalizeMethod(method string) string {
	if method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(method)
}

func createHTTPRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	if hasRequestBody(method, body) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func hasRequestBody(method string, body any) bool {
	return body != nil && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch)
}

func handleRequestError(err error, method, url string, timeout time.Duration) (Outcome, error) {
	switch {
	case isTimeoutError(err):
		return Outcome{
			Kind:    KindTimeout,
			URL:     url,
			Latency: models.LatencyTimeout,
			Error:   fmt.Sprintf("request timed out after %s", timeout),
		}, nil
	case isConnectionRefused(err):
		return Outcome{
			Kind:    KindConnectionError,
			URL:     url,
			Latency: models.LatencyError,
			Error:   fmt.Sprintf("service unavailable: connection refused by %s", url),
		}, nil
	default:
		return Outcome{}, &ProbeError{Method: method, URL: url, Err: err}
	}
}

func closeResponseBody(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, maxBodyBytes))
		_ = body.Close()
	}
}

func createResponseOutcome(resp *http.Response, url string, body []byte, duration time.Duration) Outcome {
	contentType := resp.Header.Get("Content-Type")
	out := Outcome{
		Kind:        KindResponse,
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		LatencyMS:   duration.Milliseconds(),
		Latency:     BucketLatency(duration),
	}

	if len(body) > maxBodyBytes {
		out.Error = fmt.Sprintf("response body exceeds %d bytes; fields not extracted", maxBodyBytes)
		return out
	}
	if IsJSONContentType(contentType) {
		if data, ok := DecodeJSON(body); ok {
			out.Data = data
			out.Fields = FieldSet(data)
		}
	}
	return out
}

// BucketLatency classifies a completed request's latency.
func BucketLatency(d time.Duration) models.LatencyBucket {
	if d < SlowThreshold {
		return models.LatencyFast
	}
	return models.LatencySlow
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
