package checker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimoJanra/DriftWatch/internal/models"
)

func TestProbe_JSONObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"name":"ann","id":42}`))
	}))
	defer srv.Close()

	out, err := NewExecutor(nil).Probe(context.Background(), Request{
		URL:     srv.URL + "/users",
		Method:  "get",
		Query:   map[string]any{"limit": 5},
		Timeout: time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, KindResponse, out.Kind)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, models.LatencyFast, out.Latency)
	assert.Equal(t, []string{"id", "name"}, out.Fields)
	assert.Equal(t, json.Number("42"), out.Data.(map[string]any)["id"])
}

func TestProbe_ArrayFieldUnion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"a"},{"id":2,"email":"b@x"},3]`))
	}))
	defer srv.Close()

	out, err := NewExecutor(nil).Probe(context.Background(), Request{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "id", "name"}, out.Fields)
}

func TestProbe_NonJSONHasNoFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	out, err := NewExecutor(nil).Probe(context.Background(), Request{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "text/html", out.ContentType)
	assert.Empty(t, out.Fields)
	assert.Nil(t, out.Data)
}

func TestProbe_PostSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"bob"}`, string(raw))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	out, err := NewExecutor(nil).Probe(context.Background(), Request{
		URL: srv.URL, Method: http.MethodPost, Body: map[string]any{"name": "bob"}, Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, out.StatusCode)
}

func TestProbe_SlowBucket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(SlowThreshold + 50*time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out, err := NewExecutor(nil).Probe(context.Background(), Request{URL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, models.LatencySlow, out.Latency)
	assert.GreaterOrEqual(t, out.LatencyMS, SlowThreshold.Milliseconds())
}

func TestProbe_LatencyIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(SlowThreshold + 100*time.Millisecond)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	out, err := NewExecutor(nil).Probe(context.Background(), Request{URL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, models.LatencySlow, out.Latency)
	assert.GreaterOrEqual(t, out.LatencyMS, SlowThreshold.Milliseconds())
	assert.Equal(t, []string{"id"}, out.Fields)
}

func TestProbe_OversizedBody(t *testing.T) {
	padding := strings.Repeat("x", maxBodyBytes)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"name":"` + padding + `"}`))
	}))
	defer srv.Close()

	out, err := NewExecutor(nil).Probe(context.Background(), Request{URL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, KindResponse, out.Kind)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Empty(t, out.Fields)
	assert.Nil(t, out.Data)
	assert.Contains(t, out.Error, "exceeds")
}

func TestProbe_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	out, err := NewExecutor(nil).Probe(context.Background(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, KindTimeout, out.Kind)
	assert.Zero(t, out.StatusCode)
	assert.Equal(t, models.LatencyTimeout, out.Latency)
	assert.Contains(t, out.Error, "timed out")
}

func TestProbe_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	out, err := NewExecutor(nil).Probe(context.Background(), Request{URL: addr, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, KindConnectionError, out.Kind)
	assert.Zero(t, out.StatusCode)
	assert.Equal(t, models.LatencyError, out.Latency)
	assert.Contains(t, out.Error, "unavailable")
}

func TestProbe_OtherFailuresAreErrors(t *testing.T) {
	_, err := NewExecutor(nil).Probe(context.Background(), Request{URL: "ftp://example.invalid/x", Timeout: time.Second})
	require.Error(t, err)

	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
	assert.Equal(t, http.MethodGet, probeErr.Method)
}

func TestIsJSONContentType(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/problem+json", true},
		{"APPLICATION/JSON", true},
		{"text/html", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsJSONContentType(tt.in))
		})
	}
}

func TestDecodeJSON_RejectsTrailingData(t *testing.T) {
	_, ok := DecodeJSON([]byte(`{"a":1} {"b":2}`))
	assert.False(t, ok)

	_, ok = DecodeJSON([]byte(`not json`))
	assert.False(t, ok)

	data, ok := DecodeJSON([]byte(` {"a":1} `))
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, FieldSet(data))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "42", FormatValue(json.Number("42")))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "7", FormatValue(7))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, `{"a":1}`, FormatValue(map[string]any{"a": 1}))
}

func TestRateLimiter(t *testing.T) {
	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))
	assert.Zero(t, NewRateLimiter(0).Interval())

	rl := NewRateLimiter(600)
	assert.Equal(t, 100*time.Millisecond, rl.Interval())

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	require.NoError(t, rl.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, rl.Wait(cancelled))
}
