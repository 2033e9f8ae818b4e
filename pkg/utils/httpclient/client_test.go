package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func setupTracer(t *testing.T) *sdktrace.TracerProvider {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp
}

func TestDoJSON_InjectsTraceparent(t *testing.T) {
	tp := setupTracer(t)

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	ctx, span := tp.Tracer("test").Start(context.Background(), "embed")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, strings.NewReader(`{}`))
	require.NoError(t, err)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, NewClient(5*time.Second, 0).DoJSON(req, &out))
	assert.True(t, out.OK)
	assert.Contains(t, got, span.SpanContext().TraceID().String())
}

func TestInjectTraceContext_WithoutSpan(t *testing.T) {
	setupTracer(t)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	NewClient(time.Second, 0).injectTraceContext(req)

	assert.Empty(t, req.Header.Get("traceparent"))
}

func TestDoJSON_StatusError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "model is loading")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"inputs":"x"}`))
	require.NoError(t, err)

	err = NewClient(5*time.Second, 0).DoJSON(req, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "model is loading", se.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retries by default")
}

func TestDoRequest_RetriesReplayBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, 2)
	c.backoff = time.Millisecond

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
	require.NoError(t, err)

	resp, err := c.DoRequest(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "payload", string(b))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
