package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"lead-responder/internal/domain"
	"lead-responder/internal/metrics"
)

func TestHealth(t *testing.T) {
	h := NewRouter(prometheus.NewRegistry(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"status":"ok","message":"lead responder is running"}`, rec.Body.String())
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := NewRouter(prometheus.NewRegistry(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewTickMetrics(reg)
	m.ObserveTick(domain.TickResult{Status: domain.TickSuccess, Replies: 1})

	rec := httptest.NewRecorder()
	NewRouter(reg, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "lead_responder_poller_replies_total 1")
	require.Contains(t, rec.Body.String(), `lead_responder_poller_ticks_total{reason="",status="success"} 1`)
}

func TestStatus(t *testing.T) {
	last := &LastTick{}
	h := NewRouter(prometheus.NewRegistry(), last)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last.ObserveTick(domain.TickResult{
		ID:         "tick-9",
		Status:     domain.TickPartialFailure,
		Reason:     "dispatch_error",
		Err:        errors.New("bonzo: 500"),
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Replies:    2,
	})

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got tickStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "tick-9", got.ID)
	require.Equal(t, "partial_failure", got.Status)
	require.Equal(t, "dispatch_error", got.Reason)
	require.Equal(t, "bonzo: 500", got.Error)
	require.Equal(t, int64(1500), got.DurationMS)
	require.Equal(t, 2, got.Replies)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(ln.Addr().String(), NewRouter(prometheus.NewRegistry(), nil), nil)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "lead responder is running")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-errCh)
}
