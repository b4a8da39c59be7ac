package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAllHealthy(t *testing.T) {
	relay := newStatusServer(t, http.StatusOK)
	frontend := newStatusServer(t, http.StatusOK)

	checker := NewChecker([]Service{
		{Name: "relay", URL: relay.URL, Critical: true},
		{Name: "frontend", URL: frontend.URL},
	}, time.Second)

	results, code := checker.Run(context.Background())
	assert.Equal(t, ExitHealthy, code)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Healthy, r.Name)
		assert.Equal(t, http.StatusOK, r.Status)
		assert.Empty(t, r.Err)
	}
}

func TestNonCriticalDown(t *testing.T) {
	relay := newStatusServer(t, http.StatusOK)
	frontend := newStatusServer(t, http.StatusServiceUnavailable)

	checker := NewChecker([]Service{
		{Name: "relay", URL: relay.URL, Critical: true},
		{Name: "frontend", URL: frontend.URL},
	}, time.Second)

	results, code := checker.Run(context.Background())
	assert.Equal(t, ExitNonCriticalDown, code)
	assert.True(t, results[0].Healthy)
	assert.False(t, results[1].Healthy)
	assert.Contains(t, results[1].Err, "unexpected status 503")
}

func TestCriticalDownWinsOverNonCritical(t *testing.T) {
	frontend := newStatusServer(t, http.StatusBadGateway)

	checker := NewChecker([]Service{
		{Name: "frontend", URL: frontend.URL},
		{Name: "relay", URL: "http://127.0.0.1:1/health", Critical: true},
	}, time.Second)

	_, code := checker.Run(context.Background())
	assert.Equal(t, ExitCriticalDown, code)
}

func TestUnreachableServiceReportsError(t *testing.T) {
	checker := NewChecker([]Service{
		{Name: "relay", URL: "http://127.0.0.1:1/health", Critical: true},
	}, time.Second)

	results, code := checker.Run(context.Background())
	assert.Equal(t, ExitCriticalDown, code)
	require.Len(t, results, 1)
	assert.False(t, results[0].Healthy)
	assert.NotEmpty(t, results[0].Err)
}

func TestSlowServiceTimesOut(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	checker := NewChecker([]Service{
		{Name: "relay", URL: slow.URL, Critical: true},
	}, 50*time.Millisecond)

	start := time.Now()
	results, code := checker.Run(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, ExitCriticalDown, code)
	assert.False(t, results[0].Healthy)
}

func TestNoProbeConfigured(t *testing.T) {
	checker := NewChecker([]Service{{Name: "mystery"}}, time.Second)

	results, code := checker.Run(context.Background())
	assert.Equal(t, ExitNonCriticalDown, code)
	assert.Equal(t, "no probe configured", results[0].Err)
}
