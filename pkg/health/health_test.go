package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runChecks(h *Health, times int) {
	ctx := context.Background()
	for range times {
		for _, c := range h.liveness {
			c.run(ctx)
		}
		for _, c := range h.readiness {
			c.run(ctx)
		}
	}
}

func healthyCheck(_ context.Context) error { return nil }

func failingCheck(_ context.Context) error { return errors.New("connection refused") }

func TestLiveEndpoint_Healthy(t *testing.T) {
	h := New()
	h.AddLivenessCheck("noop", time.Second, healthyCheck)
	runChecks(h, 1)

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLiveEndpoint_FailureBelowThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failingCheck)
	runChecks(h, failureThreshold-1)

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code, "transient failures do not flap the probe")
}

func TestLiveEndpoint_FailureAtThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failingCheck)
	runChecks(h, failureThreshold)

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"connection refused"}}`, rec.Body.String())
}

func TestCheck_RecoveryResetsFailures(t *testing.T) {
	h := New()
	var fail bool
	h.AddReadinessCheck("flappy", time.Second, func(_ context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})
	h.SetReady(true)

	fail = true
	runChecks(h, failureThreshold)
	require.False(t, h.IsReady())

	fail = false
	runChecks(h, 1)
	assert.True(t, h.IsReady(), "one success clears the failure streak")
}

func TestReadyEndpoint_NotReadyUntilSet(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyEndpoint_DrainsOnShutdown(t *testing.T) {
	h := New()
	h.SetReady(true)
	require.True(t, h.IsReady())

	h.SetReady(false)

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, h.IsReady())
}

func TestIsReady_ChecksAndFlag(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, failingCheck)

	h.SetReady(true)
	runChecks(h, failureThreshold)
	assert.False(t, h.IsReady(), "failing readiness check blocks readiness")
}

func TestStart_RunsChecksPeriodically(t *testing.T) {
	h := New()
	calls := make(chan struct{}, 16)
	h.AddReadinessCheck("tick", time.Second, func(_ context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)
	defer h.Stop()

	for range 3 {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("check did not run in time")
		}
	}
}

func TestCheck_TimeoutSurfacesAsFailure(t *testing.T) {
	h := New()
	h.AddReadinessCheck("slow", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.SetReady(true)

	runChecks(h, failureThreshold)
	assert.False(t, h.IsReady())
}
