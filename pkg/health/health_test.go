package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func get(t *testing.T, fn http.HandlerFunc) (int, body) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var b body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return w.Code, b
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing(context.Context) error { return nil }

func TestLiveEndpoint_Thresholds(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failing("connection refused"))
	p := h.liveness[0]
	ctx := context.Background()

	for i := range DefaultThresholds.Failure {
		code, _ := get(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code, "still healthy after %d failures", i)
		p.run(ctx)
	}

	code, b := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", b.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, b.Checks)
}

func TestProbe_Recovers(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	h := New()
	h.SetThresholds(Thresholds{Failure: 1, Success: 2})
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	})
	p := h.liveness[0]
	ctx := context.Background()

	p.run(ctx)
	assert.Equal(t, "down", p.failure())

	fail.Store(false)
	p.run(ctx)
	assert.Equal(t, "check is unhealthy", p.failure())
	p.run(ctx)
	assert.Empty(t, p.failure())
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		checks map[string]CheckFunc
		status int
		failed []string
	}{
		{name: "ready without checks", ready: true, status: http.StatusOK},
		{name: "not ready", ready: false, status: http.StatusServiceUnavailable, failed: []string{"_readiness"}},
		{
			name:   "one failing",
			ready:  true,
			checks: map[string]CheckFunc{"postgres": passing, "redis": failing("timeout")},
			status: http.StatusServiceUnavailable,
			failed: []string{"redis"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.SetThresholds(Thresholds{Failure: 1, Success: 1})
			for name, fn := range tt.checks {
				h.AddReadinessCheck(name, time.Second, fn)
			}
			for _, p := range h.readiness {
				p.run(context.Background())
			}
			h.SetReady(tt.ready)

			code, b := get(t, h.ReadyEndpoint)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.status == http.StatusOK, h.IsReady())
			for _, name := range tt.failed {
				assert.Contains(t, b.Checks, name)
			}
			assert.Len(t, b.Checks, len(tt.failed))
		})
	}
}

func TestStartStop(t *testing.T) {
	var runs atomic.Int32
	h := New()
	h.AddReadinessCheck("count", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	h.Stop()
	h.Stop()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, passing)
	h.AddReadinessCheck("ready", time.Second, passing)
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			for range 20 {
				get(t, h.LiveEndpoint)
				get(t, h.ReadyEndpoint)
				h.IsReady()
			}
		})
	}
	wg.Wait()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(pinger{})(ctx))
	assert.ErrorContains(t, PingCheck(pinger{err: errors.New("refused")})(ctx), "refused")

	assert.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
}
