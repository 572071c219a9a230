package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePinger struct {
	err   error
	calls atomic.Int32
}

func (f *fakePinger) Ping(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func TestCheck_AggregatesStatus(t *testing.T) {
	tests := []struct {
		name     string
		critical error
		optional error
		want     Status
	}{
		{name: "all healthy", want: StatusHealthy},
		{name: "optional down degrades", optional: errors.New("kafka down"), want: StatusDegraded},
		{name: "critical down is unhealthy", critical: errors.New("redis down"), want: StatusUnhealthy},
		{name: "both down", critical: errors.New("x"), optional: errors.New("y"), want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New("1.2.3", zap.NewNop())
			h.Register("store", NewPingChecker(&fakePinger{err: tt.critical}, true))
			h.Register("sink", NewPingChecker(&fakePinger{err: tt.optional}, false))

			resp := h.Check(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, "1.2.3", resp.Version)
			require.Len(t, resp.Checks, 2)
			assert.Equal(t, "sink", resp.Checks[0].Name)
			assert.Equal(t, "store", resp.Checks[1].Name)
		})
	}
}

func TestCheck_CachesWithinTTL(t *testing.T) {
	p := &fakePinger{}
	h := New("v", zap.NewNop())
	h.Register("store", NewPingChecker(p, true))

	h.Check(context.Background())
	h.Check(context.Background())
	assert.EqualValues(t, 1, p.calls.Load())

	h.SetCacheTTL(0)
	h.Check(context.Background())
	assert.EqualValues(t, 2, p.calls.Load())
}

func TestReadinessHandler(t *testing.T) {
	h := New("v", zap.NewNop())
	h.Register("store", NewPingChecker(&fakePinger{err: errors.New("connection refused")}, true))

	rec := httptest.NewRecorder()
	h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
	checks := body["checks"].([]interface{})
	assert.Equal(t, "connection refused", checks[0].(map[string]interface{})["message"])
}

func TestLivenessHandler(t *testing.T) {
	h := New("v", zap.NewNop())
	h.Register("store", NewPingChecker(&fakePinger{err: errors.New("down")}, true))

	rec := httptest.NewRecorder()
	h.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alive"`)
}

func TestCustomChecker(t *testing.T) {
	c := NewCustomChecker(func(ctx context.Context) (Status, string, interface{}) {
		time.Sleep(time.Millisecond)
		return StatusDegraded, "slow", map[string]int{"lag": 3}
	})
	check := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, check.Status)
	assert.Equal(t, "slow", check.Message)
	assert.Positive(t, check.Duration)
}
