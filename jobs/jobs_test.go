package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlocker struct {
	removed int
	err     error
}

func (f *fakeBlocker) Cleanup() (int, error) { return f.removed, f.err }

type fakeSessions struct {
	deadline bool
}

func (f *fakeSessions) GC(ctx context.Context) (int64, error) {
	_, f.deadline = ctx.Deadline()
	return 3, nil
}

type fakeLimiter struct {
	maxIdle time.Duration
}

func (f *fakeLimiter) Cleanup(maxIdle time.Duration) int {
	f.maxIdle = maxIdle
	return 1
}

func TestAddRejectsBadSchedule(t *testing.T) {
	s := New(nil)
	err := s.Add("broken", "every now and then", func() error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	require.NoError(t, s.Add("ip-cleanup", "@every 5m", func() error { return nil }))
	assert.Equal(t, 1, s.Len())
}

func TestRunCountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg)

	s.run("ok-job", func() error { return nil })
	s.run("bad-job", func() error { return errors.New("boom") })
	s.run("bad-job", func() error { return errors.New("boom") })

	assert.Equal(t, 1.0, testutil.ToFloat64(s.runs.WithLabelValues("ok-job", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.runs.WithLabelValues("bad-job", "error")))
}

func TestJobs(t *testing.T) {
	require.NoError(t, IPCleanup(&fakeBlocker{removed: 2})())
	assert.EqualError(t, IPCleanup(&fakeBlocker{err: errors.New("bolt closed")})(), "bolt closed")

	sessions := &fakeSessions{}
	require.NoError(t, SessionGC(sessions, time.Second)())
	assert.True(t, sessions.deadline)

	limiter := &fakeLimiter{}
	require.NoError(t, RateLimitCleanup(limiter, 10*time.Minute)())
	assert.Equal(t, 10*time.Minute, limiter.maxIdle)
}

func TestStartStop(t *testing.T) {
	s := New(nil)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
