// Package jobs runs the periodic maintenance tasks of the server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"webmail/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner and counts job outcomes
type Scheduler struct {
	cron *cron.Cron
	runs *prometheus.CounterVec
}

// New creates a scheduler. A nil registerer disables job metrics.
func New(reg prometheus.Registerer) *Scheduler {
	s := &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webmail",
			Name:      "job_runs_total",
			Help:      "Maintenance job runs by job and result.",
		}, []string{"job", "result"}),
	}
	if reg != nil {
		reg.MustRegister(s.runs)
	}
	return s
}

// Add schedules fn under name. The schedule uses cron syntax or descriptors
// such as "@every 5m".
func (s *Scheduler) Add(name, schedule string, fn func() error) error {
	_, err := s.cron.AddFunc(schedule, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	utils.Log.Debug("Scheduled job %s (%s)", name, schedule)
	return nil
}

func (s *Scheduler) run(name string, fn func() error) {
	start := time.Now()
	if err := fn(); err != nil {
		s.runs.WithLabelValues(name, "error").Inc()
		utils.Log.Error("Job %s failed: %v", name, err)
		return
	}
	s.runs.WithLabelValues(name, "ok").Inc()
	utils.Log.Debug("Job %s finished in %s", name, time.Since(start))
}

// Len returns the number of scheduled jobs
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		utils.Log.Warn("Stopped waiting for running jobs: %v", ctx.Err())
	}
}

// IPCleaner drops expired login-attempt records
type IPCleaner interface {
	Cleanup() (int, error)
}

// SessionCollector deletes expired sessions
type SessionCollector interface {
	GC(ctx context.Context) (int64, error)
}

// ClientPruner forgets idle rate limiter clients
type ClientPruner interface {
	Cleanup(maxIdle time.Duration) int
}

// IPCleanup returns the job that expires IP blocks
func IPCleanup(blocker IPCleaner) func() error {
	return func() error {
		removed, err := blocker.Cleanup()
		if err != nil {
			return err
		}
		if removed > 0 {
			utils.Log.Info("Removed %d expired IP block records", removed)
		}
		return nil
	}
}

// SessionGC returns the job that removes expired sessions
func SessionGC(sessions SessionCollector, timeout time.Duration) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		removed, err := sessions.GC(ctx)
		if err != nil {
			return err
		}
		if removed > 0 {
			utils.Log.Info("Removed %d expired sessions", removed)
		}
		return nil
	}
}

// RateLimitCleanup returns the job that prunes idle rate limiter clients
func RateLimitCleanup(limiter ClientPruner, maxIdle time.Duration) func() error {
	return func() error {
		if n := limiter.Cleanup(maxIdle); n > 0 {
			utils.Log.Debug("Pruned %d idle rate limit clients", n)
		}
		return nil
	}
}
