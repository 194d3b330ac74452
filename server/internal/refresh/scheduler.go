package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/facultyload/facultyload/server/internal/config"
	"github.com/facultyload/facultyload/server/internal/dataset"
	"github.com/facultyload/facultyload/server/internal/security"
)

// Job is one scheduled refresh.
type Job func(ctx context.Context)

// Scheduler runs a Job on a standard five-field cron schedule. The schedule
// can be replaced while running. Runs never overlap.
type Scheduler struct {
	job     Job
	timeout time.Duration

	mu        sync.Mutex
	cron      *cron.Cron
	entry     cron.EntryID
	scheduled bool
	spec      string
	ctx       context.Context
}

// New creates a Scheduler; timeout bounds a single run (zero means none).
func New(job Job, timeout time.Duration) *Scheduler {
	return &Scheduler{
		job:     job,
		timeout: timeout,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:     context.Background(),
	}
}

// SetSchedule replaces the schedule. An empty spec disables refreshes.
func (s *Scheduler) SetSchedule(spec string) error {
	spec = strings.TrimSpace(spec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if spec == s.spec && (s.scheduled || spec == "") {
		return nil
	}

	var sched cron.Schedule
	if spec != "" {
		var err error
		if sched, err = cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("refresh schedule %q: %w", spec, err)
		}
	}
	if s.scheduled {
		s.cron.Remove(s.entry)
		s.scheduled = false
	}
	s.spec = spec
	if sched == nil {
		slog.Info("refresh: schedule disabled")
		return nil
	}
	s.entry = s.cron.Schedule(sched, cron.FuncJob(s.runOnce))
	s.scheduled = true
	slog.Info("refresh: scheduled", "schedule", spec, "next", sched.Next(time.Now()))
	return nil
}

// Scheduled reports whether a schedule is active.
func (s *Scheduler) Scheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// a running job to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// RunNow executes the job once on the calling goroutine.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.run(ctx)
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	s.job(ctx)
	slog.Debug("refresh: run complete", "dur_ms", time.Since(start).Milliseconds())
}

// Tasks is the standard refresh: reload the dataset, re-check the upstream
// certificate and notify listeners.
type Tasks struct {
	Loader *dataset.Loader
	Certs  *security.Tracker
	// Source returns the current upstream configuration.
	Source func() config.SourceConfig
	// OnDone runs after each refresh, e.g. to push the stream.
	OnDone func()
}

// Run performs one refresh. It satisfies Job.
func (t Tasks) Run(ctx context.Context) {
	snap := t.Loader.Load(ctx)
	slog.Info("refresh: snapshot",
		"id", snap.ID,
		"origin", snap.Origin,
		"records", len(snap.Records),
		"rejected", snap.Rejected,
	)
	if t.Certs != nil && t.Source != nil {
		if cs := t.Certs.Refresh(ctx, t.Source()); cs != nil && cs.Status != security.StatusValid {
			slog.Warn("refresh: upstream certificate", "status", cs.Status, "days_left", cs.DaysLeft)
		}
	}
	if t.OnDone != nil {
		t.OnDone()
	}
}
