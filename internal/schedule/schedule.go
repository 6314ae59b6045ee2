// Package schedule runs jobs at a fixed wall-clock time every day. Jobs run
// synchronously in the dispatch loop, one at a time.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/logger"
)

// Job is the work run at each occurrence.
type Job func(ctx context.Context) error

type entry struct {
	name   string
	hour   int
	minute int
	next   time.Time
	fn     Job
}

// Scheduler holds the registered daily jobs.
type Scheduler struct {
	mu   sync.Mutex
	jobs []*entry
	now  func() time.Time
	log  *zap.SugaredLogger
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock. The clock's location decides what
// "HH:MM" means.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New returns an empty scheduler.
func New(log *zap.SugaredLogger, opts ...Option) *Scheduler {
	s := &Scheduler{now: time.Now, log: logger.OrNop(log)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseClock parses "HH:MM" (24-hour).
func ParseClock(at string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", at, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextDaily returns the first hour:minute strictly after t, in t's location.
func NextDaily(t time.Time, hour, minute int) time.Time {
	y, m, d := t.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, t.Location())
	if !next.After(t) {
		next = time.Date(y, m, d+1, hour, minute, 0, 0, t.Location())
	}
	return next
}

// Daily registers fn to run every day at "HH:MM". The first run is the next
// occurrence after now.
func (s *Scheduler) Daily(name, at string, fn Job) error {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{name: name, hour: hour, minute: minute, fn: fn}
	e.next = NextDaily(s.now(), hour, minute)
	s.jobs = append(s.jobs, e)

	s.log.Infow("job scheduled", "job", name, "at", at, "next", e.next)
	return nil
}

// Next returns the next run time of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.jobs {
		if e.name == name {
			return e.next, true
		}
	}
	return time.Time{}, false
}

// RunPending runs every due job and reschedules it to its next occurrence
// after now. Several missed occurrences collapse into one run. It returns
// the number of jobs run.
func (s *Scheduler) RunPending(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var due []*entry
	for _, e := range s.jobs {
		if !e.next.After(now) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].next.Before(due[j].next) })

	for _, e := range due {
		s.run(ctx, e)

		s.mu.Lock()
		e.next = NextDaily(s.now(), e.hour, e.minute)
		s.mu.Unlock()
	}
	return len(due)
}

// Run dispatches due jobs on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			s.RunPending(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, e *entry) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("job panicked", "job", e.name, "panic", r)
		}
	}()

	start := s.now()
	s.log.Infow("job started", "job", e.name)
	if err := e.fn(ctx); err != nil {
		s.log.Errorw("job failed", "job", e.name, "error", err, "elapsed", s.now().Sub(start))
		return
	}
	s.log.Infow("job finished", "job", e.name, "elapsed", s.now().Sub(start))
}
