package cron

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/runner"
)

// Job is the unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron expressions or at fixed times.
type Scheduler struct {
	mu           sync.Mutex
	cron         *rcron.Cron
	location     *time.Location
	errorHandler func(error)

	logger    action.Logger
	parser    Parser
	logWriter io.Writer
	logLevel  LogLevel

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	nextHandleID int64
	handles      map[int64]*jobHandle
}

// NewScheduler builds a stopped scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		parser:   DefaultParser,
		logLevel: LogLevelError,
		handles:  make(map[int64]*jobHandle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.errorHandler == nil {
		logger := action.NormalizeLogger(s.logger)
		s.errorHandler = func(err error) {
			logger.Error("scheduled job failed", "error", err)
		}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = rcron.New(s.build()...)
	return s
}

// ScheduleCron runs job every time cfg.Expression fires.
func (s *Scheduler) ScheduleCron(cfg JobConfig, job Job) (Handle, error) {
	if strings.TrimSpace(cfg.Expression) == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	if job == nil {
		return nil, fmt.Errorf("job %q cannot be nil", cfg.Name)
	}

	h := s.newHandle(cfg.Name)
	run := s.runnable(cfg, job)
	entryID, err := s.cron.AddFunc(cfg.Expression, func() {
		if !h.begin() {
			return
		}
		if err := run(); err != nil {
			s.errorHandler(fmt.Errorf("job %s: %w", h.name, err))
			if cfg.StopOnFailure {
				s.removeHandle(h.id)
				h.setTerminal(ScheduleStatusFailed, err)
				return
			}
			h.settle(ScheduleStatusIdle, err)
			return
		}
		h.settle(ScheduleStatusIdle, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add job: %w", err)
	}

	h.entryID = int(entryID)
	s.storeHandle(h)
	return h, nil
}

// ScheduleAfter runs job once after delay.
func (s *Scheduler) ScheduleAfter(delay time.Duration, cfg JobConfig, job Job) (Handle, error) {
	if delay < 0 {
		delay = 0
	}
	return s.ScheduleAt(time.Now().Add(delay), cfg, job)
}

// ScheduleAt runs job once at the given time. Times in the past run
// immediately.
func (s *Scheduler) ScheduleAt(at time.Time, cfg JobConfig, job Job) (Handle, error) {
	if job == nil {
		return nil, fmt.Errorf("job %q cannot be nil", cfg.Name)
	}

	h := s.newHandle(cfg.Name)
	run := s.runnable(cfg, job)
	s.storeHandle(h)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(max(time.Until(at), 0))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-h.Done():
			return
		case <-s.ctx.Done():
			return
		}

		if !h.begin() {
			return
		}
		defer s.removeStoredHandle(h.id)
		if err := run(); err != nil {
			s.errorHandler(fmt.Errorf("job %s: %w", h.name, err))
			h.setTerminal(ScheduleStatusFailed, err)
			return
		}
		h.setTerminal(ScheduleStatusCompleted, nil)
	}()

	return h, nil
}

// Handles lists live handles ordered by id.
func (s *Scheduler) Handles() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.handles))
	for id := range s.handles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Handle, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.handles[id])
	}
	return out
}

// Start begins firing cron schedules. One-shot schedules run whether or
// not the scheduler was started.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop halts the cron engine, cancels in-flight jobs and marks every
// live handle stopped. It waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.cancel()

	var handles []*jobHandle
	s.mu.Lock()
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.handles = make(map[int64]*jobHandle)
	s.mu.Unlock()

	for _, h := range handles {
		if h.entryID > 0 {
			s.cron.Remove(rcron.EntryID(h.entryID))
		}
		h.setTerminal(ScheduleStatusStopped, nil)
	}

	idle := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(idle)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runnable applies the timeout and retry settings of cfg to job.
func (s *Scheduler) runnable(cfg JobConfig, job Job) func() error {
	logger := action.WithLoggerFields(action.NormalizeLogger(s.logger), map[string]any{"job": cfg.Name})
	strategy := cfg.Retry
	if strategy == nil {
		strategy = runner.NoDelayStrategy{}
	}

	return func() error {
		return runner.Retry(s.ctx, strategy, cfg.MaxRetries, func(attempt int) error {
			ctx := s.ctx
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}
			if attempt > 0 {
				logger.Debug("retrying scheduled job", "attempt", attempt)
			}
			return action.Guard(func() error { return job(ctx) })
		})
	}
}

func (s *Scheduler) removeHandle(id int64) {
	h := s.removeStoredHandle(id)
	if h != nil && h.entryID > 0 {
		s.cron.Remove(rcron.EntryID(h.entryID))
	}
}

func (s *Scheduler) removeStoredHandle(id int64) *jobHandle {
	if id == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handles[id]
	delete(s.handles, id)
	return h
}

func (s *Scheduler) storeHandle(h *jobHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[h.id] = h
}

func (s *Scheduler) newHandle(name string) *jobHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandleID++
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("job-%d", s.nextHandleID)
	}
	return &jobHandle{
		scheduler: s,
		id:        s.nextHandleID,
		name:      name,
		status:    ScheduleStatusScheduled,
		done:      make(chan struct{}),
	}
}
