package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lead-responder/internal/domain"
)

// parser accepts standard 5-field expressions plus descriptors such as
// "@every 15s" and "@hourly".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Ticker runs one polling cycle.
type Ticker interface {
	Tick(ctx context.Context) domain.TickResult
}

// Scheduler fires a Ticker on a cron schedule. A fire that lands while the
// previous tick is still running is dropped.
type Scheduler struct {
	ticker     Ticker
	cron       *cron.Cron
	entry      cron.EntryID
	timeout    time.Duration
	runOnStart bool
	logger     *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	manual  sync.WaitGroup
	started bool
}

type Option func(*Scheduler)

// WithTickTimeout bounds every tick with a deadline.
func WithTickTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRunOnStart controls whether Start fires a tick immediately.
func WithRunOnStart(run bool) Option {
	return func(s *Scheduler) { s.runOnStart = run }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewScheduler(t Ticker, schedule string, opts ...Option) (*Scheduler, error) {
	if t == nil {
		return nil, errors.New("poller: ticker must not be nil")
	}
	s := &Scheduler{
		ticker:     t,
		timeout:    2 * time.Minute,
		runOnStart: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := s.cron.AddFunc(schedule, s.fire)
	if err != nil {
		return nil, fmt.Errorf("poller: invalid schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing ticks until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.baseCtx, s.cancel = context.WithCancel(ctx)

	s.cron.Start()
	s.logger.Info("poller started", "next_run", s.cron.Entry(s.entry).Next)
	if s.runOnStart {
		s.runNowLocked()
	}
}

// RunNow fires a tick outside the schedule through the same skip and recover
// chain as scheduled fires. It does nothing unless the scheduler is running.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.runNowLocked()
}

// runNowLocked must be called with s.mu held, so that manual.Add never races
// the Wait in Stop.
func (s *Scheduler) runNowLocked() {
	job := s.cron.Entry(s.entry).WrappedJob
	if job == nil {
		return
	}
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		job.Run()
	}()
}

// Stop halts scheduling and waits for the running tick. If ctx expires first
// the tick's context is cancelled and Stop returns ctx.Err() once it exits.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.manual.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		s.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		s.logger.Warn("poller stopped after cancelling in-flight tick")
		return ctx.Err()
	}
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()
	if base == nil || base.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()
	s.ticker.Tick(ctx)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.logger.Warn("previous tick still running; schedule fire dropped")
		return
	}
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
