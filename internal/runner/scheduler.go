package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/MimoJanra/DriftWatch/internal/config"
	"github.com/MimoJanra/DriftWatch/internal/logging"
)

const DefaultWatchInterval = 5 * time.Minute

// Scheduler repeats runs on an interval and serves on-demand runs. At most
// one run executes at a time.
type Scheduler struct {
	runner    *Runner
	settings  *config.Settings
	resources *config.Resources
	interval  time.Duration
	onResult  func(RunResult)
	logger    *slog.Logger

	runMu sync.Mutex

	mu      sync.RWMutex
	core    gocron.Scheduler
	baseCtx context.Context
	last    *RunResult
	running bool
}

// NewScheduler builds a scheduler. onResult, when set, is called after
// every run, scheduled or manual.
func NewScheduler(
	r *Runner,
	settings *config.Settings,
	resources *config.Resources,
	onResult func(RunResult),
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	interval := settings.WatchInterval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Scheduler{
		runner:    r,
		settings:  settings,
		resources: resources,
		interval:  interval,
		onResult:  onResult,
		logger:    logger,
	}
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start schedules a run every interval, the first one immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	core, err := gocron.NewScheduler(gocron.WithLimitConcurrentJobs(1, gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = core.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.tick),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = core.Shutdown()
		return fmt.Errorf("schedule run: %w", err)
	}

	s.core = core
	s.baseCtx = ctx
	s.running = true
	core.Start()

	s.logger.Info("scheduler started", "interval", s.interval.String())
	return nil
}

// Stop cancels future runs and waits for the current one to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	core := s.core
	s.running = false
	s.core = nil
	s.mu.Unlock()

	if err := core.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) tick() {
	s.mu.RLock()
	ctx := s.baseCtx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	s.RunNow(ctx)
}

// RunNow executes a run immediately, waiting for any run in progress.
func (s *Scheduler) RunNow(ctx context.Context) RunResult {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	res := s.runner.Run(ctx, s.settings, s.resources)

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	if s.onResult != nil {
		s.onResult(res)
	}
	return res
}

// Last returns the most recent completed run.
func (s *Scheduler) Last() (RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunResult{}, false
	}
	return *s.last, true
}
