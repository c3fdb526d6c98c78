package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"

	"github.com/mtlprog/carvalue/internal/domain"
)

// RateSource supplies the current ARS per USD rate used to tag synced prices.
type RateSource interface {
	CurrentRate(ctx context.Context) (domain.CurrentRate, error)
}

// AfterSweepHook is called after a sweep that applied at least one update.
type AfterSweepHook interface {
	AfterSweep(ctx context.Context, result domain.SweepResult) error
}

// Scheduler polls the pricing provider and sweeps the inventory when it reports newer data.
// Only one timer is ever pending and a tick reschedules itself after it finishes, so ticks never
// overlap. Full sweeps and manual updates share a single sweep lock.
type Scheduler struct {
	executor *Executor
	prices   PriceProvider
	vehicles VehicleStore
	rates    RateSource
	hook     AfterSweepHook // optional
	interval time.Duration
	timeout  time.Duration

	sweepLock *semaphore.Weighted

	mu              sync.Mutex
	running         bool
	generation      uint64
	timer           *time.Timer
	ctx             context.Context
	lastUpdateCheck *time.Time
	lastSweep       *domain.SweepResult
}

// NewScheduler creates a new Scheduler with an optional post-sweep hook.
func NewScheduler(prices PriceProvider, vehicles VehicleStore, rates RateSource, cfg Config, hook AfterSweepHook) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		executor:  NewExecutor(prices, vehicles, cfg),
		prices:    prices,
		vehicles:  vehicles,
		rates:     rates,
		hook:      hook,
		interval:  cfg.PollInterval,
		timeout:   cfg.ProviderTimeout,
		sweepLock: semaphore.NewWeighted(1),
	}
}

// Start schedules the first update check one poll interval from now. It reports false when the
// scheduler was already running, in which case nothing changes.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	s.running = true
	s.generation++
	s.ctx = ctx

	gen := s.generation
	s.timer = time.AfterFunc(s.interval, func() { s.tick(gen) })

	slog.Info("Scheduler: started", "pollInterval", s.interval)
	return true
}

// Stop cancels the pending tick. A sweep already in progress runs to completion but will not
// reschedule.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	slog.Info("Scheduler: stopped")
}

// Run starts the scheduler and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
}

// Running reports whether the scheduler loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.generation {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.checkForUpdates(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || gen != s.generation || ctx.Err() != nil {
		return
	}
	s.timer = time.AfterFunc(s.interval, func() { s.tick(gen) })
}

// checkForUpdates asks the provider for its last modification time and sweeps when it is newer than
// the last one seen. It reports whether a sweep ran. Failures are logged and never escape.
func (s *Scheduler) checkForUpdates(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	modified, err := s.prices.LastModified(checkCtx)
	cancel()
	if err != nil {
		slog.Error("Scheduler: update check failed", "error", err)
		return false
	}

	s.mu.Lock()
	last := s.lastUpdateCheck
	s.mu.Unlock()

	if last != nil && !modified.After(*last) {
		slog.Debug("Scheduler: provider data unchanged", "lastModified", modified)
		return false
	}

	if _, err := s.RunSweep(ctx); err != nil {
		slog.Error("Scheduler: sweep failed", "error", err)
		return false
	}

	s.mu.Lock()
	s.lastUpdateCheck = &modified
	s.mu.Unlock()
	return true
}

// RunSweep reconciles every eligible vehicle under the sweep lock, regardless of whether the
// provider reports new data. It waits for a sweep or manual update already in progress.
func (s *Scheduler) RunSweep(ctx context.Context) (domain.SweepResult, error) {
	if err := s.sweepLock.Acquire(ctx, 1); err != nil {
		return domain.SweepResult{}, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	defer s.sweepLock.Release(1)

	return s.sweep(ctx)
}

// StartSweep runs a full sweep in the background. It reports false without starting anything when a
// sweep or manual update already holds the sweep lock.
func (s *Scheduler) StartSweep(ctx context.Context) bool {
	if !s.sweepLock.TryAcquire(1) {
		return false
	}

	go func() {
		defer s.sweepLock.Release(1)
		if _, err := s.sweep(ctx); err != nil {
			slog.Error("Scheduler: requested sweep failed", "error", err)
		}
	}()
	return true
}

// sweep must be called with the sweep lock held.
func (s *Scheduler) sweep(ctx context.Context) (domain.SweepResult, error) {
	rate, err := s.currentRate(ctx)
	if err != nil {
		return domain.SweepResult{}, err
	}

	vehicles, err := s.vehicles.ListWithExternalID(ctx)
	if err != nil {
		return domain.SweepResult{}, fmt.Errorf("listing vehicles: %w", err)
	}

	slog.Info("Scheduler: sweep starting", "vehicles", len(vehicles), "rate", rate.Rate, "degradedRate", rate.Degraded)
	result := s.executor.Sweep(ctx, vehicles, rate.Rate)
	if ctx.Err() != nil {
		result.Interrupted = true
	}

	s.mu.Lock()
	s.lastSweep = &result
	s.mu.Unlock()

	if result.Interrupted {
		return result, fmt.Errorf("sweep interrupted after %d of %d vehicles: %w", len(result.Outcomes), len(vehicles), ctx.Err())
	}

	slog.Info("Scheduler: sweep completed",
		"applied", result.Applied, "skipped", result.Skipped, "errored", result.Errored,
		"duration", result.FinishedAt.Sub(result.StartedAt))

	if result.Applied > 0 {
		s.notify(ctx, result)
	}
	return result, nil
}

// ManualUpdate syncs a single vehicle right away, whether or not the provider reports new data. It
// waits for any sweep in progress to finish first. The provider's publication time is read before the
// fetch so a stale listing is not reused; lastUpdateCheck is left to the scheduler.
func (s *Scheduler) ManualUpdate(ctx context.Context, id uuid.UUID) (domain.SyncOutcome, error) {
	if err := s.sweepLock.Acquire(ctx, 1); err != nil {
		return domain.SyncOutcome{VehicleID: id}, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	defer s.sweepLock.Release(1)

	v, err := s.vehicles.Get(ctx, id)
	if err != nil {
		return domain.SyncOutcome{VehicleID: id}, fmt.Errorf("loading vehicle %s: %w", id, err)
	}

	rate, err := s.currentRate(ctx)
	if err != nil {
		return domain.SyncOutcome{VehicleID: id}, err
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	if _, err := s.prices.LastModified(checkCtx); err != nil {
		slog.Warn("Scheduler: publication check before manual update failed", "vehicle", id, "error", err)
	}
	cancel()

	out := s.executor.SyncVehicle(ctx, v, rate.Rate)
	if out.Err != nil {
		return out, out.Err
	}

	slog.Info("Scheduler: manual update completed", "vehicle", id, "applied", out.Applied)
	return out, nil
}

// Status reports pricing coverage over in-stock vehicles together with the live scheduler state.
func (s *Scheduler) Status(ctx context.Context) (domain.SyncStatus, error) {
	vehicles, err := s.vehicles.List(ctx)
	if err != nil {
		return domain.SyncStatus{}, fmt.Errorf("listing vehicles: %w", err)
	}

	eligible := lo.Filter(vehicles, func(v domain.Vehicle, _ int) bool { return v.InStock() })
	withID := lo.CountBy(eligible, func(v domain.Vehicle) bool { return v.HasExternalID() })

	status := domain.SyncStatus{
		TotalEligible:       len(eligible),
		TotalWithExternalID: withID,
		PollInterval:        s.interval.String(),
	}
	if len(eligible) > 0 {
		status.CoveragePercentage = math.Round(float64(withID)/float64(len(eligible))*10000) / 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	status.Running = s.running
	if s.lastUpdateCheck != nil {
		status.LastUpdateCheck = lo.ToPtr(*s.lastUpdateCheck)
	}
	if s.lastSweep != nil {
		sweep := *s.lastSweep
		status.LastSweep = &sweep
	}
	return status, nil
}

func (s *Scheduler) currentRate(ctx context.Context) (domain.CurrentRate, error) {
	rateCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rate, err := s.rates.CurrentRate(rateCtx)
	if err != nil {
		return domain.CurrentRate{}, fmt.Errorf("current rate: %w", err)
	}
	return rate, nil
}

// notify emits the single summary for a sweep that changed prices and runs the post-sweep hook.
func (s *Scheduler) notify(ctx context.Context, result domain.SweepResult) {
	slog.Info("Reference prices updated", "updated", result.Applied, "errored", result.Errored)

	if s.hook == nil {
		return
	}
	if err := s.hook.AfterSweep(ctx, result); err != nil {
		slog.Error("Scheduler: after-sweep hook failed", "error", err)
	}
}
