// Package job provides background job schedulers.
package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/pkg/locker"
)

// LockKey guards index ingest across instances.
const LockKey = "sync:scheduler"

// Syncer runs one ingest pass over every upstream index.
type Syncer interface {
	SyncAll(ctx context.Context) []service.SyncResult
}

// SyncScheduler periodically ingests upstream indexes. A distributed lock
// makes sure only one instance ingests per interval.
type SyncScheduler struct {
	syncer   Syncer
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	locker   locker.DistributedLocker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SyncConfig holds sync scheduler configuration.
type SyncConfig struct {
	Interval  time.Duration
	Timeout   time.Duration
	OnStartup bool
}

// NewSyncScheduler creates a new SyncScheduler. A zero timeout bounds each
// pass by the interval.
func NewSyncScheduler(
	syncer Syncer,
	cfg SyncConfig,
	logger *zap.Logger,
	locker locker.DistributedLocker,
) *SyncScheduler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = cfg.Interval
	}
	return &SyncScheduler{
		syncer:   syncer,
		interval: cfg.Interval,
		timeout:  timeout,
		logger:   logger,
		locker:   locker,
	}
}

// Start begins the background sync job.
func (s *SyncScheduler) Start(runOnStartup bool) {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("starting sync scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("timeout", s.timeout),
		zap.Bool("run_on_startup", runOnStartup),
	)

	s.wg.Add(1)
	go s.run(runOnStartup)
}

// Stop cancels a running pass and waits for the loop to exit.
func (s *SyncScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.logger.Info("stopping sync scheduler")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("sync scheduler stopped")
}

func (s *SyncScheduler) run(runOnStartup bool) {
	defer s.wg.Done()

	if runOnStartup {
		s.RunOnce(s.ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce performs one locked ingest pass and reports whether it ran.
//
// The lock TTL is the interval (a cooldown, not a timeout): after a clean
// pass the lock is kept so no other instance repeats the work before the
// next tick. After a failed pass it is released so another instance may
// retry straight away.
func (s *SyncScheduler) RunOnce(ctx context.Context) bool {
	acquired, err := s.locker.Acquire(ctx, LockKey, s.interval)
	if err != nil {
		s.logger.Error("failed to acquire distributed lock", zap.Error(err))
		return false
	}
	if !acquired {
		s.logger.Debug("another instance is running sync, skipping execution")
		return false
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := s.syncer.SyncAll(runCtx)

	synced, skipped, failed := 0, 0, 0
	for _, r := range results {
		skipped += r.Skipped
		if r.Error != nil {
			failed++
			s.logger.Warn("provider sync failed",
				zap.String("provider", r.Provider),
				zap.Error(r.Error),
			)
			continue
		}
		synced += r.Count
	}

	if failed > 0 {
		if err := s.locker.Release(ctx, LockKey); err != nil {
			s.logger.Error("failed to release lock after sync error", zap.Error(err))
		}
		s.logger.Info("sync completed with errors, lock released for retry",
			zap.Int("total_synced", synced),
			zap.Int("total_skipped", skipped),
			zap.Int("providers_failed", failed),
		)
		return true
	}

	s.logger.Info("sync completed, lock held for cooldown",
		zap.Int("total_synced", synced),
		zap.Int("total_skipped", skipped),
		zap.Duration("cooldown", s.interval),
	)
	return true
}
