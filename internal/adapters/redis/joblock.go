package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
)

// JobLock guards a maintenance job (duplicate cleanup) so only one
// replica runs it at a time, using the Redlock algorithm
type JobLock struct {
	lockManager *redlock.RedLock
	jobName     string
	lockName    string
	ttl         time.Duration
	locked      bool
}

// NewJobLock creates a distributed lock for the named job
func NewJobLock(lockManager *redlock.RedLock, jobName string) *JobLock {
	return &JobLock{
		lockManager: lockManager,
		jobName:     jobName,
		lockName:    fmt.Sprintf("job:lock:%s", jobName),
		ttl:         30 * time.Second,
	}
}

// TryAcquire attempts to take the lock. Returns false when another
// replica already holds it.
func (jl *JobLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := jl.lockManager.Lock(ctx, jl.lockName, jl.ttl)
	if err != nil {
		logger.Debug("job lock already held by another replica",
			zap.String("job", jl.jobName),
			zap.String("lock_name", jl.lockName),
		)
		return false, nil
	}
	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	jl.locked = true

	logger.Info("job lock acquired",
		zap.String("job", jl.jobName),
		zap.Duration("ttl", jl.ttl),
	)

	go jl.renew(ctx)
	return true, nil
}

// Release gives the lock back; an already-expired lock is not an error
func (jl *JobLock) Release(ctx context.Context) error {
	if !jl.locked {
		return nil
	}

	if err := jl.lockManager.UnLock(ctx, jl.lockName); err != nil {
		logger.Warn("failed to release job lock (may have already expired)",
			zap.String("job", jl.jobName),
			zap.Error(err),
		)
	} else {
		logger.Info("job lock released",
			zap.String("job", jl.jobName),
		)
	}

	jl.locked = false
	return nil
}

// renew extends the lock while the job runs. Redlock has no native
// renewal, so the lock is cycled at 2/3 of its TTL.
func (jl *JobLock) renew(ctx context.Context) {
	ticker := time.NewTicker((jl.ttl * 2) / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !jl.locked {
				return
			}

			if err := jl.lockManager.UnLock(ctx, jl.lockName); err != nil {
				logger.Error("job lock renewal failed",
					zap.String("job", jl.jobName),
					zap.Error(err),
				)
				jl.locked = false
				return
			}

			expiry, err := jl.lockManager.Lock(ctx, jl.lockName, jl.ttl)
			if err != nil || expiry <= 0 {
				logger.Error("job lock lost, another replica may have taken over",
					zap.String("job", jl.jobName),
					zap.Error(err),
				)
				jl.locked = false
				return
			}
		}
	}
}
