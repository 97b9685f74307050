package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pruner deletes revocation entries whose tokens have expired anyway.
type Pruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// RevocationJanitor periodically prunes a revocation store.
type RevocationJanitor struct {
	pruner   Pruner
	interval time.Duration
	logger   *zap.Logger
}

// NewRevocationJanitor builds a janitor. interval <= 0 defaults to one hour.
func NewRevocationJanitor(pruner Pruner, interval time.Duration, logger *zap.Logger) *RevocationJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevocationJanitor{pruner: pruner, interval: interval, logger: logger}
}

// Start runs the janitor in a goroutine until ctx is cancelled. The returned
// channel closes once the goroutine has exited.
func (j *RevocationJanitor) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.run(ctx)
	}()
	return done
}

func (j *RevocationJanitor) run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.pruneOnce(ctx)
		}
	}
}

func (j *RevocationJanitor) pruneOnce(ctx context.Context) {
	pruned, err := j.pruner.PruneExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Warn("prune revoked tokens", zap.Error(err))
		}
		return
	}
	if pruned > 0 {
		j.logger.Debug("pruned revoked tokens", zap.Int64("count", pruned))
	}
}
