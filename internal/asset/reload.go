package asset

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/linnemanlabs/go-core/log"
)

// Reloader re-reads the inventory on a cron schedule ("@every 5m", "0 * * * *").
type Reloader struct {
	cron     *cron.Cron
	resolver *Resolver
	logger   log.Logger
}

// NewReloader validates the cron schedule and registers the reload job. Call Start to run it.
func NewReloader(schedule string, resolver *Resolver, logger log.Logger) (*Reloader, error) {
	if logger == nil {
		logger = log.Nop()
	}
	rl := &Reloader{
		cron:     cron.New(),
		resolver: resolver,
		logger:   logger,
	}
	if _, err := rl.cron.AddFunc(schedule, rl.run); err != nil {
		return nil, fmt.Errorf("asset reload schedule %q: %w", schedule, err)
	}
	return rl, nil
}

func (rl *Reloader) run() {
	ctx := context.Background()
	if err := rl.resolver.Reload(ctx); err != nil {
		rl.logger.Error(ctx, err, "asset inventory reload failed, keeping previous snapshot")
	}
}

// Start runs the scheduler in its own goroutine.
func (rl *Reloader) Start() {
	rl.cron.Start()
}

// Stop halts the scheduler and waits for a running reload, bounded by ctx.
func (rl *Reloader) Stop(ctx context.Context) error {
	done := rl.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
