package engine

import (
	"context"
	"log"
	"time"
)

// WorkerConfig shapes the polling loop that feeds ProcessNext.
type WorkerConfig struct {
	Interval time.Duration
	// Burst is the max admissions per tick, so a backlog drains faster than
	// one intent per interval.
	Burst int
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Interval: 2 * time.Second,
		Burst:    4,
	}
}

// RunWorker polls ProcessNext until ctx is cancelled. It is the scheduler
// the daemon runs; deployments with an external cron can call ProcessNext
// directly instead.
func RunWorker(ctx context.Context, e *Engine, cfg WorkerConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Printf("[worker] started: interval=%v burst=%d gate=%d", cfg.Interval, cfg.Burst, e.gate.Capacity())

	for {
		select {
		case <-ctx.Done():
			log.Printf("[worker] stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			for i := 0; i < cfg.Burst; i++ {
				admitted, err := e.ProcessNext(ctx)
				if err != nil {
					log.Printf("[worker] process next failed: %v", err)
					break
				}
				if !admitted {
					break
				}
			}
		}
	}
}
