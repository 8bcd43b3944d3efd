package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// LeaderboardSyncer rebuilds the cached earnings ranking
type LeaderboardSyncer interface {
	SyncLeaderboard(ctx context.Context) error
}

// OutboxFlusher journals ledger movements parked after a failed write
type OutboxFlusher interface {
	FlushOutbox(ctx context.Context) (int, error)
}

// Intervals between runs; zero picks the default
type Intervals struct {
	LeaderboardSync time.Duration
	OutboxFlush     time.Duration
}

// Start schedules the background jobs and returns the running scheduler.
// Callers stop it with Shutdown.
func Start(ctx context.Context, every Intervals, syncer LeaderboardSyncer, flusher OutboxFlusher) (gocron.Scheduler, error) {
	if every.LeaderboardSync <= 0 {
		every.LeaderboardSync = 10 * time.Minute
	}
	if every.OutboxFlush <= 0 {
		every.OutboxFlush = time.Minute
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(every.LeaderboardSync),
		gocron.NewTask(func() {
			jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if err := syncer.SyncLeaderboard(jobCtx); err != nil {
				log.Printf("[JOBS] Leaderboard sync failed: %v", err)
			}
		}),
		gocron.WithName("leaderboard-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("schedule leaderboard sync: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(every.OutboxFlush),
		gocron.NewTask(func() {
			jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if _, err := flusher.FlushOutbox(jobCtx); err != nil {
				log.Printf("[JOBS] Ledger outbox flush failed: %v", err)
			}
		}),
		gocron.WithName("ledger-outbox-flush"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("schedule outbox flush: %w", err)
	}

	sched.Start()
	log.Printf("[JOBS] Scheduler started (leaderboard sync every %v, outbox flush every %v)", every.LeaderboardSync, every.OutboxFlush)
	return sched, nil
}
