package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	calls int32
	err   error
}

func (s *countingSyncer) SyncLeaderboard(context.Context) error {
	atomic.AddInt32(&s.calls, 1)
	return s.err
}

type countingFlusher struct {
	calls int32
	err   error
}

func (f *countingFlusher) FlushOutbox(context.Context) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return 0, f.err
}

func TestStartRunsJobsImmediately(t *testing.T) {
	syncer := &countingSyncer{}
	flusher := &countingFlusher{}
	sched, err := Start(context.Background(), Intervals{LeaderboardSync: time.Hour, OutboxFlush: time.Hour}, syncer, flusher)
	require.NoError(t, err)
	defer sched.Shutdown()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&syncer.calls) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&flusher.calls) == 1 }, 2*time.Second, 10*time.Millisecond)

	jobs := sched.Jobs()
	require.Len(t, jobs, 2)
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	assert.ElementsMatch(t, []string{"leaderboard-sync", "ledger-outbox-flush"}, names)
}

func TestJobFailuresKeepScheduler(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("redis down")}
	flusher := &countingFlusher{err: errors.New("db down")}
	sched, err := Start(context.Background(), Intervals{}, syncer, flusher)
	require.NoError(t, err)
	defer sched.Shutdown()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&syncer.calls) >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&flusher.calls) >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, sched.Jobs(), 2)
}
