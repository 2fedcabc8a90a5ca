package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ex "stockdash/data/extensions"
)

type fakeSyncer struct {
	mu        sync.Mutex
	calls     atomic.Int32
	watchlist []string
	workers   int
	err       error
	block     chan struct{}
	deadline  bool
}

func (fs *fakeSyncer) SyncWatchlist(ctx context.Context, watchlist []string, workers int) (int, error) {
	fs.calls.Add(1)
	fs.mu.Lock()
	fs.watchlist = watchlist
	fs.workers = workers
	_, fs.deadline = ctx.Deadline()
	fs.mu.Unlock()

	if fs.block != nil {
		<-fs.block
	}
	if fs.err != nil {
		return 0, fs.err
	}
	return len(watchlist), nil
}

func TestRunNowPassesWatchlistAndWorkers(t *testing.T) {
	syncer := &fakeSyncer{}
	s := NewScheduler(context.Background(), syncer, []string{"AAPL", "MSFT"}, 3)

	synced, err := s.RunNow()
	require.NoError(t, err)

	ex.AssertAreEqual(t, "synced", 2, synced)
	ex.AssertAreEqual(t, "workers", 3, syncer.workers)
	assert.Equal(t, []string{"AAPL", "MSFT"}, syncer.watchlist)
	ex.AssertAreEqual(t, "bounded by a deadline", true, syncer.deadline)
}

func TestRunNowReturnsSyncErrors(t *testing.T) {
	boom := errors.New("store offline")
	s := NewScheduler(context.Background(), &fakeSyncer{err: boom}, nil, 1)

	_, err := s.RunNow()
	ex.AssertErrorIs(t, "sync error", boom, err)
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	syncer := &fakeSyncer{block: make(chan struct{})}
	s := NewScheduler(context.Background(), syncer, []string{"AAPL"}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow()
	}()

	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	synced, err := s.RunNow()
	require.NoError(t, err)
	ex.AssertAreEqual(t, "skipped", 0, synced)

	close(syncer.block)
	<-done
	ex.AssertAreEqual(t, "calls", int32(1), syncer.calls.Load())
}

func TestRegisterRejectsBadSpecs(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeSyncer{}, nil, 1)

	require.Error(t, s.Register("every night"))
	// five field specs are rejected with seconds enabled
	require.Error(t, s.Register("30 22 * * 1-5"))
	require.NoError(t, s.Register("0 30 22 * * 1-5"))
	ex.AssertAreEqual(t, "entries", 1, len(s.Cron.Entries()))
}

func TestScheduledSyncFires(t *testing.T) {
	syncer := &fakeSyncer{}
	s := NewScheduler(context.Background(), syncer, []string{"AAPL"}, 1)
	require.NoError(t, s.Register("* * * * * *"))

	s.Start()
	require.Eventually(t, func() bool { return syncer.calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	s.Stop()
}
