package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// WatchlistSyncer refreshes stored price history for a set of symbols
type WatchlistSyncer interface {
	SyncWatchlist(ctx context.Context, watchlist []string, workers int) (int, error)
}

// Scheduler runs the nightly price sync on a cron schedule with seconds precision.
type Scheduler struct {
	Cron      *cron.Cron
	Syncer    WatchlistSyncer
	Watchlist []string
	Workers   int
	Timeout   time.Duration

	ctx     context.Context
	running sync.Mutex
}

func NewScheduler(ctx context.Context, syncer WatchlistSyncer, watchlist []string, workers int) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Syncer:    syncer,
		Watchlist: watchlist,
		Workers:   workers,
		Timeout:   30 * time.Minute,
		ctx:       ctx,
	}
}

// Register adds the sync task under the given six field cron spec
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.syncTask); err != nil {
		return fmt.Errorf("register sync task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop waits for a running sync to return
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes the sync task immediately, returning the number of symbols refreshed
func (s *Scheduler) RunNow() (int, error) {
	return s.run()
}

func (s *Scheduler) syncTask() {
	if _, err := s.run(); err != nil {
		log.Printf("[ERROR] scheduled sync: %v", err)
	}
}

func (s *Scheduler) run() (int, error) {
	// overlapping ticks are skipped
	if !s.running.TryLock() {
		log.Println("[WARN] previous sync still running, skipping")
		return 0, nil
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.Timeout)
	defer cancel()

	log.Printf("[INFO] running watchlist sync for %d configured symbols", len(s.Watchlist))
	t := time.Now()

	synced, err := s.Syncer.SyncWatchlist(ctx, s.Watchlist, s.Workers)
	if err != nil {
		return synced, err
	}

	log.Printf("[INFO] watchlist sync refreshed %d symbols (time: %v)", synced, time.Since(t))
	return synced, nil
}
