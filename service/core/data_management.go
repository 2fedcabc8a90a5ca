package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	ex "stockdash/data/extensions"
	m "stockdash/data/models"
	sm "stockdash/service/models"
)

const (
	SyncBatchSize         = 4
	backgroundSyncTimeout = 2 * time.Minute
)

type job struct {
	start int
	end   int
}

// GetNumberOfJobsAndWorkers splits n items into batches of batchSize ([start, end) index ranges) and caps the worker count at the number of batches
func GetNumberOfJobsAndWorkers(n int, batchSize int, workers int) ([]job, int) {
	if n <= 0 || batchSize <= 0 || workers <= 0 {
		return nil, 0
	}

	nJobs := int(math.Ceil(float64(n) / float64(batchSize)))
	nWorkers := ex.Min(nJobs, workers)

	jobs := make([]job, nJobs)
	for i := range nJobs {
		jobs[i] = job{
			start: i * batchSize,
			end:   ex.Min((i+1)*batchSize, n),
		}
	}

	return jobs, nWorkers
}

// SyncSymbolPriceSeries brings the stored series for symbol up to date with the upstream provider.
// A symbol refreshed within the freshness window is skipped.
func (sc *ServiceContext) SyncSymbolPriceSeries(ctx context.Context, symbol string) (*sm.SyncResponse, error) {
	if sc.Store == nil || sc.Upstream == nil {
		return nil, fmt.Errorf("price store: %w", ErrNotConfigured)
	}

	symbol = ex.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}

	// concurrent callers for the same symbol share one sync
	res, err, _ := sc.syncs.Do(symbol, func() (any, error) {
		return sc.syncSymbol(ctx, symbol)
	})
	if err != nil {
		sc.Metrics.SyncFailed()
		return nil, err
	}
	return res.(*sm.SyncResponse), nil
}

func (sc *ServiceContext) syncSymbol(ctx context.Context, symbol string) (*sm.SyncResponse, error) {
	now := sc.Now()

	md, err := sc.Store.GetMetadataBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("error determining if metadata exists for %s: %w", symbol, err)
	}

	if md == nil {
		log.Printf("adding new symbol to db: %s", symbol)
		md = &m.PriceSeriesMetadata{
			Symbol:        symbol,
			Source:        sc.Upstream.Name(),
			LastRefreshed: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		if err := sc.Store.InsertNewMetadata(ctx, md, nil); err != nil {
			return nil, fmt.Errorf("error adding %s to db: %w", symbol, err)
		}
	}

	if now.Sub(md.LastRefreshed) < sc.Settings.SyncFreshness {
		log.Printf("symbol %s was refreshed at %s, skipping sync", symbol, ex.FmtLong(md.LastRefreshed))
		return &sm.SyncResponse{Symbol: symbol, LastRefreshed: ex.FmtShort(md.LastRefreshed), Skipped: true}, nil
	}

	mrd, err := sc.Store.GetMostRecentTimestampForSymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("error getting most recent stored date for %s: %w", symbol, err)
	}

	today := ex.TruncateDay(now.UTC())
	start := today.Add(-sc.Settings.SyncLookback)
	if mrd != nil {
		start = ex.TruncateDay(mrd.UTC()).AddDate(0, 0, 1)
	}
	end := today.AddDate(0, 0, 1)

	var rows []*m.PriceSeriesData
	if start.Before(end) {
		rows, err = sc.Upstream.GetPriceHistory(ctx, symbol, start, end)
		if err != nil && !errors.Is(err, ErrNoData) {
			return nil, fmt.Errorf("error fetching %s from %s: %w", symbol, sc.Upstream.Name(), err)
		}
	}

	toInsert := ex.FilterMultiplePtr(rows, func(d *m.PriceSeriesData) bool { return mrd == nil || d.Timestamp.After(*mrd) })

	tx, err := sc.Store.GetTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	var ra int64
	if len(toInsert) > 0 {
		ra, err = sc.Store.InsertPriceSeriesData(ctx, toInsert, md.Id, tx)
		if err != nil {
			return nil, fmt.Errorf("error inserting price series data: %w", err)
		}
	}

	if err := sc.Store.UpdateLastRefreshedDate(ctx, symbol, now, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("error committing sync for %s: %w", symbol, err)
	}

	sc.Metrics.RowsSynced(symbol, ra)
	log.Printf("symbol %s got %v rows from %s, inserted %v", symbol, len(rows), sc.Upstream.Name(), ra)
	return &sm.SyncResponse{Symbol: symbol, LastRefreshed: ex.FmtShort(now), Inserted: ra}, nil
}

// syncInBackground refreshes the store after a request was served from upstream
func (sc *ServiceContext) syncInBackground(symbol string) {
	if sc.Store == nil || sc.Upstream == nil {
		return
	}

	sc.background.Add(1)
	go func() {
		defer sc.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), backgroundSyncTimeout)
		defer cancel()

		if _, err := sc.SyncSymbolPriceSeries(ctx, symbol); err != nil {
			log.Printf("background sync for %s failed: %v", symbol, err)
		}
	}()
}

// SyncWatchlist syncs the given symbols plus every stored one on a bounded pool of workers.
// Per symbol failures are logged and counted, they never stop the other symbols.
func (sc *ServiceContext) SyncWatchlist(ctx context.Context, watchlist []string, workers int) (int, error) {
	if sc.Store == nil {
		return 0, fmt.Errorf("price store: %w", ErrNotConfigured)
	}

	stored, err := sc.Store.GetAllMetadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("error listing stored symbols: %w", err)
	}

	symbols := make([]string, 0, len(watchlist)+len(stored))
	for _, s := range watchlist {
		symbols = append(symbols, ex.NormalizeSymbol(s))
	}
	for _, md := range stored {
		symbols = append(symbols, md.Symbol)
	}
	symbols = ex.Unique(ex.FilterMultiple(symbols, func(s string) bool { return s != "" }))

	jobs, nWorkers := GetNumberOfJobsAndWorkers(len(symbols), SyncBatchSize, workers)
	log.Printf("syncing %d symbols in %d batches on %d workers", len(symbols), len(jobs), nWorkers)

	jobsChannel := make(chan job, len(jobs))
	for _, j := range jobs {
		jobsChannel <- j
	}
	close(jobsChannel)

	failures := make([]int, nWorkers)
	g, gctx := errgroup.WithContext(ctx)
	for w := range nWorkers {
		g.Go(func() error {
			for j := range jobsChannel {
				for _, symbol := range symbols[j.start:j.end] {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}

					if _, err := sc.SyncSymbolPriceSeries(gctx, symbol); err != nil {
						log.Printf("error syncing %s: %v", symbol, err)
						failures[w]++
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	failed := ex.Sum(failures)
	return len(symbols) - failed, nil
}

// DeleteSymbol drops a symbol's stored prices and its run history
func (sc *ServiceContext) DeleteSymbol(ctx context.Context, symbol string) error {
	if sc.Store == nil {
		return fmt.Errorf("price store: %w", ErrNotConfigured)
	}

	symbol = ex.NormalizeSymbol(symbol)
	if err := sc.Store.DeleteSymbol(ctx, symbol); err != nil {
		return err
	}
	if sc.Runs != nil {
		return sc.Runs.DeleteDashboardRuns(ctx, symbol)
	}
	return nil
}
