package core

import (
	"context"
	"fmt"
	"log"
	"time"

	e "stockdash/data/extensions"
	m "stockdash/data/models"
	"stockdash/service/cache"
	"stockdash/service/metrics"
)

// a long weekend plus a holiday
const storeStartSlack = 5 * 24 * time.Hour

// CachedFundamentals serves statements from the cache, they only change once a quarter
type CachedFundamentals struct {
	Next    FundamentalsProvider
	Cache   cache.Cache
	TTL     time.Duration
	Metrics *metrics.Metrics
}

func (cf *CachedFundamentals) GetFundamentals(ctx context.Context, symbol string) (*m.Fundamentals, error) {
	key := "fundamentals:" + symbol

	var res m.Fundamentals
	if readThrough(ctx, cf.Cache, cf.Metrics, "fundamentals", key, &res) {
		return &res, nil
	}

	fetched, err := cf.Next.GetFundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}

	writeThrough(ctx, cf.Cache, key, fetched, cf.TTL)
	return fetched, nil
}

// CachedNews caches the feed per symbol and limit
type CachedNews struct {
	Next    NewsProvider
	Cache   cache.Cache
	TTL     time.Duration
	Metrics *metrics.Metrics
}

func (cn *CachedNews) GetNews(ctx context.Context, symbol string, limit int) ([]m.NewsItem, error) {
	key := fmt.Sprintf("news:%s:%d", symbol, limit)

	var res []m.NewsItem
	if readThrough(ctx, cn.Cache, cn.Metrics, "news", key, &res) {
		return res, nil
	}

	fetched, err := cn.Next.GetNews(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}

	writeThrough(ctx, cn.Cache, key, fetched, cn.TTL)
	return fetched, nil
}

// readThrough reports a hit, cache failures are logged and treated as a miss
func readThrough(ctx context.Context, c cache.Cache, mt *metrics.Metrics, name, key string, dest any) bool {
	hit, err := cache.GetJSON(ctx, c, key, dest)
	switch {
	case err != nil:
		log.Printf("cache read for %s failed, bypassing: %v", key, err)
		mt.CacheResult(name, "error")
	case hit:
		mt.CacheResult(name, "hit")
	default:
		mt.CacheResult(name, "miss")
	}
	return err == nil && hit
}

func writeThrough(ctx context.Context, c cache.Cache, key string, value any, ttl time.Duration) {
	if err := cache.SetJSON(ctx, c, key, value, ttl); err != nil {
		log.Printf("cache write for %s failed: %v", key, err)
	}
}

// GetPriceSeries reads a fresh symbol from the store, otherwise it asks the upstream provider and
// refreshes the store in the background
func (sc *ServiceContext) GetPriceSeries(ctx context.Context, symbol string, start, end time.Time) (*m.PriceSeries, error) {
	if sc.Store == nil {
		return sc.Prices.GetPriceSeries(ctx, symbol, start, end)
	}

	md, err := sc.Store.GetMetadataBySymbol(ctx, symbol)
	if err != nil {
		log.Printf("error reading metadata for %s, going upstream: %v", symbol, err)
	}

	if md != nil && sc.Now().Sub(md.LastRefreshed) < sc.Settings.SyncFreshness {
		rows, err := sc.Store.GetPriceSeriesData(ctx, symbol, start, end)
		switch {
		case err != nil:
			log.Printf("error reading stored prices for %s, going upstream: %v", symbol, err)
		case len(rows) > 0 && !coversStart(rows, start):
			log.Printf("stored prices for %s begin after %s, going upstream", symbol, e.FmtShort(start))
		case len(rows) > 0:
			log.Printf("serving %s from store (%d rows between %s and %s)", symbol, len(rows), e.FmtShort(start), e.FmtShort(end))
			return m.ToPriceSeries(symbol, md.Source, rows), nil
		}
	}

	ps, err := sc.Prices.GetPriceSeries(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	sc.syncInBackground(symbol)
	return ps, nil
}

// coversStart allows a gap of storeStartSlack for weekends and holidays before the first stored bar
func coversStart(rows []*m.PriceSeriesData, start time.Time) bool {
	first := rows[0].Timestamp
	for _, r := range rows[1:] {
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
	}
	return !first.After(start.Add(storeStartSlack))
}
