package core

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	m "stockdash/data/models"
	"stockdash/service/cache"
	"stockdash/service/metrics"
)

type PriceSeriesProvider interface {
	Name() string
	GetPriceSeries(ctx context.Context, symbol string, start, end time.Time) (*m.PriceSeries, error)
}

// PriceHistoryProvider also exposes the raw OHLCV rows the store persists
type PriceHistoryProvider interface {
	PriceSeriesProvider
	GetPriceHistory(ctx context.Context, symbol string, start, end time.Time) ([]*m.PriceSeriesData, error)
}

type FundamentalsProvider interface {
	GetFundamentals(ctx context.Context, symbol string) (*m.Fundamentals, error)
}

type NewsProvider interface {
	GetNews(ctx context.Context, symbol string, limit int) ([]m.NewsItem, error)
}

// PriceStore is the subset of the postgres repos the sync and read through paths use
type PriceStore interface {
	Ping(ctx context.Context) error
	GetTransaction(ctx context.Context) (pgx.Tx, error)
	GetMetadataBySymbol(ctx context.Context, symbol string) (*m.PriceSeriesMetadata, error)
	GetAllMetadata(ctx context.Context) ([]*m.PriceSeriesMetadata, error)
	InsertNewMetadata(ctx context.Context, metadata *m.PriceSeriesMetadata, tx pgx.Tx) error
	UpdateLastRefreshedDate(ctx context.Context, symbol string, lastRefreshed time.Time, tx pgx.Tx) error
	DeleteSymbol(ctx context.Context, symbol string) error
	GetMostRecentTimestampForSymbol(ctx context.Context, symbol string) (*time.Time, error)
	GetPriceSeriesData(ctx context.Context, symbol string, start, end time.Time) ([]*m.PriceSeriesData, error)
	InsertPriceSeriesData(ctx context.Context, data []*m.PriceSeriesData, sourceId int32, tx pgx.Tx) (int64, error)
}

type RunHistory interface {
	InsertDashboardRun(ctx context.Context, run *m.DashboardRun) error
	UpdateDashboardRunAsFailure(ctx context.Context, runId int32, errorMessage string) error
	UpdateDashboardRunAsSuccess(ctx context.Context, runId int32) error
	GetDashboardRuns(ctx context.Context, symbol string, limit int) ([]*m.DashboardRun, error)
	DeleteDashboardRuns(ctx context.Context, symbol string) error
}

type Settings struct {
	NewsLimit     int
	SyncFreshness time.Duration
	SyncLookback  time.Duration
}

// ServiceContext wires the collaborators and must not be copied after first use. Store and Runs are nil when no database is configured,
// Fundamentals is nil without an alpha vantage key.
type ServiceContext struct {
	Prices       PriceSeriesProvider
	Upstream     PriceHistoryProvider
	Fundamentals FundamentalsProvider
	News         NewsProvider
	Store        PriceStore
	Runs         RunHistory
	Cache        cache.Cache
	Metrics      *metrics.Metrics
	Settings     Settings

	now        func() time.Time
	syncs      singleflight.Group
	background sync.WaitGroup
}

func (sc *ServiceContext) Now() time.Time {
	if sc.now != nil {
		return sc.now()
	}
	return time.Now()
}

// Wait blocks until background store refreshes finish
func (sc *ServiceContext) Wait() {
	sc.background.Wait()
}
