package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"

	m "stockdash/data/models"
)

var errUpstream = errors.New("upstream exploded")

type fakePrices struct {
	mu      sync.Mutex
	series  map[string]*m.PriceSeries
	err     error
	failFor string
	calls   atomic.Int32
	starts  []time.Time
	ends    []time.Time
}

func newFakePrices(series ...*m.PriceSeries) *fakePrices {
	fp := &fakePrices{series: make(map[string]*m.PriceSeries)}
	for _, ps := range series {
		fp.series[ps.Symbol] = ps
	}
	return fp
}

func (fp *fakePrices) Name() string { return "fake" }

func (fp *fakePrices) GetPriceSeries(ctx context.Context, symbol string, start, end time.Time) (*m.PriceSeries, error) {
	fp.calls.Add(1)
	fp.mu.Lock()
	fp.starts = append(fp.starts, start)
	fp.ends = append(fp.ends, end)
	fp.mu.Unlock()

	if fp.err != nil {
		return nil, fp.err
	}
	if symbol == fp.failFor {
		return nil, fmt.Errorf("%s: %w", symbol, errUpstream)
	}

	ps, ok := fp.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: unknown symbol %s", m.ErrNoData, symbol)
	}

	res := ps.Between(start, end)
	if res.Len() == 0 {
		return nil, fmt.Errorf("%w: nothing in range", m.ErrNoData)
	}
	res.Source = fp.Name()
	return res, nil
}

func (fp *fakePrices) GetPriceHistory(ctx context.Context, symbol string, start, end time.Time) ([]*m.PriceSeriesData, error) {
	ps, err := fp.GetPriceSeries(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	rows := make([]*m.PriceSeriesData, ps.Len())
	for i, p := range ps.Points {
		rows[i] = &m.PriceSeriesData{Timestamp: p.Timestamp, Close: null.FloatFrom(p.Price)}
	}
	return rows, nil
}

type fakeFundamentals struct {
	err   error
	calls atomic.Int32
}

func (ff *fakeFundamentals) GetFundamentals(ctx context.Context, symbol string) (*m.Fundamentals, error) {
	ff.calls.Add(1)
	if ff.err != nil {
		return nil, ff.err
	}

	period := func(date string, v float64) m.StatementPeriod {
		return m.StatementPeriod{
			FiscalDateEnding: date,
			ReportedCurrency: "USD",
			LineItems:        map[string]null.Float{"totalAssets": null.FloatFrom(v), "treasuryStock": {}},
		}
	}
	statement := func(kind m.StatementKind) m.FinancialStatement {
		return m.FinancialStatement{
			Symbol:  symbol,
			Kind:    kind,
			Periods: []m.StatementPeriod{period("2023-12-31", 2), period("2022-12-31", 1)},
		}
	}

	return &m.Fundamentals{
		Symbol:          symbol,
		BalanceSheet:    statement(m.BalanceSheet),
		IncomeStatement: statement(m.IncomeStatement),
		CashFlow:        statement(m.CashFlow),
	}, nil
}

type fakeNews struct {
	err   error
	calls atomic.Int32
	limit atomic.Int32
}

func (fn *fakeNews) GetNews(ctx context.Context, symbol string, limit int) ([]m.NewsItem, error) {
	fn.calls.Add(1)
	fn.limit.Store(int32(limit))
	if fn.err != nil {
		return nil, fn.err
	}

	items := make([]m.NewsItem, 0, limit)
	for i := range min(limit, 3) {
		items = append(items, m.NewsItem{
			Title:          fmt.Sprintf("%s headline %d", symbol, i),
			TitleSentiment: 0.5,
		})
	}
	return items, nil
}

// fakeTx only supports commit and rollback
type fakeTx struct {
	pgx.Tx
	committed bool
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeStore struct {
	mu       sync.Mutex
	metadata map[string]*m.PriceSeriesMetadata
	rows     map[int32][]*m.PriceSeriesData
	nextId   int32
	inserted int64
	pingErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		metadata: make(map[string]*m.PriceSeriesMetadata),
		rows:     make(map[int32][]*m.PriceSeriesData),
	}
}

func (fs *fakeStore) Ping(ctx context.Context) error { return fs.pingErr }

func (fs *fakeStore) GetTransaction(ctx context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

func (fs *fakeStore) GetMetadataBySymbol(ctx context.Context, symbol string) (*m.PriceSeriesMetadata, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if md, ok := fs.metadata[symbol]; ok {
		cp := *md
		return &cp, nil
	}
	return nil, nil
}

func (fs *fakeStore) GetAllMetadata(ctx context.Context) ([]*m.PriceSeriesMetadata, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	res := make([]*m.PriceSeriesMetadata, 0, len(fs.metadata))
	for _, md := range fs.metadata {
		cp := *md
		res = append(res, &cp)
	}
	slices.SortFunc(res, func(a, b *m.PriceSeriesMetadata) int { return int(a.Id - b.Id) })
	return res, nil
}

func (fs *fakeStore) InsertNewMetadata(ctx context.Context, md *m.PriceSeriesMetadata, tx pgx.Tx) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextId++
	md.Id = fs.nextId
	cp := *md
	fs.metadata[md.Symbol] = &cp
	return nil
}

func (fs *fakeStore) UpdateLastRefreshedDate(ctx context.Context, symbol string, lastRefreshed time.Time, tx pgx.Tx) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	md, ok := fs.metadata[symbol]
	if !ok {
		return fmt.Errorf("no metadata for %s", symbol)
	}
	md.LastRefreshed = lastRefreshed
	return nil
}

func (fs *fakeStore) DeleteSymbol(ctx context.Context, symbol string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if md, ok := fs.metadata[symbol]; ok {
		delete(fs.rows, md.Id)
		delete(fs.metadata, symbol)
	}
	return nil
}

func (fs *fakeStore) GetMostRecentTimestampForSymbol(ctx context.Context, symbol string) (*time.Time, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	md, ok := fs.metadata[symbol]
	if !ok || len(fs.rows[md.Id]) == 0 {
		return nil, nil
	}
	var latest time.Time
	for _, r := range fs.rows[md.Id] {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	return &latest, nil
}

func (fs *fakeStore) GetPriceSeriesData(ctx context.Context, symbol string, start, end time.Time) ([]*m.PriceSeriesData, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	md, ok := fs.metadata[symbol]
	if !ok {
		return nil, nil
	}
	var res []*m.PriceSeriesData
	for _, r := range fs.rows[md.Id] {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (fs *fakeStore) InsertPriceSeriesData(ctx context.Context, data []*m.PriceSeriesData, sourceId int32, tx pgx.Tx) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, d := range data {
		cp := *d
		cp.SourceId = sourceId
		fs.rows[sourceId] = append(fs.rows[sourceId], &cp)
	}
	fs.inserted += int64(len(data))
	return int64(len(data)), nil
}

func (fs *fakeStore) rowCount(symbol string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	md, ok := fs.metadata[symbol]
	if !ok {
		return 0
	}
	return len(fs.rows[md.Id])
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []*m.DashboardRun
}

func (fr *fakeRuns) InsertDashboardRun(ctx context.Context, run *m.DashboardRun) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	run.Id = int32(len(fr.runs) + 1)
	run.StartedAt = time.Now()
	cp := *run
	fr.runs = append(fr.runs, &cp)
	return nil
}

func (fr *fakeRuns) UpdateDashboardRunAsFailure(ctx context.Context, runId int32, errorMessage string) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	run := fr.runs[runId-1]
	run.CompletedAt = null.TimeFrom(time.Now())
	run.ErrorMessage = null.StringFrom(errorMessage)
	return nil
}

func (fr *fakeRuns) UpdateDashboardRunAsSuccess(ctx context.Context, runId int32) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.runs[runId-1].CompletedAt = null.TimeFrom(time.Now())
	return nil
}

func (fr *fakeRuns) GetDashboardRuns(ctx context.Context, symbol string, limit int) ([]*m.DashboardRun, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	var res []*m.DashboardRun
	for i := len(fr.runs) - 1; i >= 0 && len(res) < limit; i-- {
		if fr.runs[i].Symbol == symbol {
			cp := *fr.runs[i]
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (fr *fakeRuns) DeleteDashboardRuns(ctx context.Context, symbol string) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.runs = slices.DeleteFunc(fr.runs, func(r *m.DashboardRun) bool { return r.Symbol == symbol })
	return nil
}

func (fr *fakeRuns) last() *m.DashboardRun {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if len(fr.runs) == 0 {
		return nil
	}
	cp := *fr.runs[len(fr.runs)-1]
	return &cp
}

// fixedNow pins the service clock
func fixedNow(sc *ServiceContext, t time.Time) {
	sc.now = func() time.Time { return t }
}
