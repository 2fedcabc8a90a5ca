package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	ex "stockdash/data/extensions"
	m "stockdash/data/models"
	sm "stockdash/service/models"
)

const (
	DefaultNewsLimit = 10
	DefaultLookback  = 1 // years
)

var DefaultMovingAverages = []int{20, 50, 200}

type DashboardRequest struct {
	Symbol    string
	Start     time.Time
	End       time.Time
	NewsLimit int
}

// IndicatorParams configures the pricing section, zero values take the defaults
type IndicatorParams struct {
	MovingAverages []int
	RSIWindow      int
	Fast           int
	Slow           int
	Signal         int
	PeriodsPerYear int
}

func (p IndicatorParams) withDefaults() IndicatorParams {
	if len(p.MovingAverages) == 0 {
		p.MovingAverages = DefaultMovingAverages
	}
	if p.RSIWindow == 0 {
		p.RSIWindow = DefaultRSIWindow
	}
	if p.Fast == 0 {
		p.Fast = DefaultMACDFast
	}
	if p.Slow == 0 {
		p.Slow = DefaultMACDSlow
	}
	if p.Signal == 0 {
		p.Signal = DefaultMACDSignal
	}
	if p.PeriodsPerYear == 0 {
		p.PeriodsPerYear = DefaultPeriodsPerYear
	}
	return p
}

// NormalizeRange upper cases the symbol and fills in a one year window ending today, dates are [start, end)
func (sc *ServiceContext) NormalizeRange(symbol string, start, end time.Time) (string, time.Time, time.Time, error) {
	symbol = ex.NormalizeSymbol(symbol)
	if symbol == "" {
		return "", start, end, fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}

	if end.IsZero() {
		end = ex.TruncateDay(sc.Now().UTC())
	}
	if start.IsZero() {
		start = end.AddDate(-DefaultLookback, 0, 0)
	}
	if !start.Before(end) {
		return "", start, end, fmt.Errorf("%w: start %s must be before end %s", ErrInvalidInput, ex.FmtShort(start), ex.FmtShort(end))
	}

	return symbol, start, end, nil
}

// BuildDashboard assembles the pricing, fundamentals and news sections for one symbol.
// Only a missing price series fails the build, the other sections carry their own errors.
func (sc *ServiceContext) BuildDashboard(ctx context.Context, req DashboardRequest) (*sm.DashboardResponse, error) {
	started := time.Now()

	symbol, start, end, err := sc.NormalizeRange(req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	runKey := uuid.New()
	log.Printf("building dashboard %s for %s between %s and %s", runKey, symbol, ex.FmtShort(start), ex.FmtShort(end))

	run := sc.recordRun(ctx, runKey, symbol, start, end)

	log.Printf("getting price series for %s (time: %v)", symbol, time.Since(started))
	ps, err := sc.GetPriceSeries(ctx, symbol, start, end)
	if err != nil {
		log.Printf("error getting price series for %s: %v", symbol, err)
		sc.finishRun(ctx, run, err)
		sc.Metrics.BuildFinished("failure", time.Since(started))
		return nil, err
	}

	log.Printf("computing indicators for %s over %d observations (time: %v)", symbol, ps.Len(), time.Since(started))
	pricing, err := BuildPricingSection(ps, IndicatorParams{}, false)
	if err != nil {
		log.Printf("error computing indicators for %s: %v", symbol, err)
		sc.finishRun(ctx, run, err)
		sc.Metrics.BuildFinished("failure", time.Since(started))
		return nil, err
	}

	newsLimit := req.NewsLimit
	if newsLimit <= 0 {
		newsLimit = sc.Settings.NewsLimit
	}
	if newsLimit <= 0 {
		newsLimit = DefaultNewsLimit
	}

	log.Printf("getting fundamentals and news for %s (time: %v)", symbol, time.Since(started))
	res := &sm.DashboardResponse{
		RunKey:  runKey,
		Symbol:  symbol,
		Start:   ex.FmtShort(start),
		End:     ex.FmtShort(end),
		Pricing: *pricing,
	}

	// section failures are reported inline, so the goroutines never fail the group
	var g errgroup.Group
	g.Go(func() error {
		res.Fundamentals = sc.fundamentalsSection(ctx, symbol)
		return nil
	})
	g.Go(func() error {
		res.News = sc.newsSection(ctx, symbol, newsLimit)
		return nil
	})
	g.Wait()

	sc.finishRun(ctx, run, nil)
	sc.Metrics.BuildFinished("success", time.Since(started))

	log.Printf("dashboard %s for %s completed (time: %v)", runKey, symbol, time.Since(started))
	return res, nil
}

func (sc *ServiceContext) fundamentalsSection(ctx context.Context, symbol string) sm.Section[sm.FundamentalsSection] {
	f, err := sc.GetFundamentals(ctx, symbol)
	if err != nil {
		log.Printf("fundamentals section for %s failed: %v", symbol, err)
		sc.Metrics.SectionFailed("fundamentals")
		return sm.SectionError[sm.FundamentalsSection](err)
	}
	return sm.SectionOk(ToFundamentalsSection(f))
}

func (sc *ServiceContext) newsSection(ctx context.Context, symbol string, limit int) sm.Section[[]m.NewsItem] {
	items, err := sc.GetNews(ctx, symbol, limit)
	if err != nil {
		log.Printf("news section for %s failed: %v", symbol, err)
		sc.Metrics.SectionFailed("news")
		return sm.SectionError[[]m.NewsItem](err)
	}
	return sm.SectionOk(&items)
}

func (sc *ServiceContext) GetFundamentals(ctx context.Context, symbol string) (*m.Fundamentals, error) {
	if sc.Fundamentals == nil {
		return nil, fmt.Errorf("fundamentals provider: %w", ErrNotConfigured)
	}
	return sc.Fundamentals.GetFundamentals(ctx, symbol)
}

func (sc *ServiceContext) GetNews(ctx context.Context, symbol string, limit int) ([]m.NewsItem, error) {
	if sc.News == nil {
		return nil, fmt.Errorf("news provider: %w", ErrNotConfigured)
	}
	return sc.News.GetNews(ctx, symbol, limit)
}

func ToFundamentalsSection(f *m.Fundamentals) *sm.FundamentalsSection {
	return &sm.FundamentalsSection{
		BalanceSheet:    f.BalanceSheet.Table(),
		IncomeStatement: f.IncomeStatement.Table(),
		CashFlow:        f.CashFlow.Table(),
	}
}

// BuildPricingSection runs the indicator engine over ps. In lenient mode a window the series is too
// short for becomes a warning and an empty column, in strict mode it is returned as an error.
func BuildPricingSection(ps *m.PriceSeries, params IndicatorParams, strict bool) (*sm.PricingSection, error) {
	if err := ps.Validate(); err != nil {
		if strict {
			return nil, err
		}
		return nil, fmt.Errorf("provider returned an unusable series: %v", err)
	}

	params = params.withDefaults()
	n := ps.Len()

	res := &sm.PricingSection{
		Source:         ps.Source,
		Dates:          make([]string, n),
		Prices:         ps.Values(),
		Returns:        make([]null.Float, n),
		PercentChange:  make([]null.Float, n),
		MovingAverages: make([]sm.MovingAverage, 0, len(params.MovingAverages)),
		RSIWindow:      params.RSIWindow,
		RSI:            make([]null.Float, n),
	}
	for i, ts := range ps.Timestamps() {
		res.Dates[i] = ex.FmtShort(ts)
	}

	// warn collects a recoverable engine error, anything else is returned
	warn := func(err error) error {
		if strict || !(errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidParameter)) {
			return err
		}
		res.Warnings = append(res.Warnings, err.Error())
		return nil
	}

	if returns, err := ComputeReturns(ps); err != nil {
		if err := warn(err); err != nil {
			return nil, err
		}
	} else {
		res.Returns, res.PercentChange = returnColumns(returns, n)

		stats, err := ComputeAnnualizedStats(returns, params.PeriodsPerYear)
		if err != nil {
			if err := warn(err); err != nil {
				return nil, err
			}
		} else {
			res.Stats = &sm.SummaryStats{
				PeriodsPerYear:              params.PeriodsPerYear,
				AnnualizedReturn:            stats.AnnualizedReturn,
				AnnualizedVolatility:        stats.AnnualizedVolatility,
				AnnualizedReturnPercent:     stats.AnnualizedReturn * 100,
				AnnualizedVolatilityPercent: stats.AnnualizedVolatility * 100,
			}
		}
	}

	for _, window := range params.MovingAverages {
		ma, err := ComputeSimpleMovingAverage(ps, window)
		if err != nil {
			if err := warn(fmt.Errorf("MA%d: %w", window, err)); err != nil {
				return nil, err
			}
			continue
		}
		res.MovingAverages = append(res.MovingAverages, sm.MovingAverage{
			Name:   fmt.Sprintf("MA%d", window),
			Window: window,
			Values: ma,
		})
	}

	if rsi, err := ComputeRSI(ps, params.RSIWindow); err != nil {
		if err := warn(fmt.Errorf("RSI%d: %w", params.RSIWindow, err)); err != nil {
			return nil, err
		}
	} else {
		res.RSI = rsi
	}

	macd, err := ComputeMACD(ps, params.Fast, params.Slow, params.Signal)
	if err != nil {
		if err := warn(fmt.Errorf("MACD: %w", err)); err != nil {
			return nil, err
		}
		return res, nil
	}

	histogram := make([]null.Float, n)
	for i := range n {
		if macd.MACD[i].Valid && macd.Signal[i].Valid {
			histogram[i] = null.FloatFrom(macd.MACD[i].Float64 - macd.Signal[i].Float64)
		}
	}
	res.MACD = &sm.MACD{
		Fast:       params.Fast,
		Slow:       params.Slow,
		Signal:     params.Signal,
		Line:       macd.MACD,
		SignalLine: macd.Signal,
		Histogram:  histogram,
	}

	return res, nil
}

// recordRun is best effort, a run history failure never blocks the dashboard
func (sc *ServiceContext) recordRun(ctx context.Context, runKey uuid.UUID, symbol string, start, end time.Time) *m.DashboardRun {
	if sc.Runs == nil {
		return nil
	}

	run := &m.DashboardRun{
		RunKey:    runKey,
		Symbol:    symbol,
		StartDate: start,
		EndDate:   end,
	}
	if err := sc.Runs.InsertDashboardRun(ctx, run); err != nil {
		log.Printf("error inserting dashboard run %s: %v", runKey, err)
		return nil
	}
	return run
}

func (sc *ServiceContext) finishRun(ctx context.Context, run *m.DashboardRun, cause error) {
	if run == nil {
		return
	}

	var err error
	if cause != nil {
		err = sc.Runs.UpdateDashboardRunAsFailure(ctx, run.Id, cause.Error())
	} else {
		err = sc.Runs.UpdateDashboardRunAsSuccess(ctx, run.Id)
	}
	if err != nil {
		log.Printf("error completing dashboard run %s: %v", run.RunKey, err)
	}
}

// returnColumns pads returns to n entries and derives the percent change column
func returnColumns(returns []null.Float, n int) ([]null.Float, []null.Float) {
	padded := make([]null.Float, n)
	copy(padded, returns)

	pct := make([]null.Float, n)
	for i, r := range padded {
		if r.Valid {
			pct[i] = null.FloatFrom(r.Float64 * 100)
		}
	}
	return padded, pct
}
