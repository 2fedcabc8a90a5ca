package models

import (
	"github.com/google/uuid"
	"github.com/guregu/null/v6"

	m "stockdash/data/models"
)

// Section carries either data or the error that kept it from rendering
type Section[T any] struct {
	Data  *T     `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func SectionOk[T any](data *T) Section[T] {
	return Section[T]{Data: data}
}

func SectionError[T any](err error) Section[T] {
	return Section[T]{Error: err.Error()}
}

type DashboardResponse struct {
	RunKey       uuid.UUID                    `json:"runKey"`
	Symbol       string                       `json:"symbol"`
	Start        string                       `json:"start"`
	End          string                       `json:"end"`
	Pricing      PricingSection               `json:"pricing"`
	Fundamentals Section[FundamentalsSection] `json:"fundamentals"`
	News         Section[[]m.NewsItem]        `json:"news"`
}

// SummaryStats reports both fractional and percent forms, the percent form is what the dashboard prints
type SummaryStats struct {
	PeriodsPerYear              int     `json:"periodsPerYear"`
	AnnualizedReturn            float64 `json:"annualizedReturn"`
	AnnualizedVolatility        float64 `json:"annualizedVolatility"`
	AnnualizedReturnPercent     float64 `json:"annualizedReturnPercent"`
	AnnualizedVolatilityPercent float64 `json:"annualizedVolatilityPercent"`
}

type MovingAverage struct {
	Name   string       `json:"name"`
	Window int          `json:"window"`
	Values []null.Float `json:"values"`
}

type MACD struct {
	Fast       int          `json:"fast"`
	Slow       int          `json:"slow"`
	Signal     int          `json:"signal"`
	Line       []null.Float `json:"line"`
	SignalLine []null.Float `json:"signalLine"`
	Histogram  []null.Float `json:"histogram"`
}

// PricingSection is column oriented, every slice is index aligned with Dates
type PricingSection struct {
	Source         string          `json:"source"`
	Dates          []string        `json:"dates"`
	Prices         []float64       `json:"prices"`
	Returns        []null.Float    `json:"returns"`
	PercentChange  []null.Float    `json:"percentChange"`
	Stats          *SummaryStats   `json:"stats,omitempty"`
	MovingAverages []MovingAverage `json:"movingAverages"`
	RSIWindow      int             `json:"rsiWindow"`
	RSI            []null.Float    `json:"rsi"`
	MACD           *MACD           `json:"macd,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

type FundamentalsSection struct {
	BalanceSheet    m.StatementTable `json:"balanceSheet"`
	IncomeStatement m.StatementTable `json:"incomeStatement"`
	CashFlow        m.StatementTable `json:"cashFlow"`
}

type PriceResponse struct {
	Symbol        string       `json:"symbol"`
	Source        string       `json:"source"`
	Dates         []string     `json:"dates"`
	Prices        []float64    `json:"prices"`
	Returns       []null.Float `json:"returns"`
	PercentChange []null.Float `json:"percentChange"`
}

type SyncResponse struct {
	Symbol        string `json:"symbol"`
	LastRefreshed string `json:"lastRefreshed"`
	Inserted      int64  `json:"inserted"`
	Skipped       bool   `json:"skipped"`
}
