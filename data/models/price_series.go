package models

import (
	"fmt"
	"math"
	"time"

	"github.com/guregu/null/v6"
)

// PricePoint is a single observation, the price is adjusted close where the source has one
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Source string       `json:"source"`
	Points []PricePoint `json:"points"`
}

func (ps *PriceSeries) Len() int {
	return len(ps.Points)
}

// Values returns a copy of the prices, in timestamp order
func (ps *PriceSeries) Values() []float64 {
	res := make([]float64, len(ps.Points))
	for i, p := range ps.Points {
		res[i] = p.Price
	}
	return res
}

func (ps *PriceSeries) Timestamps() []time.Time {
	res := make([]time.Time, len(ps.Points))
	for i, p := range ps.Points {
		res[i] = p.Timestamp
	}
	return res
}

// Validate checks timestamps are strictly increasing and prices are positive and finite
func (ps *PriceSeries) Validate() error {
	for i, p := range ps.Points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			return fmt.Errorf("%w: price at %s is not a positive finite number (%v)", ErrInvalidInput, p.Timestamp.Format(time.DateOnly), p.Price)
		}
		if i > 0 && !p.Timestamp.After(ps.Points[i-1].Timestamp) {
			return fmt.Errorf("%w: timestamps are not strictly increasing at index %d", ErrInvalidInput, i)
		}
	}
	return nil
}

// Between returns the points in [start, end)
func (ps *PriceSeries) Between(start, end time.Time) *PriceSeries {
	res := &PriceSeries{Symbol: ps.Symbol, Source: ps.Source}
	for _, p := range ps.Points {
		if !p.Timestamp.Before(start) && p.Timestamp.Before(end) {
			res.Points = append(res.Points, p)
		}
	}
	return res
}

// PriceSeriesMetadata mirrors price_series_metadata
type PriceSeriesMetadata struct {
	Id            int32     `db:"id" json:"id"`
	Symbol        string    `db:"symbol" json:"symbol"`
	Source        string    `db:"source" json:"source"`
	LastRefreshed time.Time `db:"last_refreshed" json:"lastRefreshed"`
}

// PriceSeriesData mirrors price_series_data, columns the source did not report stay null
type PriceSeriesData struct {
	SourceId      int32      `db:"source_id"`
	Timestamp     time.Time  `db:"timestamp"`
	Open          null.Float `db:"open"`
	High          null.Float `db:"high"`
	Low           null.Float `db:"low"`
	Close         null.Float `db:"close"`
	AdjustedClose null.Float `db:"adjusted_close"`
	Volume        null.Float `db:"volume"`
}

// Price picks adjusted close when present, else close
func (d *PriceSeriesData) Price() null.Float {
	if d.AdjustedClose.Valid {
		return d.AdjustedClose
	}
	return d.Close
}

// ToPriceSeries converts stored rows (any order) into an ascending series, skipping rows without a price
func ToPriceSeries(symbol, source string, rows []*PriceSeriesData) *PriceSeries {
	res := &PriceSeries{Symbol: symbol, Source: source, Points: make([]PricePoint, 0, len(rows))}
	for _, r := range rows {
		if p := r.Price(); p.Valid {
			res.Points = append(res.Points, PricePoint{Timestamp: r.Timestamp, Price: p.Float64})
		}
	}
	SortPoints(res.Points)
	return res
}
