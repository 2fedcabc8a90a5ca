package core

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/guregu/null/v6"

	m "stockdash/data/models"
)

var scenarioPrices = []float64{100, 102, 101, 105, 110}

// seriesOf builds a daily series starting 2024-01-02
func seriesOf(t *testing.T, values ...float64) *m.PriceSeries {
	t.Helper()
	start := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	ps := &m.PriceSeries{Symbol: "TEST", Source: "test", Points: make([]m.PricePoint, len(values))}
	for i, v := range values {
		ps.Points[i] = m.PricePoint{Timestamp: start.AddDate(0, 0, i), Price: v}
	}
	return ps
}

// randomWalk generates a positive geometric random walk with a fixed seed
func randomWalk(t *testing.T, n int, seed uint64) *m.PriceSeries {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	values := make([]float64, n)
	price := 100.0
	for i := range n {
		price *= math.Exp(rng.NormFloat64() * 0.02)
		values[i] = price
	}
	return seriesOf(t, values...)
}

func countDefined(values []null.Float) int {
	ct := 0
	for _, v := range values {
		if v.Valid {
			ct++
		}
	}
	return ct
}
