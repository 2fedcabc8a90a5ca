package core

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"

	m "stockdash/data/models"
)

// DefaultPeriodsPerYear is the number of trading days used to annualize daily statistics
const DefaultPeriodsPerYear = 252

type SummaryStats struct {
	AnnualizedReturn     float64
	AnnualizedVolatility float64
}

// ComputeReturns gives the simple period over period return, index aligned with the prices.
// Entry 0 is always undefined.
func ComputeReturns(prices *m.PriceSeries) ([]null.Float, error) {
	if prices == nil || prices.Len() < 2 {
		return nil, fmt.Errorf("%w: at least 2 prices are required to compute returns", ErrInvalidInput)
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}

	values := prices.Values()
	res := make([]null.Float, len(values))
	for i := 1; i < len(values); i++ {
		res[i] = null.FloatFrom((values[i] - values[i-1]) / values[i-1])
	}

	return res, nil
}

// ComputeAnnualizedStats annualizes the mean and population standard deviation of the defined returns.
func ComputeAnnualizedStats(returns []null.Float, periodsPerYear int) (SummaryStats, error) {
	if periodsPerYear <= 0 {
		return SummaryStats{}, fmt.Errorf("%w: periods per year must be positive, got %d", ErrInvalidParameter, periodsPerYear)
	}

	defined := definedValues(returns)
	if len(defined) == 0 {
		return SummaryStats{}, fmt.Errorf("%w: no returns to annualize", ErrInvalidInput)
	}

	mean, std := stat.PopMeanStdDev(defined, nil)

	return SummaryStats{
		AnnualizedReturn:     mean * float64(periodsPerYear),
		AnnualizedVolatility: std * math.Sqrt(float64(periodsPerYear)),
	}, nil
}

func definedValues(values []null.Float) []float64 {
	res := make([]float64, 0, len(values))
	for _, v := range values {
		if v.Valid {
			res = append(res, v.Float64)
		}
	}
	return res
}
