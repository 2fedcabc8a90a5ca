package core

import (
	"fmt"

	"github.com/guregu/null/v6"
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"

	m "stockdash/data/models"
)

const (
	DefaultRSIWindow  = 14
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

type MACDResult struct {
	MACD   []null.Float
	Signal []null.Float
}

// ComputeSimpleMovingAverage is the trailing mean over window prices, undefined until a full window exists.
func ComputeSimpleMovingAverage(prices *m.PriceSeries, window int) ([]null.Float, error) {
	if err := validateWindow(prices, window); err != nil {
		return nil, err
	}

	values := prices.Values()
	sma := talib.Sma(values, window)

	res := make([]null.Float, len(values))
	for i := window - 1; i < len(values); i++ {
		res[i] = null.FloatFrom(sma[i])
	}

	return res, nil
}

// ComputeRSI uses simple averages of the last window gains and losses.
// An index is defined once window deltas exist, and a window without losses is 100.
func ComputeRSI(prices *m.PriceSeries, window int) ([]null.Float, error) {
	if err := validateWindow(prices, window); err != nil {
		return nil, err
	}

	values := prices.Values()
	res := make([]null.Float, len(values))

	// gains[j] and losses[j] belong to the delta ending at price j+1
	n := len(values) - 1
	if n < window {
		return res, nil
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for j := range n {
		delta := values[j+1] - values[j]
		if delta > 0 {
			gains[j] = delta
		} else {
			losses[j] = -delta
		}
	}

	// each window is summed on its own, a running sum leaves residue on flat windows
	w := float64(window)
	for j := window - 1; j < n; j++ {
		avgGain := floats.Sum(gains[j-window+1:j+1]) / w
		avgLoss := floats.Sum(losses[j-window+1:j+1]) / w
		res[j+1] = null.FloatFrom(rsi(avgGain, avgLoss))
	}

	return res, nil
}

func rsi(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// ComputeMACD is the fast EMA less the slow EMA, with a signal EMA of that difference.
// Every index is defined.
func ComputeMACD(prices *m.PriceSeries, fast, slow, signal int) (MACDResult, error) {
	if prices == nil || prices.Len() == 0 {
		return MACDResult{}, fmt.Errorf("%w: no prices to compute macd", ErrInvalidInput)
	}
	if err := prices.Validate(); err != nil {
		return MACDResult{}, err
	}

	values := prices.Values()
	fastEMA, err := ComputeEMA(values, fast)
	if err != nil {
		return MACDResult{}, fmt.Errorf("fast span: %w", err)
	}
	slowEMA, err := ComputeEMA(values, slow)
	if err != nil {
		return MACDResult{}, fmt.Errorf("slow span: %w", err)
	}

	macd := make([]float64, len(values))
	for i := range values {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	signalEMA, err := ComputeEMA(macd, signal)
	if err != nil {
		return MACDResult{}, fmt.Errorf("signal span: %w", err)
	}

	return MACDResult{
		MACD:   toNullFloats(macd),
		Signal: toNullFloats(signalEMA),
	}, nil
}

// ComputeEMA smooths with alpha = 2/(span+1) seeded with the first value, no bias adjustment.
func ComputeEMA(values []float64, span int) ([]float64, error) {
	if span <= 0 {
		return nil, fmt.Errorf("%w: span must be positive, got %d", ErrInvalidParameter, span)
	}

	res := make([]float64, len(values))
	if len(values) == 0 {
		return res, nil
	}

	alpha := 2 / (float64(span) + 1)
	res[0] = values[0]
	for i := 1; i < len(values); i++ {
		res[i] = alpha*values[i] + (1-alpha)*res[i-1]
	}

	return res, nil
}

func validateWindow(prices *m.PriceSeries, window int) error {
	length := 0
	if prices != nil {
		length = prices.Len()
	}
	if window <= 0 || window > length {
		return fmt.Errorf("%w: window must be between 1 and %d, got %d", ErrInvalidParameter, length, window)
	}
	return prices.Validate()
}

func toNullFloats(values []float64) []null.Float {
	res := make([]null.Float, len(values))
	for i, v := range values {
		res[i] = null.FloatFrom(v)
	}
	return res
}
