package alpha_vantage

import (
	"fmt"
	"strings"
)

type TimeSeries uint8

// TimeSeries specifies which daily endpoint to query, the adjusted one carries adjusted close.
const (
	TimeSeriesDaily TimeSeries = iota
	TimeSeriesDailyAdjusted
)

func (t TimeSeries) Name() string {
	switch t {
	case TimeSeriesDaily:
		return "TimeSeriesDaily"
	case TimeSeriesDailyAdjusted:
		return "TimeSeriesDailyAdjusted"
	default:
		return ""
	}
}

func (t TimeSeries) Function() string {
	switch t {
	case TimeSeriesDaily:
		return "TIME_SERIES_DAILY"
	case TimeSeriesDailyAdjusted:
		return "TIME_SERIES_DAILY_ADJUSTED"
	default:
		return ""
	}
}

// TimeSeriesKey is the top level json key holding the bars, both daily endpoints share it
func (t TimeSeries) TimeSeriesKey() string {
	switch t {
	case TimeSeriesDaily, TimeSeriesDailyAdjusted:
		return "Time Series (Daily)"
	default:
		return ""
	}
}

func (t TimeSeries) IsAdjusted() bool {
	return strings.HasSuffix(t.Function(), "_ADJUSTED")
}

// ParseTimeSeries accepts the function name or a short form such as "daily_adjusted"
func ParseTimeSeries(s string) (TimeSeries, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "TIME_SERIES_DAILY_ADJUSTED", "DAILY_ADJUSTED":
		return TimeSeriesDailyAdjusted, nil
	case "TIME_SERIES_DAILY", "DAILY":
		return TimeSeriesDaily, nil
	default:
		return 0, fmt.Errorf("unknown alpha vantage time series %q", s)
	}
}
