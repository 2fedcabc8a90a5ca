package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/guregu/null/v6"

	e "stockdash/data/extensions"
	m "stockdash/data/models"
	c "stockdash/service/api"
)

const (
	HostDefault = "query1.finance.yahoo.com"
	SourceName  = "yahoo"

	defaultTimeout = 30 * time.Second
	chartPath      = "/v8/finance/chart/"
)

// aliases for indices that yahoo lists under a caret symbol
var symbolMap = map[string]string{
	"SPX":    "^GSPC",
	"SP500":  "^GSPC",
	"SPX500": "^GSPC",
	"NDX":    "^NDX",
	"DJI":    "^DJI",
}

type ChartClient struct {
	*c.Client
}

func GetClient(transport http.RoundTripper) *ChartClient {
	return NewClient(c.ClientFactory(HostDefault, "", defaultTimeout, transport))
}

func NewClient(client *c.Client) *ChartClient {
	return &ChartClient{Client: client}
}

func (yc *ChartClient) Name() string { return SourceName }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []null.Float `json:"open"`
			High   []null.Float `json:"high"`
			Low    []null.Float `json:"low"`
			Close  []null.Float `json:"close"`
			Volume []null.Float `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []null.Float `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// GetPriceSeries returns the daily adjusted close series in [start, end)
func (yc *ChartClient) GetPriceSeries(ctx context.Context, ticker string, start, end time.Time) (*m.PriceSeries, error) {
	rows, err := yc.GetPriceHistory(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	return m.ToPriceSeries(ticker, SourceName, rows), nil
}

func (yc *ChartClient) GetPriceHistory(ctx context.Context, ticker string, start, end time.Time) ([]*m.PriceSeriesData, error) {
	if yc == nil || yc.Client == nil {
		panic("yahoo client has not been set.")
	}

	response, err := yc.Connection.Request(ctx, buildRequestPath(ticker, start, end))
	if err != nil {
		return nil, fmt.Errorf("yahoo chart request: %w", err)
	}

	body, err := c.ReadBody(response)
	if err != nil {
		return nil, err
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%w: yahoo returned no bars for %s", m.ErrNoData, ticker)
	}

	rows, err := parseChartResult(&chart.Chart.Result[0])
	if err != nil {
		return nil, err
	}

	inRange := e.FilterMultiplePtr(rows, func(d *m.PriceSeriesData) bool {
		return !d.Timestamp.Before(start) && d.Timestamp.Before(end)
	})
	if len(inRange) == 0 {
		return nil, fmt.Errorf("%w: yahoo returned no bars for %s between %s and %s", m.ErrNoData, ticker, e.FmtShort(start), e.FmtShort(end))
	}

	return inRange, nil
}

func buildRequestPath(ticker string, start, end time.Time) *url.URL {
	endpoint := &url.URL{Path: chartPath + yahooSymbol(ticker)}

	query := endpoint.Query()
	query.Set("period1", strconv.FormatInt(start.Unix(), 10))
	query.Set("period2", strconv.FormatInt(end.Unix(), 10))
	query.Set("interval", "1d")
	query.Set("events", "div,split")
	endpoint.RawQuery = query.Encode()

	return endpoint
}

func yahooSymbol(symbol string) string {
	if mapped, ok := symbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// parseChartResult skips bars without a close (holidays, halted sessions) and dates each bar at UTC midnight of its exchange trading day
func parseChartResult(result *chartResult) ([]*m.PriceSeriesData, error) {
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: yahoo chart has no quote block", m.ErrNoData)
	}
	quote := result.Indicators.Quote[0]

	var adjusted []null.Float
	if len(result.Indicators.AdjClose) > 0 {
		adjusted = result.Indicators.AdjClose[0].AdjClose
	}

	location := time.UTC
	if result.Meta.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(result.Meta.ExchangeTimezoneName); err == nil {
			location = loc
		}
	}

	at := func(values []null.Float, i int) null.Float {
		if i < len(values) {
			return values[i]
		}
		return null.Float{}
	}

	rows := make([]*m.PriceSeriesData, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := at(quote.Close, i)
		if !closePrice.Valid {
			continue
		}

		rows = append(rows, &m.PriceSeriesData{
			Timestamp:     tradingDay(ts, location),
			Open:          at(quote.Open, i),
			High:          at(quote.High, i),
			Low:           at(quote.Low, i),
			Close:         closePrice,
			AdjustedClose: at(adjusted, i),
			Volume:        at(quote.Volume, i),
		})
	}

	slices.SortFunc(rows, func(a, b *m.PriceSeriesData) int { return a.Timestamp.Compare(b.Timestamp) })
	return rows, nil
}

func tradingDay(ts int64, location *time.Location) time.Time {
	y, mo, d := time.Unix(ts, 0).In(location).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
