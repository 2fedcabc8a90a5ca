package alpha_vantage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ex "stockdash/data/extensions"
	m "stockdash/data/models"
	c "stockdash/service/api"
)

// fileConnection answers each request with a testdata file picked by the function parameter
type fileConnection struct {
	mu       sync.Mutex
	files    map[string]string
	requests []url.Values
}

func (fc *fileConnection) Request(ctx context.Context, endpoint *url.URL) (*http.Response, error) {
	fc.mu.Lock()
	fc.requests = append(fc.requests, endpoint.Query())
	fc.mu.Unlock()

	name, ok := fc.files[endpoint.Query().Get("function")]
	if !ok {
		return nil, fmt.Errorf("no canned response for %s", endpoint.Query().Get("function"))
	}

	body, err := os.ReadFile("testdata/" + name)
	if err != nil {
		return nil, err
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    &http.Request{URL: &url.URL{Host: HostDefault}},
	}, nil
}

func newTestClient(t *testing.T, series TimeSeries, files map[string]string) (*AlphaVantageClient, *fileConnection) {
	t.Helper()
	conn := &fileConnection{files: files}
	client := NewClient(&c.Client{Connection: conn, ApiKey: "av-test-api-key"}, series)
	client.now = func() time.Time { return time.Date(2024, time.March, 16, 12, 0, 0, 0, time.UTC) }
	return client, conn
}

func Test_DoesNullFloatWorkHowIThink(t *testing.T) {
	var nullFloat null.Float

	if nullFloat.Valid {
		t.Fatalf("expected .valid to be false")
	}

	validFloat := null.FloatFrom(64)
	if !validFloat.Valid {
		t.Fatalf("value is set, expected .valid to be true now")
	}

	ex.AssertAreEqual(t, "value", 64.0, *validFloat.Ptr())
	ex.AssertNillability(t, "none", true, parseFloat("None").Ptr())
	ex.AssertNillability(t, "empty", true, parseFloat("").Ptr())
	ex.AssertAreEqual(t, "parsed", 1.66, *parseFloat("1.6600").Ptr())
}

func Test_AlphaVantage_DailyAdjustedPriceHistory(t *testing.T) {
	client, conn := newTestClient(t, TimeSeriesDailyAdjusted, map[string]string{
		"TIME_SERIES_DAILY_ADJUSTED": "daily_adjusted.json",
	})

	start := time.Date(2024, time.March, 13, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC)

	rows, err := client.GetPriceHistory(context.Background(), "IBM", start, end)
	require.NoError(t, err)

	// 2024-03-12 falls outside the range
	ex.AssertAreEqual(t, "row count", 3, len(rows))
	ex.AssertAreEqual(t, "first", start, rows[0].Timestamp)
	ex.AssertAreEqual(t, "last", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), rows[2].Timestamp)

	ex.AssertAreEqual(t, "open", null.FloatFrom(197.55), rows[0].Open)
	ex.AssertAreEqual(t, "close", null.FloatFrom(196.70), rows[0].Close)
	ex.AssertAreEqual(t, "adjusted close", null.FloatFrom(195.04), rows[0].AdjustedClose)
	ex.AssertAreEqual(t, "volume", null.FloatFrom(3960737), rows[0].Volume)

	query := conn.requests[0]
	ex.AssertAreEqual(t, "api key", "av-test-api-key", query.Get("apikey"))
	ex.AssertAreEqual(t, "symbol", "IBM", query.Get("symbol"))
	ex.AssertAreEqual(t, "output size", outputSizeCompact, query.Get("outputsize"))
}

func Test_AlphaVantage_PriceSeriesPrefersAdjustedClose(t *testing.T) {
	client, _ := newTestClient(t, TimeSeriesDailyAdjusted, map[string]string{
		"TIME_SERIES_DAILY_ADJUSTED": "daily_adjusted.json",
	})

	ps, err := client.GetPriceSeries(context.Background(), "IBM", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, ps.Validate())

	ex.AssertAreEqual(t, "length", 4, ps.Len())
	ex.AssertAreEqual(t, "source", SourceName, ps.Source)
	assert.Equal(t, []float64{196.11, 195.04, 193.43, 191.07}, ps.Values())
}

func Test_AlphaVantage_DailyFallsBackToClose(t *testing.T) {
	client, _ := newTestClient(t, TimeSeriesDaily, map[string]string{
		"TIME_SERIES_DAILY": "daily.json",
	})

	ps, err := client.GetPriceSeries(context.Background(), "IBM", time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []float64{193.43, 191.07}, ps.Values())
}

func Test_AlphaVantage_LongRangeRequestsFullOutput(t *testing.T) {
	client, conn := newTestClient(t, TimeSeriesDaily, map[string]string{
		"TIME_SERIES_DAILY": "daily.json",
	})

	_, err := client.GetPriceHistory(context.Background(), "IBM", time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	ex.AssertAreEqual(t, "output size", outputSizeFull, conn.requests[0].Get("outputsize"))
}

func Test_AlphaVantage_EmptyRangeIsNoData(t *testing.T) {
	client, _ := newTestClient(t, TimeSeriesDaily, map[string]string{
		"TIME_SERIES_DAILY": "daily.json",
	})

	_, err := client.GetPriceSeries(context.Background(), "IBM", time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, time.February, 1, 0, 0, 0, 0, time.UTC))
	ex.AssertErrorIs(t, "no data", m.ErrNoData, err)
}

func Test_AlphaVantage_ErrorPayloads(t *testing.T) {
	for name, file := range map[string]string{"rate limited": "rate_limited.json", "invalid symbol": "invalid_symbol.json"} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, TimeSeriesDailyAdjusted, map[string]string{
				"TIME_SERIES_DAILY_ADJUSTED": file,
			})

			_, err := client.GetPriceSeries(context.Background(), "IBM", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC))
			require.Error(t, err)
			assert.False(t, errors.Is(err, m.ErrNoData))
		})
	}
}

func Test_AlphaVantage_Fundamentals(t *testing.T) {
	client, conn := newTestClient(t, TimeSeriesDailyAdjusted, map[string]string{
		"BALANCE_SHEET":    "balance_sheet.json",
		"INCOME_STATEMENT": "income_statement.json",
		"CASH_FLOW":        "cash_flow.json",
	})

	res, err := client.GetFundamentals(context.Background(), "IBM")
	require.NoError(t, err)

	ex.AssertAreEqual(t, "requests", 3, len(conn.requests))
	ex.AssertAreEqual(t, "balance sheet kind", m.BalanceSheet, res.BalanceSheet.Kind)
	ex.AssertAreEqual(t, "income statement kind", m.IncomeStatement, res.IncomeStatement.Kind)
	ex.AssertAreEqual(t, "cash flow kind", m.CashFlow, res.CashFlow.Kind)

	bs := res.BalanceSheet
	ex.AssertAreEqual(t, "periods", 2, len(bs.Periods))
	ex.AssertAreEqual(t, "fiscal date", "2023-12-31", bs.Periods[0].FiscalDateEnding)
	ex.AssertAreEqual(t, "currency", "USD", bs.Periods[0].ReportedCurrency)
	ex.AssertAreEqual(t, "total assets", null.FloatFrom(135241000000), bs.Periods[0].LineItems["totalAssets"])
	ex.AssertAreEqual(t, "treasury stock none", false, bs.Periods[0].LineItems["treasuryStock"].Valid)

	_, hasDate := bs.Periods[0].LineItems[fiscalDateEndingKey]
	ex.AssertAreEqual(t, "fiscal date is not a line item", false, hasDate)

	table := bs.Table()
	assert.Equal(t, []string{"2023-12-31", "2022-12-31"}, table.Columns)
	ex.AssertAreEqual(t, "rows", 4, len(table.Rows))
	ex.AssertAreEqual(t, "first row", "goodwill", table.Rows[0].LineItem)
	ex.AssertAreEqual(t, "prior goodwill", null.FloatFrom(55949000000), table.Rows[0].Values[1])

	ex.AssertAreEqual(t, "net income", null.FloatFrom(7502000000), res.IncomeStatement.Periods[0].LineItems["netIncome"])
	ex.AssertAreEqual(t, "operating cash flow", null.FloatFrom(13931000000), res.CashFlow.Periods[0].LineItems["operatingCashflow"])
}

func Test_AlphaVantage_FundamentalsFailWhenAnyStatementFails(t *testing.T) {
	client, _ := newTestClient(t, TimeSeriesDailyAdjusted, map[string]string{
		"BALANCE_SHEET":    "balance_sheet.json",
		"INCOME_STATEMENT": "rate_limited.json",
		"CASH_FLOW":        "cash_flow.json",
	})

	_, err := client.GetFundamentals(context.Background(), "IBM")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "information"))
}

func Test_AlphaVantage_EmptyAnnualReportsIsNoData(t *testing.T) {
	_, err := parseAnnualReports(map[string]json.RawMessage{"annualReports": json.RawMessage("[]")})
	ex.AssertErrorIs(t, "empty", m.ErrNoData, err)

	_, err = parseAnnualReports(map[string]json.RawMessage{})
	ex.AssertErrorIs(t, "missing", m.ErrNoData, err)
}

func Test_AlphaVantage_ParseTimeSeries(t *testing.T) {
	cases := map[string]TimeSeries{
		"":                  TimeSeriesDailyAdjusted,
		"daily_adjusted":    TimeSeriesDailyAdjusted,
		"TIME_SERIES_DAILY": TimeSeriesDaily,
		"daily":             TimeSeriesDaily,
	}
	for in, expected := range cases {
		res, err := ParseTimeSeries(in)
		require.NoError(t, err, in)
		ex.AssertAreEqual(t, in, expected, res)
	}

	_, err := ParseTimeSeries("weekly")
	require.Error(t, err)
	ex.AssertAreEqual(t, "adjusted", true, TimeSeriesDailyAdjusted.IsAdjusted())
	ex.AssertAreEqual(t, "not adjusted", false, TimeSeriesDaily.IsAdjusted())
}

func Test_AlphaVantage_ParseMetaData(t *testing.T) {
	body, err := os.ReadFile("testdata/daily_adjusted.json")
	require.NoError(t, err)

	raw, err := parseRawJson(body)
	require.NoError(t, err)

	md, err := parseMetaData(raw)
	require.NoError(t, err)

	location, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ex.AssertAreEqual(t, "symbol", "IBM", md.Symbol)
	if !md.LastRefreshed.Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, location)) {
		t.Fatalf("error parsing meta data last refreshed date, %s", md.LastRefreshed)
	}
}
