package alpha_vantage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // US/Eastern must resolve in slim images

	"github.com/guregu/null/v6"

	e "stockdash/data/extensions"
	m "stockdash/data/models"
	c "stockdash/service/api"
)

// public
const (
	HostDefault = "www.alphavantage.co"
	SourceName  = "alphavantage"
)

// private
const (
	// default query parameters
	defaultDataType = "json"
	defaultTimeout  = time.Second * 30

	outputSizeCompact = "compact"
	outputSizeFull    = "full"

	// compact returns the latest 100 bars, anything starting earlier needs full
	compactLookback = 140 * 24 * time.Hour

	// api request elements
	query      = "query"
	symbol     = "symbol"
	function   = "function"
	outputSize = "outputsize"
)

var (
	timeSeriesDateFormats = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
	}

	// struct attribute to json key suffix
	ohlcvResultKeys = map[string]string{
		"Open":          ". open",
		"High":          ". high",
		"Low":           ". low",
		"Close":         ". close",
		"AdjustedClose": ". adjusted close",
		"Volume":        ". volume",
	}

	// payload keys alpha vantage uses instead of an http status
	errorPayloadKeys = []string{"Error Message", "Note", "Information"}
)

type AlphaVantageClient struct {
	*c.Client
	Series TimeSeries
	now    func() time.Time
}

// GetClient builds a client against the public host, the api key is always injected by the caller
func GetClient(apiKey string, series TimeSeries, transport http.RoundTripper) *AlphaVantageClient {
	return NewClient(c.ClientFactory(HostDefault, apiKey, defaultTimeout, transport), series)
}

func NewClient(client *c.Client, series TimeSeries) *AlphaVantageClient {
	return &AlphaVantageClient{
		Client: client,
		Series: series,
		now:    time.Now,
	}
}

func (avc *AlphaVantageClient) Name() string {
	return SourceName
}

// GetPriceSeries returns the daily series in [start, end), adjusted close where the endpoint carries it
func (avc *AlphaVantageClient) GetPriceSeries(ctx context.Context, ticker string, start, end time.Time) (*m.PriceSeries, error) {
	rows, err := avc.GetPriceHistory(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	return m.ToPriceSeries(ticker, SourceName, rows), nil
}

// https://www.alphavantage.co/documentation/#dailyadj
func (avc *AlphaVantageClient) GetPriceHistory(ctx context.Context, ticker string, start, end time.Time) ([]*m.PriceSeriesData, error) {
	if avc == nil || avc.Client == nil {
		panic("alpha vantage client has not been set.")
	}

	size := outputSizeCompact
	if avc.now().Sub(start) > compactLookback {
		size = outputSizeFull
	}

	raw, err := avc.getRaw(ctx, map[string]string{
		function:   avc.Series.Function(),
		symbol:     ticker,
		outputSize: size,
	})
	if err != nil {
		return nil, err
	}

	metadata, err := parseMetaData(raw)
	if err != nil {
		return nil, err
	}
	if !e.AreEqual(metadata.Symbol, ticker) {
		log.Printf("alpha vantage returned symbol %s for request %s", metadata.Symbol, ticker)
	}

	timeSeries, err := parseTimeSeriesDataResult(raw, avc.Series.TimeSeriesKey())
	if err != nil {
		return nil, err
	}

	inRange := e.FilterMultiplePtr(timeSeries, func(d *m.PriceSeriesData) bool {
		return !d.Timestamp.Before(start) && d.Timestamp.Before(end)
	})
	if len(inRange) == 0 {
		return nil, fmt.Errorf("%w: alpha vantage returned no bars for %s between %s and %s", m.ErrNoData, ticker, e.FmtShort(start), e.FmtShort(end))
	}

	slices.SortFunc(inRange, func(a, b *m.PriceSeriesData) int { return a.Timestamp.Compare(b.Timestamp) })
	return inRange, nil
}

func (avc *AlphaVantageClient) getRaw(ctx context.Context, params map[string]string) (map[string]json.RawMessage, error) {
	endpoint := avc.buildRequestPath(params)

	response, err := avc.Client.Connection.Request(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage %s request: %w", params[function], err)
	}

	body, err := c.ReadBody(response)
	if err != nil {
		return nil, err
	}

	raw, err := parseRawJson(body)
	if err != nil {
		return nil, err
	}

	if err := checkErrorPayload(raw); err != nil {
		return nil, fmt.Errorf("alpha vantage %s: %w", params[function], err)
	}

	return raw, nil
}

func (avc *AlphaVantageClient) buildRequestPath(params map[string]string) *url.URL {
	// build our URL
	endpoint := &url.URL{}
	endpoint.Path = query

	// base parameters
	query := endpoint.Query()
	query.Set("apikey", avc.Client.ApiKey)
	query.Set("datatype", defaultDataType)

	// additional parameters
	for key, value := range params {
		query.Set(key, value)
	}

	endpoint.RawQuery = query.Encode()

	return endpoint
}

func parseRawJson(body []byte) (raw map[string]json.RawMessage, err error) {
	// converting to a <string, raw message> map
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	return
}

func checkErrorPayload(raw map[string]json.RawMessage) error {
	for _, key := range errorPayloadKeys {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(msg, &text); err != nil {
			text = string(msg)
		}
		return fmt.Errorf("%s: %s", strings.ToLower(key), text)
	}
	return nil
}

type timeSeriesMetadata struct {
	Symbol        string
	LastRefreshed time.Time
}

func parseMetaData(raw map[string]json.RawMessage) (*timeSeriesMetadata, error) {
	var metadataElements map[string]string
	if err := json.Unmarshal(raw["Meta Data"], &metadataElements); err != nil {
		return nil, fmt.Errorf("error unmarshaling meta data: %w", err)
	}

	metaDataKeys := slices.Collect(maps.Keys(metadataElements))

	// parse symbol
	sf := func(s string) bool { return strings.HasSuffix(s, ". Symbol") }
	symbolKey, err := e.FilterSingle(metaDataKeys, sf)
	if err != nil {
		return nil, fmt.Errorf("error extracting symbol for meta data")
	}

	// parse time zone
	tzf := func(s string) bool { return strings.HasSuffix(s, ". Time Zone") }
	timeZoneKey, err := e.FilterSingle(metaDataKeys, tzf)
	if err != nil {
		return nil, fmt.Errorf("error extracting time zone for meta data")
	}

	timeZone, err := getTimeZone(metadataElements[timeZoneKey])
	if err != nil {
		return nil, fmt.Errorf("error converting time zone key %s, to time.Location: %w", metadataElements[timeZoneKey], err)
	}

	// parse last refreshed
	lrf := func(s string) bool { return strings.HasSuffix(s, ". Last Refreshed") }
	lastRefreshedKey, err := e.FilterSingle(metaDataKeys, lrf)
	if err != nil {
		return nil, fmt.Errorf("error extracting last refreshed date")
	}

	lastRefreshed, err := parseDate(metadataElements[lastRefreshedKey], timeZone)
	if err != nil {
		return nil, fmt.Errorf("error parsing last refreshed date")
	}

	return &timeSeriesMetadata{
		Symbol:        metadataElements[symbolKey],
		LastRefreshed: lastRefreshed,
	}, nil
}

// parseTimeSeriesDataResult reads daily bars, each dated at UTC midnight of its trading day
func parseTimeSeriesDataResult(raw map[string]json.RawMessage, key string) ([]*m.PriceSeriesData, error) {
	section, ok := raw[key]
	if !ok {
		return nil, fmt.Errorf("%w: response has no %q section", m.ErrNoData, key)
	}

	var timeSeriesElements map[string]map[string]string
	if err := json.Unmarshal(section, &timeSeriesElements); err != nil {
		return nil, fmt.Errorf("error unmarshaling time series: %w", err)
	}

	if len(timeSeriesElements) == 0 {
		return nil, fmt.Errorf("%w: %q section is empty", m.ErrNoData, key)
	}

	// populate the lookups
	var firstValue map[string]string
	for _, v := range timeSeriesElements {
		firstValue = v
		break
	}

	ohlcvLookup, err := getLookupKey(ohlcvResultKeys, firstValue)
	if err != nil {
		return nil, err
	}

	timeSeries := make([]*m.PriceSeriesData, 0, len(timeSeriesElements))
	for timeSeriesKey, timeSeriesValue := range timeSeriesElements {
		timestamp, err := parseDate(timeSeriesKey, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("error converting TIMESTAMP from string to time.Time: %w", err)
		}

		row := &m.PriceSeriesData{Timestamp: timestamp}
		if err := parseOHLCV(row, timeSeriesValue, ohlcvLookup); err != nil {
			return nil, fmt.Errorf("error parsing OHLCV: %w", err)
		}

		timeSeries = append(timeSeries, row)
	}

	return timeSeries, nil
}

func parseOHLCV(res *m.PriceSeriesData, value, lookup map[string]string) error {
	v := reflect.ValueOf(res).Elem()
	for jsonKey, structAttribute := range lookup {
		field := v.FieldByName(structAttribute)
		if !field.IsValid() {
			return fmt.Errorf("field %s does not exist", structAttribute)
		}
		if !field.CanSet() {
			return fmt.Errorf("field %s cannot be set", structAttribute)
		}

		pv := parseFloat(value[jsonKey])
		field.Set(reflect.ValueOf(pv))
	}
	return nil
}

func getLookupKey(expectedKeys, values map[string]string) (map[string]string, error) {
	res := make(map[string]string)
	responseValueHeaders := slices.Collect(maps.Keys(values))

	for key, value := range expectedKeys {
		f := func(s string) bool {
			return strings.HasSuffix(strings.ToLower(s), strings.ToLower(value))
		}
		if jsonKey, err := e.FilterSingle(responseValueHeaders, f); err == nil {
			res[jsonKey] = key
		}
	}

	if len(res) == 0 {
		return nil, fmt.Errorf("error generating key value map from av response object. Available headers: %v", responseValueHeaders)
	}

	return res, nil
}

func getTimeZone(location string) (*time.Location, error) {
	var loc string
	switch strings.ToUpper(location) {
	case "US/EASTERN":
		loc = "America/New_York"
	default:
		log.Printf("default time zone hit, %s is not recognized", location)
		return time.UTC, nil
	}

	res, err := time.LoadLocation(loc)
	if err != nil {
		return nil, fmt.Errorf("error parsing time zone %s in time.LoadLocation", loc)
	}

	return res, nil
}

func parseDate(dateString string, location *time.Location) (time.Time, error) {
	for _, format := range timeSeriesDateFormats {
		t, err := time.ParseInLocation(format, dateString, location)
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("error converting date %s to time.Time", dateString)
}

// parseFloat maps "", "None" and anything unparsable to an invalid value
func parseFloat(val string) null.Float {
	if val != "" && val != "None" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return null.FloatFrom(f)
		}
	}
	return null.Float{}
}
