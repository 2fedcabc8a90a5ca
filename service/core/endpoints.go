package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	ex "stockdash/data/extensions"
	m "stockdash/data/models"
	sm "stockdash/service/models"
)

const (
	DefaultAddr     = ":8080"
	defaultRunLimit = 20
)

type HttpSettings struct {
	Addr           string
	CorsOrigins    []string
	RequestTimeout time.Duration
}

// Pinger is anything the ping endpoint should check, e.g. the redis cache
type Pinger interface {
	Ping(ctx context.Context) error
}

func GetHttpServer(sc *ServiceContext, settings HttpSettings) *http.Server {
	addr := settings.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	return &http.Server{
		Addr:           addr,
		Handler:        GetRouter(sc, settings),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   settings.RequestTimeout + 10*time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

func GetRouter(sc *ServiceContext, settings HttpSettings) http.Handler {
	origins := settings.CorsOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	timeout := settings.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))

	if sc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", sc.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Get("/ping", sc.ping)
		r.Get("/dashboard/{symbol}", sc.getDashboard)
		r.Get("/prices/{symbol}", sc.getPrices)
		r.Get("/indicators/{symbol}", sc.getIndicators)
		r.Get("/fundamentals/{symbol}", sc.getFundamentals)
		r.Get("/news/{symbol}", sc.getNews)
		r.Get("/runs/{symbol}", sc.getRuns)
		r.Get("/symbols", sc.getSymbols)
		r.Post("/sync/{symbol}", sc.postSync)
		r.Delete("/symbols/{symbol}", sc.deleteSymbol)
	})

	return r
}

func (sc *ServiceContext) ping(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Pinger{}
	if sc.Store != nil {
		checks["postgres"] = sc.Store
	}
	if sc.Cache != nil {
		checks["cache"] = sc.Cache
	}

	for name, p := range checks {
		if err := p.Ping(r.Context()); err != nil {
			writeJson(w, http.StatusServiceUnavailable, sm.GetServiceResponseError(fmt.Sprintf("%s unavailable: %v", name, err)))
			return
		}
	}

	writeOk(w, &map[string]string{"message": "pong"})
}

func (sc *ServiceContext) getDashboard(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	newsLimit, err := queryInt(r, "news", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := sc.BuildDashboard(r.Context(), DashboardRequest{
		Symbol:    chi.URLParam(r, "symbol"),
		Start:     start,
		End:       end,
		NewsLimit: newsLimit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeOk(w, res)
}

func (sc *ServiceContext) getPrices(w http.ResponseWriter, r *http.Request) {
	ps, ok := sc.priceSeriesFromRequest(w, r)
	if !ok {
		return
	}

	res := &sm.PriceResponse{
		Symbol: ps.Symbol,
		Source: ps.Source,
		Dates:  make([]string, ps.Len()),
		Prices: ps.Values(),
	}
	for i, ts := range ps.Timestamps() {
		res.Dates[i] = ex.FmtShort(ts)
	}

	// a single observation has no returns, the columns stay undefined
	returns, err := ComputeReturns(ps)
	if err != nil && ps.Len() >= 2 {
		writeError(w, err)
		return
	}
	res.Returns, res.PercentChange = returnColumns(returns, ps.Len())

	writeOk(w, res)
}

func (sc *ServiceContext) getIndicators(w http.ResponseWriter, r *http.Request) {
	params, err := parseIndicatorParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ps, ok := sc.priceSeriesFromRequest(w, r)
	if !ok {
		return
	}

	res, err := BuildPricingSection(ps, params, true)
	if err != nil {
		writeError(w, err)
		return
	}

	writeOk(w, res)
}

func (sc *ServiceContext) getFundamentals(w http.ResponseWriter, r *http.Request) {
	symbol := ex.NormalizeSymbol(chi.URLParam(r, "symbol"))

	f, err := sc.GetFundamentals(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}

	writeOk(w, ToFundamentalsSection(f))
}

func (sc *ServiceContext) getNews(w http.ResponseWriter, r *http.Request) {
	symbol := ex.NormalizeSymbol(chi.URLParam(r, "symbol"))

	limit, err := queryInt(r, "limit", sc.Settings.NewsLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := sc.GetNews(r.Context(), symbol, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeOk(w, &items)
}

func (sc *ServiceContext) getRuns(w http.ResponseWriter, r *http.Request) {
	if sc.Runs == nil {
		writeError(w, fmt.Errorf("run history: %w", ErrNotConfigured))
		return
	}

	limit, err := queryInt(r, "limit", defaultRunLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	runs, err := sc.Runs.GetDashboardRuns(r.Context(), ex.NormalizeSymbol(chi.URLParam(r, "symbol")), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeOk(w, &runs)
}

func (sc *ServiceContext) getSymbols(w http.ResponseWriter, r *http.Request) {
	if sc.Store == nil {
		writeError(w, fmt.Errorf("price store: %w", ErrNotConfigured))
		return
	}

	symbols, err := sc.Store.GetAllMetadata(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeOk(w, &symbols)
}

func (sc *ServiceContext) postSync(w http.ResponseWriter, r *http.Request) {
	res, err := sc.SyncSymbolPriceSeries(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeOk(w, res)
}

func (sc *ServiceContext) deleteSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := ex.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err := sc.DeleteSymbol(r.Context(), symbol); err != nil {
		writeError(w, err)
		return
	}

	writeOk(w, &map[string]string{"deleted": symbol})
}

func (sc *ServiceContext) priceSeriesFromRequest(w http.ResponseWriter, r *http.Request) (*m.PriceSeries, bool) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	symbol, start, end, err := sc.NormalizeRange(chi.URLParam(r, "symbol"), start, end)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	ps, err := sc.GetPriceSeries(r.Context(), symbol, start, end)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	return ps, true
}

func parseRange(r *http.Request) (start, end time.Time, err error) {
	if start, err = queryDate(r, "start"); err != nil {
		return
	}
	end, err = queryDate(r, "end")
	return
}

func queryDate(r *http.Request, key string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return time.Time{}, nil
	}

	t, err := ex.ParseShort(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", ErrInvalidInput, key, v)
	}
	return t, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidParameter, key, v)
	}
	return n, nil
}

func parseIndicatorParams(r *http.Request) (IndicatorParams, error) {
	var params IndicatorParams

	if v := strings.TrimSpace(r.URL.Query().Get("sma")); v != "" {
		for _, part := range ex.SplitAndTrim(v) {
			window, err := strconv.Atoi(part)
			if err != nil {
				return params, fmt.Errorf("%w: sma must be a comma separated list of integers, got %q", ErrInvalidParameter, v)
			}
			params.MovingAverages = append(params.MovingAverages, window)
		}
	}

	ints := map[string]*int{
		"rsi":    &params.RSIWindow,
		"fast":   &params.Fast,
		"slow":   &params.Slow,
		"signal": &params.Signal,
	}
	for key, target := range ints {
		n, err := queryInt(r, key, 0)
		if err != nil {
			return params, err
		}
		if n < 0 {
			return params, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidParameter, key, n)
		}
		*target = n
	}

	if v := r.URL.Query().Get("periods"); v != "" {
		periods, err := sm.ParsePeriodsPerYear(v)
		if err != nil {
			return params, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
		params.PeriodsPerYear = periods
	}

	return params, nil
}

// statusFor maps the error taxonomy onto http statuses, anything unclassified is an upstream failure
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request failed with %d: %v", status, err)
	}
	writeJson(w, status, sm.GetServiceResponseError(err.Error()))
}

func writeOk[T any](w http.ResponseWriter, data *T) {
	writeJson(w, http.StatusOK, sm.GetServiceResponseOk(data))
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}
