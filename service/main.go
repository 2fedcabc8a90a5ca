package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	r "stockdash/data/repos"
	av "stockdash/service/api/alpha_vantage"
	"stockdash/service/api/news"
	"stockdash/service/api/yahoo"
	"stockdash/service/cache"
	"stockdash/service/config"
	c "stockdash/service/core"
	"stockdash/service/metrics"
	"stockdash/service/scheduler"
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// load yaml config, .env and environment overrides
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	mx := metrics.NewMetrics()
	sc := &c.ServiceContext{
		Metrics: mx,
		Settings: c.Settings{
			NewsLimit:     cfg.Providers.NewsLimit,
			SyncFreshness: cfg.Sync.Freshness,
			SyncLookback:  cfg.Sync.Lookback,
		},
	}

	// price provider
	switch cfg.Providers.PriceSource {
	case config.PriceSourceAlphaVantage:
		series, err := av.ParseTimeSeries(cfg.Providers.AlphaVantageSeries)
		if err != nil {
			log.Fatalf("Invalid alpha vantage series: %v", err)
		}
		client := av.GetClient(cfg.Providers.AlphaVantageKey, series, mx.InstrumentTransport(av.SourceName, http.DefaultTransport))
		sc.Prices, sc.Upstream = client, client
	default:
		client := yahoo.GetClient(mx.InstrumentTransport(yahoo.SourceName, http.DefaultTransport))
		sc.Prices, sc.Upstream = client, client
	}

	// fundamentals need an api key, the dashboard reports the section as unavailable without one
	var fundamentals c.FundamentalsProvider
	if cfg.HasFundamentals() {
		fundamentals = av.GetClient(cfg.Providers.AlphaVantageKey, av.TimeSeriesDailyAdjusted, mx.InstrumentTransport(av.SourceName, http.DefaultTransport))
	} else {
		log.Println("ALPHAVANTAGE_API_KEY not set, fundamentals disabled")
	}

	var newsProvider c.NewsProvider = news.GetClient(cfg.Providers.NewsFeedUrl, mx.InstrumentTransport(news.SourceName, http.DefaultTransport))

	// read through cache for the slow moving sections, in process when redis is not configured
	var responseCache cache.Cache = cache.NewMemory()
	if cfg.HasRedis() {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rc.Close()
		responseCache = rc
	}

	sc.Cache = responseCache
	if fundamentals != nil {
		fundamentals = &c.CachedFundamentals{Next: fundamentals, Cache: responseCache, TTL: cfg.Cache.FundamentalsTTL, Metrics: mx}
	}
	newsProvider = &c.CachedNews{Next: newsProvider, Cache: responseCache, TTL: cfg.Cache.NewsTTL, Metrics: mx}
	sc.Fundamentals = fundamentals
	sc.News = newsProvider

	// postgres price store, run history and the nightly sync
	if cfg.HasDatabase() {
		postgresConnection, err := r.GetPostgresConnection(ctx, cfg.Database.Url)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer postgresConnection.Close()

		if err := postgresConnection.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		sc.Store = postgresConnection
		sc.Runs = postgresConnection

		sched := scheduler.NewScheduler(ctx, sc, cfg.Sync.Watchlist, cfg.Sync.Workers)
		if err := sched.Register(cfg.Sync.Cron); err != nil {
			log.Fatalf("Failed to schedule sync: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	} else {
		log.Println("DATABASE_URL not set, serving prices straight from the provider")
	}

	// get http server, makes all of the endpoints and routes
	s := c.GetHttpServer(sc, c.HttpSettings{
		Addr:           cfg.Http.Addr,
		CorsOrigins:    cfg.Http.CorsOrigins,
		RequestTimeout: cfg.Http.RequestTimeout,
	})

	// start http server in goroutine
	go func() {
		log.Printf("Starting stockdash server on %s (prices: %s)", s.Addr, sc.Prices.Name())
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// wait here until the context is closed (ie, ctrl+C)
	<-ctx.Done()
	log.Println("Received shutdown signal, shutting down gracefully...")

	// this gives the server 10 seconds to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// background store refreshes hold the connection, let them finish before it closes
	sc.Wait()

	log.Println("Server stopped successfully")
}
