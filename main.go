package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"follower-audit/internal/api"
	"follower-audit/internal/config"
	"follower-audit/internal/crawler"
	"follower-audit/internal/db"
	"follower-audit/internal/flags"
	"follower-audit/internal/graph"
	"follower-audit/internal/logging"
	"follower-audit/internal/metrics"
	"follower-audit/internal/redis"
	"follower-audit/internal/store"
	"follower-audit/internal/twitter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_service", "service", "follower-audit", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// pick the record store: Postgres when a DSN is configured, flat
	// files otherwise
	var recordStore store.Store
	var dbConn *db.DB
	if cfg.DBDSN != "" {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("db_connect_failed", "error", err)
			os.Exit(1)
		}
		defer dbConn.Close()

		pg := store.NewPostgres(dbConn)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("db_schema_failed", "error", err)
			os.Exit(1)
		}
		recordStore = pg
		logger.Info("using_postgres_store")
	} else {
		csvStore, err := store.NewCSV(cfg.DataDir)
		if err != nil {
			logger.Error("csv_store_init_failed", "error", err)
			os.Exit(1)
		}
		recordStore = csvStore
		logger.Info("using_csv_store", "data_dir", cfg.DataDir)
	}

	// fetch-page cache is optional; the crawler works without it
	var cache *redis.Client
	if cfg.RedisDSN != "" {
		cache, err = redis.New(cfg.RedisDSN)
		if err != nil {
			logger.Warn("redis_connect_failed", "error", err)
		} else {
			defer cache.Close()
			logger.Info("fetch_cache_enabled")
		}
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("metrics_init_failed", "error", err)
		os.Exit(1)
	}

	client := twitter.NewHTTPClient(cfg.TwitterBaseURL, cfg.TwitterBearerToken, cache, logger)
	cr := crawler.New(logger, recordStore, client, collector, cfg.CrawlErrorBudget)
	engine := flags.NewEngine(cfg.Rules, flags.NewBigramDetector(), logger)
	builder := graph.NewBuilder(logger)

	srv := api.NewServer(logger, cfg, recordStore, cr, engine, builder, client, collector)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_server_ready", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	logger.Info("service_stopped")
}
