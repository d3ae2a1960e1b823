package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"follower-audit/internal/config"
	"follower-audit/internal/crawler"
	"follower-audit/internal/flags"
	"follower-audit/internal/graph"
	"follower-audit/internal/metrics"
	"follower-audit/internal/security"
	"follower-audit/internal/store"
	"follower-audit/internal/twitter"
)

type Server struct {
	log       *slog.Logger
	cfg       config.Config
	store     store.Store
	crawler   *crawler.Crawler
	engine    *flags.Engine
	builder   *graph.Builder
	client    twitter.Client
	collector *metrics.Collector
	limiter   *security.LimiterStore
	router    *gin.Engine
}

func NewServer(
	log *slog.Logger,
	cfg config.Config,
	st store.Store,
	cr *crawler.Crawler,
	engine *flags.Engine,
	builder *graph.Builder,
	client twitter.Client,
	collector *metrics.Collector,
) *Server {
	s := &Server{
		log:       log,
		cfg:       cfg,
		store:     st,
		crawler:   cr,
		engine:    engine,
		builder:   builder,
		client:    client,
		collector: collector,
		limiter:   security.NewLimiterStore(rate.Limit(10), 20, 10*time.Minute),
		router:    gin.New(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())
	r.Use(s.metricsMiddleware())

	r.GET("/health", s.health)
	if s.collector != nil {
		r.GET("/metrics", gin.WrapH(s.collector.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/accounts", s.listAccounts)
		v1.GET("/graph", s.getGraph)
		v1.POST("/crawl/bootstrap", s.bootstrap)
		v1.POST("/crawl/expand", s.expand)
		v1.POST("/flags/run", s.runFlags)
		v1.POST("/accounts/:username/block", s.blockAccount)
		v1.POST("/accounts/:username/force_unfollow", s.forceUnfollow)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
