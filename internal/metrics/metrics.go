package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for the crawl pipeline, the flag
// engine, and inbound HTTP requests.
type Collector struct {
	registry *prometheus.Registry

	crawlRows       *prometheus.CounterVec
	crawlErrors     prometheus.Counter
	accountsFetched prometheus.Counter
	flagged         prometheus.Counter

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	crawlRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followeraudit",
		Subsystem: "crawl",
		Name:      "rows_total",
		Help:      "Crawled store rows by outcome.",
	}, []string{"outcome"})

	crawlErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "followeraudit",
		Subsystem: "crawl",
		Name:      "fetch_errors_total",
		Help:      "Transient fetch failures counted against the error budget.",
	})

	accountsFetched := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "followeraudit",
		Subsystem: "crawl",
		Name:      "accounts_fetched_total",
		Help:      "Accounts returned by the external client.",
	})

	flagged := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "followeraudit",
		Subsystem: "flags",
		Name:      "flagged_total",
		Help:      "Accounts flagged across flag passes.",
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "followeraudit",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followeraudit",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	for _, c := range []prometheus.Collector{
		crawlRows, crawlErrors, accountsFetched, flagged, requestDuration, requestTotal,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		crawlRows:       crawlRows,
		crawlErrors:     crawlErrors,
		accountsFetched: accountsFetched,
		flagged:         flagged,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// Handler returns the /metrics endpoint handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Nil-safe recording helpers so components can run without metrics wired.

func (c *Collector) CrawlRow(outcome string) {
	if c == nil {
		return
	}
	c.crawlRows.WithLabelValues(outcome).Inc()
}

func (c *Collector) CrawlError() {
	if c == nil {
		return
	}
	c.crawlErrors.Inc()
}

func (c *Collector) AccountsFetched(n int) {
	if c == nil {
		return
	}
	c.accountsFetched.Add(float64(n))
}

func (c *Collector) Flagged(n int) {
	if c == nil {
		return
	}
	c.flagged.Add(float64(n))
}

func (c *Collector) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	code := strconv.Itoa(status)
	c.requestTotal.WithLabelValues(method, path, code).Inc()
	c.requestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}
