// Package metrics exposes Prometheus instrumentation on a private registry.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Collector struct {
	reg *prometheus.Registry

	Requests        *prometheus.CounterVec // route, status
	RequestDuration *prometheus.HistogramVec

	PositionsPruned prometheus.Counter
	PruneRuns       *prometheus.CounterVec // result: ok|error
	PruneDuration   prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geobus_http_requests_total",
			Help: "Requests handled, by route template and status code.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geobus_http_request_duration_seconds",
			Help:    "Request latency by route template.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"route"}),
		PositionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geobus_positions_pruned_total",
			Help: "Bus positions deleted by retention pruning.",
		}),
		PruneRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geobus_prune_runs_total",
			Help: "Prune runs by result.",
		}, []string{"result"}),
		PruneDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geobus_prune_duration_seconds",
			Help:    "Duration of a prune run.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geobus_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geobus_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "geobus_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geobus_nats_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.Requests, c.RequestDuration,
		c.PositionsPruned, c.PruneRuns, c.PruneDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)
	return c
}

// RegisterStopCache exports the hit and miss counters of the stop lookup
// cache.
func (c *Collector) RegisterStopCache(hits, misses func() uint64) {
	c.reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "geobus_stop_cache_hits_total",
			Help: "Stop lookups served from the LRU cache.",
		}, func() float64 { return float64(hits()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "geobus_stop_cache_misses_total",
			Help: "Stop lookups that went to the store.",
		}, func() float64 { return float64(misses()) }),
	)
}

func (c *Collector) ObserveRequest(route string, status int, d time.Duration) {
	c.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) ObservePrune(deleted int, elapsed time.Duration, err error) {
	c.PruneDuration.Observe(elapsed.Seconds())
	if err != nil {
		c.PruneRuns.WithLabelValues("error").Inc()
		return
	}
	c.PruneRuns.WithLabelValues("ok").Inc()
	c.PositionsPruned.Add(float64(deleted))
}

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("Metrics listening")
	return srv
}
