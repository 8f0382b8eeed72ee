// Package metrics exposes prometheus instrumentation for the bot.
// All methods are safe on a nil *Metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the bot's collectors.
type Metrics struct {
	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	searches      *prometheus.CounterVec
	hotelsShown   prometheus.Histogram
	reprompts     *prometheus.CounterVec
	historyWrites *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	updates       *prometheus.CounterVec
	updateLatency *prometheus.HistogramVec
	sends         *prometheus.CounterVec
}

// New registers collectors on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelbot",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Hotels API requests by endpoint and outcome",
		}, []string{"endpoint", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotelbot",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of hotels API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelbot",
			Subsystem: "dialog",
			Name:      "searches_total",
			Help:      "Completed searches by command and outcome",
		}, []string{"command", "outcome"}),
		hotelsShown: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hotelbot",
			Subsystem: "dialog",
			Name:      "hotels_per_search",
			Help:      "Number of hotels presented per search",
			Buckets:   []float64{0, 1, 2, 3, 5, 7, 9},
		}),
		reprompts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelbot",
			Subsystem: "dialog",
			Name:      "reprompts_total",
			Help:      "Invalid replies that re-asked the same question",
		}, []string{"state"}),
		historyWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelbot",
			Subsystem: "history",
			Name:      "appends_total",
			Help:      "History appends by backend and status",
		}, []string{"backend", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelbot",
			Subsystem: "api",
			Name:      "location_cache_total",
			Help:      "Location cache lookups by result",
		}, []string{"cache"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelbot",
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Handled Telegram updates by kind and status",
		}, []string{"kind", "status"}),
		updateLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotelbot",
			Subsystem: "telegram",
			Name:      "update_duration_seconds",
			Help:      "Time spent handling one update, including API calls made by the dialog",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotelbot",
			Subsystem: "telegram",
			Name:      "sends_total",
			Help:      "Outbound Telegram calls by method and result",
		}, []string{"endpoint", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.apiRequests, m.apiLatency, m.searches, m.hotelsShown,
		m.reprompts, m.historyWrites, m.cacheLookups, m.updates, m.updateLatency, m.sends)
	return m
}

// ObserveAPI records one hotels API call.
func (m *Metrics) ObserveAPI(endpoint, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, status).Inc()
	m.apiLatency.WithLabelValues(endpoint).Observe(took.Seconds())
}

// ObserveSearch records a finished search.
func (m *Metrics) ObserveSearch(command, outcome string, hotels int) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(command, outcome).Inc()
	m.hotelsShown.Observe(float64(hotels))
}

// ObserveReprompt records an invalid reply.
func (m *Metrics) ObserveReprompt(state string) {
	if m == nil {
		return
	}
	m.reprompts.WithLabelValues(state).Inc()
}

// ObserveHistory records a history append.
func (m *Metrics) ObserveHistory(backend string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "fail"
	}
	m.historyWrites.WithLabelValues(backend, status).Inc()
}

// ObserveCache records a location cache lookup ("hit", "miss" or "error").
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveUpdate records one handled Telegram update.
func (m *Metrics) ObserveUpdate(kind, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind, status).Inc()
	m.updateLatency.WithLabelValues(kind).Observe(took.Seconds())
}

// ObserveSend records one outbound Telegram call after retries.
func (m *Metrics) ObserveSend(endpoint, status string, _ time.Duration) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(endpoint, status).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
