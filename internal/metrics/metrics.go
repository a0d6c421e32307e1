package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stefando/uploadpresigner/internal/upload"
)

const namespace = "presigner"

// Metrics provides a self-contained Prometheus registry with HTTP and
// storage gateway collectors.
type Metrics struct {
	reg      *prometheus.Registry
	inflight prometheus.Gauge
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with a fresh registry and registers collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of inflight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed, partitioned by route, status code and method.",
		}, []string{"route", "code", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of latencies for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Storage backend calls, partitioned by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Histogram of storage backend call latencies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(m.inflight, m.requests, m.latency, m.gatewayCalls, m.gatewayLatency)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler returns an http.Handler that serves Prometheus metrics using the internal registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests. Routes are labelled with the chi route
// pattern so that query strings and keys never become label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inflight.Inc()
		defer m.inflight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		m.requests.WithLabelValues(route, strconv.Itoa(rec.status), r.Method).Inc()
		m.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeGateway(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayCalls.WithLabelValues(operation, outcome).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// InstrumentGateway wraps gw so every backend call is counted and timed.
func (m *Metrics) InstrumentGateway(gw upload.Gateway) upload.Gateway {
	return &instrumentedGateway{next: gw, m: m}
}

type instrumentedGateway struct {
	next upload.Gateway
	m    *Metrics
}

func (g *instrumentedGateway) CreateMultipartUpload(ctx context.Context, bucket, key, contentType string) (string, error) {
	start := time.Now()
	id, err := g.next.CreateMultipartUpload(ctx, bucket, key, contentType)
	g.m.observeGateway("create_multipart_upload", start, err)
	return id, err
}

func (g *instrumentedGateway) SignPartUploadURL(ctx context.Context, bucket, key, uploadID string, partNumber int, expiresIn time.Duration) (string, error) {
	start := time.Now()
	url, err := g.next.SignPartUploadURL(ctx, bucket, key, uploadID, partNumber, expiresIn)
	g.m.observeGateway("sign_part_upload_url", start, err)
	return url, err
}

func (g *instrumentedGateway) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []upload.CompletedPart) (upload.CompletedUpload, error) {
	start := time.Now()
	res, err := g.next.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts)
	g.m.observeGateway("complete_multipart_upload", start, err)
	return res, err
}

func (g *instrumentedGateway) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	start := time.Now()
	err := g.next.AbortMultipartUpload(ctx, bucket, key, uploadID)
	g.m.observeGateway("abort_multipart_upload", start, err)
	return err
}
