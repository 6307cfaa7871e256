package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gatherlab/gatherd/internal/common/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the TCP server.
type Metrics struct {
	registry *prometheus.Registry

	connOpen    prometheus.Gauge
	connTotal   prometheus.Counter
	sessActive  prometheus.Gauge
	reqCnt      *prometheus.CounterVec
	reqDur      *prometheus.HistogramVec
	notifyCnt   *prometheus.CounterVec
	frameErrCnt *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	connOpen := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "connections_open"})
	connTotal := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "connections_total"})
	sessActive := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "sessions_active"})
	reqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "requests_total"}, []string{"command", "status"})
	reqDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "request_duration_seconds", Buckets: buckets}, []string{"command"})
	notifyCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "notifications_total"}, []string{"kind", "delivered"})
	frameErrCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "frame_errors_total"}, []string{"reason"})
	r.MustRegister(connOpen, connTotal, sessActive, reqCnt, reqDur, notifyCnt, frameErrCnt)

	return &Metrics{
		registry:    r,
		connOpen:    connOpen,
		connTotal:   connTotal,
		sessActive:  sessActive,
		reqCnt:      reqCnt,
		reqDur:      reqDur,
		notifyCnt:   notifyCnt,
		frameErrCnt: frameErrCnt,
	}
}

func (m *Metrics) ConnOpened() {
	m.connOpen.Inc()
	m.connTotal.Inc()
}

func (m *Metrics) ConnClosed() {
	m.connOpen.Dec()
}

func (m *Metrics) SessionCreated() {
	m.sessActive.Inc()
}

func (m *Metrics) SessionDestroyed() {
	m.sessActive.Dec()
}

// SetActiveSessions overwrites the sessions gauge with the store's own
// count, reconciling any drift after an expiry sweep.
func (m *Metrics) SetActiveSessions(n int) {
	m.sessActive.Set(float64(n))
}

func (m *Metrics) RequestDone(command string, status int, since time.Time) {
	m.reqCnt.WithLabelValues(command, strconv.Itoa(status)).Inc()
	m.reqDur.WithLabelValues(command).Observe(time.Since(since).Seconds())
}

func (m *Metrics) NotificationSent(kind string, delivered bool) {
	m.notifyCnt.WithLabelValues(kind, strconv.FormatBool(delivered)).Inc()
}

func (m *Metrics) FrameError(reason string) {
	m.frameErrCnt.WithLabelValues(reason).Inc()
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
