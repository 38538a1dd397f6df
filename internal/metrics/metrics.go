package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector agrupa los contadores Prometheus del portal.
type Collector struct {
	registry          *prometheus.Registry
	httpRequests      *prometheus.CounterVec
	httpLatency       prometheus.Histogram
	uploads           prometheus.Counter
	scanSuccess       prometheus.Counter
	scanFail          prometheus.Counter
	sensitiveDetected prometheus.Counter
}

// NewCollector crea el Collector y registra sus métricas.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docguard_http_requests_total",
			Help: "Total de requests HTTP por método y status.",
		}, []string{"method", "status"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docguard_http_latency_seconds",
			Help:    "Latencia de requests HTTP en segundos.",
			Buckets: prometheus.DefBuckets,
		}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docguard_uploads_total",
			Help: "Total de documentos subidos.",
		}),
		scanSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docguard_scan_success_total",
			Help: "Total de escaneos completados.",
		}),
		scanFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docguard_scan_fail_total",
			Help: "Total de escaneos fallidos.",
		}),
		sensitiveDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docguard_sensitive_detected_total",
			Help: "Total de documentos con datos sensibles detectados.",
		}),
	}

	registry.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.uploads,
		c.scanSuccess,
		c.scanFail,
		c.sensitiveDetected,
	)
	return c
}

// Middleware registra método, status y latencia de cada request.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(g *gin.Context) {
		start := time.Now()
		g.Next()
		c.httpRequests.WithLabelValues(g.Request.Method, strconv.Itoa(g.Writer.Status())).Inc()
		c.httpLatency.Observe(time.Since(start).Seconds())
	}
}

// Handler expone el endpoint /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordUpload()            { c.uploads.Inc() }
func (c *Collector) RecordScanSuccess()       { c.scanSuccess.Inc() }
func (c *Collector) RecordScanFailure()       { c.scanFail.Inc() }
func (c *Collector) RecordSensitiveDetected() { c.sensitiveDetected.Inc() }
