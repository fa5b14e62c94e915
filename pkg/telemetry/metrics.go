// Package telemetry holds the prometheus metrics and OpenTelemetry tracing
// shared by the tool registry and the REST facade.
package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/germanamz/finassist/pkg/tools/toolbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/germanamz/finassist"

// Metrics owns a private registry so several instances can coexist in one
// process (tests construct one each).
type Metrics struct {
	registry *prometheus.Registry

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics creates the finassist collectors plus the Go runtime and process
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finassist_tool_calls_total",
				Help: "Tool handler invocations by outcome.",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finassist_tool_call_duration_seconds",
				Help:    "Tool handler latency.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finassist_http_requests_total",
				Help: "REST requests by route and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finassist_http_request_duration_seconds",
				Help:    "REST request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished REST request.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ToolMiddleware counts and times every tool handler invocation and wraps it
// in a span named "tool <name>".
func (m *Metrics) ToolMiddleware() toolbox.Middleware {
	tracer := otel.Tracer(tracerName)

	return func(name string, next toolbox.Handler) toolbox.Handler {
		return func(ctx context.Context, args map[string]any) (any, error) {
			ctx, span := tracer.Start(ctx, "tool "+name,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attribute.String("tool.name", name)),
			)
			defer span.End()

			start := time.Now()
			out, err := next(ctx, args)
			m.toolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

			status := "ok"
			if err != nil {
				status = "error"
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			m.toolCalls.WithLabelValues(name, status).Inc()

			return out, err
		}
	}
}
