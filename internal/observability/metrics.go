package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/astrometry-normalizer/core"
	"github.com/signalsfoundry/astrometry-normalizer/model"
)

// NormalizerCollector bundles Prometheus metrics for normalization runs, the
// RPC surface and the dataset store.
type NormalizerCollector struct {
	gatherer prometheus.Gatherer

	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	InputRows   prometheus.Counter
	OutputRows  *prometheus.CounterVec
	DroppedRows prometheus.Counter

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	DatasetsStored prometheus.Gauge
}

// NewNormalizerCollector registers normalizer metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewNormalizerCollector(reg prometheus.Registerer) (*NormalizerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "normalizer_runs_total",
		Help: "Normalization passes, labeled by result (ok or error).",
	}, []string{"result"}), "normalizer_runs_total")
	if err != nil {
		return nil, err
	}

	runDuration, err := registerCollector(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "normalizer_run_duration_seconds",
		Help:    "Wall time of a normalization pass in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"result"}), "normalizer_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	inputRows, err := registerCollector(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "normalizer_input_rows_total",
		Help: "Observation rows read by the normalizer.",
	}), "normalizer_input_rows_total")
	if err != nil {
		return nil, err
	}

	outputRows, err := registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "normalizer_output_rows_total",
		Help: "Canonical rows emitted, labeled by quant_type.",
	}, []string{"quant_type"}), "normalizer_output_rows_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCollector(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "normalizer_dropped_rows_total",
		Help: "Observation rows that carried no complete measurement set.",
	}), "normalizer_dropped_rows_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "normalizer_rpc_requests_total",
		Help: "Total number of handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "normalizer_rpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerCollector(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "normalizer_rpc_duration_seconds",
		Help:    "RPC latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service", "method"}), "normalizer_rpc_duration_seconds")
	if err != nil {
		return nil, err
	}

	datasets, err := registerCollector(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "normalizer_datasets_stored",
		Help: "Current number of normalized datasets held in memory.",
	}), "normalizer_datasets_stored")
	if err != nil {
		return nil, err
	}

	return &NormalizerCollector{
		gatherer:       gatherer,
		Runs:           runs,
		RunDuration:    runDuration,
		InputRows:      inputRows,
		OutputRows:     outputRows,
		DroppedRows:    dropped,
		RPCRequests:    requests,
		RPCDurations:   durations,
		DatasetsStored: datasets,
	}, nil
}

// ObserveNormalization satisfies core.MetricsRecorder.
func (c *NormalizerCollector) ObserveNormalization(result string, stats core.Stats, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(result).Inc()
	c.RunDuration.WithLabelValues(result).Observe(elapsed.Seconds())
	c.InputRows.Add(float64(stats.InputRows))
	if result != "ok" {
		return
	}
	c.DroppedRows.Add(float64(stats.DroppedRows))
	for _, q := range model.QuantTypes() {
		c.OutputRows.WithLabelValues(q.String()).Add(float64(stats.ByType[q]))
	}
}

// SetDatasetCount updates the stored dataset gauge.
func (c *NormalizerCollector) SetDatasetCount(n int) {
	if c == nil || c.DatasetsStored == nil {
		return
	}
	c.DatasetsStored.Set(float64(n))
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *NormalizerCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *NormalizerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *NormalizerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// registerCollector registers c, returning the already-registered collector
// when an identical one exists so collectors survive repeated construction.
func registerCollector[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var zero T
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return c, nil
}
