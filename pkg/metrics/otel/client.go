// Package otel implements metrics.Client on the OpenTelemetry SDK with a
// Prometheus pull exporter.
package otel

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/architeacher/diagnostics/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Descriptors documents the well-known instruments. Unknown keys are created on first use.
var Descriptors = map[string]metrics.Descriptor{
	"diagnostics.runs.started":       {Description: "Health check runs accepted", Unit: "{run}"},
	"diagnostics.runs.completed":     {Description: "Health check runs that reached completed", Unit: "{run}"},
	"diagnostics.runs.failed":        {Description: "Health check runs that reached failed", Unit: "{run}"},
	"diagnostics.probes.executed":    {Description: "Probe executions by outcome status", Unit: "{probe}"},
	"diagnostics.probes.escaped":     {Description: "Probe executions that aborted the run", Unit: "{probe}"},
	"diagnostics.probes.duration_ms": {Description: "Probe execution time", Unit: "ms"},
}

type (
	Config struct {
		ServiceName    string
		ServiceVersion string
	}

	Client struct {
		provider *sdkmetric.MeterProvider
		meter    metric.Meter
		handler  http.Handler

		mu               sync.Mutex
		intCounters      map[string]metric.Int64Counter
		floatCounters    map[string]metric.Float64Counter
		histograms       map[string]metric.Float64Histogram
		registrationErrs map[string]error
	}
)

var _ metrics.Client = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	return &Client{
		provider:         provider,
		meter:            provider.Meter(cfg.ServiceName),
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		intCounters:      make(map[string]metric.Int64Counter),
		floatCounters:    make(map[string]metric.Float64Counter),
		histograms:       make(map[string]metric.Float64Histogram),
		registrationErrs: make(map[string]error),
	}, nil
}

// Inc records value under key. Unsupported value types are ignored.
func (c *Client) Inc(ctx context.Context, key string, value any, attributes ...attribute.KeyValue) {
	opt := metric.WithAttributes(attributes...)

	if metrics.IsHistogramKey(key) {
		v, ok := toFloat(value)
		if !ok {
			return
		}

		if h := c.histogram(key); h != nil {
			h.Record(ctx, v, opt)
		}

		return
	}

	switch v := value.(type) {
	case int:
		if counter := c.intCounter(key); counter != nil {
			counter.Add(ctx, int64(v), opt)
		}
	case int64:
		if counter := c.intCounter(key); counter != nil {
			counter.Add(ctx, v, opt)
		}
	case float64:
		if counter := c.floatCounter(key); counter != nil {
			counter.Add(ctx, v, opt)
		}
	}
}

func (c *Client) Handler() http.Handler {
	return c.handler
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}

func (c *Client) intCounter(key string) metric.Int64Counter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.intCounters[key]; ok {
		return counter
	}

	if _, failed := c.registrationErrs[key]; failed {
		return nil
	}

	counter, err := metrics.RegisterInt64Counter(c.meter, Descriptors[key], key)
	if err != nil {
		c.registrationErrs[key] = err

		return nil
	}

	c.intCounters[key] = counter

	return counter
}

func (c *Client) floatCounter(key string) metric.Float64Counter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.floatCounters[key]; ok {
		return counter
	}

	if _, failed := c.registrationErrs[key]; failed {
		return nil
	}

	counter, err := metrics.RegisterFloat64Counter(c.meter, Descriptors[key], key)
	if err != nil {
		c.registrationErrs[key] = err

		return nil
	}

	c.floatCounters[key] = counter

	return counter
}

func (c *Client) histogram(key string) metric.Float64Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.histograms[key]; ok {
		return h
	}

	if _, failed := c.registrationErrs[key]; failed {
		return nil
	}

	h, err := metrics.RegisterFloat64Histogram(c.meter, Descriptors[key], key)
	if err != nil {
		c.registrationErrs[key] = err

		return nil
	}

	c.histograms[key] = h

	return h
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
