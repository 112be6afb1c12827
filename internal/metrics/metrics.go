// Package metrics is a small in-process counter registry backed by the
// OpenTelemetry metric SDK.  Counters are identified by name plus an optional
// label value and exported as a flat snapshot for the HTTP API through a
// manual reader.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const (
	meterName = "github.com/BrandonDHaskell/Portunus/accesscore"
	labelKey  = attribute.Key("label")
)

type Registry struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
}

func NewRegistry() *Registry {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return &Registry{
		reader:   reader,
		provider: provider,
		meter:    provider.Meter(meterName),
		counters: make(map[string]metric.Int64Counter),
	}
}

// Inc adds one to the counter name{label}.  A nil Registry is a no-op.
func (r *Registry) Inc(name, label string) {
	r.Add(name, label, 1)
}

// Add records a non-negative delta on name{label}.
func (r *Registry) Add(name, label string, delta int64) {
	if r == nil {
		return
	}
	c, err := r.counter(name)
	if err != nil {
		return
	}
	c.Add(context.Background(), delta, metric.WithAttributes(labelKey.String(label)))
}

func (r *Registry) counter(name string) (metric.Int64Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c, nil
	}
	c, err := r.meter.Int64Counter(name)
	if err != nil {
		return nil, err
	}
	r.counters[name] = c
	return c, nil
}

// Value returns the current value of name{label}, or 0 if it was never set.
func (r *Registry) Value(name, label string) int64 {
	return r.Snapshot()[name][label]
}

// Snapshot returns every counter as name -> label -> value.  Unlabelled
// counters use the empty label.
func (r *Registry) Snapshot() map[string]map[string]int64 {
	out := make(map[string]map[string]int64)
	if r == nil {
		return out
	}
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		return out
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				label := ""
				if v, ok := dp.Attributes.Value(labelKey); ok {
					label = v.AsString()
				}
				if out[m.Name] == nil {
					out[m.Name] = make(map[string]int64)
				}
				out[m.Name][label] += dp.Value
			}
		}
	}
	return out
}

// Total sums every label of a counter.
func (r *Registry) Total(name string) int64 {
	var sum int64
	for _, v := range r.Snapshot()[name] {
		sum += v
	}
	return sum
}

// Shutdown flushes and stops the underlying meter provider.  Later updates
// are dropped.
func (r *Registry) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}
