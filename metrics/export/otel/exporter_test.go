package otel

import (
	"context"
	"sync"
	"testing"

	goGate "github.com/MrEthical07/goGate"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goGate.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goGate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goGate.MetricsSnapshot{
		Counters:   make(map[goGate.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goGate.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// sumValue finds a collected Int64 sum or gauge by name.
func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) (int64, bool) {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: goGate.MetricsSnapshot{
			Counters: map[goGate.MetricID]uint64{
				goGate.MetricLoginSuccess:  3,
				goGate.MetricGateForbidden: 4,
			},
			Histograms: map[goGate.MetricID][]uint64{
				goGate.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := New(provider.Meter("gogate-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	for name, want := range map[string]int64{
		"gogate_login_success_total":                  3,
		"gogate_gate_forbidden_total":                 4,
		"gogate_audit_dropped_total":                  1,
		"gogate_login_latency_seconds_count":          8,
		"gogate_login_latency_seconds_bucket_le_0_01": 2,
	} {
		got, ok := sumValue(t, rm, name)
		if !ok {
			t.Fatalf("%s not collected", name)
		}
		if got != want {
			t.Fatalf("%s = %d, want %d", name, got, want)
		}
	}
	if _, ok := sumValue(t, rm, "gogate_gate_latency_seconds_count"); ok {
		t.Fatal("histograms absent from the snapshot must not be observed")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()

	if _, err := New(provider.Meter("gogate-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: goGate.MetricsSnapshot{
			Counters: map[goGate.MetricID]uint64{
				goGate.MetricGateAllowed: 1,
			},
			Histograms: map[goGate.MetricID][]uint64{
				goGate.MetricGateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := New(provider.Meter("gogate-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goGate.MetricGateAllowed] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
