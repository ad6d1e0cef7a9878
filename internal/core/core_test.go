package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus "github.com/prometheus/client_model/go"

	"github.com/connexus-ai/ragbox-backend/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.DataDir = t.TempDir()
	cfg.EmbeddingDim = 8
	cfg.UseStubEmbedder = true
	return cfg
}

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

func TestNew_DefaultsToFileBackedInProcessBackends(t *testing.T) {
	cc, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cc.Close()

	if cc.Index == nil || cc.Dedup == nil || cc.Limiter == nil || cc.ResultCache == nil {
		t.Fatal("New() left a required component nil")
	}
	if cc.Orchestrator == nil {
		t.Fatal("New() did not wire an orchestrator")
	}
	if _, ok := cc.Embedder.(interface{ Dimension() int }); !ok {
		t.Fatal("embedder does not expose Dimension()")
	}
}

func TestNew_DefaultsClockWhenNil(t *testing.T) {
	cc, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cc.Close()

	if cc.Clock == nil {
		t.Fatal("New() left Clock nil, want a default systemClock")
	}
	if cc.Clock.Now().IsZero() {
		t.Error("systemClock.Now() returned zero time")
	}
}

func TestContext_SaveThenBackup(t *testing.T) {
	clock := fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cc, err := New(context.Background(), testConfig(t), clock)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cc.Close()

	if err := cc.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	dir, err := cc.Backup(context.Background())
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if dir == "" {
		t.Error("Backup() returned empty directory")
	}
}

func TestNew_WiresMetricsIntoBreakerAndIndex(t *testing.T) {
	cfg := testConfig(t)
	cc, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cc.Close()

	if cc.Metrics == nil {
		t.Fatal("New() left Metrics nil")
	}

	for i := 0; i < cfg.CircuitOpenAt; i++ {
		cc.Breaker.RecordFailure("arxiv")
	}
	gauge, err := cc.Metrics.CircuitState.GetMetricWithLabelValues("arxiv")
	if err != nil {
		t.Fatal(err)
	}
	var metric io_prometheus.Metric
	gauge.(prometheus.Metric).Write(&metric)
	if got := metric.GetGauge().GetValue(); got == 0 {
		t.Error("circuit_state[arxiv] = 0, want nonzero: New() should wire the breaker's recorder to Metrics")
	}

	var sizeMetric io_prometheus.Metric
	cc.Metrics.IndexSize.(prometheus.Metric).Write(&sizeMetric)
	if got := sizeMetric.GetGauge().GetValue(); got != 0 {
		t.Errorf("vector_index_size = %f, want 0 on a freshly loaded empty index", got)
	}
}

func TestContext_AdminOperationsDoNotError(t *testing.T) {
	cc, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cc.Close()

	cc.ClearIndex()
	cc.ResetLimits()
	cc.ClearResultCache()

	if _, err := cc.RemoveDuplicates(); err != nil {
		t.Errorf("RemoveDuplicates() error = %v", err)
	}
	if _, err := cc.DeduplicationStats(context.Background()); err != nil {
		t.Errorf("DeduplicationStats() error = %v", err)
	}
}
