package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetupTelemetry_DisabledWritesMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaksight.prom")
	tel, err := SetupTelemetry(context.Background(), config.TelemetryConfig{MetricsFile: path}, TelemetryOptions{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if tel.Tracer == nil || tel.Metrics == nil {
		t.Fatalf("expected tracer and metrics")
	}

	tel.Metrics.IncRecord("analyzed")
	tel.Metrics.IncPreview("view")
	tel.Metrics.ObserveStage(StageSearch, time.Now())

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	out := string(b)
	for _, want := range []string{
		`leaksight_records_processed_total{status="analyzed"} 1`,
		`leaksight_preview_fetch_total{source="view"} 1`,
		`leaksight_stage_duration_seconds_count{stage="search"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics file:\n%s", want, out)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncRecord("skipped")
	m.IncPreview("none")
	m.IncAnalysis("ok")
	m.ObserveStage(StageList, time.Now())
}

func TestMetrics_Counts(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.IncAnalysis("ok")
	m.IncAnalysis("ok")
	m.IncAnalysis("disabled")
	if got := testutil.ToFloat64(m.Analyses.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}

func TestShutdown_Nil(t *testing.T) {
	var tel *Telemetry
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
