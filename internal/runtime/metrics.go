package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage names used for duration observations.
const (
	StageSearch  = "search"
	StageList    = "list"
	StagePreview = "preview"
	StageAnalyze = "analyze"
)

// Metrics holds the pipeline counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	RecordsProcessed *prometheus.CounterVec
	PreviewFetches   *prometheus.CounterVec
	Analyses         *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
}

// NewMetrics registers the pipeline metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaksight_records_processed_total",
			Help: "Records processed by outcome status.",
		}, []string{"status"}),
		PreviewFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaksight_preview_fetch_total",
			Help: "Content fetches by serving endpoint (preview, view, none).",
		}, []string{"source"}),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaksight_ai_analysis_total",
			Help: "AI analyses by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leaksight_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		}, []string{"stage"}),
	}
	reg.MustRegister(m.RecordsProcessed, m.PreviewFetches, m.Analyses, m.StageDuration)
	return m
}

func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncRecord(status string) {
	if m == nil {
		return
	}
	m.RecordsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) IncPreview(source string) {
	if m == nil {
		return
	}
	m.PreviewFetches.WithLabelValues(source).Inc()
}

func (m *Metrics) IncAnalysis(outcome string) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(outcome).Inc()
}
