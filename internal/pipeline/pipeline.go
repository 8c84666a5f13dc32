package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/leaksight/internal/analyzer"
	"github.com/mohammad-safakhou/leaksight/internal/helpers"
	"github.com/mohammad-safakhou/leaksight/internal/report"
	"github.com/mohammad-safakhou/leaksight/internal/runtime"
	"github.com/mohammad-safakhou/leaksight/models"
	leak_search "github.com/mohammad-safakhou/leaksight/tools/leak_search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLimit is the number of records analyzed per run.
const DefaultLimit = 5

const snippetChars = 100

// Analyzer turns content into a Finding.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (*models.Finding, error)
}

// Deps are the collaborators of a pipeline run.
type Deps struct {
	Searcher leak_search.LeakSearcher
	Analyzer Analyzer
	Reporter report.Reporter
	Metrics  *runtime.Metrics
	Tracer   trace.Tracer
	Log      *slog.Logger
}

// Options tune a run.
type Options struct {
	// Limit caps the records analyzed; 0 analyzes every listed record.
	Limit int
	// HTMLToText converts HTML previews to text before analysis.
	HTMLToText bool
	// PageBaseURL is used as the document URL when parsing HTML previews.
	PageBaseURL string
}

// Pipeline runs search, listing and the per-record preview and analysis.
type Pipeline struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func New(deps Deps, opts Options) *Pipeline {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/mohammad-safakhou/leaksight/internal/pipeline")
	}
	return &Pipeline{deps: deps, opts: opts, now: time.Now}
}

// Run investigates target. A failed search aborts the run without error;
// the returned report has Aborted set. Per-record failures only skip the
// affected record.
func (p *Pipeline) Run(ctx context.Context, target string) (*models.RunReport, error) {
	run := &models.RunReport{
		RunID:     uuid.NewString(),
		Target:    target,
		Records:   []models.RecordReport{},
		StartedAt: p.now(),
	}
	log := p.deps.Log.With("run_id", run.RunID)
	rep := p.deps.Reporter

	ctx, span := p.deps.Tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("run.id", run.RunID)))
	defer span.End()

	log.Info("run started", "target", target)
	rep.Start(target)

	t0 := p.now()
	searchID, err := p.deps.Searcher.Search(ctx, target)
	p.deps.Metrics.ObserveStage(runtime.StageSearch, t0)
	if err != nil {
		log.Error("search failed", "err", err)
		rep.SearchFailed(err)
		run.Aborted = true
		run.FinishedAt = p.now()
		return run, rep.Finish(run)
	}
	run.SearchID = searchID

	t0 = p.now()
	records := p.deps.Searcher.Results(ctx, searchID)
	p.deps.Metrics.ObserveStage(runtime.StageList, t0)
	run.Found = len(records)
	log.Info("records listed", "search_id", searchID, "found", len(records))
	rep.Found(len(records))

	n := len(records)
	if p.opts.Limit > 0 && p.opts.Limit < n {
		n = p.opts.Limit
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			log.Warn("run interrupted", "processed", i, "err", err)
			break
		}
		run.Records = append(run.Records, p.processRecord(ctx, log, i+1, records[i]))
	}

	run.FinishedAt = p.now()
	log.Info("run finished", "processed", len(run.Records), "duration", run.FinishedAt.Sub(run.StartedAt))
	return run, rep.Finish(run)
}

func (p *Pipeline) processRecord(ctx context.Context, log *slog.Logger, index int, rec models.Record) models.RecordReport {
	ctx, span := p.deps.Tracer.Start(ctx, "pipeline.record", trace.WithAttributes(
		attribute.Int("record.index", index),
		attribute.String("record.bucket", rec.Bucket),
	))
	defer span.End()

	log = log.With("index", index, "name", rec.DisplayName())
	out := models.RecordReport{Index: index, Record: rec}
	rep := p.deps.Reporter
	rep.RecordStarted(index, rec)

	t0 := p.now()
	preview, ok := p.deps.Searcher.Preview(ctx, rec)
	p.deps.Metrics.ObserveStage(runtime.StagePreview, t0)
	if !ok {
		p.deps.Metrics.IncPreview("none")
	} else {
		p.deps.Metrics.IncPreview(preview.Source)
	}

	content := preview.Content
	if ok && p.opts.HTMLToText {
		content = helpers.HTMLToText(content, p.pageURL(rec))
	}
	if !ok || content == "" {
		log.Warn("content unavailable or empty")
		rep.PreviewMissing(index)
		out.Status = models.RecordSkipped
		out.Warning = "content unavailable or empty"
		p.deps.Metrics.IncRecord(string(out.Status))
		return out
	}
	out.PreviewSource = preview.Source
	out.Snippet = helpers.Truncate(content, snippetChars)
	rep.PreviewFetched(index, out.Snippet, preview.Source)

	rep.AnalysisStarted(index)
	t0 = p.now()
	finding, err := p.deps.Analyzer.Analyze(ctx, content)
	p.deps.Metrics.ObserveStage(runtime.StageAnalyze, t0)
	p.deps.Metrics.IncAnalysis(analysisOutcome(finding, err))
	if finding == nil {
		if errors.Is(err, analyzer.ErrAIDisabled) {
			log.Debug("ai analysis skipped", "err", err)
		} else {
			log.Warn("ai returned no structured analysis", "err", err)
		}
		out.Status = models.RecordPreviewOnly
		out.Warning = "ai returned no structured analysis"
		if err != nil {
			out.Warning += ": " + err.Error()
		}
	} else {
		out.Status = models.RecordAnalyzed
		out.Finding = finding
		span.SetAttributes(attribute.String("finding.risk_level", finding.RiskLevel), attribute.Int("finding.credentials", len(finding.Credentials)))
	}
	rep.AnalysisDone(index, finding, err)
	p.deps.Metrics.IncRecord(string(out.Status))
	return out
}

func (p *Pipeline) pageURL(rec models.Record) string {
	q := url.Values{}
	q.Set("did", rec.DocID)
	return p.opts.PageBaseURL + "/file/view?" + q.Encode()
}

func analysisOutcome(f *models.Finding, err error) string {
	switch {
	case f != nil:
		return "ok"
	case errors.Is(err, analyzer.ErrAIDisabled):
		return "disabled"
	case errors.Is(err, analyzer.ErrNoJSON):
		return "no_json"
	case errors.Is(err, analyzer.ErrInvalidFinding):
		return "invalid"
	default:
		return "error"
	}
}
