package pipeline

import (
	"errors"
	"log/slog"

	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/mohammad-safakhou/leaksight/internal/analyzer"
	"github.com/mohammad-safakhou/leaksight/internal/report"
	"github.com/mohammad-safakhou/leaksight/internal/runtime"
	"github.com/mohammad-safakhou/leaksight/provider"
	leak_search "github.com/mohammad-safakhou/leaksight/tools/leak_search"
)

// Build wires the IntelX searcher, the completion provider and the analyzer
// from cfg. A missing LLM key is not an error: the pipeline then runs with
// analysis disabled. tel may be nil.
func Build(cfg *config.Config, rep report.Reporter, tel *runtime.Telemetry, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}

	searcher, err := leak_search.NewLeakSearcher(leak_search.IntelXProvider, cfg, log)
	if err != nil {
		return nil, err
	}

	llm, err := provider.NewProvider(provider.OpenAI, cfg.LLM, log)
	switch {
	case errors.Is(err, provider.ErrNoAPIKey):
		log.Warn("LLM api key not set, AI analysis disabled")
		llm = nil
	case err != nil:
		return nil, err
	}

	deps := Deps{
		Searcher: searcher,
		Analyzer: analyzer.New(llm, cfg.Analysis, log),
		Reporter: rep,
		Log:      log,
	}
	if tel != nil {
		deps.Metrics = tel.Metrics
		deps.Tracer = tel.Tracer
	}

	limit := cfg.Run.Limit
	if limit < 0 {
		limit = DefaultLimit
	}
	return New(deps, Options{
		Limit:       limit,
		HTMLToText:  cfg.Preview.HTMLToText,
		PageBaseURL: cfg.IntelX.BaseURL,
	}), nil
}
