package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/mohammad-safakhou/leaksight/internal/helpers"
	"github.com/mohammad-safakhou/leaksight/models"
	"gopkg.in/yaml.v3"
)

// Reporter receives pipeline events as they happen and the full run at the end.
type Reporter interface {
	Start(target string)
	SearchFailed(err error)
	Found(n int)
	RecordStarted(index int, rec models.Record)
	PreviewMissing(index int)
	PreviewFetched(index int, snippet, source string)
	AnalysisStarted(index int)
	AnalysisDone(index int, finding *models.Finding, err error)
	Finish(run *models.RunReport) error
}

// New returns the reporter for format. Structured formats print only the
// final report.
func New(format string, w io.Writer, color bool) (Reporter, error) {
	switch format {
	case config.OutputText, "":
		return NewText(w, color), nil
	case config.OutputJSON:
		return &structured{w: w, encode: encodeJSON}, nil
	case config.OutputYAML:
		return &structured{w: w, encode: encodeYAML}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

const (
	cyan   = "\033[96m"
	green  = "\033[92m"
	red    = "\033[91m"
	yellow = "\033[93m"
	reset  = "\033[0m"
)

// Text prints a human readable, optionally colored, account of the run.
type Text struct {
	w     io.Writer
	color bool
}

func NewText(w io.Writer, color bool) *Text { return &Text{w: w, color: color} }

func (t *Text) paint(c, s string) string {
	if !t.color {
		return s
	}
	return c + s + reset
}

func (t *Text) line(kind, msg string) {
	var prefix string
	switch kind {
	case "success":
		prefix = "[" + t.paint(green, "+") + "]"
	case "error":
		prefix = "[" + t.paint(red, "-") + "]"
	case "warn":
		prefix = "[" + t.paint(yellow, "!") + "]"
	default:
		prefix = "[" + t.paint(cyan, "*") + "]"
	}
	fmt.Fprintf(t.w, "%s %s\n", prefix, msg)
}

// Banner prints the tool header.
func (t *Text) Banner(version string) {
	fmt.Fprintln(t.w, t.paint(cyan, "=== leaksight "+version+" ==="))
}

func (t *Text) Start(target string) {
	t.line("info", fmt.Sprintf("Searching leaks for: %s...", target))
}

func (t *Text) SearchFailed(err error) {
	t.line("error", "No results found or search error.")
}

func (t *Text) Found(n int) {
	t.line("success", fmt.Sprintf("Found %d records. Analyzing the most relevant...", n))
}

func (t *Text) RecordStarted(index int, rec models.Record) {
	fmt.Fprintf(t.w, "\n%s\n", strings.Repeat("-", 60))
	t.line("info", fmt.Sprintf("Analyzing file [%d]: %s (%s)", index, rec.DisplayName(), rec.DisplayDate()))
}

func (t *Text) PreviewMissing(index int) {
	t.line("warn", "Content unavailable or empty.")
}

func (t *Text) PreviewFetched(index int, snippet, source string) {
	fmt.Fprintln(t.w, t.paint(yellow, fmt.Sprintf("Raw preview (first 100 chars): %s...", helpers.StripControl(snippet))))
}

func (t *Text) AnalysisStarted(index int) {
	t.line("info", "Sending for AI analysis...")
}

func (t *Text) AnalysisDone(index int, f *models.Finding, err error) {
	if f == nil {
		t.line("warn", "AI returned no structured analysis.")
		return
	}
	risk := f.RiskLevel
	if risk == "" {
		risk = "Unknown"
	}
	riskColor := yellow
	if risk == "High" {
		riskColor = red
	}
	fmt.Fprintf(t.w, "    Risk: %s\n", t.paint(riskColor, risk))
	fmt.Fprintf(t.w, "    Summary: %s\n", helpers.StripControl(f.Summary))
	if len(f.Credentials) > 0 {
		fmt.Fprintf(t.w, "    Credentials identified (%d):\n", len(f.Credentials))
		for _, c := range f.Credentials {
			fmt.Fprintf(t.w, "       - %s:%s\n", helpers.StripControl(c.Email), helpers.StripControl(c.Secret()))
		}
	}
}

func (t *Text) Finish(run *models.RunReport) error { return nil }

type structured struct {
	w      io.Writer
	encode func(io.Writer, *models.RunReport) error
}

func (s *structured) Start(string) {}
func (s *structured) SearchFailed(error) {}
func (s *structured) Found(int) {}
func (s *structured) RecordStarted(int, models.Record) {}
func (s *structured) PreviewMissing(int) {}
func (s *structured) PreviewFetched(int, string, string) {}
func (s *structured) AnalysisStarted(int) {}
func (s *structured) AnalysisDone(int, *models.Finding, error) {}
func (s *structured) Finish(run *models.RunReport) error { return s.encode(s.w, run) }

func encodeJSON(w io.Writer, run *models.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func encodeYAML(w io.Writer, run *models.RunReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
