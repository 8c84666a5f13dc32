package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/mohammad-safakhou/leaksight/internal/analyzer"
	"github.com/mohammad-safakhou/leaksight/internal/report"
	"github.com/mohammad-safakhou/leaksight/internal/runtime"
	"github.com/mohammad-safakhou/leaksight/models"
	searchmodels "github.com/mohammad-safakhou/leaksight/tools/leak_search/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	searchErr   error
	records     []models.Record
	previews    map[string]searchmodels.Preview
	previewed   []string
	resultCalls int
}

func (f *fakeSearcher) Search(context.Context, string) (string, error) {
	if f.searchErr != nil {
		return "", f.searchErr
	}
	return "abc123", nil
}

func (f *fakeSearcher) Results(context.Context, string) []models.Record {
	f.resultCalls++
	return f.records
}

func (f *fakeSearcher) Preview(_ context.Context, rec models.Record) (searchmodels.Preview, bool) {
	f.previewed = append(f.previewed, rec.DocID)
	p, ok := f.previews[rec.DocID]
	return p, ok
}

type fakeAnalyzer struct {
	finding *models.Finding
	err     error
	seen    []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, content string) (*models.Finding, error) {
	f.seen = append(f.seen, content)
	return f.finding, f.err
}

func records(n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		out[i] = models.Record{Name: fmt.Sprintf("file-%d.txt", i+1), Date: "2024-05-01", DocID: fmt.Sprintf("d%d", i+1)}
	}
	return out
}

func previewsFor(recs []models.Record) map[string]searchmodels.Preview {
	out := map[string]searchmodels.Preview{}
	for _, r := range recs {
		out[r.DocID] = searchmodels.Preview{Content: "content of " + r.DocID + " user@example.com:pw", Source: searchmodels.SourcePreview}
	}
	return out
}

func TestRun_SearchFailureAborts(t *testing.T) {
	s := &fakeSearcher{searchErr: errors.New("status 401"), records: records(3)}
	var buf bytes.Buffer
	p := New(Deps{Searcher: s, Analyzer: &fakeAnalyzer{}, Reporter: report.NewText(&buf, false)}, Options{Limit: DefaultLimit})

	run, err := p.Run(context.Background(), "example.com")
	require.NoError(t, err)
	assert.True(t, run.Aborted)
	assert.Empty(t, run.Records)
	assert.Equal(t, 0, s.resultCalls)
	assert.Empty(t, s.previewed)
	assert.Contains(t, buf.String(), "No results found or search error.")
	assert.NotContains(t, buf.String(), "Analyzing file")
}

func TestRun_ProcessesAtMostLimitInOrder(t *testing.T) {
	for _, n := range []int{0, 1, 5, 7, 20} {
		t.Run(fmt.Sprintf("%d records", n), func(t *testing.T) {
			recs := records(n)
			s := &fakeSearcher{records: recs, previews: previewsFor(recs)}
			a := &fakeAnalyzer{finding: &models.Finding{RiskLevel: "Low"}}
			p := New(Deps{Searcher: s, Analyzer: a, Reporter: report.NewText(&bytes.Buffer{}, false)}, Options{Limit: DefaultLimit})

			run, err := p.Run(context.Background(), "example.com")
			require.NoError(t, err)

			want := min(n, 5)
			assert.Equal(t, n, run.Found)
			require.Len(t, run.Records, want)
			require.Len(t, s.previewed, want)
			for i := 0; i < want; i++ {
				assert.Equal(t, i+1, run.Records[i].Index)
				assert.Equal(t, recs[i].DocID, s.previewed[i])
				assert.Equal(t, models.RecordAnalyzed, run.Records[i].Status)
			}
		})
	}
}

func TestRun_ZeroLimitProcessesAll(t *testing.T) {
	recs := records(7)
	s := &fakeSearcher{records: recs, previews: previewsFor(recs)}
	p := New(Deps{Searcher: s, Analyzer: &fakeAnalyzer{}, Reporter: report.NewText(&bytes.Buffer{}, false)}, Options{})

	run, err := p.Run(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Len(t, run.Records, 7)
}

func TestRun_MissingPreviewSkipsRecordOnly(t *testing.T) {
	recs := records(3)
	previews := previewsFor(recs)
	delete(previews, "d2")
	previews["d3"] = searchmodels.Preview{Content: "", Source: searchmodels.SourceView}
	s := &fakeSearcher{records: recs, previews: previews}
	a := &fakeAnalyzer{finding: &models.Finding{RiskLevel: "Medium"}}

	var buf bytes.Buffer
	p := New(Deps{Searcher: s, Analyzer: a, Reporter: report.NewText(&buf, false)}, Options{Limit: DefaultLimit})
	run, err := p.Run(context.Background(), "example.com")
	require.NoError(t, err)

	require.Len(t, run.Records, 3)
	assert.Equal(t, models.RecordAnalyzed, run.Records[0].Status)
	assert.Equal(t, models.RecordSkipped, run.Records[1].Status)
	assert.Equal(t, models.RecordSkipped, run.Records[2].Status)
	assert.Len(t, a.seen, 1)
	assert.Equal(t, 2, strings.Count(buf.String(), "Content unavailable or empty."))
}

func TestRun_AIDisabledShowsPreviewOnly(t *testing.T) {
	recs := records(3)
	s := &fakeSearcher{records: recs, previews: previewsFor(recs)}

	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	metrics := runtime.NewMetrics(reg)
	p := New(Deps{
		Searcher: s,
		Analyzer: analyzer.New(nil, config.AnalysisConfig{MaxChars: 3000, JSONExtraction: config.ExtractGreedy}, nil),
		Reporter: report.NewText(&buf, false),
		Metrics:  metrics,
	}, Options{Limit: DefaultLimit})

	run, err := p.Run(context.Background(), "example.com")
	require.NoError(t, err)

	for _, r := range run.Records {
		assert.Equal(t, models.RecordPreviewOnly, r.Status)
		assert.Nil(t, r.Finding)
		assert.NotEmpty(t, r.Snippet)
	}
	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "Raw preview (first 100 chars):"))
	assert.Equal(t, 3, strings.Count(out, "AI returned no structured analysis."))
	assert.NotContains(t, out, "Risk:")
	assert.NotContains(t, out, "Summary:")
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.Analyses.WithLabelValues("disabled")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.RecordsProcessed.WithLabelValues("preview_only")))
}

func TestRun_PrintsFinding(t *testing.T) {
	recs := records(1)
	long := strings.Repeat("x", 150)
	s := &fakeSearcher{records: recs, previews: map[string]searchmodels.Preview{"d1": {Content: long, Source: searchmodels.SourcePreview}}}
	a := &fakeAnalyzer{finding: &models.Finding{
		RiskLevel: "High",
		Summary:   "Combo list",
		Credentials: []models.Credential{
			{Email: "a@example.com", Password: "hunter2"},
			{Email: "b@example.com", HashType: "md5"},
		},
	}}

	var buf bytes.Buffer
	p := New(Deps{Searcher: s, Analyzer: a, Reporter: report.NewText(&buf, false)}, Options{Limit: DefaultLimit})
	run, err := p.Run(context.Background(), "example.com")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Analyzing file [1]: file-1.txt (2024-05-01)")
	assert.Contains(t, out, "Raw preview (first 100 chars): "+strings.Repeat("x", 100)+"...\n")
	assert.Contains(t, out, "Risk: High")
	assert.Contains(t, out, "Summary: Combo list")
	assert.Contains(t, out, "- a@example.com:hunter2")
	assert.Contains(t, out, "- b@example.com:md5")
	assert.Equal(t, strings.Repeat("x", 100), run.Records[0].Snippet)
	assert.Equal(t, long, a.seen[0])
}

func TestRun_HTMLToText(t *testing.T) {
	recs := records(1)
	html := `<html><body><div><p>admin@example.com:Winter2024!</p></div></body></html>`
	s := &fakeSearcher{records: recs, previews: map[string]searchmodels.Preview{"d1": {Content: html, Source: searchmodels.SourceView}}}
	a := &fakeAnalyzer{}

	p := New(Deps{Searcher: s, Analyzer: a, Reporter: report.NewText(&bytes.Buffer{}, false)}, Options{Limit: 5, HTMLToText: true, PageBaseURL: "https://2.intelx.io"})
	_, err := p.Run(context.Background(), "example.com")
	require.NoError(t, err)
	require.Len(t, a.seen, 1)
	assert.Contains(t, a.seen[0], "admin@example.com:Winter2024!")
	assert.NotContains(t, a.seen[0], "<p>")
}

func TestRun_HTMLWithoutTextIsSkipped(t *testing.T) {
	recs := records(1)
	html := `<html><body><div></div></body></html>`
	s := &fakeSearcher{records: recs, previews: map[string]searchmodels.Preview{"d1": {Content: html, Source: searchmodels.SourceView}}}
	a := &fakeAnalyzer{}

	var buf bytes.Buffer
	p := New(Deps{Searcher: s, Analyzer: a, Reporter: report.NewText(&buf, false)}, Options{Limit: 5, HTMLToText: true, PageBaseURL: "https://2.intelx.io"})
	run, err := p.Run(context.Background(), "example.com")
	require.NoError(t, err)
	require.Len(t, run.Records, 1)
	assert.Equal(t, models.RecordSkipped, run.Records[0].Status)
	assert.Empty(t, a.seen)
	assert.Contains(t, buf.String(), "Content unavailable or empty.")
}

func TestRun_CancelledContextStopsLoop(t *testing.T) {
	recs := records(5)
	s := &fakeSearcher{records: recs, previews: previewsFor(recs)}
	ctx, cancel := context.WithCancel(context.Background())
	a := &cancelingAnalyzer{cancel: cancel}

	p := New(Deps{Searcher: s, Analyzer: a, Reporter: report.NewText(&bytes.Buffer{}, false)}, Options{Limit: 5})
	run, err := p.Run(ctx, "example.com")
	require.NoError(t, err)
	assert.Len(t, run.Records, 1)
}

type cancelingAnalyzer struct{ cancel context.CancelFunc }

func (c *cancelingAnalyzer) Analyze(context.Context, string) (*models.Finding, error) {
	c.cancel()
	return nil, errors.New("interrupted")
}

// End-to-end run against fake upstreams: two records whose previews are 50
// and 5 characters long; only the second one needs the view endpoint.
func TestRun_ExampleScenario(t *testing.T) {
	viewCalls := map[string]int{}
	ix := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/intelligent/search":
			_, _ = w.Write([]byte(`{"id":"abc123","status":0}`))
		case "/intelligent/search/result":
			assert.Equal(t, "abc123", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{"records":[
				{"name":"first.txt","date":"2024-01-01","did":"d1","storageid":"s1","bucket":"leaks.public.general"},
				{"name":"second.txt","date":"2024-01-02","did":"d2","storageid":"s2","bucket":"leaks.private.general"}
			]}`))
		case "/file/preview":
			if r.URL.Query().Get("did") == "d1" {
				_, _ = w.Write([]byte(strings.Repeat("p", 50)))
				return
			}
			_, _ = w.Write([]byte("short"))
		case "/file/view":
			viewCalls[r.URL.Query().Get("storageid")]++
			_, _ = w.Write([]byte("full view document for s2"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ix.Close()

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Analysis:\n{\"risk_level\":\"Low\",\"summary\":\"test\",\"credentials\":[]}\nDone."}}]}`))
	}))
	defer llm.Close()

	cfg := &config.Config{
		IntelX: config.IntelXConfig{
			APIKey: "ix", BaseURL: ix.URL, Buckets: []string{"leaks.public.general"}, MaxResults: 20, Sort: 4,
			SearchTimeout: 5 * time.Second, RequestTimeout: 2 * time.Second, ListTimeout: 2 * time.Second,
		},
		Preview:  config.PreviewConfig{MinLength: 10, Timeout: 2 * time.Second, ViewTimeout: 2 * time.Second},
		LLM:      config.LLMConfig{APIKey: "sk", BaseURL: llm.URL, Model: "m", Temperature: 0.2, Timeout: 2 * time.Second},
		Analysis: config.AnalysisConfig{MaxChars: 3000, JSONExtraction: config.ExtractGreedy},
	}

	rep, err := report.New(config.OutputText, &bytes.Buffer{}, false)
	require.NoError(t, err)
	p, err := Build(cfg, rep, nil, nil)
	require.NoError(t, err)

	run, err := p.Run(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "abc123", run.SearchID)
	require.Len(t, run.Records, 2)

	assert.Equal(t, searchmodels.SourcePreview, run.Records[0].PreviewSource)
	assert.Equal(t, strings.Repeat("p", 50), run.Records[0].Snippet)
	assert.Equal(t, searchmodels.SourceView, run.Records[1].PreviewSource)
	assert.Equal(t, "full view document for s2", run.Records[1].Snippet)
	assert.Equal(t, map[string]int{"s2": 1}, viewCalls)

	for _, r := range run.Records {
		require.NotNil(t, r.Finding)
		assert.Equal(t, "Low", r.Finding.RiskLevel)
	}
}
