package intelx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/mohammad-safakhou/leaksight/internal/helpers"
	"github.com/mohammad-safakhou/leaksight/models"
	searchmodels "github.com/mohammad-safakhou/leaksight/tools/leak_search/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	searchPath  = "/intelligent/search"
	resultPath  = "/intelligent/search/result"
	previewPath = "/file/preview"
	viewPath    = "/file/view"

	maxBodyBytes = 16 << 20
)

// ErrSearchFailed is returned when the search endpoint does not yield a session id.
var ErrSearchFailed = errors.New("intelx search failed")

var tracer = otel.Tracer("github.com/mohammad-safakhou/leaksight/tools/leak_search/intelx")

// Client talks to the Intelligence X API.
type Client struct {
	apiKey     string
	baseURL    string
	userAgent  string
	buckets    []string
	maxResults int
	sort       int
	// upstream search budget in seconds, sent with the search request
	searchTimeout int
	minPreviewLen int

	searchHTTP  *http.Client
	listHTTP    *http.Client
	previewHTTP *http.Client
	viewHTTP    *http.Client

	log *slog.Logger
}

// New creates a client from the search and preview settings.
func New(cfg config.IntelXConfig, preview config.PreviewConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       cfg.BaseURL,
		userAgent:     cfg.UserAgent,
		buckets:       cfg.Buckets,
		maxResults:    cfg.MaxResults,
		sort:          cfg.Sort,
		searchTimeout: int(cfg.SearchTimeout / time.Second),
		minPreviewLen: preview.MinLength,
		searchHTTP:    &http.Client{Timeout: cfg.RequestTimeout},
		listHTTP:      &http.Client{Timeout: cfg.ListTimeout},
		previewHTTP:   &http.Client{Timeout: preview.Timeout},
		viewHTTP:      &http.Client{Timeout: preview.ViewTimeout},
		log:           log.With("component", "intelx"),
	}
}

type searchRequest struct {
	Term       string   `json:"term"`
	Buckets    []string `json:"buckets"`
	MaxResults int      `json:"maxresults"`
	Sort       int      `json:"sort"`
	Media      int      `json:"media"` // 0: all media types
	Timeout    int      `json:"timeout"`
}

type searchResponse struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

type resultResponse struct {
	Records []models.Record `json:"records"`
	Status  int             `json:"status"`
}

// Search submits term against the configured buckets, newest first.
func (c *Client) Search(ctx context.Context, term string) (string, error) {
	ctx, span := tracer.Start(ctx, "intelx.search", trace.WithAttributes(attribute.Int("intelx.maxresults", c.maxResults)))
	defer span.End()

	body, err := json.Marshal(searchRequest{
		Term:       term,
		Buckets:    c.buckets,
		MaxResults: c.maxResults,
		Sort:       c.sort,
		Timeout:    c.searchTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.searchHTTP.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return "", fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	raw, err := helpers.ReadAllAndClose(resp.Body, maxBodyBytes)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		return "", fmt.Errorf("%w: status %d", ErrSearchFailed, resp.StatusCode)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	var out searchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrSearchFailed, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: response carried no id", ErrSearchFailed)
	}
	return out.ID, nil
}

// Results lists up to maxResults records of a search at offset 0. Any failure
// is logged and yields an empty slice.
func (c *Client) Results(ctx context.Context, searchID string) []models.Record {
	ctx, span := tracer.Start(ctx, "intelx.results")
	defer span.End()

	q := url.Values{}
	q.Set("id", searchID)
	q.Set("limit", fmt.Sprint(c.maxResults))
	q.Set("offset", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+resultPath+"?"+q.Encode(), nil)
	if err != nil {
		c.log.Debug("listing request failed", "err", err)
		return nil
	}
	c.setHeaders(req)

	resp, err := c.listHTTP.Do(req)
	if err != nil {
		span.RecordError(err)
		c.log.Debug("listing failed", "err", err)
		return nil
	}
	raw, err := helpers.ReadAllAndClose(resp.Body, maxBodyBytes)
	if resp.StatusCode != http.StatusOK || err != nil {
		span.SetStatus(codes.Error, resp.Status)
		c.log.Debug("listing failed", "status", resp.StatusCode, "err", err)
		return nil
	}

	var out resultResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Debug("listing decode failed", "err", err)
		return nil
	}
	span.SetAttributes(attribute.Int("intelx.records", len(out.Records)))
	return out.Records
}

// Preview retrieves the text of rec. The preview endpoint is tried first and
// accepted only when it answers 200 with a body longer than the configured
// minimum; otherwise the view endpoint is used and any 200 body is accepted.
func (c *Client) Preview(ctx context.Context, rec models.Record) (searchmodels.Preview, bool) {
	ctx, span := tracer.Start(ctx, "intelx.preview", trace.WithAttributes(attribute.String("intelx.bucket", rec.Bucket)))
	defer span.End()

	q := url.Values{}
	q.Set("did", rec.DocID)
	status, body, err := c.get(ctx, c.previewHTTP, previewPath, q)
	if err == nil && status == http.StatusOK && utf8.RuneCountInString(body) > c.minPreviewLen {
		span.SetAttributes(attribute.String("intelx.source", searchmodels.SourcePreview))
		return searchmodels.Preview{Content: body, Source: searchmodels.SourcePreview}, true
	}
	c.log.Debug("preview unusable, falling back to view", "did", rec.DocID, "status", status, "err", err)

	q = url.Values{}
	q.Set("f", "0")
	q.Set("storageid", rec.StorageID)
	q.Set("bucket", rec.Bucket)
	q.Set("k", c.apiKey)
	status, body, err = c.get(ctx, c.viewHTTP, viewPath, q)
	if err == nil && status == http.StatusOK {
		span.SetAttributes(attribute.String("intelx.source", searchmodels.SourceView))
		return searchmodels.Preview{Content: body, Source: searchmodels.SourceView}, true
	}
	c.log.Debug("view failed", "storageid", rec.StorageID, "status", status, "err", err)
	span.SetStatus(codes.Error, "no content")
	return searchmodels.Preview{}, false
}

func (c *Client) get(ctx context.Context, hc *http.Client, path string, q url.Values) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return 0, "", err
	}
	c.setHeaders(req)
	resp, err := hc.Do(req)
	if err != nil {
		return 0, "", err
	}
	raw, err := helpers.ReadAllAndClose(resp.Body, maxBodyBytes)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(raw), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-key", c.apiKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
