package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/mohammad-safakhou/leaksight/internal/helpers"
	"github.com/mohammad-safakhou/leaksight/models"
	"github.com/mohammad-safakhou/leaksight/provider"
)

var (
	// ErrAIDisabled is returned when no completion provider is configured.
	ErrAIDisabled = errors.New("ai analysis disabled")
	// ErrNoJSON is returned when the model response holds no brace-delimited object.
	ErrNoJSON = errors.New("no JSON object in model response")
	// ErrInvalidFinding is returned when the extracted object cannot be used.
	ErrInvalidFinding = errors.New("model response is not a valid finding")
)

const systemPrompt = "Output only valid JSON."

const userPrompt = `You are a Senior Security Analyst. Analyze the following excerpt of a data leak (dump).
Your goal is to extract credentials and categorize the risk.

Return ONLY a JSON object in this format:
{
    "risk_level": "High/Medium/Low",
    "summary": "Summary of what the file is",
    "credentials": [{"email": "...", "password": "...", "hash_type": "..."}]
}

If there are no credentials, return an empty list.
Dump content:
`

// Analyzer turns raw leak content into a structured Finding.
type Analyzer struct {
	provider   provider.Provider
	maxChars   int
	extraction string
	validate   bool
	log        *slog.Logger
}

// New creates an Analyzer. A nil provider disables analysis.
func New(p provider.Provider, cfg config.AnalysisConfig, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 3000
	}
	return &Analyzer{
		provider:   p,
		maxChars:   cfg.MaxChars,
		extraction: cfg.JSONExtraction,
		validate:   cfg.ValidateSchema,
		log:        log.With("component", "analyzer"),
	}
}

// Enabled reports whether a provider is configured.
func (a *Analyzer) Enabled() bool { return a != nil && a.provider != nil }

// Analyze sends the first maxChars characters of content to the model and
// parses its answer. Every failure yields a nil Finding and an error; nothing
// is retried.
func (a *Analyzer) Analyze(ctx context.Context, content string) (*models.Finding, error) {
	if !a.Enabled() {
		return nil, ErrAIDisabled
	}

	raw, err := a.provider.Complete(ctx, BuildMessages(helpers.Truncate(content, a.maxChars)))
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	finding, err := ParseFinding(raw, a.extraction, a.validate)
	if err != nil {
		a.log.Debug("unusable model response", "err", err, "response", helpers.Truncate(raw, 200))
		return nil, err
	}
	return finding, nil
}

// BuildMessages returns the fixed system and user prompt for snippet.
func BuildMessages(snippet string) []models.Message {
	return []models.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt + "\n" + snippet},
	}
}

// ParseFinding extracts the JSON object from a model response and converts it.
// mode selects greedy (first '{' to last '}') or balanced extraction.
func ParseFinding(raw, mode string, validate bool) (*models.Finding, error) {
	var (
		candidate string
		err       error
	)
	if mode == config.ExtractBalanced {
		candidate, err = helpers.ExtractBalancedJSON(raw)
	} else {
		candidate, err = helpers.ExtractGreedyJSON(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoJSON, err)
	}

	obj, err := helpers.DecodeJSONObject(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFinding, err)
	}
	if validate {
		if err := validateFinding(obj); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFinding, err)
		}
	}
	return findingFromObject(obj), nil
}

// findingFromObject reads the known keys. Values of unexpected type degrade
// field by field: scalars and objects are printed as text, a string credential
// is split on its first ':' into email and password, anything else is dropped.
// The decoded object is kept as is in Raw.
func findingFromObject(obj map[string]any) *models.Finding {
	f := &models.Finding{
		RiskLevel:   str(obj["risk_level"]),
		Summary:     str(obj["summary"]),
		Credentials: []models.Credential{},
		Raw:         obj,
	}
	items, _ := obj["credentials"].([]any)
	for _, it := range items {
		if s, ok := it.(string); ok {
			email, secret, _ := strings.Cut(s, ":")
			f.Credentials = append(f.Credentials, models.Credential{Email: email, Password: secret})
			continue
		}
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		f.Credentials = append(f.Credentials, models.Credential{
			Email:    str(m["email"]),
			Password: str(m["password"]),
			HashType: str(m["hash_type"]),
		})
	}
	return f
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
