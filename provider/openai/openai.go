package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/leaksight/internal/helpers"
	"github.com/mohammad-safakhou/leaksight/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	completionsPath = "/chat/completions"
	maxResponseSize = 4 << 20
)

// ErrNoChoices is returned when the API answers without any completion.
var ErrNoChoices = errors.New("no choices in response")

var tracer = otel.Tracer("github.com/mohammad-safakhou/leaksight/provider/openai")

// client implements the Provider interface using an OpenAI-compatible API
type client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	log         *slog.Logger
}

// request represents a request to the chat completions API
type request struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

// response represents a response from the chat completions API
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient creates a new OpenAI-compatible client. An empty baseURL
// selects the official API.
func NewOpenAIClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration, log *slog.Logger) *client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &client{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log.With("component", "llm"),
	}
}

// Complete sends the conversation and returns the first choice's content.
func (c *client) Complete(ctx context.Context, messages []models.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model), attribute.Float64("llm.temperature", c.temperature))

	out, err := c.sendRequest(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	return out, nil
}

// sendRequest sends a request to the chat completions API
func (c *client) sendRequest(ctx context.Context, messages []models.Message) (string, error) {
	requestBody := request{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	c.log.Debug("sending completion request", "model", c.model, "temperature", c.temperature, "messages", len(messages))

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	body, err := helpers.ReadAllAndClose(resp.Body, maxResponseSize)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.Debug("received completion response", "status", resp.Status, "bytes", len(body))

	var openaiResp response
	decodeErr := json.Unmarshal(body, &openaiResp)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && openaiResp.Error != nil && openaiResp.Error.Message != "" {
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, openaiResp.Error.Message)
		}
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to parse response: %w", decodeErr)
	}

	if len(openaiResp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return openaiResp.Choices[0].Message.Content, nil
}
