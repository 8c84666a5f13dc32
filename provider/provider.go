package provider

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/mohammad-safakhou/leaksight/models"
	openai_provider "github.com/mohammad-safakhou/leaksight/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	// OpenAI covers any OpenAI-compatible endpoint (OpenRouter, local servers)
	// selected through the base URL.
	OpenAI Client = "openai"
)

// ErrNoAPIKey is returned when the provider has no credential configured.
var ErrNoAPIKey = errors.New("llm api key not set")

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Complete(ctx context.Context, messages []models.Message) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, cfg config.LLMConfig, log *slog.Logger) (Provider, error) {
	switch client {
	case OpenAI:
		if !cfg.Enabled() {
			return nil, ErrNoAPIKey
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
			log,
		), nil
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
