package leak_search

import (
	"context"
	"log/slog"

	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/mohammad-safakhou/leaksight/models"
	"github.com/mohammad-safakhou/leaksight/tools/leak_search/intelx"
	searchmodels "github.com/mohammad-safakhou/leaksight/tools/leak_search/models"
)

// LeakSearcher finds leak documents for a target and retrieves their text.
type LeakSearcher interface {
	// Search submits term and returns the id of the search session.
	Search(ctx context.Context, term string) (string, error)
	// Results lists the records of a search session. Failures yield an empty slice.
	Results(ctx context.Context, searchID string) []models.Record
	// Preview retrieves the text of one record; ok is false when nothing could be read.
	Preview(ctx context.Context, rec models.Record) (searchmodels.Preview, bool)
}

type Provider string

const (
	IntelXProvider Provider = "intelx"
)

var ErrUnsupportedProvider = &Error{"unsupported provider"}

type Error struct{ msg string }

func (e *Error) Error() string { return e.msg }

func NewLeakSearcher(provider Provider, cfg *config.Config, log *slog.Logger) (LeakSearcher, error) {
	switch provider {
	case IntelXProvider:
		return intelx.New(cfg.IntelX, cfg.Preview, log), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
