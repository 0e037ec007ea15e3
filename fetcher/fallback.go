package fetcher

import (
	"context"
	"log/slog"

	"github.com/use-agent/esimdex/models"
)

// Fallback is the "auto" fetch mode: it tries the cheap direct-API path
// first and escalates to the browser-rendered path when the API is
// unavailable or yields nothing. Escalation is sequential rather than raced
// because the cache layer only ever runs one extraction pass at a time.
type Fallback struct {
	primary   Fetcher
	secondary Fetcher
}

// NewFallback creates a Fallback that prefers primary.
func NewFallback(primary, secondary Fetcher) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Name() string { return "auto" }

func (f *Fallback) FetchCatalog(ctx context.Context) (*models.RawCatalog, error) {
	raw, err := f.primary.FetchCatalog(ctx)
	if err == nil && (raw.HTML != "" || len(raw.Entries) > 0) {
		return raw, nil
	}

	if err != nil {
		slog.Warn("primary fetcher failed, escalating",
			"primary", f.primary.Name(),
			"secondary", f.secondary.Name(),
			"error", err,
		)
	} else {
		slog.Warn("primary fetcher returned an empty payload, escalating",
			"primary", f.primary.Name(),
			"secondary", f.secondary.Name(),
		)
	}

	return f.secondary.FetchCatalog(ctx)
}
