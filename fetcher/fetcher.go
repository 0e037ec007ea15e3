// Package fetcher obtains the raw product catalog from the source, either by
// driving a headless browser session over the listing page or by calling the
// source's internal data API directly. Both paths produce the same
// models.RawCatalog so everything above them is agnostic to which ran.
package fetcher

import (
	"context"
	"errors"

	"github.com/use-agent/esimdex/models"
)

// Fetcher is the capability "produce raw catalog content".
//
// A Fetcher makes exactly one attempt per call; transient failures are
// returned as FETCH_TIMEOUT / FETCH_UNAVAILABLE errors for the caller to
// retry if it wants to.
type Fetcher interface {
	// Name returns the fetcher identifier ("browser", "api", "auto").
	Name() string

	// FetchCatalog retrieves the raw catalog payload.
	FetchCatalog(ctx context.Context) (*models.RawCatalog, error)
}

// categorizeError wraps raw fetch errors into typed CatalogErrors so upper
// layers can tell a render timeout from a connectivity failure.
func categorizeError(err error, msg string) *models.CatalogError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCatalogError(models.ErrCodeFetchTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCatalogError(models.ErrCodeFetchTimeout, "fetch canceled", err)
	default:
		return models.NewCatalogError(models.ErrCodeFetchUnavailable, msg, err)
	}
}
