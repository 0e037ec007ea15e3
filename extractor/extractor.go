// Package extractor walks raw catalog payloads — rendered listing documents
// or internal-API detail payloads — and emits normalized product records.
// Shape mismatches in individual entries are treated as data, not crashes:
// each bad entry is skipped with a diagnostic. Only a payload in which no
// product listing can be located at all is fatal, since an empty result set
// would be silently indistinguishable from "the source has no products".
package extractor

import (
	"fmt"

	"github.com/use-agent/esimdex/models"
)

// Extractor converts raw catalog payloads into products.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract walks the payload's product listing and returns the normalized
// products plus one diagnostic per skipped entry. It returns an
// EXTRACTION_FAILED error when the payload contains no recognizable product
// listing.
func (e *Extractor) Extract(raw *models.RawCatalog) ([]models.Product, []models.Diagnostic, error) {
	if raw == nil {
		return nil, nil, models.NewCatalogError(
			models.ErrCodeExtractionFailed, "nil payload", nil)
	}

	switch raw.Mode {
	case models.SourceBrowser:
		return extractFromHTML(raw.HTML, raw.BaseURL)
	case models.SourceAPI:
		return extractFromEntries(raw.Entries)
	default:
		return nil, nil, models.NewCatalogError(
			models.ErrCodeExtractionFailed,
			fmt.Sprintf("unknown source mode %q", raw.Mode),
			nil,
		)
	}
}
