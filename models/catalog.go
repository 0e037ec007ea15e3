package models

import (
	"encoding/json"
	"time"
)

// SourceMode records which extraction path produced a catalog.
type SourceMode string

const (
	// SourceBrowser means the catalog came from a rendered listing page.
	SourceBrowser SourceMode = "browser"

	// SourceAPI means the catalog came from the source's internal data API.
	SourceAPI SourceMode = "api"
)

// Plan is one purchasable offer inside a product.
type Plan struct {
	// Name is the plan label, possibly derived from data + validity.
	Name string `json:"name"`

	// Data is the data-amount token as it appeared in the source ("1GB").
	Data string `json:"data"`

	// Validity is the validity token as it appeared in the source ("7 Days").
	Validity string `json:"validity"`

	// Price keeps the currency symbol verbatim. It is nil (JSON null) when
	// no price could be extracted — callers must handle null explicitly.
	Price *string `json:"price"`
}

// Product is one catalog entry, typically a country or region bundle.
type Product struct {
	// Country is the product's display name.
	Country string `json:"country"`

	// SourceURL is present only when the product was scraped from a page;
	// the internal API does not carry one.
	SourceURL string `json:"url,omitempty"`

	// CountriesCovered lists country names in source order. Duplicates are
	// kept; the sequence reflects the source's presentation.
	CountriesCovered []string `json:"countries_covered"`

	// Plans may be empty when a product has no extractable offers.
	Plans []Plan `json:"plans"`
}

// Snapshot is one immutable captured catalog. A refresh produces a new
// Snapshot; an existing one is never mutated in place, which is what makes
// lock-free stale reads safe while a refresh is in flight.
type Snapshot struct {
	Products   []Product
	FetchedAt  time.Time
	SourceMode SourceMode
}

// RawCatalog is the intermediate payload handed from a Fetcher to the
// Extractor. Exactly one of HTML / Entries is populated depending on Mode.
type RawCatalog struct {
	Mode SourceMode

	// HTML is the fully rendered listing document (browser mode), and
	// BaseURL the page it was rendered from, for resolving relative links.
	HTML    string
	BaseURL string

	// Entries are per-product payloads from the internal API (api mode).
	Entries []RawEntry
}

// RawEntry is one product as delivered by the internal API: the listing
// fields plus the loosely-typed detail payload, decoded at the extractor
// boundary rather than trusted here.
type RawEntry struct {
	Name   string
	Slug   string
	Detail json.RawMessage
}

// Diagnostic records a per-entry extraction defect. One bad entry is skipped
// with a Diagnostic, never failing the whole extraction.
type Diagnostic struct {
	Entry  string `json:"entry"`
	Reason string `json:"reason"`
}
