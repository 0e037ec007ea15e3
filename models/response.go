package models

import "time"

// CatalogResponse is the wrapper for catalog listing endpoints.
type CatalogResponse struct {
	// Products is the (optionally filtered) catalog.
	Products []Product `json:"products"`

	// TotalCount is len(Products).
	TotalCount int `json:"total_count"`

	// FetchedAt is when the underlying snapshot was extracted. Under the
	// serve-stale-on-error policy this doubles as the staleness indicator.
	FetchedAt time.Time `json:"fetched_at"`

	// SourceMode records which extraction path produced the snapshot.
	SourceMode SourceMode `json:"source_mode"`

	// Error is populated only on failure responses.
	Error *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	// Ready is true once any snapshot has ever been extracted.
	Ready bool `json:"ready"`

	// LastFetchedAt is nil until the first successful extraction.
	LastFetchedAt *time.Time `json:"last_fetched_at"`

	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
