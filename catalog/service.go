// Package catalog is the query layer: it answers "all products" and
// "products for country X" against the snapshot cache, which decides whether
// answering requires a fresh extraction pass.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/use-agent/esimdex/cache"
	"github.com/use-agent/esimdex/models"
)

// Service answers catalog queries.
type Service struct {
	cache *cache.Manager
}

// NewService creates a Service over the given snapshot cache.
func NewService(c *cache.Manager) *Service {
	return &Service{cache: c}
}

// ListAll returns the full catalog snapshot, extracting on cold start or when
// forceRefresh is set.
func (s *Service) ListAll(ctx context.Context, forceRefresh bool) (*models.Snapshot, error) {
	return s.cache.Get(ctx, forceRefresh)
}

// ListByCountry returns products covering the named country, along with the
// snapshot they came from. Matching is a case-insensitive exact match against
// each product's covered countries and its display name (a single-country
// product names its country directly). No match yields an empty slice, not
// an error.
func (s *Service) ListByCountry(ctx context.Context, country string, forceRefresh bool) ([]models.Product, *models.Snapshot, error) {
	snap, err := s.cache.Get(ctx, forceRefresh)
	if err != nil {
		return nil, nil, err
	}

	matched := make([]models.Product, 0)
	for _, p := range snap.Products {
		if matchesCountry(p, country) {
			matched = append(matched, p)
		}
	}
	return matched, snap, nil
}

// Refresh forces a fresh extraction pass and returns the resulting snapshot.
func (s *Service) Refresh(ctx context.Context) (*models.Snapshot, error) {
	return s.cache.Get(ctx, true)
}

// Health reports whether any snapshot exists and when it was fetched.
func (s *Service) Health() (ready bool, lastFetchedAt *time.Time) {
	snap := s.cache.Last()
	if snap == nil {
		return false, nil
	}
	t := snap.FetchedAt
	return true, &t
}

func matchesCountry(p models.Product, country string) bool {
	if strings.EqualFold(p.Country, country) {
		return true
	}
	for _, c := range p.CountriesCovered {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}
