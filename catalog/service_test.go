package catalog

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/esimdex/cache"
	"github.com/use-agent/esimdex/models"
)

func testService(t *testing.T, calls *atomic.Int32) *Service {
	t.Helper()
	m := cache.NewManager(func(ctx context.Context) ([]models.Product, models.SourceMode, error) {
		if calls != nil {
			calls.Add(1)
		}
		return []models.Product{
			{
				Country:          "United States",
				CountriesCovered: []string{"United States"},
			},
			{
				Country:          "Europe",
				CountriesCovered: []string{"France", "Germany", "united kingdom"},
			},
		}, models.SourceAPI, nil
	}, cache.Options{StaleAfter: time.Hour})
	return NewService(m)
}

func TestListAll(t *testing.T) {
	svc := testService(t, nil)

	snap, err := svc.ListAll(context.Background(), false)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(snap.Products) != 2 {
		t.Errorf("products = %d, want 2", len(snap.Products))
	}
	if snap.SourceMode != models.SourceAPI {
		t.Errorf("SourceMode = %q, want %q", snap.SourceMode, models.SourceAPI)
	}
}

func TestListByCountry_CaseInsensitive(t *testing.T) {
	svc := testService(t, nil)

	tests := []struct {
		query string
		want  []string // expected product display names
	}{
		{"united states", []string{"United States"}},
		{"UNITED STATES", []string{"United States"}},
		{"France", []string{"Europe"}},
		{"United Kingdom", []string{"Europe"}}, // covered list is lowercase
		{"europe", []string{"Europe"}},         // display-name match
		{"Atlantis", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			products, snap, err := svc.ListByCountry(context.Background(), tt.query, false)
			if err != nil {
				t.Fatalf("ListByCountry(%q): %v", tt.query, err)
			}
			if snap == nil {
				t.Fatal("snapshot missing")
			}
			if products == nil {
				t.Fatal("expected an empty slice, not nil, for unmatched countries")
			}
			if len(products) != len(tt.want) {
				t.Fatalf("matches = %d, want %d", len(products), len(tt.want))
			}
			for i, name := range tt.want {
				if products[i].Country != name {
					t.Errorf("match[%d] = %q, want %q", i, products[i].Country, name)
				}
			}
		})
	}
}

func TestListByCountry_NoSubstringMatch(t *testing.T) {
	svc := testService(t, nil)

	// Exact match only: "France" covers, "Fran" must not.
	products, _, err := svc.ListByCountry(context.Background(), "Fran", false)
	if err != nil {
		t.Fatalf("ListByCountry: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("matches = %d, want 0 for a partial name", len(products))
	}
}

func TestRefresh_ForcesNewPass(t *testing.T) {
	var calls atomic.Int32
	svc := testService(t, &calls)

	if _, err := svc.ListAll(context.Background(), false); err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("extraction passes = %d, want 2", got)
	}
}

func TestHealth(t *testing.T) {
	svc := testService(t, nil)

	ready, last := svc.Health()
	if ready || last != nil {
		t.Errorf("cold service: ready=%v last=%v, want false/nil", ready, last)
	}

	if _, err := svc.ListAll(context.Background(), false); err != nil {
		t.Fatalf("ListAll: %v", err)
	}

	ready, last = svc.Health()
	if !ready || last == nil {
		t.Errorf("warm service: ready=%v last=%v, want true/non-nil", ready, last)
	}
}
