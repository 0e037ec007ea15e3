// Package cache holds the last successfully extracted catalog snapshot and
// coordinates refresh-vs-serve-stale decisions under concurrent access.
//
// Snapshots are immutable and swapped through a single atomic pointer, so
// readers always observe either the old snapshot or the new one, never a
// half-built one. At most one extraction pass runs at a time: concurrent
// refresh triggers join the in-flight pass via singleflight.
package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/esimdex/models"
	"golang.org/x/sync/singleflight"
)

// flightKey is the singleflight key; there is exactly one catalog per manager.
const flightKey = "catalog"

// ExtractFunc runs one full extraction pass: fetch raw content, extract and
// normalize products. It reports which source mode produced the result.
type ExtractFunc func(ctx context.Context) ([]models.Product, models.SourceMode, error)

// Options configures a Manager.
type Options struct {
	// StaleAfter is the snapshot age beyond which a non-forced read
	// triggers a refresh.
	StaleAfter time.Duration

	// WaitForRefresh picks the behavior of a non-forced read that finds a
	// stale snapshot: wait for the in-flight refresh result (freshness) or
	// return the stale snapshot immediately and refresh in the background
	// (availability). Forced reads always wait.
	WaitForRefresh bool

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Manager is the catalog snapshot cache. It is safe for concurrent use.
type Manager struct {
	extract        ExtractFunc
	now            func() time.Time
	staleAfter     time.Duration
	waitForRefresh bool

	snapshot atomic.Pointer[models.Snapshot]
	group    singleflight.Group
}

// NewManager creates a Manager around the given extraction pass.
func NewManager(extract ExtractFunc, opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		extract:        extract,
		now:            now,
		staleAfter:     opts.StaleAfter,
		waitForRefresh: opts.WaitForRefresh,
	}
}

// Get returns the current snapshot, triggering an extraction pass when the
// cache is empty, the snapshot is older than the staleness bound, or
// forceRefresh is set.
//
// When an extraction pass fails and a previous snapshot exists, that snapshot
// is served instead of the error. Only when no snapshot has ever existed does
// the failure surface, as NO_CACHE_AVAILABLE wrapping the cause.
func (m *Manager) Get(ctx context.Context, forceRefresh bool) (*models.Snapshot, error) {
	cur := m.snapshot.Load()

	if cur != nil && !forceRefresh {
		if m.now().Sub(cur.FetchedAt) <= m.staleAfter {
			return cur, nil
		}
		if !m.waitForRefresh {
			// Availability over freshness: hand back the stale snapshot
			// and refresh behind the scenes.
			m.refreshAsync()
			return cur, nil
		}
	}

	snap, err := m.refresh(ctx)
	if err != nil {
		if prev := m.snapshot.Load(); prev != nil {
			slog.Warn("catalog refresh failed, serving previous snapshot",
				"fetched_at", prev.FetchedAt,
				"error", err,
			)
			return prev, nil
		}
		return nil, models.NewCatalogError(
			models.ErrCodeNoCache,
			"first catalog extraction failed and no snapshot exists",
			err,
		)
	}
	return snap, nil
}

// Last returns the current snapshot without triggering any work, or nil when
// nothing has ever been extracted. Used by the health endpoint.
func (m *Manager) Last() *models.Snapshot {
	return m.snapshot.Load()
}

// refresh runs one extraction pass, deduplicated across concurrent callers:
// simultaneous refresh triggers share a single fetch and all receive its
// result.
func (m *Manager) refresh(ctx context.Context) (*models.Snapshot, error) {
	v, err, shared := m.group.Do(flightKey, func() (any, error) {
		start := m.now()
		products, mode, err := m.extract(ctx)
		if err != nil {
			return nil, err
		}
		snap := &models.Snapshot{
			Products:   products,
			FetchedAt:  m.now(),
			SourceMode: mode,
		}
		m.snapshot.Store(snap)
		slog.Info("catalog snapshot refreshed",
			"products", len(products),
			"source_mode", mode,
			"took", m.now().Sub(start),
		)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("refresh joined in-flight extraction pass")
	}
	return v.(*models.Snapshot), nil
}

// refreshAsync starts (or joins) a refresh without blocking the caller. The
// pass is bounded by the fetcher's own timeout, not by any request context.
func (m *Manager) refreshAsync() {
	go func() {
		if _, err := m.refresh(context.Background()); err != nil {
			slog.Warn("background catalog refresh failed, keeping previous snapshot",
				"error", err,
			)
		}
	}()
}
