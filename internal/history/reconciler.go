// Package history rebuilds the detection timeline from the hub's recorded
// state history, recovering events that were missed while the daemon was
// down.
package history

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jefvlamings/reolink-feed/internal/conf"
	"github.com/jefvlamings/reolink-feed/internal/feed"
	"github.com/jefvlamings/reolink-feed/internal/model"
)

// StateChange is one historical state transition of a signal entity.
type StateChange struct {
	State        string
	ChangedAt    time.Time
	FriendlyName string
}

// Source serves recorded state history. Implemented by the hub client.
type Source interface {
	// RecentChanges returns the newest state changes of an entity, up to
	// limit, in any order.
	RecentChanges(ctx context.Context, entityID string, limit int) ([]StateChange, error)
}

// Summary reports what one reconciliation pass did.
type Summary struct {
	EntitiesScanned int `json:"entities_scanned"`
	ItemsAdded      int `json:"items_added"`
	ItemsMerged     int `json:"items_merged"`
	ItemsResolved   int `json:"items_resolved"`
}

// perEntityLimit bounds how many state changes are fetched per signal.
const perEntityLimit = 200

// resolveConcurrency bounds parallel recording resolutions after a merge.
const resolveConcurrency = 2

// Reconciler rebuilds timeline items from recorded signal history and folds
// them into the live timeline.
type Reconciler struct {
	manager  *feed.Manager
	source   Source
	settings *conf.Settings
	logger   *slog.Logger
}

// New creates a Reconciler.
func New(manager *feed.Manager, source Source, settings *conf.Settings, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{manager: manager, source: source, settings: settings, logger: logger}
}

// Rebuild scans the history of every enabled detection signal, pairs on/off
// transitions into candidate items and merges them into the timeline. The
// scan is all-or-nothing: any history fetch failure aborts the pass before
// the timeline is touched. Recordings of new or still-pending items are
// resolved immediately with bounded concurrency.
func (r *Reconciler) Rebuild(ctx context.Context) (Summary, error) {
	sensors, err := r.manager.DetectionSensors(ctx)
	if err != nil {
		return Summary{}, err
	}

	now := time.Now()
	cutoff := r.settings.Feed.RetentionCutoff(now)
	window := r.settings.Feed.MergeWindow()

	var candidates []*model.Item
	for _, sensor := range sensors {
		changes, err := r.source.RecentChanges(ctx, sensor.EntityID, perEntityLimit)
		if err != nil {
			return Summary{}, err
		}
		candidates = append(candidates,
			candidatesFromHistory(sensor, changes, cutoff, window)...)
	}

	res := r.manager.MergeCandidates(candidates)
	r.logger.Info("history reconciliation merged",
		"entities", len(sensors), "candidates", len(candidates),
		"added", res.Added, "merged", res.Merged, "to_resolve", len(res.NeedResolution))

	resolved := r.resolveAll(ctx, res.NeedResolution)

	return Summary{
		EntitiesScanned: len(sensors),
		ItemsAdded:      res.Added,
		ItemsMerged:     res.Merged,
		ItemsResolved:   resolved,
	}, nil
}

// resolveAll resolves the given items with bounded concurrency. Each
// resolution is final: a miss becomes a terminal state rather than a retry
// ladder, since rebuilt events are old enough that waiting gains nothing.
func (r *Reconciler) resolveAll(ctx context.Context, itemIDs []string) int {
	if len(itemIDs) == 0 {
		return 0
	}
	var resolved atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for _, id := range itemIDs {
		g.Go(func() error {
			if _, err := r.manager.ResolveRecording(gctx, id, true); err != nil {
				r.logger.Warn("rebuilt item resolution failed", "item_id", id, "error", err)
				return nil
			}
			resolved.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(resolved.Load())
}

// candidatesFromHistory pairs a signal's historical transitions into closed
// candidate items. Runs separated by no more than the merge window coalesce
// into one candidate; candidates ending before the cutoff are dropped. A
// trailing on without an off is ignored, the live correlator owns it.
func candidatesFromHistory(sensor feed.Sensor, changes []StateChange, cutoff time.Time, window time.Duration) []*model.Item {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].ChangedAt.Before(changes[j].ChangedAt)
	})

	type run struct {
		start, end   time.Time
		friendlyName string
	}
	var runs []run
	var onAt *time.Time
	friendly := ""
	for _, ch := range changes {
		switch ch.State {
		case "on":
			if onAt == nil {
				t := ch.ChangedAt
				onAt = &t
				if ch.FriendlyName != "" {
					friendly = ch.FriendlyName
				}
			}
		case "off":
			if onAt == nil {
				continue
			}
			start, end := *onAt, ch.ChangedAt
			onAt = nil
			if end.Before(start) {
				continue
			}
			if len(runs) > 0 && start.Sub(runs[len(runs)-1].end) <= window {
				runs[len(runs)-1].end = end
				continue
			}
			runs = append(runs, run{start: start, end: end, friendlyName: friendly})
		}
	}

	var items []*model.Item
	for _, ru := range runs {
		if ru.end.Before(cutoff) {
			continue
		}
		item := &model.Item{
			ID:             uuid.New().String(),
			StartTS:        ru.start,
			Label:          sensor.Label,
			SourceEntityID: sensor.EntityID,
			CameraName:     model.CameraNameFromSource(sensor.EntityID, ru.friendlyName),
			Recording:      model.PendingRecording(),
		}
		item.Close(ru.end)
		items = append(items, item)
	}
	return items
}
