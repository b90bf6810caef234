package feed

import (
	"context"
	"strings"
	"time"

	"github.com/jefvlamings/reolink-feed/internal/diskmanager"
	"github.com/jefvlamings/reolink-feed/internal/model"
)

// Sensor is a detection signal with its resolved label, as discovered in
// the registry.
type Sensor struct {
	EntityID string
	Label    string
}

// DetectionSensors lists every enabled detection signal the registry knows
// about, for the history reconciler.
func (m *Manager) DetectionSensors(ctx context.Context) ([]Sensor, error) {
	entries, err := m.directory.ListEntities(ctx, signalDomain)
	if err != nil {
		return nil, err
	}
	var sensors []Sensor
	for i := range entries {
		e := entries[i]
		if e.Disabled || !strings.HasPrefix(e.EntityID, signalDomain) {
			continue
		}
		label := labelFromEntry(e.EntityID, &e)
		if label == "" || !m.labelEnabled(label) {
			continue
		}
		sensors = append(sensors, Sensor{EntityID: e.EntityID, Label: label})
	}
	return sensors, nil
}

// MergeResult summarizes one reconciliation merge into the live timeline.
type MergeResult struct {
	Added  int
	Merged int

	// NeedResolution lists resulting item ids whose recording is still
	// pending after the merge.
	NeedResolution []string
}

// MergeCandidates folds rebuilt candidate items into the live timeline. A
// candidate matching an existing item with the same label and source whose
// interval overlaps or lies within the merge window is merged into it,
// widening the interval; existing ids, snapshots and linked recordings are
// always kept. Unmatched candidates are inserted as new items.
func (m *Manager) MergeCandidates(candidates []*model.Item) MergeResult {
	window := m.settings.Feed.MergeWindow()
	var res MergeResult

	m.mu.Lock()
	for _, cand := range candidates {
		target := m.bestMergeTarget(cand, window)
		if target == nil {
			c := *cand
			m.items = append(m.items, &c)
			m.idx.insert(&c)
			res.Added++
			if !c.Open() && c.Recording.Status == model.RecordingPending {
				res.NeedResolution = append(res.NeedResolution, c.ID)
			}
			continue
		}
		mergeInto(target, cand)
		m.idx.markClosed(target)
		res.Merged++
		if !target.Open() && target.Recording.Status == model.RecordingPending {
			res.NeedResolution = append(res.NeedResolution, target.ID)
		}
	}
	sortNewestFirst(m.items)
	m.idx.rebuild(m.items)
	kept, removed := diskmanager.TrimCount(m.items, m.settings.Feed.MaxDetections)
	m.items = kept
	for _, r := range removed {
		m.idx.remove(r)
	}
	m.mu.Unlock()

	m.dropAssets(removed, "count")
	for i := 0; i < res.Merged; i++ {
		m.metrics.ItemsMerged.Inc()
	}
	if res.Added > 0 || res.Merged > 0 {
		m.scheduleSave()
	}
	return res
}

// bestMergeTarget finds the existing item closest to the candidate among
// those with the same label and source whose intervals overlap or sit
// within the merge window of each other. Closeness is the summed absolute
// start and end distance.
func (m *Manager) bestMergeTarget(cand *model.Item, window time.Duration) *model.Item {
	var best *model.Item
	var bestCost time.Duration
	for _, item := range m.items {
		if item.Label != cand.Label || item.SourceEntityID != cand.SourceEntityID {
			continue
		}
		if intervalGap(item.StartTS, item.End(), cand.StartTS, cand.End()) > window {
			continue
		}
		cost := absDuration(item.StartTS.Sub(cand.StartTS)) + absDuration(item.End().Sub(cand.End()))
		if best == nil || cost < bestCost {
			best = item
			bestCost = cost
		}
	}
	return best
}

// mergeInto widens target to cover the candidate's interval. An open target
// stays open; its live end is still being tracked.
func mergeInto(target, cand *model.Item) {
	if cand.StartTS.Before(target.StartTS) {
		target.StartTS = cand.StartTS
	}
	if !target.Open() && cand.End().After(target.End()) {
		target.Close(cand.End())
	} else if !target.Open() {
		target.Close(target.End())
	}
	if target.SnapshotURL == nil && cand.SnapshotURL != nil {
		target.SnapshotURL = cand.SnapshotURL
	}
	if !target.Recording.Linked() && cand.Recording.Linked() {
		target.Recording = cand.Recording
	}
	if target.CameraName == "" {
		target.CameraName = cand.CameraName
	}
}

// intervalGap returns the distance between two closed intervals, zero when
// they overlap or touch.
func intervalGap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	if gap := bStart.Sub(aEnd); gap > 0 {
		return gap
	}
	if gap := aStart.Sub(bEnd); gap > 0 {
		return gap
	}
	return 0
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
