// Package model defines the detection timeline data types shared across the
// feed manager, the recording resolver and the persistence layer.
package model

import (
	"time"
)

// Item is one entry in the detection timeline. An item is open while its
// source signal is still active (EndTS == nil) and closed once the paired
// off transition arrives.
type Item struct {
	ID             string     `json:"id"`
	StartTS        time.Time  `json:"start_ts"`
	EndTS          *time.Time `json:"end_ts"`
	DurationS      *int       `json:"duration_s"`
	Label          string     `json:"label"`
	SourceEntityID string     `json:"source_entity_id"`
	CameraName     string     `json:"camera_name"`
	SnapshotURL    *string    `json:"snapshot_url"`
	Recording      Recording  `json:"recording"`
}

// Key identifies the correlation stream an item belongs to. At most one item
// per key is open at a time.
type Key struct {
	Camera string
	Label  string
}

// Key returns the correlation key of the item.
func (i *Item) Key() Key {
	return Key{Camera: i.CameraName, Label: i.Label}
}

// Open reports whether the item's signal is still active.
func (i *Item) Open() bool {
	return i.EndTS == nil
}

// End returns the item end time, falling back to the start time while the
// item is still open.
func (i *Item) End() time.Time {
	if i.EndTS != nil {
		return *i.EndTS
	}
	return i.StartTS
}

// Close sets the end timestamp and the derived duration, clamped to zero for
// out-of-order transitions.
func (i *Item) Close(endedAt time.Time) {
	end := endedAt
	i.EndTS = &end
	duration := int(endedAt.Sub(i.StartTS).Seconds())
	if duration < 0 {
		duration = 0
	}
	i.DurationS = &duration
}

// Reopen clears the end timestamp, duration and recording state so the item
// behaves as freshly opened again. An already linked recording is reset too:
// the reopened event will close with a different window, so a previously
// matched clip no longer describes it.
func (i *Item) Reopen() {
	i.EndTS = nil
	i.DurationS = nil
	i.Recording = PendingRecording()
}

// SetSnapshotURL records the snapshot location. The first write wins; a
// snapshot is captured at most once per item.
func (i *Item) SetSnapshotURL(url string) bool {
	if i.SnapshotURL != nil {
		return false
	}
	i.SnapshotURL = &url
	return true
}

// Normalize repairs fields after decoding a persisted document: missing
// recording state defaults to pending and legacy labels map to their
// current values.
func (i *Item) Normalize() {
	if i.Recording.Status == "" {
		i.Recording = PendingRecording()
	}
	i.Label = NormalizeLabel(i.Label)
}
