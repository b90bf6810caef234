package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseDerivesDuration(t *testing.T) {
	start := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	item := Item{ID: "a", StartTS: start, Label: LabelPerson, Recording: PendingRecording()}
	require.True(t, item.Open())

	item.Close(start.Add(42 * time.Second))
	require.False(t, item.Open())
	require.NotNil(t, item.DurationS)
	assert.Equal(t, 42, *item.DurationS)
}

func TestCloseClampsNegativeDuration(t *testing.T) {
	start := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	item := Item{ID: "a", StartTS: start, Recording: PendingRecording()}

	item.Close(start.Add(-5 * time.Second))
	require.NotNil(t, item.DurationS)
	assert.Equal(t, 0, *item.DurationS, "out-of-order close clamps to zero")
}

func TestReopenResetsRecording(t *testing.T) {
	start := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

	item := Item{ID: "a", StartTS: start, Recording: NotFoundRecording()}
	item.Close(start.Add(10 * time.Second))
	item.Reopen()
	assert.True(t, item.Open())
	assert.Nil(t, item.DurationS)
	assert.Equal(t, RecordingPending, item.Recording.Status)

	// A linked clip describes the previous window, so reopen discards it too.
	linked := Item{ID: "b", StartTS: start,
		Recording: LinkedRecording("media://clip", "/media/x/clip.mp4", start, start, 30, 0)}
	linked.Close(start.Add(10 * time.Second))
	linked.Reopen()
	assert.Equal(t, RecordingPending, linked.Recording.Status)
	assert.Empty(t, linked.Recording.MediaContentID)
}

func TestSetSnapshotURLFirstWriteWins(t *testing.T) {
	item := Item{ID: "a"}
	assert.True(t, item.SetSnapshotURL("/media/x/a.jpg"))
	assert.False(t, item.SetSnapshotURL("/media/x/b.jpg"))
	require.NotNil(t, item.SnapshotURL)
	assert.Equal(t, "/media/x/a.jpg", *item.SnapshotURL)
}

func TestItemJSONRoundTrip(t *testing.T) {
	start := time.Date(2026, 2, 19, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	item := Item{
		ID:             "0f2d9c4e",
		StartTS:        start,
		Label:          LabelPet,
		SourceEntityID: "binary_sensor.voortuin_dier",
		CameraName:     "Voortuin",
		Recording:      LinkedRecording("media://clip/1", "/media/local/reolink_feed/voortuin/2026-02-19/120000_pet.mp4", start.Add(time.Minute), start.Add(-2*time.Second), 30, 2),
	}
	item.Close(start.Add(18 * time.Second))
	url := "/media/local/reolink_feed/voortuin/2026-02-19/120000_pet.jpg"
	item.SnapshotURL = &url

	data, err := json.Marshal(&item)
	require.NoError(t, err)

	var decoded Item
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, item.ID, decoded.ID)
	assert.True(t, item.StartTS.Equal(decoded.StartTS), "timestamps keep their offset")
	require.NotNil(t, decoded.EndTS)
	assert.True(t, item.EndTS.Equal(*decoded.EndTS))
	assert.Equal(t, item.Recording, decoded.Recording)
	require.NotNil(t, decoded.SnapshotURL)
	assert.Equal(t, url, *decoded.SnapshotURL)
}

func TestNormalizeDefaultsAndAliases(t *testing.T) {
	var item Item
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","start_ts":"2026-02-19T12:00:00Z","label":"animal","unknown_field":true}`), &item))
	item.Normalize()

	assert.Equal(t, LabelPet, item.Label, "legacy animal label maps to pet")
	assert.Equal(t, RecordingPending, item.Recording.Status, "missing recording defaults to pending")
}

func TestRecordingStatusPredicates(t *testing.T) {
	assert.False(t, PendingRecording().Terminal())
	assert.True(t, NotFoundRecording().Terminal())
	assert.True(t, DownloadFailedRecording("boom").Terminal())

	now := time.Now()
	cached := LinkedRecording("media://c", "/media/x/c.mp4", now, now, 30, 0)
	assert.True(t, cached.Terminal())
	assert.True(t, cached.Cached())

	uncached := LinkedRecording("media://c", "", now, now, 30, 0)
	assert.True(t, uncached.Linked())
	assert.False(t, uncached.Cached())
}
