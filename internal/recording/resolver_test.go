package recording

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jefvlamings/reolink-feed/internal/conf"
	"github.com/jefvlamings/reolink-feed/internal/model"
)

// fakeCatalog serves a canned catalog tree keyed by content id.
type fakeCatalog struct {
	tree    map[string][]Node
	urls    map[string]string
	browses int
}

func (f *fakeCatalog) Browse(_ context.Context, contentID string) ([]Node, error) {
	f.browses++
	return f.tree[contentID], nil
}

func (f *fakeCatalog) Resolve(_ context.Context, contentID string) (string, error) {
	return f.urls[contentID], nil
}

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Feed = conf.FeedSettings{
		WindowStartPad:      10,
		WindowEndPad:        30,
		DefaultClipDuration: 30,
		CacheRecordings:     false,
		MediaRoot:           "/tmp/media",
		MediaSourceID:       "local",
	}
	s.Hub.BaseURL = "http://hub.local:8123"
	return s
}

func closedItem(start, end time.Time) model.Item {
	item := model.Item{
		ID:         "item-1",
		StartTS:    start,
		Label:      model.LabelPerson,
		CameraName: "Front Door",
		Recording:  model.PendingRecording(),
	}
	item.Close(end)
	return item
}

func frontDoorCatalog(dayChildren []Node) *fakeCatalog {
	return &fakeCatalog{
		tree: map[string][]Node{
			RootContentID: {
				{Title: "Front Door", ContentID: "cam/front", CanExpand: true},
				{Title: "Garage", ContentID: "cam/garage", CanExpand: true},
			},
			"cam/front": {
				{Title: "High resolution", ContentID: "cam/front/high", CanExpand: true},
				{Title: "Low resolution", ContentID: "cam/front/low", CanExpand: true},
			},
			"cam/front/low": {
				{Title: "2026-02-19", ContentID: "cam/front/low/day", CanExpand: true},
			},
			"cam/front/low/day": dayChildren,
		},
	}
}

func TestResolveLinksOverlappingClip(t *testing.T) {
	day := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)
	catalog := frontDoorCatalog([]Node{
		{Title: "11:00:00 00:00:30", ContentID: "clip/early"},
		{Title: "12:00:00 00:00:30", ContentID: "clip/match"},
	})
	r := NewResolver(catalog, nil, testSettings(), nil)

	item := closedItem(day.Add(12*time.Hour+10*time.Second), day.Add(12*time.Hour+30*time.Second))
	rec, err := r.Resolve(context.Background(), item, false)
	require.NoError(t, err)

	require.Equal(t, model.RecordingLinked, rec.Status)
	assert.Equal(t, "clip/match", rec.MediaContentID)
	assert.Empty(t, rec.LocalURL, "caching disabled leaves the clip uncached")
	assert.Equal(t, 30, rec.ClipDurationS)
	assert.Equal(t, 10, rec.PlaybackOffsetS, "event starts 10s into the clip")
	require.NotNil(t, rec.ClipStart)
	assert.True(t, rec.ClipStart.Equal(day.Add(12*time.Hour)))
}

func TestResolveDescendsEventFolder(t *testing.T) {
	day := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)
	catalog := frontDoorCatalog([]Node{
		{Title: "Person", ContentID: "cam/front/low/day/person", CanExpand: true},
		{Title: "Vehicle", ContentID: "cam/front/low/day/vehicle", CanExpand: true},
	})
	catalog.tree["cam/front/low/day/person"] = []Node{
		{Title: "12:00:05", ContentID: "clip/person"},
	}
	r := NewResolver(catalog, nil, testSettings(), nil)

	item := closedItem(day.Add(12*time.Hour+10*time.Second), day.Add(12*time.Hour+20*time.Second))
	rec, err := r.Resolve(context.Background(), item, false)
	require.NoError(t, err)
	require.Equal(t, model.RecordingLinked, rec.Status)
	assert.Equal(t, "clip/person", rec.MediaContentID)
}

func TestResolveMissOutcomeDependsOnFinalAttempt(t *testing.T) {
	day := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)
	catalog := frontDoorCatalog(nil)
	r := NewResolver(catalog, nil, testSettings(), nil)

	item := closedItem(day.Add(12*time.Hour), day.Add(12*time.Hour+20*time.Second))

	rec, err := r.Resolve(context.Background(), item, false)
	require.NoError(t, err)
	assert.Equal(t, model.RecordingPending, rec.Status)

	rec, err = r.Resolve(context.Background(), item, true)
	require.NoError(t, err)
	assert.Equal(t, model.RecordingNotFound, rec.Status)
}

func TestResolveRejectsDistantZeroOverlapClip(t *testing.T) {
	day := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)
	catalog := frontDoorCatalog([]Node{
		// Hours before the event, no overlap with the padded window.
		{Title: "03:00:00 00:00:30", ContentID: "clip/distant"},
	})
	r := NewResolver(catalog, nil, testSettings(), nil)

	item := closedItem(day.Add(12*time.Hour), day.Add(12*time.Hour+20*time.Second))
	rec, err := r.Resolve(context.Background(), item, true)
	require.NoError(t, err)
	assert.Equal(t, model.RecordingNotFound, rec.Status)
}

func TestResolveUnknownCameraMisses(t *testing.T) {
	day := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)
	catalog := &fakeCatalog{tree: map[string][]Node{RootContentID: nil}}
	r := NewResolver(catalog, nil, testSettings(), nil)

	item := closedItem(day.Add(12*time.Hour), day.Add(12*time.Hour+20*time.Second))
	rec, err := r.Resolve(context.Background(), item, false)
	require.NoError(t, err)
	assert.Equal(t, model.RecordingPending, rec.Status)
}

func TestPickTierPrefersLowResolution(t *testing.T) {
	nodes := []Node{
		{Title: "Telephoto low resolution", ContentID: "t"},
		{Title: "High resolution", ContentID: "h"},
		{Title: "Low resolution", ContentID: "l"},
	}
	tier, ok := pickTier(nodes)
	require.True(t, ok)
	assert.Equal(t, "l", tier.ContentID)
}

func TestPickCameraFuzzyMatch(t *testing.T) {
	nodes := []Node{
		{Title: "Achtertuin", ContentID: "back"},
		{Title: "Voordeur", ContentID: "front"},
	}

	cam, ok := pickCamera(nodes, "Voordeur")
	require.True(t, ok)
	assert.Equal(t, "front", cam.ContentID)

	cam, ok = pickCamera(nodes, "Voordeur camera")
	require.True(t, ok)
	assert.Equal(t, "front", cam.ContentID, "substring match")

	cam, ok = pickCamera(nodes, "Unknown")
	require.True(t, ok)
	assert.Equal(t, "back", cam.ContentID, "lone fallback by title order")
}

func TestCandidateDaysSpansMidnight(t *testing.T) {
	start := time.Date(2026, 2, 19, 23, 59, 55, 0, time.UTC)
	end := time.Date(2026, 2, 20, 0, 0, 20, 0, time.UTC)

	days := candidateDays(start.Add(-10*time.Second), start, end, end.Add(30*time.Second))
	require.Len(t, days, 2)
	assert.Equal(t, 19, days[0].Day())
	assert.Equal(t, 20, days[1].Day())
}
