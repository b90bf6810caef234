package diskmanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jefvlamings/reolink-feed/internal/model"
)

func testItem(id string, start time.Time) *model.Item {
	return &model.Item{
		ID:         id,
		StartTS:    start,
		Label:      model.LabelPerson,
		CameraName: "Front Door",
		Recording:  model.PendingRecording(),
	}
}

func TestAssetRelPathLayout(t *testing.T) {
	start := time.Date(2026, 2, 19, 12, 34, 56, 0, time.Local)
	item := testItem("a", start)

	rel := AssetRelPath(item, ".jpg")
	assert.Equal(t, "reolink_feed/front_door/2026-02-19/123456_person.jpg", rel)
}

func TestAssetRelPathEmptyCameraFallsBack(t *testing.T) {
	start := time.Date(2026, 2, 19, 0, 0, 1, 0, time.Local)
	item := testItem("a", start)
	item.CameraName = "!!!"

	rel := AssetRelPath(item, ".mp4")
	assert.Equal(t, "reolink_feed/camera/2026-02-19/000001_person.mp4", rel)
}

func TestPathFromURLRoundTrip(t *testing.T) {
	start := time.Date(2026, 2, 19, 12, 34, 56, 0, time.Local)
	item := testItem("a", start)

	rel := AssetRelPath(item, ".jpg")
	url := AssetURL("local", rel)

	path, ok := PathFromURL("/data/media", "local", url)
	require.True(t, ok)
	assert.Equal(t, AssetPath("/data/media", rel), path)
}

func TestPathFromURLRejectsForeignURLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"other media source", "/media/other/reolink_feed/cam/2026-02-19/x.jpg"},
		{"outside namespace", "/media/local/other_app/cam/x.jpg"},
		{"path traversal", "/media/local/reolink_feed/../../../etc/passwd"},
		{"not a media url", "https://example.com/x.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := PathFromURL("/data/media", "local", tt.url)
			assert.False(t, ok)
		})
	}
}

func TestTrimAge(t *testing.T) {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)

	fresh := testItem("fresh", now.Add(-time.Hour))
	edge := testItem("edge", cutoff)
	stale := testItem("stale", cutoff.Add(-time.Minute))

	kept, removed := TrimAge([]*model.Item{fresh, edge, stale}, cutoff)
	require.Len(t, kept, 2)
	require.Len(t, removed, 1)
	assert.Equal(t, "stale", removed[0].ID)
	assert.Equal(t, "edge", kept[1].ID, "item exactly at the cutoff is kept")
}

func TestTrimCount(t *testing.T) {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	var items []*model.Item
	for i := 0; i < 5; i++ {
		items = append(items, testItem(string(rune('a'+i)), now.Add(-time.Duration(i)*time.Minute)))
	}

	kept, removed := TrimCount(items, 3)
	require.Len(t, kept, 3)
	require.Len(t, removed, 2)
	assert.Equal(t, "a", kept[0].ID)
	assert.Equal(t, "d", removed[0].ID, "oldest items drop from the tail")

	kept, removed = TrimCount(items[:2], 3)
	assert.Len(t, kept, 2)
	assert.Empty(t, removed)
}
