package diskmanager

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jefvlamings/reolink-feed/internal/model"
)

// writeAsset creates the snapshot file for an item and links it via the
// public URL, returning the absolute path.
func writeTestAsset(t *testing.T, mediaRoot string, item *model.Item, size int) string {
	t.Helper()
	rel := AssetRelPath(item, ".jpg")
	abs := AssetPath(mediaRoot, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, make([]byte, size), 0o644))
	url := AssetURL("local", rel)
	item.SnapshotURL = &url
	return abs
}

func TestSyncSizesAndTotal(t *testing.T) {
	mediaRoot := t.TempDir()
	e := NewEnforcer(mediaRoot, "local", nil, nil)

	now := time.Now()
	a := testItem("a", now)
	b := testItem("b", now.Add(-time.Minute))
	b.CameraName = "Back"
	writeTestAsset(t, mediaRoot, a, 1000)
	writeTestAsset(t, mediaRoot, b, 500)
	noAsset := testItem("c", now.Add(-2*time.Minute))

	e.SyncSizes([]*model.Item{a, b, noAsset})
	assert.EqualValues(t, 1500, e.TotalBytes())
}

func TestRefreshItemAndForget(t *testing.T) {
	mediaRoot := t.TempDir()
	e := NewEnforcer(mediaRoot, "local", nil, nil)

	now := time.Now()
	a := testItem("a", now)
	e.SyncSizes([]*model.Item{a})
	assert.EqualValues(t, 0, e.TotalBytes())

	writeTestAsset(t, mediaRoot, a, 2048)
	e.RefreshItem(a)
	assert.EqualValues(t, 2048, e.TotalBytes())

	e.Forget(a.ID)
	assert.EqualValues(t, 0, e.TotalBytes())
}

func TestDeleteAssetsRemovesFiles(t *testing.T) {
	mediaRoot := t.TempDir()
	e := NewEnforcer(mediaRoot, "local", nil, nil)

	now := time.Now()
	a := testItem("a", now)
	abs := writeTestAsset(t, mediaRoot, a, 100)
	e.SyncSizes([]*model.Item{a})

	e.DeleteAssets(a)
	_, err := os.Stat(abs)
	assert.True(t, os.IsNotExist(err))
	assert.EqualValues(t, 0, e.TotalBytes())
}

func TestTrimStorageRemovesOldestFirst(t *testing.T) {
	mediaRoot := t.TempDir()
	e := NewEnforcer(mediaRoot, "local", nil, nil)

	now := time.Now()
	newest := testItem("newest", now)
	middle := testItem("middle", now.Add(-time.Minute))
	middle.CameraName = "Back"
	oldest := testItem("oldest", now.Add(-2*time.Minute))
	oldest.CameraName = "Side"
	writeTestAsset(t, mediaRoot, newest, 600)
	writeTestAsset(t, mediaRoot, middle, 600)
	writeTestAsset(t, mediaRoot, oldest, 600)

	items := []*model.Item{newest, middle, oldest}
	e.SyncSizes(items)

	kept, removed := e.TrimStorage(items, 1300)
	require.Len(t, removed, 1)
	assert.Equal(t, "oldest", removed[0].ID)
	assert.Len(t, kept, 2)

	kept, removed = e.TrimStorage(items, 5000)
	assert.Len(t, kept, 3)
	assert.Empty(t, removed, "under budget trims nothing")

	kept, removed = e.TrimStorage(items, 0)
	assert.Empty(t, kept)
	assert.Len(t, removed, 3)
}

func TestTrimStorageCountsOnlyGivenItems(t *testing.T) {
	mediaRoot := t.TempDir()
	e := NewEnforcer(mediaRoot, "local", nil, nil)

	now := time.Now()
	expired := testItem("expired", now.Add(-48*time.Hour))
	fresh := testItem("fresh", now)
	fresh.CameraName = "Back"
	writeTestAsset(t, mediaRoot, expired, 1000)
	writeTestAsset(t, mediaRoot, fresh, 100)
	e.SyncSizes([]*model.Item{fresh, expired})

	// The expired item was removed by an earlier trim pass but not yet
	// forgotten; its ledger bytes must not count against the survivors.
	kept, removed := e.TrimStorage([]*model.Item{fresh}, 500)
	assert.Empty(t, removed)
	require.Len(t, kept, 1)
	assert.Equal(t, "fresh", kept[0].ID)

	kept, removed = e.TrimStorage([]*model.Item{fresh}, 50)
	assert.Empty(t, kept)
	require.Len(t, removed, 1, "over budget on its own bytes still trims")
}
