// Package diskmanager enforces the timeline's retention, count and storage
// limits and owns the on-disk assets (snapshots and cached recordings)
// referenced by items.
package diskmanager

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jefvlamings/reolink-feed/internal/model"
)

// assetNamespace is the directory under the media root that holds every
// asset this daemon writes.
const assetNamespace = "reolink_feed"

// AssetRelPath builds the relative asset path for an item:
// reolink_feed/<camera_slug>/<YYYY-MM-DD>/<HHMMSS>_<label><suffix>.
// The path is derived from the item's local start time so assets group by
// calendar day the way users browse them.
func AssetRelPath(item *model.Item, suffix string) string {
	started := item.StartTS.Local()
	slug := model.Slugify(item.CameraName)
	if slug == "" {
		slug = "camera"
	}
	return path.Join(
		assetNamespace,
		slug,
		started.Format("2006-01-02"),
		fmt.Sprintf("%s_%s%s", started.Format("150405"), item.Label, suffix),
	)
}

// AssetURL converts a relative asset path to the public media URL.
func AssetURL(mediaSourceID, rel string) string {
	return "/media/" + mediaSourceID + "/" + rel
}

// AssetPath converts a relative asset path to an absolute filesystem path.
func AssetPath(mediaRoot, rel string) string {
	return filepath.Join(mediaRoot, filepath.FromSlash(rel))
}

// PathFromURL maps a public media URL back to the absolute filesystem path
// of the asset. Returns false for URLs outside this daemon's namespace,
// including any attempt to traverse out of the media root.
func PathFromURL(mediaRoot, mediaSourceID, url string) (string, bool) {
	prefix := "/media/" + mediaSourceID + "/"
	rel, ok := strings.CutPrefix(url, prefix)
	if !ok || !strings.HasPrefix(rel, assetNamespace+"/") {
		return "", false
	}
	cleaned := path.Clean(rel)
	if cleaned != rel || strings.Contains(cleaned, "..") {
		return "", false
	}
	return AssetPath(mediaRoot, cleaned), true
}

// TrimAge splits a newest-first list into items started at or after the
// cutoff and items older than it.
func TrimAge(items []*model.Item, cutoff time.Time) (kept, removed []*model.Item) {
	kept = items[:0:0]
	for _, item := range items {
		if item.StartTS.Before(cutoff) {
			removed = append(removed, item)
		} else {
			kept = append(kept, item)
		}
	}
	return kept, removed
}

// TrimCount keeps only the newest max items. The list is newest-first, so
// this is a prefix keep.
func TrimCount(items []*model.Item, maxItems int) (kept, removed []*model.Item) {
	if maxItems < 0 {
		maxItems = 0
	}
	if len(items) <= maxItems {
		return items, nil
	}
	return items[:maxItems], items[maxItems:]
}
