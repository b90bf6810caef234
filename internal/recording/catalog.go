// Package recording matches closed detection items to clips in the hub's
// hierarchical media catalog, scores the candidates against the event's
// time window and caches the winning clip on disk.
package recording

import (
	"context"
)

// RootContentID is the well-known identifier of the catalog root. Its
// children are the camera nodes.
const RootContentID = "media-source://reolink"

// Node is one entry in the media catalog tree: a camera, a resolution tier,
// a day folder, an event-type folder or a clip.
type Node struct {
	Title     string
	ContentID string
	CanExpand bool
}

// Catalog is the hub's media browsing service. Browse lists the children of
// a node; Resolve turns a clip node into a downloadable URL, absolute or
// host-relative.
type Catalog interface {
	Browse(ctx context.Context, contentID string) ([]Node, error)
	Resolve(ctx context.Context, contentID string) (string, error)
}
