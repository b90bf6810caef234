package feed

import (
	"github.com/jefvlamings/reolink-feed/internal/model"
)

// itemIndex provides O(1) lookups over the timeline list: by item id, the
// open item per correlation key and the most recently closed item per key.
// It is owned by the Manager and only touched under the Manager's lock.
type itemIndex struct {
	byID            map[string]*model.Item
	openByKey       map[model.Key]*model.Item
	lastClosedByKey map[model.Key]*model.Item
}

func newItemIndex() *itemIndex {
	return &itemIndex{
		byID:            make(map[string]*model.Item),
		openByKey:       make(map[model.Key]*model.Item),
		lastClosedByKey: make(map[model.Key]*model.Item),
	}
}

// rebuild derives all three maps from a newest-first item list.
func (ix *itemIndex) rebuild(items []*model.Item) {
	ix.byID = make(map[string]*model.Item, len(items))
	ix.openByKey = make(map[model.Key]*model.Item)
	ix.lastClosedByKey = make(map[model.Key]*model.Item)
	for _, item := range items {
		ix.byID[item.ID] = item
		key := item.Key()
		if item.Open() {
			if _, ok := ix.openByKey[key]; !ok {
				ix.openByKey[key] = item
			}
			continue
		}
		if prev, ok := ix.lastClosedByKey[key]; !ok || item.End().After(prev.End()) {
			ix.lastClosedByKey[key] = item
		}
	}
}

// insert registers a freshly created item.
func (ix *itemIndex) insert(item *model.Item) {
	ix.byID[item.ID] = item
	if item.Open() {
		ix.openByKey[item.Key()] = item
	} else {
		ix.markClosed(item)
	}
}

// markOpen moves an item from the closed side of its key to the open side.
func (ix *itemIndex) markOpen(item *model.Item) {
	key := item.Key()
	if ix.lastClosedByKey[key] == item {
		delete(ix.lastClosedByKey, key)
	}
	ix.openByKey[key] = item
}

// markClosed moves an item from the open side of its key to the closed side.
func (ix *itemIndex) markClosed(item *model.Item) {
	key := item.Key()
	if ix.openByKey[key] == item {
		delete(ix.openByKey, key)
	}
	if prev, ok := ix.lastClosedByKey[key]; !ok || !item.End().Before(prev.End()) {
		ix.lastClosedByKey[key] = item
	}
}

// remove unregisters an item from every map it appears in.
func (ix *itemIndex) remove(item *model.Item) {
	delete(ix.byID, item.ID)
	key := item.Key()
	if ix.openByKey[key] == item {
		delete(ix.openByKey, key)
	}
	if ix.lastClosedByKey[key] == item {
		delete(ix.lastClosedByKey, key)
	}
}
