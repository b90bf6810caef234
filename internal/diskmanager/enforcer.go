package diskmanager

import (
	"log/slog"
	"os"
	"sync"

	"github.com/jefvlamings/reolink-feed/internal/model"
	"github.com/jefvlamings/reolink-feed/internal/observability"
)

// Enforcer owns the cached item→asset-size ledger used for storage quota
// enforcement. The ledger is synchronized against the current items at
// startup and updated incrementally on asset writes and removals, so the
// hot path never rescans the filesystem.
type Enforcer struct {
	mu            sync.Mutex
	mediaRoot     string
	mediaSourceID string
	sizes         map[string]int64
	total         int64
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewEnforcer creates an Enforcer for assets below mediaRoot. metrics may
// be nil.
func NewEnforcer(mediaRoot, mediaSourceID string, logger *slog.Logger, metrics *observability.Metrics) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		mediaRoot:     mediaRoot,
		mediaSourceID: mediaSourceID,
		sizes:         make(map[string]int64),
		logger:        logger,
		metrics:       metrics,
	}
}

// assetPaths returns the absolute paths of every on-disk asset the item
// references.
func (e *Enforcer) assetPaths(item *model.Item) []string {
	var paths []string
	if item.SnapshotURL != nil {
		if p, ok := PathFromURL(e.mediaRoot, e.mediaSourceID, *item.SnapshotURL); ok {
			paths = append(paths, p)
		}
	}
	if item.Recording.Cached() {
		if p, ok := PathFromURL(e.mediaRoot, e.mediaSourceID, item.Recording.LocalURL); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

func (e *Enforcer) measure(item *model.Item) int64 {
	var size int64
	for _, p := range e.assetPaths(item) {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size
}

// SyncSizes rebuilds the ledger from the current items. Called once after
// load; everything else is incremental.
func (e *Enforcer) SyncSizes(items []*model.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sizes = make(map[string]int64, len(items))
	e.total = 0
	for _, item := range items {
		size := e.measure(item)
		if size > 0 {
			e.sizes[item.ID] = size
			e.total += size
		}
	}
	e.publishTotal()
	e.logger.Debug("asset ledger synchronized", "items", len(items), "total_bytes", e.total)
}

// RefreshItem re-measures one item's assets after a write.
func (e *Enforcer) RefreshItem(item *model.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.total -= e.sizes[item.ID]
	size := e.measure(item)
	if size > 0 {
		e.sizes[item.ID] = size
	} else {
		delete(e.sizes, item.ID)
	}
	e.total += size
	e.publishTotal()
}

// Forget drops an item from the ledger without touching the filesystem.
func (e *Enforcer) Forget(itemID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.total -= e.sizes[itemID]
	delete(e.sizes, itemID)
	e.publishTotal()
}

// TotalBytes returns the cumulative cached asset size.
func (e *Enforcer) TotalBytes() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

// DeleteAssets removes the item's on-disk assets best-effort and forgets
// its ledger entry. Failures are logged, never fatal.
func (e *Enforcer) DeleteAssets(item *model.Item) {
	for _, p := range e.assetPaths(item) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("failed to delete asset", "path", p, "item_id", item.ID, "error", err)
		}
	}
	e.Forget(item.ID)
}

// RemoveAssetURL deletes one asset file referenced by a media URL,
// best-effort. The ledger is not touched; callers re-measure the owning
// item with RefreshItem.
func (e *Enforcer) RemoveAssetURL(url string) {
	p, ok := PathFromURL(e.mediaRoot, e.mediaSourceID, url)
	if !ok {
		return
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("failed to delete asset", "path", p, "error", err)
	}
}

// TrimStorage removes items oldest-first (from the tail of the newest-first
// list) until the cumulative cached asset size fits the byte budget. The
// running total is summed over the given items only, so ledger entries of
// items already removed by an earlier trim pass do not count against the
// budget. Asset deletion for removed items is the caller's responsibility.
func (e *Enforcer) TrimStorage(items []*model.Item, maxBytes int64) (kept, removed []*model.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var running int64
	for _, item := range items {
		running += e.sizes[item.ID]
	}
	cut := len(items)
	for cut > 0 && running > maxBytes {
		cut--
		running -= e.sizes[items[cut].ID]
	}
	if cut == len(items) {
		return items, nil
	}
	return items[:cut], items[cut:]
}

func (e *Enforcer) publishTotal() {
	if e.metrics != nil {
		e.metrics.CachedAssetBytes.Set(float64(e.total))
	}
}
