package feed

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jefvlamings/reolink-feed/internal/conf"
	"github.com/jefvlamings/reolink-feed/internal/diskmanager"
	"github.com/jefvlamings/reolink-feed/internal/model"
	"github.com/jefvlamings/reolink-feed/internal/observability"
	"github.com/jefvlamings/reolink-feed/internal/scheduler"
	"github.com/jefvlamings/reolink-feed/internal/store"
)

const (
	// signalDomain is the entity namespace detection signals live in.
	signalDomain = "binary_sensor."

	saveKey    = "save"
	cleanupKey = "cleanup"

	// saveDelay debounces persistence so a burst of transitions produces a
	// single write.
	saveDelay = time.Second
)

func snapshotKey(itemID string) string { return "snapshot:" + itemID }
func resolveKey(itemID string) string  { return "resolve:" + itemID }

// Manager is the detection lifecycle engine. It correlates signal
// transitions into timeline items, drives snapshot capture and recording
// resolution through keyed timers and enforces the retention limits.
//
// All timeline state is guarded by mu. Slow work (snapshots, catalog
// browsing, downloads) runs on copies and re-validates against the index
// before applying results, so the lock is never held across I/O.
type Manager struct {
	mu      sync.Mutex
	items   []*model.Item // newest first
	idx     *itemIndex
	stopped bool

	settings  *conf.Settings
	store     *store.TimelineStore
	sched     *scheduler.Scheduler
	directory Directory
	camera    Snapshotter
	resolver  Resolver
	enforcer  *diskmanager.Enforcer
	metrics   *observability.Metrics
	logger    *slog.Logger

	// labelCache memoizes entity → label lookups, including misses, so a
	// chatty unrelated sensor costs one registry round trip, not one per
	// transition. cameraCache memoizes signal → snapshot camera choices.
	labelCache  *cache.Cache
	cameraCache *cache.Cache
}

// New wires a Manager from its collaborators. metrics may be nil.
func New(settings *conf.Settings, timelineStore *store.TimelineStore, sched *scheduler.Scheduler,
	directory Directory, camera Snapshotter, resolver Resolver,
	enforcer *diskmanager.Enforcer, metrics *observability.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &Manager{
		idx:         newItemIndex(),
		settings:    settings,
		store:       timelineStore,
		sched:       sched,
		directory:   directory,
		camera:      camera,
		resolver:    resolver,
		enforcer:    enforcer,
		metrics:     metrics,
		logger:      logger,
		labelCache:  cache.New(12*time.Hour, 30*time.Minute),
		cameraCache: cache.New(12*time.Hour, 30*time.Minute),
	}
}

// Start loads the persisted timeline, synchronizes the asset ledger, runs an
// initial retention pass and arms the periodic cleanup timer. Resolution
// ladders of closed items still pending are re-armed so a restart does not
// strand them.
func (m *Manager) Start(ctx context.Context) error {
	items, err := m.store.Load()
	if err != nil {
		return err
	}
	sortNewestFirst(items)

	m.mu.Lock()
	m.items = items
	m.idx.rebuild(items)
	m.mu.Unlock()

	m.enforcer.SyncSizes(items)
	m.RunCleanup()

	m.mu.Lock()
	var pending []string
	for _, item := range m.items {
		if !item.Open() && item.Recording.Status == model.RecordingPending {
			pending = append(pending, item.ID)
		}
	}
	m.mu.Unlock()
	for _, id := range pending {
		m.scheduleResolution(id)
	}

	m.sched.Schedule(cleanupKey, m.cleanupInterval(), m.cleanupTick)
	m.logger.Info("feed started", "items", len(items), "pending_resolutions", len(pending))
	return nil
}

// Stop cancels every timer and writes the timeline a final time. After Stop
// no timer callback runs and new transitions are ignored.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.sched.Stop()
	if err := m.saveNow(); err != nil {
		m.logger.Error("final timeline save failed", "error", err)
		m.metrics.SaveFailures.Inc()
	}
}

// HandleTransition feeds one signal state change into the correlator.
// Transitions outside the binary-sensor namespace, for disabled labels or
// without a state change are ignored.
func (m *Manager) HandleTransition(ctx context.Context, t Transition) {
	if !strings.HasPrefix(t.EntityID, signalDomain) || t.From == t.To {
		return
	}
	label := m.resolveLabel(ctx, t.EntityID)
	if label == "" || !m.labelEnabled(label) {
		return
	}

	camera := model.CameraNameFromSource(t.EntityID, t.FriendlyName)
	key := model.Key{Camera: camera, Label: label}

	switch {
	case t.To == "on" && t.From == "off":
		m.handleSignalOn(key, t)
	case t.To == "off" && t.From == "on":
		m.handleSignalOff(key, t)
	}
}

// handleSignalOn opens a new item for the key, or reopens the last closed
// one when the gap since its end is within the merge window. A duplicate on
// while an item is already open is a no-op.
func (m *Manager) handleSignalOn(key model.Key, t Transition) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if _, ok := m.idx.openByKey[key]; ok {
		m.mu.Unlock()
		return
	}

	if last, ok := m.idx.lastClosedByKey[key]; ok &&
		t.At.Sub(last.End()) <= m.settings.Feed.MergeWindow() {
		staleRec := last.Recording
		last.Reopen()
		m.idx.markOpen(last)
		id := last.ID
		c := *last
		m.mu.Unlock()

		m.sched.Cancel(resolveKey(id))
		if staleRec.Cached() {
			m.enforcer.RemoveAssetURL(staleRec.LocalURL)
			m.enforcer.RefreshItem(&c)
		}
		m.metrics.ItemsReopened.Inc()
		m.logger.Debug("item reopened within merge window",
			"item_id", id, "camera", key.Camera, "label", key.Label)
		m.scheduleSave()
		return
	}

	item := &model.Item{
		ID:             uuid.New().String(),
		StartTS:        t.At,
		Label:          key.Label,
		SourceEntityID: t.EntityID,
		CameraName:     key.Camera,
		Recording:      model.PendingRecording(),
	}
	m.items = append([]*model.Item{item}, m.items...)
	m.idx.insert(item)
	kept, removed := diskmanager.TrimCount(m.items, m.settings.Feed.MaxDetections)
	m.items = kept
	for _, r := range removed {
		m.idx.remove(r)
	}
	m.mu.Unlock()

	m.dropAssets(removed, "count")
	m.metrics.ItemsOpened.Inc()
	m.logger.Info("item opened",
		"item_id", item.ID, "camera", key.Camera, "label", key.Label, "source", t.EntityID)

	delay := time.Duration(m.settings.Feed.SnapshotDelay * float64(time.Second))
	itemID := item.ID
	m.sched.Schedule(snapshotKey(itemID), delay, func() {
		m.captureSnapshot(itemID)
	})
	m.scheduleSave()
}

// handleSignalOff closes the open item for the key and arms its recording
// resolution ladder. An off without a matching open item is ignored.
func (m *Manager) handleSignalOff(key model.Key, t Transition) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	item, ok := m.idx.openByKey[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	item.Close(t.At)
	m.idx.markClosed(item)
	id := item.ID
	duration := 0
	if item.DurationS != nil {
		duration = *item.DurationS
	}
	m.mu.Unlock()

	m.metrics.ItemsClosed.Inc()
	m.logger.Info("item closed",
		"item_id", id, "camera", key.Camera, "label", key.Label, "duration_s", duration)
	m.scheduleResolution(id)
	m.scheduleSave()
}

// resolveLabel maps a signal entity to its detection label, consulting the
// registry first (translation key, then unique id suffix) and the entity id
// suffix as a fallback. Results, including misses, are cached.
func (m *Manager) resolveLabel(ctx context.Context, entityID string) string {
	if v, ok := m.labelCache.Get(entityID); ok {
		return v.(string)
	}

	entry, err := m.directory.Entity(ctx, entityID)
	if err != nil {
		// Registry unreachable: fall back to the entity id suffix without
		// caching, so the registry is retried next time.
		m.logger.Debug("registry lookup failed", "entity_id", entityID, "error", err)
		if label, ok := model.LabelFromSuffix(objectID(entityID)); ok {
			return label
		}
		return ""
	}

	label := labelFromEntry(entityID, entry)
	m.labelCache.Set(entityID, label, cache.DefaultExpiration)
	return label
}

func labelFromEntry(entityID string, entry *EntityEntry) string {
	if entry != nil {
		if label, ok := model.LabelFromTranslationKey(entry.TranslationKey); ok {
			return label
		}
		if label, ok := model.LabelFromSuffix(entry.UniqueID); ok {
			return label
		}
	}
	if label, ok := model.LabelFromSuffix(objectID(entityID)); ok {
		return label
	}
	return ""
}

func objectID(entityID string) string {
	if idx := strings.IndexByte(entityID, '.'); idx >= 0 {
		return entityID[idx+1:]
	}
	return entityID
}

func (m *Manager) labelEnabled(label string) bool {
	for _, l := range m.settings.Feed.EnabledLabels {
		if l == label {
			return true
		}
	}
	return false
}

// scheduleResolution arms the retry ladder for an item's recording
// resolution. The final rung forces a terminal outcome.
func (m *Manager) scheduleResolution(itemID string) {
	delays := make([]time.Duration, 0, len(m.settings.Feed.RecordingRetryDelays))
	for _, d := range m.settings.Feed.RecordingRetryDelays {
		delays = append(delays, time.Duration(d)*time.Second)
	}
	m.sched.ScheduleSequence(resolveKey(itemID), delays, func(attempt int, final bool) {
		m.resolveAttempt(context.Background(), itemID, attempt, final)
	})
}

// scheduleSave arms the debounced persistence timer. A failed save re-arms
// itself so the document is eventually written.
func (m *Manager) scheduleSave() {
	m.sched.Schedule(saveKey, saveDelay, m.persist)
}

func (m *Manager) persist() {
	if err := m.saveNow(); err != nil {
		m.logger.Error("timeline save failed, retrying", "error", err)
		m.metrics.SaveFailures.Inc()
		m.scheduleSave()
	}
}

// saveNow writes a point-in-time copy of the timeline. Items are copied
// under the lock so concurrent mutation cannot tear a document.
func (m *Manager) saveNow() error {
	m.mu.Lock()
	snapshot := make([]*model.Item, 0, len(m.items))
	for _, item := range m.items {
		c := *item
		snapshot = append(snapshot, &c)
	}
	m.mu.Unlock()
	return m.store.Save(snapshot)
}

func (m *Manager) cleanupInterval() time.Duration {
	return time.Duration(m.settings.Feed.CleanupInterval) * time.Second
}

// dropAssets deletes the on-disk assets of removed items, cancels their
// timers and counts them under the given trim reason.
func (m *Manager) dropAssets(removed []*model.Item, reason string) {
	for _, item := range removed {
		m.sched.Cancel(snapshotKey(item.ID))
		m.sched.Cancel(resolveKey(item.ID))
		m.enforcer.DeleteAssets(item)
		m.metrics.ItemsTrimmed.WithLabelValues(reason).Inc()
	}
}

func sortNewestFirst(items []*model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartTS.After(items[j].StartTS)
	})
}
