package feed

import (
	"github.com/jefvlamings/reolink-feed/internal/diskmanager"
)

// RunCleanup applies the three retention limits in order: age, count, then
// the storage byte budget. Assets of removed items are deleted best-effort
// and any removal schedules a save.
func (m *Manager) RunCleanup() {
	now := m.sched.Clock().Now()
	cutoff := m.settings.Feed.RetentionCutoff(now)

	m.mu.Lock()
	kept, byAge := diskmanager.TrimAge(m.items, cutoff)
	kept, byCount := diskmanager.TrimCount(kept, m.settings.Feed.MaxDetections)
	kept, byStorage := m.enforcer.TrimStorage(kept, m.settings.Feed.MaxStorageBytes())
	m.items = kept
	removedAny := len(byAge)+len(byCount)+len(byStorage) > 0
	if removedAny {
		m.idx.rebuild(kept)
	}
	m.mu.Unlock()

	if !removedAny {
		return
	}

	m.dropAssets(byAge, "age")
	m.dropAssets(byCount, "count")
	m.dropAssets(byStorage, "storage")
	m.logger.Info("cleanup pass removed items",
		"by_age", len(byAge), "by_count", len(byCount), "by_storage", len(byStorage),
		"remaining", len(kept))
	m.scheduleSave()
}

// cleanupTick is the periodic cleanup timer callback; it re-arms itself.
func (m *Manager) cleanupTick() {
	m.RunCleanup()
	m.sched.Schedule(cleanupKey, m.cleanupInterval(), m.cleanupTick)
}

// enforceStorage trims by the byte budget alone, called after an asset
// write grows the ledger between cleanup passes.
func (m *Manager) enforceStorage() {
	m.mu.Lock()
	kept, removed := m.enforcer.TrimStorage(m.items, m.settings.Feed.MaxStorageBytes())
	m.items = kept
	if len(removed) > 0 {
		m.idx.rebuild(kept)
	}
	m.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	m.dropAssets(removed, "storage")
	m.logger.Info("storage budget trim", "removed", len(removed), "remaining", len(kept))
	m.scheduleSave()
}
