package feed

import (
	"context"
	"fmt"

	"github.com/jefvlamings/reolink-feed/internal/errors"
	"github.com/jefvlamings/reolink-feed/internal/model"
)

// resolveAttempt runs one rung of an item's resolution ladder. The resolver
// works on a copy so no lock is held during catalog I/O; the outcome is
// applied only if the item still exists, is still closed and has not been
// linked in the meantime.
func (m *Manager) resolveAttempt(ctx context.Context, itemID string, attempt int, final bool) {
	m.mu.Lock()
	item, ok := m.idx.byID[itemID]
	if !ok {
		m.mu.Unlock()
		m.sched.Cancel(resolveKey(itemID))
		return
	}
	if item.Open() {
		// Reopened while the rung was queued; a fresh ladder is armed when
		// the item closes again.
		m.mu.Unlock()
		return
	}
	if item.Recording.Status != model.RecordingPending {
		m.mu.Unlock()
		m.sched.Cancel(resolveKey(itemID))
		return
	}
	c := *item
	m.mu.Unlock()

	rec, err := m.resolver.Resolve(ctx, c, final)
	if err != nil {
		m.logger.Warn("recording resolution attempt failed",
			"item_id", itemID, "attempt", attempt+1, "final", final, "error", err)
		if !final {
			return
		}
		rec = model.NotFoundRecording()
	}

	if changed := m.applyRecording(itemID, rec, &c); changed {
		m.scheduleSave()
	}
}

// ResolveRecording resolves an item's recording synchronously, outside the
// ladder. Used by the reconciler and the manual re-resolve operation.
// Linked recordings are never downgraded.
func (m *Manager) ResolveRecording(ctx context.Context, itemID string, finalAttempt bool) (model.Item, error) {
	m.mu.Lock()
	item, ok := m.idx.byID[itemID]
	if !ok {
		m.mu.Unlock()
		return model.Item{}, errors.New(fmt.Errorf("item %s not found", itemID)).
			Component("feed").
			Category(errors.CategoryNotFound).
			Build()
	}
	if item.Open() {
		c := *item
		m.mu.Unlock()
		return c, errors.New(fmt.Errorf("item %s is still open", itemID)).
			Component("feed").
			Category(errors.CategoryState).
			Build()
	}
	if item.Recording.Linked() {
		c := *item
		m.mu.Unlock()
		return c, nil
	}
	c := *item
	m.mu.Unlock()

	rec, err := m.resolver.Resolve(ctx, c, finalAttempt)
	if err != nil {
		if !finalAttempt {
			return c, err
		}
		rec = model.NotFoundRecording()
	}

	if changed := m.applyRecording(itemID, rec, &c); changed {
		m.scheduleSave()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.idx.byID[itemID]; ok {
		return *current, nil
	}
	c.Recording = rec
	return c, nil
}

// applyRecording installs a resolution outcome on the item, keeping linking
// monotone. Returns whether the stored state changed.
func (m *Manager) applyRecording(itemID string, rec model.Recording, c *model.Item) bool {
	m.mu.Lock()
	item, ok := m.idx.byID[itemID]
	if !ok || item.Open() {
		m.mu.Unlock()
		return false
	}
	if item.Recording.Linked() && !rec.Linked() {
		m.mu.Unlock()
		return false
	}
	changed := item.Recording.Status != rec.Status ||
		item.Recording.MediaContentID != rec.MediaContentID ||
		item.Recording.LocalURL != rec.LocalURL
	item.Recording = rec
	m.mu.Unlock()

	m.metrics.ResolutionOutcomes.WithLabelValues(string(rec.Status)).Inc()

	if rec.Terminal() {
		m.sched.Cancel(resolveKey(itemID))
	}
	if rec.Cached() {
		c.Recording = rec
		m.enforcer.RefreshItem(c)
		m.enforceStorage()
	}
	if rec.Linked() {
		m.logger.Info("recording linked",
			"item_id", itemID, "content_id", rec.MediaContentID, "cached", rec.Cached())
	}
	return changed
}
