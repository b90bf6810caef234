package feed

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jefvlamings/reolink-feed/internal/diskmanager"
	"github.com/jefvlamings/reolink-feed/internal/errors"
	"github.com/jefvlamings/reolink-feed/internal/model"
)

// ListQuery filters the timeline listing. A zero query returns the newest
// items up to the configured default limit.
type ListQuery struct {
	Labels []string
	Since  *time.Time
	Limit  int
}

// List returns item copies, newest first, matching the query.
func (m *Manager) List(q ListQuery) []model.Item {
	limit := q.Limit
	if limit <= 0 {
		limit = m.settings.Feed.ListLimit
	}
	wanted := make(map[string]bool, len(q.Labels))
	for _, l := range q.Labels {
		wanted[model.NormalizeLabel(l)] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Item, 0, limit)
	for _, item := range m.items {
		if len(out) >= limit {
			break
		}
		if len(wanted) > 0 && !wanted[item.Label] {
			continue
		}
		if q.Since != nil && item.StartTS.Before(*q.Since) {
			continue
		}
		out = append(out, *item)
	}
	return out
}

// Get returns a copy of one item by id.
func (m *Manager) Get(itemID string) (model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.idx.byID[itemID]
	if !ok {
		return model.Item{}, errors.New(fmt.Errorf("item %s not found", itemID)).
			Component("feed").
			Category(errors.CategoryNotFound).
			Build()
	}
	return *item, nil
}

// Delete removes one item, its timers and its on-disk assets.
func (m *Manager) Delete(itemID string) error {
	m.mu.Lock()
	item, ok := m.idx.byID[itemID]
	if !ok {
		m.mu.Unlock()
		return errors.New(fmt.Errorf("item %s not found", itemID)).
			Component("feed").
			Category(errors.CategoryNotFound).
			Build()
	}
	m.idx.remove(item)
	kept := m.items[:0]
	for _, it := range m.items {
		if it != item {
			kept = append(kept, it)
		}
	}
	m.items = kept
	m.mu.Unlock()

	m.dropAssets([]*model.Item{item}, "deleted")
	m.logger.Info("item deleted", "item_id", itemID)
	m.scheduleSave()
	return nil
}

// MockParams controls the synthetic item created for UI and pipeline
// testing. Zero values fall back to a 12 second person event on a mock
// camera with a placeholder snapshot. EntityID, when empty, is fabricated
// from the camera name and label.
type MockParams struct {
	EntityID   string
	CameraName string
	Label      string
	DurationS  int
	NoSnapshot bool
}

// CreateMockItem injects a closed synthetic item ending now. The item goes
// through the normal resolution ladder and retention limits like a real
// detection.
func (m *Manager) CreateMockItem(p MockParams) (model.Item, error) {
	if p.CameraName == "" {
		p.CameraName = "Mock Camera"
	}
	if p.Label == "" {
		p.Label = model.LabelPerson
	}
	p.Label = model.NormalizeLabel(p.Label)
	if !model.ValidLabel(p.Label) {
		return model.Item{}, errors.New(fmt.Errorf("unsupported label %q", p.Label)).
			Component("feed").
			Category(errors.CategoryValidation).
			Build()
	}
	if p.DurationS <= 0 {
		p.DurationS = 12
	}
	if p.EntityID == "" {
		p.EntityID = "binary_sensor." + model.Slugify(p.CameraName) + "_" + p.Label
	}

	now := m.sched.Clock().Now()
	item := &model.Item{
		ID:             uuid.New().String(),
		StartTS:        now.Add(-time.Duration(p.DurationS) * time.Second),
		Label:          p.Label,
		SourceEntityID: p.EntityID,
		CameraName:     p.CameraName,
		Recording:      model.PendingRecording(),
	}
	item.Close(now)

	if !p.NoSnapshot {
		rel := diskmanager.AssetRelPath(item, ".svg")
		dest := diskmanager.AssetPath(m.settings.Feed.MediaRoot, rel)
		if err := writeAsset(dest, placeholderSVG(p.CameraName, p.Label)); err != nil {
			m.logger.Warn("mock snapshot write failed", "path", dest, "error", err)
		} else {
			url := diskmanager.AssetURL(m.settings.Feed.MediaSourceID, rel)
			item.SetSnapshotURL(url)
		}
	}

	m.mu.Lock()
	m.items = append([]*model.Item{item}, m.items...)
	sortNewestFirst(m.items)
	m.idx.insert(item)
	kept, removed := diskmanager.TrimCount(m.items, m.settings.Feed.MaxDetections)
	m.items = kept
	for _, r := range removed {
		m.idx.remove(r)
	}
	c := *item
	m.mu.Unlock()

	m.dropAssets(removed, "count")
	if c.SnapshotURL != nil {
		m.enforcer.RefreshItem(&c)
	}
	m.metrics.ItemsOpened.Inc()
	m.metrics.ItemsClosed.Inc()
	m.logger.Info("mock item created", "item_id", c.ID, "camera", p.CameraName, "label", p.Label)

	m.scheduleResolution(c.ID)
	m.scheduleSave()
	return c, nil
}

func placeholderSVG(cameraName, label string) []byte {
	return []byte(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="640" height="360">`+
			`<rect width="100%%" height="100%%" fill="#3a3f44"/>`+
			`<text x="50%%" y="50%%" fill="#e0e0e0" font-family="sans-serif" font-size="28" `+
			`text-anchor="middle" dominant-baseline="middle">%s / %s</text></svg>`,
		cameraName, label))
}
