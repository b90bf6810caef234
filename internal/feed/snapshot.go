package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jefvlamings/reolink-feed/internal/diskmanager"
	"github.com/jefvlamings/reolink-feed/internal/errors"
)

// snapshotTimeout bounds one capture round trip including the registry
// lookups that pick the camera.
const snapshotTimeout = 30 * time.Second

// captureSnapshot runs on the snapshot timer: pick the best camera for the
// item's signal, capture a still and attach it to the item. At most one
// snapshot is ever attached; the item may have been deleted or annotated
// while the capture was in flight, so the result is re-validated under the
// lock before it is applied.
func (m *Manager) captureSnapshot(itemID string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	m.mu.Lock()
	item, ok := m.idx.byID[itemID]
	if !ok || item.SnapshotURL != nil {
		m.mu.Unlock()
		return
	}
	c := *item
	m.mu.Unlock()

	cameraEntity, err := m.snapshotCamera(ctx, c.SourceEntityID)
	if err != nil {
		m.metrics.SnapshotFailures.Inc()
		m.logger.Warn("no snapshot camera for signal",
			"item_id", itemID, "source", c.SourceEntityID, "error", err)
		return
	}

	data, err := m.camera.CaptureImage(ctx, cameraEntity)
	if err != nil {
		m.metrics.SnapshotFailures.Inc()
		m.logger.Warn("snapshot capture failed",
			"item_id", itemID, "camera_entity", cameraEntity, "error", err)
		return
	}

	rel := diskmanager.AssetRelPath(&c, ".jpg")
	dest := diskmanager.AssetPath(m.settings.Feed.MediaRoot, rel)
	if err := writeAsset(dest, data); err != nil {
		m.metrics.SnapshotFailures.Inc()
		m.logger.Warn("snapshot persist failed", "item_id", itemID, "path", dest, "error", err)
		return
	}
	url := diskmanager.AssetURL(m.settings.Feed.MediaSourceID, rel)

	m.mu.Lock()
	item, ok = m.idx.byID[itemID]
	applied := ok && item.SetSnapshotURL(url)
	m.mu.Unlock()

	if !applied {
		_ = os.Remove(dest)
		return
	}

	c.SnapshotURL = &url
	m.enforcer.RefreshItem(&c)
	m.metrics.SnapshotsCaptured.Inc()
	m.logger.Debug("snapshot captured", "item_id", itemID, "camera_entity", cameraEntity, "url", url)
	m.scheduleSave()
}

// snapshotCamera picks the camera entity used to snapshot a signal: the
// enabled, live camera entities on the signal's device, preferring a
// low-bandwidth stream. Choices are cached per signal.
func (m *Manager) snapshotCamera(ctx context.Context, sourceEntityID string) (string, error) {
	if v, ok := m.cameraCache.Get(sourceEntityID); ok {
		return v.(string), nil
	}

	entry, err := m.directory.Entity(ctx, sourceEntityID)
	if err != nil {
		return "", err
	}
	if entry == nil || entry.DeviceID == "" {
		return "", errors.New(fmt.Errorf("signal %s has no device", sourceEntityID)).
			Component("feed").
			Category(errors.CategoryNotFound).
			Build()
	}

	siblings, err := m.directory.EntitiesForDevice(ctx, entry.DeviceID)
	if err != nil {
		return "", err
	}

	best := ""
	bestScore := -1
	for _, e := range siblings {
		if !strings.HasPrefix(e.EntityID, "camera.") || e.Disabled {
			continue
		}
		live, err := m.directory.HasLiveState(ctx, e.EntityID)
		if err != nil || !live {
			continue
		}
		score := cameraPreferenceScore(e.EntityID)
		if bestScore < 0 || score < bestScore || (score == bestScore && e.EntityID < best) {
			bestScore = score
			best = e.EntityID
		}
	}
	if best == "" {
		return "", errors.New(fmt.Errorf("no usable camera entity on device %s", entry.DeviceID)).
			Component("feed").
			Category(errors.CategoryNotFound).
			Build()
	}

	m.cameraCache.Set(sourceEntityID, best, cache.DefaultExpiration)
	return best, nil
}

// cameraPreferenceScore ranks camera entities for snapshots, lower is
// better. Low-bandwidth streams are preferred, telephoto lenses avoided.
// The camera firmware localizes entity names, so the Dutch stream names it
// is observed to produce are recognized too.
func cameraPreferenceScore(entityID string) int {
	id := strings.ToLower(entityID)
	switch {
	case strings.Contains(id, "telephoto"):
		return 100
	case strings.Contains(id, "fluent") || strings.Contains(id, "vloeiend") ||
		strings.Contains(id, "low") || strings.Contains(id, "sub"):
		return 0
	default:
		return 10
	}
}

// writeAsset persists an asset via a temp file rename so a crash mid-write
// never leaves a truncated file behind.
func writeAsset(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".asset-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
