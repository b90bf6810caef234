// Package store persists the detection timeline as a versioned JSON
// document. Loading tolerates a missing document and never rejects items:
// unknown fields are ignored and missing optional fields get defaults.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jefvlamings/reolink-feed/internal/errors"
	"github.com/jefvlamings/reolink-feed/internal/model"
)

// DocumentVersion is the current schema version of the persisted document.
const DocumentVersion = 1

// Document is the on-disk shape of the timeline.
type Document struct {
	Version int          `json:"version"`
	Items   []model.Item `json:"items"`
}

// TimelineStore loads and saves the ordered item list.
type TimelineStore struct {
	path   string
	logger *slog.Logger
}

// New creates a TimelineStore writing to path.
func New(path string, logger *slog.Logger) *TimelineStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimelineStore{path: path, logger: logger}
}

// Load reads the persisted timeline. A missing document yields an empty
// list. Items are normalized after decoding (recording defaults to pending,
// legacy labels are mapped).
func (s *TimelineStore) Load() ([]*model.Item, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(fmt.Errorf("failed to read timeline document: %w", err)).
			Component("store").
			Category(errors.CategoryPersistence).
			Context("path", s.path).
			Build()
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(fmt.Errorf("failed to decode timeline document: %w", err)).
			Component("store").
			Category(errors.CategoryPersistence).
			Context("path", s.path).
			Build()
	}

	items := make([]*model.Item, 0, len(doc.Items))
	for i := range doc.Items {
		item := doc.Items[i]
		item.Normalize()
		items = append(items, &item)
	}

	s.logger.Debug("timeline loaded", "path", s.path, "items", len(items), "version", doc.Version)
	return items, nil
}

// Save writes the timeline document atomically via a temp file rename so a
// crash mid-write never corrupts the previous document.
func (s *TimelineStore) Save(items []*model.Item) error {
	doc := Document{Version: DocumentVersion, Items: make([]model.Item, 0, len(items))}
	for _, item := range items {
		doc.Items = append(doc.Items, *item)
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return errors.New(fmt.Errorf("failed to encode timeline document: %w", err)).
			Component("store").
			Category(errors.CategoryPersistence).
			Build()
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(fmt.Errorf("failed to create store directory: %w", err)).
			Component("store").
			Category(errors.CategoryPersistence).
			Context("path", dir).
			Build()
	}

	tmp, err := os.CreateTemp(dir, ".items-*.json")
	if err != nil {
		return errors.New(fmt.Errorf("failed to create temp document: %w", err)).
			Component("store").
			Category(errors.CategoryPersistence).
			Build()
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.New(fmt.Errorf("failed to write timeline document: %w", err)).
			Component("store").
			Category(errors.CategoryPersistence).
			Build()
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.New(fmt.Errorf("failed to close timeline document: %w", err)).
			Component("store").
			Category(errors.CategoryPersistence).
			Build()
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.New(fmt.Errorf("failed to replace timeline document: %w", err)).
			Component("store").
			Category(errors.CategoryPersistence).
			Context("path", s.path).
			Build()
	}

	s.logger.Debug("timeline saved", "path", s.path, "items", len(items))
	return nil
}
