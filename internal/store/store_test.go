package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jefvlamings/reolink-feed/internal/model"
)

func TestLoadMissingDocumentYieldsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "items.json"), nil)
	items, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	s := New(path, nil)

	start := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	open := &model.Item{ID: "open", StartTS: start, Label: model.LabelPerson,
		SourceEntityID: "binary_sensor.front_person", CameraName: "Front",
		Recording: model.PendingRecording()}
	closed := &model.Item{ID: "closed", StartTS: start.Add(-time.Hour), Label: model.LabelPet,
		SourceEntityID: "binary_sensor.garden_animal", CameraName: "Garden",
		Recording: model.NotFoundRecording()}
	closed.Close(start.Add(-time.Hour).Add(20 * time.Second))

	require.NoError(t, s.Save([]*model.Item{open, closed}))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "open", loaded[0].ID)
	assert.True(t, loaded[0].Open())
	assert.Equal(t, "closed", loaded[1].ID)
	assert.False(t, loaded[1].Open())
	assert.Equal(t, model.RecordingNotFound, loaded[1].Recording.Status)
}

func TestSaveWritesVersionedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	s := New(path, nil)
	require.NoError(t, s.Save(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.EqualValues(t, DocumentVersion, doc["version"])
}

func TestLoadToleratesUnknownFieldsAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	doc := `{
		"version": 1,
		"future_field": {"x": 1},
		"items": [
			{"id": "a", "start_ts": "2026-02-19T12:00:00+01:00", "label": "animal", "extra": true}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s := New(path, nil)
	items, err := s.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.LabelPet, items[0].Label)
	assert.Equal(t, model.RecordingPending, items[0].Recording.Status)
}

func TestLoadCorruptDocumentFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(path, nil)
	_, err := s.Load()
	assert.Error(t, err)
}

func TestSaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "items.json")
	s := New(path, nil)
	require.NoError(t, s.Save(nil))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
