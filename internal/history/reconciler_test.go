package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jefvlamings/reolink-feed/internal/conf"
	"github.com/jefvlamings/reolink-feed/internal/diskmanager"
	"github.com/jefvlamings/reolink-feed/internal/feed"
	"github.com/jefvlamings/reolink-feed/internal/model"
	"github.com/jefvlamings/reolink-feed/internal/scheduler"
	"github.com/jefvlamings/reolink-feed/internal/store"
)

var testNow = time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

func personSensor() feed.Sensor {
	return feed.Sensor{EntityID: "binary_sensor.front_person", Label: model.LabelPerson}
}

func change(state string, at time.Time) StateChange {
	return StateChange{State: state, ChangedAt: at, FriendlyName: "Front Person"}
}

func TestCandidatesPairOnOff(t *testing.T) {
	changes := []StateChange{
		change("on", testNow),
		change("off", testNow.Add(15*time.Second)),
		change("on", testNow.Add(5*time.Minute)),
		change("off", testNow.Add(5*time.Minute+20*time.Second)),
	}

	items := candidatesFromHistory(personSensor(), changes, testNow.Add(-24*time.Hour), 20*time.Second)
	require.Len(t, items, 2)

	assert.True(t, items[0].StartTS.Equal(testNow))
	assert.True(t, items[0].End().Equal(testNow.Add(15*time.Second)))
	assert.False(t, items[0].Open())
	assert.Equal(t, model.LabelPerson, items[0].Label)
	assert.Equal(t, "Front", items[0].CameraName)
	assert.Equal(t, model.RecordingPending, items[0].Recording.Status)
}

func TestCandidatesHandleUnsortedHistory(t *testing.T) {
	changes := []StateChange{
		change("off", testNow.Add(15*time.Second)),
		change("on", testNow),
	}
	items := candidatesFromHistory(personSensor(), changes, testNow.Add(-24*time.Hour), 20*time.Second)
	require.Len(t, items, 1)
	assert.True(t, items[0].StartTS.Equal(testNow))
}

func TestCandidatesCoalesceWithinMergeWindow(t *testing.T) {
	changes := []StateChange{
		change("on", testNow),
		change("off", testNow.Add(10*time.Second)),
		// 20s gap: exactly the window, coalesces.
		change("on", testNow.Add(30*time.Second)),
		change("off", testNow.Add(45*time.Second)),
		// 30s gap: separate run.
		change("on", testNow.Add(75*time.Second)),
		change("off", testNow.Add(90*time.Second)),
	}

	items := candidatesFromHistory(personSensor(), changes, testNow.Add(-24*time.Hour), 20*time.Second)
	require.Len(t, items, 2)
	assert.True(t, items[0].StartTS.Equal(testNow))
	assert.True(t, items[0].End().Equal(testNow.Add(45*time.Second)))
	assert.True(t, items[1].StartTS.Equal(testNow.Add(75*time.Second)))
}

func TestCandidatesDropTrailingOnAndStale(t *testing.T) {
	cutoff := testNow.Add(-24 * time.Hour)
	changes := []StateChange{
		// Ended before the cutoff.
		change("on", cutoff.Add(-time.Hour)),
		change("off", cutoff.Add(-time.Hour).Add(10*time.Second)),
		// Unmatched trailing on.
		change("on", testNow),
	}
	items := candidatesFromHistory(personSensor(), changes, cutoff, 20*time.Second)
	assert.Empty(t, items)
}

func TestCandidatesIgnoreOffWithoutOn(t *testing.T) {
	changes := []StateChange{
		change("off", testNow),
		change("on", testNow.Add(time.Minute)),
		change("off", testNow.Add(time.Minute+10*time.Second)),
	}
	items := candidatesFromHistory(personSensor(), changes, testNow.Add(-24*time.Hour), 20*time.Second)
	require.Len(t, items, 1)
	assert.True(t, items[0].StartTS.Equal(testNow.Add(time.Minute)))
}

func TestCandidatesIgnoreUnknownStates(t *testing.T) {
	changes := []StateChange{
		change("on", testNow),
		change("unavailable", testNow.Add(5*time.Second)),
		change("off", testNow.Add(10*time.Second)),
	}
	items := candidatesFromHistory(personSensor(), changes, testNow.Add(-24*time.Hour), 20*time.Second)
	require.Len(t, items, 1)
	assert.True(t, items[0].End().Equal(testNow.Add(10*time.Second)))
}

type fakeSource struct {
	changes map[string][]StateChange
	err     error
}

func (s *fakeSource) RecentChanges(_ context.Context, entityID string, _ int) ([]StateChange, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.changes[entityID], nil
}

type stubDirectory struct {
	entries []feed.EntityEntry
}

func (d *stubDirectory) Entity(_ context.Context, _ string) (*feed.EntityEntry, error) {
	return nil, nil
}

func (d *stubDirectory) EntitiesForDevice(_ context.Context, _ string) ([]feed.EntityEntry, error) {
	return nil, nil
}

func (d *stubDirectory) HasLiveState(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (d *stubDirectory) ListEntities(_ context.Context, _ string) ([]feed.EntityEntry, error) {
	return d.entries, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, _ model.Item, final bool) (model.Recording, error) {
	if final {
		return model.NotFoundRecording(), nil
	}
	return model.PendingRecording(), nil
}

func newTestReconciler(t *testing.T, src Source) (*Reconciler, *feed.Manager) {
	t.Helper()
	root := t.TempDir()

	settings := &conf.Settings{}
	settings.Feed = conf.FeedSettings{
		EnabledLabels:        []string{"person", "pet", "vehicle", "motion", "visitor"},
		RetentionHours:       24,
		MaxDetections:        100,
		MergeWindowSeconds:   20,
		ListLimit:            200,
		StorePath:            filepath.Join(root, "items.json"),
		MediaRoot:            filepath.Join(root, "media"),
		MediaSourceID:        "local",
		RecordingRetryDelays: []int{10},
	}

	directory := &stubDirectory{entries: []feed.EntityEntry{
		{EntityID: "binary_sensor.front_person", TranslationKey: "person"},
	}}
	sched := scheduler.New(scheduler.NewManualClock(testNow), nil)
	enforcer := diskmanager.NewEnforcer(settings.Feed.MediaRoot, settings.Feed.MediaSourceID, nil, nil)
	timelineStore := store.New(settings.Feed.StorePath, nil)

	manager := feed.New(settings, timelineStore, sched, directory, nil, stubResolver{},
		enforcer, nil, nil)
	return New(manager, src, settings, nil), manager
}

func TestRebuildAddsAndResolvesItems(t *testing.T) {
	src := &fakeSource{changes: map[string][]StateChange{
		"binary_sensor.front_person": {
			change("on", testNow.Add(-time.Hour)),
			change("off", testNow.Add(-time.Hour).Add(15*time.Second)),
		},
	}}
	r, manager := newTestReconciler(t, src)

	summary, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EntitiesScanned)
	assert.Equal(t, 1, summary.ItemsAdded)
	assert.Equal(t, 0, summary.ItemsMerged)
	assert.Equal(t, 1, summary.ItemsResolved)

	items := manager.List(feed.ListQuery{})
	require.Len(t, items, 1)
	assert.Equal(t, model.RecordingNotFound, items[0].Recording.Status,
		"rebuilt items resolve with a final attempt")
}

func TestResolveAllCountsOnlySuccesses(t *testing.T) {
	r, manager := newTestReconciler(t, &fakeSource{})

	item, err := manager.CreateMockItem(feed.MockParams{NoSnapshot: true})
	require.NoError(t, err)

	resolved := r.resolveAll(context.Background(), []string{item.ID, "no-such-item"})
	assert.Equal(t, 1, resolved, "failed resolutions are not counted")
}

func TestRebuildAbortsOnHistoryFailure(t *testing.T) {
	src := &fakeSource{err: context.DeadlineExceeded}
	r, manager := newTestReconciler(t, src)

	_, err := r.Rebuild(context.Background())
	require.Error(t, err)
	assert.Empty(t, manager.List(feed.ListQuery{}), "timeline untouched on failure")
}
