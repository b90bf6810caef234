// Package feed contains the detection lifecycle engine: the correlator that
// turns signal transitions into timeline items, the timers that drive
// snapshot capture and recording resolution, and the retention wiring.
package feed

import (
	"context"
	"time"

	"github.com/jefvlamings/reolink-feed/internal/model"
)

// Transition is one state change of a detection signal, already filtered to
// the binary-sensor namespace by the event source.
type Transition struct {
	EntityID     string
	From         string
	To           string
	FriendlyName string
	At           time.Time
}

// EntityEntry is the registry metadata of a source entity.
type EntityEntry struct {
	EntityID       string
	TranslationKey string
	UniqueID       string
	DeviceID       string
	Disabled       bool
}

// Directory is the hub's entity and device registry.
type Directory interface {
	// Entity returns registry metadata for an entity, or nil when unknown.
	Entity(ctx context.Context, entityID string) (*EntityEntry, error)

	// EntitiesForDevice lists all entities belonging to a device.
	EntitiesForDevice(ctx context.Context, deviceID string) ([]EntityEntry, error)

	// HasLiveState reports whether the entity currently has a state.
	HasLiveState(ctx context.Context, entityID string) (bool, error)

	// ListEntities lists registry entries whose entity id starts with the
	// given domain prefix, e.g. "binary_sensor.".
	ListEntities(ctx context.Context, domain string) ([]EntityEntry, error)
}

// Snapshotter captures a still image from a camera entity.
type Snapshotter interface {
	CaptureImage(ctx context.Context, cameraEntityID string) ([]byte, error)
}

// Resolver matches a closed item to a recording. Implemented by the
// recording package; the item is passed by value so the resolver can do
// slow I/O without holding the engine lock.
type Resolver interface {
	Resolve(ctx context.Context, item model.Item, finalAttempt bool) (model.Recording, error)
}
