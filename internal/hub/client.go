// Package hub is the typed client for the smart-home hub's REST API. It
// implements the narrow collaborator interfaces the feed engine consumes:
// the entity registry, camera snapshots, the media catalog and recorded
// state history.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jefvlamings/reolink-feed/internal/conf"
	"github.com/jefvlamings/reolink-feed/internal/errors"
	"github.com/jefvlamings/reolink-feed/internal/feed"
	"github.com/jefvlamings/reolink-feed/internal/httpclient"
)

// snapshotMaxBytes bounds one camera still; anything larger is a hub bug.
const snapshotMaxBytes = 16 << 20

// Client talks to the hub REST API. All calls carry the configured bearer
// token. Registry lookups are memoized; registry data changes rarely and
// the correlator consults it on every transition.
type Client struct {
	http     *httpclient.Client
	baseURL  string
	token    string
	registry *cache.Cache
	logger   *slog.Logger
}

// New creates a hub client from the hub settings.
func New(settings *conf.Settings, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(settings.Hub.Timeout) * time.Second
	hc := httpclient.New(&httpclient.Config{DefaultTimeout: timeout})

	c := &Client{
		http:     hc,
		baseURL:  strings.TrimRight(settings.Hub.BaseURL, "/"),
		token:    settings.Hub.Token,
		registry: cache.New(10*time.Minute, 5*time.Minute),
		logger:   logger,
	}
	hc.SetBeforeRequestHook(func(req *http.Request) {
		if c.token != "" && req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	})
	return c
}

// HTTP exposes the underlying pooled client so clip downloads share its
// connection pool and auth hook.
func (c *Client) HTTP() *httpclient.Client {
	return c.http
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// registryEntry is the wire shape of one entity registry record.
type registryEntry struct {
	EntityID       string `json:"entity_id"`
	TranslationKey string `json:"translation_key"`
	UniqueID       string `json:"unique_id"`
	DeviceID       string `json:"device_id"`
	DisabledBy     string `json:"disabled_by"`
}

func (e registryEntry) toEntry() feed.EntityEntry {
	return feed.EntityEntry{
		EntityID:       e.EntityID,
		TranslationKey: e.TranslationKey,
		UniqueID:       e.UniqueID,
		DeviceID:       e.DeviceID,
		Disabled:       e.DisabledBy != "",
	}
}

// Entity returns registry metadata for an entity, or nil when the registry
// does not know it.
func (c *Client) Entity(ctx context.Context, entityID string) (*feed.EntityEntry, error) {
	cacheKey := "entity:" + entityID
	if v, ok := c.registry.Get(cacheKey); ok {
		if v == nil {
			return nil, nil
		}
		entry := v.(feed.EntityEntry)
		return &entry, nil
	}

	resp, err := c.http.Get(ctx, c.url("/api/config/entity_registry/"+entityID))
	if err != nil {
		return nil, c.netErr("entity registry lookup failed", err, "entity_id", entityID)
	}
	defer drainClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		c.registry.Set(cacheKey, nil, cache.DefaultExpiration)
		return nil, nil
	}
	var raw registryEntry
	if err := decodeOK(resp, &raw); err != nil {
		return nil, c.netErr("entity registry lookup failed", err, "entity_id", entityID)
	}

	entry := raw.toEntry()
	c.registry.Set(cacheKey, entry, cache.DefaultExpiration)
	return &entry, nil
}

// EntitiesForDevice lists all registry entities of a device.
func (c *Client) EntitiesForDevice(ctx context.Context, deviceID string) ([]feed.EntityEntry, error) {
	cacheKey := "device:" + deviceID
	if v, ok := c.registry.Get(cacheKey); ok {
		return v.([]feed.EntityEntry), nil
	}

	var raw []registryEntry
	if err := c.http.GetJSON(ctx, c.url("/api/config/device_registry/"+deviceID+"/entities"), &raw); err != nil {
		return nil, c.netErr("device entity listing failed", err, "device_id", deviceID)
	}
	entries := make([]feed.EntityEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, r.toEntry())
	}
	c.registry.Set(cacheKey, entries, cache.DefaultExpiration)
	return entries, nil
}

// ListEntities lists registry entries in an entity domain. The domain may
// carry a trailing dot ("binary_sensor.").
func (c *Client) ListEntities(ctx context.Context, domain string) ([]feed.EntityEntry, error) {
	domain = strings.TrimSuffix(domain, ".")
	var raw []registryEntry
	if err := c.http.GetJSON(ctx, c.url("/api/config/entity_registry?domain="+domain), &raw); err != nil {
		return nil, c.netErr("entity registry listing failed", err, "domain", domain)
	}
	entries := make([]feed.EntityEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, r.toEntry())
	}
	return entries, nil
}

// HasLiveState reports whether the hub currently tracks a state for the
// entity. Registered but unavailable camera entities return 404 here.
func (c *Client) HasLiveState(ctx context.Context, entityID string) (bool, error) {
	resp, err := c.http.Get(ctx, c.url("/api/states/"+entityID))
	if err != nil {
		return false, c.netErr("state lookup failed", err, "entity_id", entityID)
	}
	defer drainClose(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, c.netErr("state lookup failed",
			fmt.Errorf("unexpected status %s", resp.Status), "entity_id", entityID)
	}
}

// CaptureImage fetches a still frame from a camera entity.
func (c *Client) CaptureImage(ctx context.Context, cameraEntityID string) ([]byte, error) {
	resp, err := c.http.Get(ctx, c.url("/api/camera_proxy/"+cameraEntityID))
	if err != nil {
		return nil, errors.New(err).
			Component("hub").
			Category(errors.CategoryImageCapture).
			Context("camera_entity", cameraEntityID).
			Build()
	}
	defer drainClose(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(fmt.Errorf("unexpected status %s", resp.Status)).
			Component("hub").
			Category(errors.CategoryImageCapture).
			Context("camera_entity", cameraEntityID).
			Build()
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, snapshotMaxBytes))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read snapshot body: %w", err)).
			Component("hub").
			Category(errors.CategoryImageCapture).
			Context("camera_entity", cameraEntityID).
			Build()
	}
	if len(data) == 0 {
		return nil, errors.New(fmt.Errorf("empty snapshot response")).
			Component("hub").
			Category(errors.CategoryImageCapture).
			Context("camera_entity", cameraEntityID).
			Build()
	}
	return data, nil
}

func (c *Client) netErr(msg string, err error, key, value string) error {
	return errors.New(fmt.Errorf("%s: %w", msg, err)).
		Component("hub").
		Category(errors.CategoryNetwork).
		Context(key, value).
		Build()
}

func drainClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func decodeOK(resp *http.Response, v any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
