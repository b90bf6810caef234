package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jefvlamings/reolink-feed/internal/feed"
)

const (
	// reconnectBaseDelay is the initial backoff after a dropped stream.
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second

	// scanBufferSize accommodates large state payloads in a single SSE line.
	scanBufferSize = 1 << 20
)

// stateEvent is the wire shape of one streamed state change.
type stateEvent struct {
	EntityID     string    `json:"entity_id"`
	OldState     string    `json:"old_state"`
	NewState     string    `json:"new_state"`
	FriendlyName string    `json:"friendly_name"`
	ChangedAt    time.Time `json:"changed_at"`
}

// StreamTransitions subscribes to the hub's state change stream and feeds
// each event to handler. The subscription reconnects with backoff until ctx
// is cancelled; only context cancellation ends it.
func (c *Client) StreamTransitions(ctx context.Context, handler func(feed.Transition)) error {
	delay := reconnectBaseDelay
	for {
		err := c.streamOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("state stream dropped, reconnecting", "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// streamOnce holds one SSE connection open and dispatches its events.
func (c *Client) streamOnce(ctx context.Context, handler func(feed.Transition)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/stream/states"), http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected stream status %s", resp.Status)
	}
	c.logger.Info("state stream connected")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), scanBufferSize)

	eventType := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			eventType = ""
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if eventType != "" && eventType != "state_changed" {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var ev stateEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				c.logger.Debug("unparseable stream event", "error", err)
				continue
			}
			if ev.EntityID == "" {
				continue
			}
			at := ev.ChangedAt
			if at.IsZero() {
				at = time.Now()
			}
			handler(feed.Transition{
				EntityID:     ev.EntityID,
				From:         ev.OldState,
				To:           ev.NewState,
				FriendlyName: ev.FriendlyName,
				At:           at,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream closed by hub")
}
