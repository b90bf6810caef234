package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/jefvlamings/reolink-feed/internal/errors"
	"github.com/jefvlamings/reolink-feed/internal/history"
)

// historyEntry is the wire shape of one recorded state change.
type historyEntry struct {
	State       string    `json:"state"`
	LastChanged time.Time `json:"last_changed"`
	Attributes  struct {
		FriendlyName string `json:"friendly_name"`
	} `json:"attributes"`
}

// RecentChanges returns the newest recorded state changes of an entity.
func (c *Client) RecentChanges(ctx context.Context, entityID string, limit int) ([]history.StateChange, error) {
	url := c.url(fmt.Sprintf("/api/history/%s?limit=%d", entityID, limit))
	var raw []historyEntry
	if err := c.http.GetJSON(ctx, url, &raw); err != nil {
		return nil, errors.New(fmt.Errorf("history fetch failed: %w", err)).
			Component("hub").
			Category(errors.CategoryHistory).
			Context("entity_id", entityID).
			Build()
	}

	changes := make([]history.StateChange, 0, len(raw))
	for _, e := range raw {
		changes = append(changes, history.StateChange{
			State:        e.State,
			ChangedAt:    e.LastChanged,
			FriendlyName: e.Attributes.FriendlyName,
		})
	}
	return changes, nil
}
