package hub

import (
	"context"
	"fmt"

	"github.com/jefvlamings/reolink-feed/internal/errors"
	"github.com/jefvlamings/reolink-feed/internal/recording"
)

// browseRequest is the wire shape of a media browse or resolve call.
type browseRequest struct {
	MediaContentID string `json:"media_content_id"`
}

type browseResponse struct {
	Children []browseNode `json:"children"`
}

type browseNode struct {
	Title          string `json:"title"`
	MediaContentID string `json:"media_content_id"`
	CanExpand      bool   `json:"can_expand"`
}

type resolveResponse struct {
	URL string `json:"url"`
}

// Browse lists the children of a media catalog node.
func (c *Client) Browse(ctx context.Context, contentID string) ([]recording.Node, error) {
	resp, err := c.http.Post(ctx, c.url("/api/media/browse"), "", browseRequest{MediaContentID: contentID})
	if err != nil {
		return nil, c.browseErr(contentID, err)
	}
	defer drainClose(resp)

	var body browseResponse
	if err := decodeOK(resp, &body); err != nil {
		return nil, c.browseErr(contentID, err)
	}

	nodes := make([]recording.Node, 0, len(body.Children))
	for _, child := range body.Children {
		nodes = append(nodes, recording.Node{
			Title:     child.Title,
			ContentID: child.MediaContentID,
			CanExpand: child.CanExpand,
		})
	}
	return nodes, nil
}

// Resolve turns a clip node into a downloadable URL. The hub may return an
// absolute URL or a host-relative signed path.
func (c *Client) Resolve(ctx context.Context, contentID string) (string, error) {
	resp, err := c.http.Post(ctx, c.url("/api/media/resolve"), "", browseRequest{MediaContentID: contentID})
	if err != nil {
		return "", c.browseErr(contentID, err)
	}
	defer drainClose(resp)

	var body resolveResponse
	if err := decodeOK(resp, &body); err != nil {
		return "", c.browseErr(contentID, err)
	}
	if body.URL == "" {
		return "", c.browseErr(contentID, fmt.Errorf("empty media url"))
	}
	return body.URL, nil
}

func (c *Client) browseErr(contentID string, err error) error {
	return errors.New(fmt.Errorf("media catalog request failed: %w", err)).
		Component("hub").
		Category(errors.CategoryMediaBrowse).
		Context("content_id", contentID).
		Build()
}
