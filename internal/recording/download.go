package recording

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jefvlamings/reolink-feed/internal/diskmanager"
	"github.com/jefvlamings/reolink-feed/internal/errors"
	"github.com/jefvlamings/reolink-feed/internal/model"
)

const (
	downloadAttempts = 3
	downloadBackoff  = 500 * time.Millisecond
)

// download resolves the clip to a source URL, fetches it and persists it
// under the item's asset path. Returns the public URL of the cached clip.
// No partial asset is left behind on failure.
func (r *Resolver) download(ctx context.Context, item *model.Item, contentID string) (string, error) {
	sourceURL, err := r.catalog.Resolve(ctx, contentID)
	if err != nil {
		return "", errors.New(fmt.Errorf("failed to resolve clip source: %w", err)).
			Component("recording").
			Category(errors.CategoryMediaBrowse).
			Context("content_id", contentID).
			Build()
	}
	sourceURL = r.normalizeURL(sourceURL)

	rel := diskmanager.AssetRelPath(item, ".mp4")
	dest := diskmanager.AssetPath(r.settings.MediaRoot, rel)

	if err := r.downloads.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer r.downloads.Release(1)

	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt-1) * downloadBackoff):
			}
		}
		if lastErr = r.fetchToFile(ctx, sourceURL, dest); lastErr == nil {
			return diskmanager.AssetURL(r.settings.MediaSourceID, rel), nil
		}
		r.logger.Debug("clip download attempt failed",
			"item_id", item.ID,
			"attempt", attempt,
			"error", lastErr)
	}

	return "", errors.New(fmt.Errorf("clip download failed after %d attempts: %w", downloadAttempts, lastErr)).
		Component("recording").
		Category(errors.CategoryMediaDownload).
		Context("content_id", contentID).
		Build()
}

// normalizeURL signs a host-relative media URL against the hub address.
func (r *Resolver) normalizeURL(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return r.baseURL + "/" + strings.TrimLeft(url, "/")
}

// fetchToFile streams the clip to a temp file and renames it into place.
// Textual payloads are rejected: the catalog serves HTML error pages with
// status 200.
func (r *Resolver) fetchToFile(ctx context.Context, url, dest string) error {
	resp, err := r.client.Get(ctx, url)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if isTextualContentType(resp.Header.Get("Content-Type")) {
		return fmt.Errorf("non-media response content-type %q", resp.Header.Get("Content-Type"))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".clip-*")
	if err != nil {
		return fmt.Errorf("failed to create temp clip file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write clip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close clip file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move clip into place: %w", err)
	}
	return nil
}

func isTextualContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "html") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "xml")
}
