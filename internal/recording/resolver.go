package recording

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/jefvlamings/reolink-feed/internal/conf"
	"github.com/jefvlamings/reolink-feed/internal/httpclient"
	"github.com/jefvlamings/reolink-feed/internal/model"
)

// Resolver finds and caches the clip matching a closed item's time window.
//
// Browse calls are rate limited and downloads are serialized: the upstream
// catalog service is observed to reject parallel requests.
type Resolver struct {
	catalog   Catalog
	client    *httpclient.Client
	limiter   *rate.Limiter
	downloads *semaphore.Weighted
	settings  conf.FeedSettings
	baseURL   string
	logger    *slog.Logger
}

// NewResolver creates a Resolver. client is used for clip downloads and may
// share its connection pool with other hub traffic.
func NewResolver(catalog Catalog, client *httpclient.Client, settings *conf.Settings, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		catalog:   catalog,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(4), 1),
		downloads: semaphore.NewWeighted(1),
		settings:  settings.Feed,
		baseURL:   strings.TrimRight(settings.Hub.BaseURL, "/"),
		logger:    logger,
	}
}

// Resolve attempts to match item to a catalog clip. It never mutates the
// item; the caller applies the returned recording state under its own
// locking. A miss yields pending, or a terminal state on the final attempt.
func (r *Resolver) Resolve(ctx context.Context, item model.Item, finalAttempt bool) (model.Recording, error) {
	startPad := time.Duration(r.settings.WindowStartPad) * time.Second
	endPad := time.Duration(r.settings.WindowEndPad) * time.Second
	windowStart := item.StartTS.Add(-startPad)
	windowEnd := item.End().Add(endPad)

	best, found := r.findBestClip(ctx, &item, windowStart, windowEnd)
	if !found {
		return r.missOutcome(finalAttempt), nil
	}

	// A zero-overlap winner is only trusted when its start lands within the
	// combined padding of the event start.
	if best.score.overlap <= 0 {
		if -best.score.startDist > (startPad + endPad).Seconds() {
			r.logger.Debug("best clip outside padded window",
				"item_id", item.ID,
				"clip", best.node.Title,
				"start_distance_s", -best.score.startDist)
			return r.missOutcome(finalAttempt), nil
		}
	}

	clipDuration := int(best.clipEnd.Sub(best.clipStart).Seconds())
	offset := int(item.StartTS.Sub(best.clipStart).Seconds())
	if offset < 0 {
		offset = 0
	}
	if offset > clipDuration {
		offset = clipDuration
	}
	resolvedAt := time.Now()

	if !r.settings.CacheRecordings {
		return model.LinkedRecording(best.node.ContentID, "", resolvedAt, best.clipStart, clipDuration, offset), nil
	}

	localURL, err := r.download(ctx, &item, best.node.ContentID)
	if err != nil {
		r.logger.Warn("clip download failed",
			"item_id", item.ID,
			"content_id", best.node.ContentID,
			"final_attempt", finalAttempt,
			"error", err)
		if finalAttempt {
			return model.DownloadFailedRecording(err.Error()), nil
		}
		return model.PendingRecording(), nil
	}

	return model.LinkedRecording(best.node.ContentID, localURL, resolvedAt, best.clipStart, clipDuration, offset), nil
}

func (r *Resolver) missOutcome(finalAttempt bool) model.Recording {
	if finalAttempt {
		return model.NotFoundRecording()
	}
	return model.PendingRecording()
}

type candidate struct {
	node      Node
	clipStart time.Time
	clipEnd   time.Time
	score     clipScore
}

// findBestClip walks camera → resolution tier → day → (event folder) → clips
// and returns the highest scoring candidate.
func (r *Resolver) findBestClip(ctx context.Context, item *model.Item, windowStart, windowEnd time.Time) (candidate, bool) {
	cameras, err := r.browse(ctx, RootContentID)
	if err != nil {
		r.logger.Warn("catalog root browse failed", "error", err)
		return candidate{}, false
	}
	camera, ok := pickCamera(cameras, item.CameraName)
	if !ok {
		r.logger.Debug("no camera node in catalog", "camera", item.CameraName)
		return candidate{}, false
	}

	tiers, err := r.browse(ctx, camera.ContentID)
	if err != nil {
		r.logger.Warn("camera browse failed", "camera", camera.Title, "error", err)
		return candidate{}, false
	}
	tier, ok := pickTier(tiers)
	if !ok {
		return candidate{}, false
	}

	dayNodes, err := r.browse(ctx, tier.ContentID)
	if err != nil {
		r.logger.Warn("tier browse failed", "tier", tier.Title, "error", err)
		return candidate{}, false
	}

	defaultDuration := time.Duration(r.settings.DefaultClipDuration) * time.Second

	var best candidate
	var found bool
	for _, day := range candidateDays(windowStart, item.StartTS, item.End(), windowEnd) {
		dayNode, ok := matchDayNode(dayNodes, day)
		if !ok {
			continue
		}
		clips, err := r.dayClips(ctx, dayNode, item.Label)
		if err != nil {
			r.logger.Debug("day browse failed", "day", dayNode.Title, "error", err)
			continue
		}
		for _, clip := range clips {
			clipStart, clipEnd, ok := clipBounds(day, clip.Title, defaultDuration)
			if !ok || clip.ContentID == "" {
				continue
			}
			score := scoreClip(clipStart, clipEnd, item.StartTS, item.End(), windowStart, windowEnd, clip.ContentID)
			if !found || score.better(best.score) {
				best = candidate{node: clip, clipStart: clipStart, clipEnd: clipEnd, score: score}
				found = true
			}
		}
	}
	return best, found
}

// dayClips lists the clips of a day node, descending one level into an
// event-type folder matching the label when present.
func (r *Resolver) dayClips(ctx context.Context, dayNode Node, label string) ([]Node, error) {
	children, err := r.browse(ctx, dayNode.ContentID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.CanExpand && matchesEventFolder(child.Title, label) {
			return r.browse(ctx, child.ContentID)
		}
	}
	return children, nil
}

func (r *Resolver) browse(ctx context.Context, contentID string) ([]Node, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.catalog.Browse(ctx, contentID)
}

// candidateDays returns the distinct calendar days touched by the padded
// window, in the event's timezone, oldest first.
func candidateDays(times ...time.Time) []time.Time {
	var days []time.Time
	for _, t := range times {
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		seen := false
		for _, d := range days {
			if d.Equal(day) {
				seen = true
				break
			}
		}
		if !seen {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// pickCamera fuzzy matches the camera display name against camera node
// titles: exact match first, then substring, then the lowest-scored
// fallback so a lone camera still resolves.
func pickCamera(nodes []Node, cameraName string) (Node, bool) {
	if len(nodes) == 0 {
		return Node{}, false
	}
	wanted := strings.ToLower(strings.TrimSpace(cameraName))
	bestScore := -1
	var best Node
	for _, node := range nodes {
		title := strings.ToLower(strings.TrimSpace(node.Title))
		var score int
		switch {
		case title == wanted:
			score = 0
		case strings.Contains(title, wanted) || strings.Contains(wanted, title):
			score = 1
		default:
			score = 3
		}
		if bestScore < 0 || score < bestScore || (score == bestScore && node.Title < best.Title) {
			bestScore = score
			best = node
		}
	}
	return best, true
}

// pickTier prefers an explicitly low-resolution stream tier to minimize
// download bandwidth; telephoto tiers rank last.
func pickTier(nodes []Node) (Node, bool) {
	if len(nodes) == 0 {
		return Node{}, false
	}
	bestScore := -1
	var best Node
	for _, node := range nodes {
		title := strings.ToLower(node.Title)
		var score int
		switch {
		case strings.Contains(title, "telephoto"):
			score = 100
		case strings.Contains(title, "low") || strings.Contains(title, "fluent") || strings.Contains(title, "sub"):
			score = 0
		case strings.Contains(title, "high") || strings.Contains(title, "clear"):
			score = 50
		default:
			score = 10
		}
		if bestScore < 0 || score < bestScore || (score == bestScore && node.Title < best.Title) {
			bestScore = score
			best = node
		}
	}
	return best, true
}

// dayTitleLayouts are the date formats day folder titles are seen in.
var dayTitleLayouts = []string{"2006-01-02", "2006/1/2", "2006/01/02", "1/2/2006", "2 Jan 2006"}

func matchDayNode(nodes []Node, day time.Time) (Node, bool) {
	for _, node := range nodes {
		title := strings.TrimSpace(node.Title)
		for _, layout := range dayTitleLayouts {
			parsed, err := time.ParseInLocation(layout, title, day.Location())
			if err != nil {
				continue
			}
			if parsed.Year() == day.Year() && parsed.Month() == day.Month() && parsed.Day() == day.Day() {
				return node, true
			}
		}
	}
	return Node{}, false
}

// eventFolderTitles maps labels to the catalog's event-type folder names.
var eventFolderTitles = map[string][]string{
	model.LabelPerson:  {"person"},
	model.LabelPet:     {"animal", "pet"},
	model.LabelVehicle: {"vehicle"},
	model.LabelMotion:  {"motion"},
	model.LabelVisitor: {"visitor", "doorbell"},
}

func matchesEventFolder(title, label string) bool {
	lowered := strings.ToLower(strings.TrimSpace(title))
	for _, name := range eventFolderTitles[label] {
		if lowered == name {
			return true
		}
	}
	return false
}
