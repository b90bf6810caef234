// conf/validate.go settings validation and clamping
package conf

import (
	"fmt"
	"slices"
)

// Bounds for user supplied feed settings. Values outside these ranges are
// clamped rather than rejected so a hand-edited config file cannot prevent
// the daemon from starting.
const (
	MinRetentionHours = 1
	MaxRetentionHours = 168
	MinMaxDetections  = 10
	MaxMaxDetections  = 2000
	MinMaxStorageGB   = 0.1
	MaxMaxStorageGB   = 100.0
)

// SupportedLabels is the closed set of detection categories.
var SupportedLabels = []string{"person", "pet", "vehicle", "motion", "visitor"}

// LegacyLabelAliases maps labels from older config files to current values.
var LegacyLabelAliases = map[string]string{
	"animal": "pet",
}

// ValidateSettings normalizes labels and clamps numeric feed settings.
func ValidateSettings(settings *Settings) error {
	feed := &settings.Feed

	normalized := make([]string, 0, len(feed.EnabledLabels))
	for _, label := range feed.EnabledLabels {
		if alias, ok := LegacyLabelAliases[label]; ok {
			label = alias
		}
		if !slices.Contains(SupportedLabels, label) {
			return fmt.Errorf("unsupported detection label in config: %q", label)
		}
		if !slices.Contains(normalized, label) {
			normalized = append(normalized, label)
		}
	}
	feed.EnabledLabels = normalized

	feed.RetentionHours = clampInt(feed.RetentionHours, MinRetentionHours, MaxRetentionHours)
	feed.MaxDetections = clampInt(feed.MaxDetections, MinMaxDetections, MaxMaxDetections)
	feed.MaxStorageGB = clampFloat(feed.MaxStorageGB, MinMaxStorageGB, MaxMaxStorageGB)

	if feed.MergeWindowSeconds < 0 {
		feed.MergeWindowSeconds = 0
	}
	if len(feed.RecordingRetryDelays) == 0 {
		feed.RecordingRetryDelays = []int{10, 30, 60, 120, 300}
	}
	if feed.DefaultClipDuration < 1 {
		feed.DefaultClipDuration = 30
	}
	if feed.ListLimit < 1 {
		feed.ListLimit = 200
	}
	if feed.CleanupInterval < 60 {
		feed.CleanupInterval = 60
	}

	if settings.Hub.Timeout < 1 {
		settings.Hub.Timeout = 30
	}

	return nil
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
