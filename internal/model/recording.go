package model

import (
	"time"
)

// RecordingStatus enumerates the recording lifecycle of an item. Transitions
// are monotone toward linked or a terminal failure state.
type RecordingStatus string

const (
	RecordingPending        RecordingStatus = "pending"
	RecordingLinked         RecordingStatus = "linked"
	RecordingNotFound       RecordingStatus = "not_found"
	RecordingDownloadFailed RecordingStatus = "download_failed"
)

// Recording is the tagged recording state of an item. Only the fields
// relevant to the current status are set; use the constructors rather than
// building values by hand so a linked recording always carries its clip
// metadata and a failed one its reason.
type Recording struct {
	Status RecordingStatus `json:"status"`

	// Set when Status == RecordingLinked.
	MediaContentID  string     `json:"media_content_id,omitempty"`
	LocalURL        string     `json:"local_url,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ClipStart       *time.Time `json:"clip_start,omitempty"`
	ClipDurationS   int        `json:"clip_duration_s,omitempty"`
	PlaybackOffsetS int        `json:"playback_offset_s,omitempty"`

	// Set when Status == RecordingDownloadFailed.
	Error string `json:"error,omitempty"`
}

// PendingRecording returns the initial recording state.
func PendingRecording() Recording {
	return Recording{Status: RecordingPending}
}

// LinkedRecording returns a linked recording. localURL may be empty when
// recording caching is disabled; the clip is then referenced by content id
// only.
func LinkedRecording(mediaContentID, localURL string, resolvedAt, clipStart time.Time, clipDurationS, playbackOffsetS int) Recording {
	return Recording{
		Status:          RecordingLinked,
		MediaContentID:  mediaContentID,
		LocalURL:        localURL,
		ResolvedAt:      &resolvedAt,
		ClipStart:       &clipStart,
		ClipDurationS:   clipDurationS,
		PlaybackOffsetS: playbackOffsetS,
	}
}

// NotFoundRecording returns the terminal state for an event no clip could be
// matched to.
func NotFoundRecording() Recording {
	return Recording{Status: RecordingNotFound}
}

// DownloadFailedRecording returns the terminal state for a matched clip whose
// transfer or persistence failed. The reason is kept for diagnostics.
func DownloadFailedRecording(reason string) Recording {
	return Recording{Status: RecordingDownloadFailed, Error: reason}
}

// Linked reports whether the recording reached the linked state.
func (r Recording) Linked() bool {
	return r.Status == RecordingLinked
}

// Cached reports whether the recording is linked to a locally cached asset.
func (r Recording) Cached() bool {
	return r.Status == RecordingLinked && r.LocalURL != ""
}

// Terminal reports whether no further resolution attempts should run.
func (r Recording) Terminal() bool {
	switch r.Status {
	case RecordingLinked, RecordingNotFound, RecordingDownloadFailed:
		return true
	default:
		return false
	}
}
