package recording

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// clipTitlePattern matches clip titles of the form "H:MM:SS" optionally
// followed by a duration token "H:MM:SS".
var clipTitlePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})(?:\s+(\d+):(\d{2}):(\d{2}))?`)

// clipBounds parses a clip title into its [start, end) interval on the given
// calendar day. Titles without a duration token get the configured default
// clip duration. Returns false for titles that do not encode a start time.
func clipBounds(day time.Time, title string, defaultDuration time.Duration) (start, end time.Time, ok bool) {
	m := clipTitlePattern.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return time.Time{}, time.Time{}, false
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])
	if hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, time.Time{}, false
	}

	start = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, day.Location())

	duration := defaultDuration
	if m[4] != "" {
		h, _ := strconv.Atoi(m[4])
		mi, _ := strconv.Atoi(m[5])
		s, _ := strconv.Atoi(m[6])
		duration = time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute + time.Duration(s)*time.Second
	}
	if duration < time.Second {
		duration = time.Second
	}
	return start, start.Add(duration), true
}

// overlapSeconds returns the length of the intersection of two intervals.
func overlapSeconds(aStart, aEnd, bStart, bEnd time.Time) float64 {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Seconds()
}

// quickStartWindow is how soon after the clip start the event must begin
// for the early-start bonus.
const quickStartWindow = 10 * time.Second

// clipScore ranks a candidate clip against an event window. Fields are
// compared lexicographically in declaration order; the content id is the
// final deterministic tie-break.
type clipScore struct {
	containsStart bool    // clip interval contains the event start
	containsWhole bool    // clip interval contains the whole event
	quickStart    bool    // event starts within quickStartWindow after the clip start
	overlap       float64 // overlap seconds with the padded window
	lateStart     float64 // negated seconds the clip starts after the event
	startDist     float64 // negated absolute start-time distance in seconds
	contentID     string
}

func scoreClip(clipStart, clipEnd, eventStart, eventEnd, windowStart, windowEnd time.Time, contentID string) clipScore {
	sinceClipStart := eventStart.Sub(clipStart)
	late := clipStart.Sub(eventStart).Seconds()
	if late < 0 {
		late = 0
	}
	dist := sinceClipStart.Seconds()
	if dist < 0 {
		dist = -dist
	}
	return clipScore{
		containsStart: !eventStart.Before(clipStart) && eventStart.Before(clipEnd),
		containsWhole: !eventStart.Before(clipStart) && !eventEnd.After(clipEnd),
		quickStart:    sinceClipStart >= 0 && sinceClipStart <= quickStartWindow,
		overlap:       overlapSeconds(windowStart, windowEnd, clipStart, clipEnd),
		lateStart:     -late,
		startDist:     -dist,
		contentID:     contentID,
	}
}

// better reports whether s outranks other.
func (s clipScore) better(other clipScore) bool {
	if s.containsStart != other.containsStart {
		return s.containsStart
	}
	if s.containsWhole != other.containsWhole {
		return s.containsWhole
	}
	if s.quickStart != other.quickStart {
		return s.quickStart
	}
	if s.overlap != other.overlap {
		return s.overlap > other.overlap
	}
	if s.lateStart != other.lateStart {
		return s.lateStart > other.lateStart
	}
	if s.startDist != other.startDist {
		return s.startDist > other.startDist
	}
	return s.contentID > other.contentID
}
