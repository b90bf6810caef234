package recording

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)

func TestClipBoundsWithDuration(t *testing.T) {
	start, end, ok := clipBounds(testDay, "12:00:00 00:00:30", 45*time.Second)
	require.True(t, ok)
	assert.Equal(t, testDay.Add(12*time.Hour), start)
	assert.Equal(t, 30*time.Second, end.Sub(start), "explicit duration wins over the default")
}

func TestClipBoundsDefaultDuration(t *testing.T) {
	start, end, ok := clipBounds(testDay, "7:05:09", 30*time.Second)
	require.True(t, ok)
	assert.Equal(t, testDay.Add(7*time.Hour+5*time.Minute+9*time.Second), start)
	assert.Equal(t, 30*time.Second, end.Sub(start))
}

func TestClipBoundsTrailingText(t *testing.T) {
	start, _, ok := clipBounds(testDay, "12:00:00 Person", 30*time.Second)
	require.True(t, ok)
	assert.Equal(t, testDay.Add(12*time.Hour), start)
}

func TestClipBoundsRejectsNonTimeTitles(t *testing.T) {
	for _, title := range []string{"", "Person", "2026-02-19", "99:00:00", "12:99:00"} {
		_, _, ok := clipBounds(testDay, title, 30*time.Second)
		assert.False(t, ok, "title %q must not parse", title)
	}
}

func TestClipBoundsMinimumDuration(t *testing.T) {
	start, end, ok := clipBounds(testDay, "12:00:00 00:00:00", 30*time.Second)
	require.True(t, ok)
	assert.Equal(t, time.Second, end.Sub(start), "zero duration clamps to one second")
}

func TestOverlapSeconds(t *testing.T) {
	base := testDay.Add(12 * time.Hour)
	assert.EqualValues(t, 10, overlapSeconds(base, base.Add(30*time.Second), base.Add(20*time.Second), base.Add(50*time.Second)))
	assert.EqualValues(t, 0, overlapSeconds(base, base.Add(10*time.Second), base.Add(10*time.Second), base.Add(20*time.Second)))
	assert.EqualValues(t, 0, overlapSeconds(base, base.Add(10*time.Second), base.Add(30*time.Second), base.Add(40*time.Second)))
}

// Event at 12:00:10..12:00:30 with pads 10s/30s gives window 12:00:00..12:01:00.
func TestScoreClipPrefersContainingStart(t *testing.T) {
	eventStart := testDay.Add(12*time.Hour + 10*time.Second)
	eventEnd := testDay.Add(12*time.Hour + 30*time.Second)
	windowStart := testDay.Add(12 * time.Hour)
	windowEnd := testDay.Add(12*time.Hour + time.Minute)

	containing := scoreClip(
		testDay.Add(12*time.Hour), testDay.Add(12*time.Hour+30*time.Second),
		eventStart, eventEnd, windowStart, windowEnd, "clip-a")
	late := scoreClip(
		testDay.Add(12*time.Hour+20*time.Second), testDay.Add(12*time.Hour+50*time.Second),
		eventStart, eventEnd, windowStart, windowEnd, "clip-b")

	assert.True(t, containing.containsStart)
	assert.False(t, late.containsStart)
	assert.True(t, containing.better(late))
}

func TestScoreClipQuickStartBeatsDistantStart(t *testing.T) {
	eventStart := testDay.Add(12*time.Hour + 5*time.Second)
	eventEnd := testDay.Add(12*time.Hour + 25*time.Second)
	windowStart := eventStart.Add(-10 * time.Second)
	windowEnd := eventEnd.Add(30 * time.Second)

	quick := scoreClip(
		testDay.Add(12*time.Hour), testDay.Add(12*time.Hour+40*time.Second),
		eventStart, eventEnd, windowStart, windowEnd, "quick")
	// Clip starting long before the event still contains it but the event
	// does not begin shortly after the clip start.
	slow := scoreClip(
		testDay.Add(11*time.Hour+59*time.Minute), testDay.Add(12*time.Hour+40*time.Second),
		eventStart, eventEnd, windowStart, windowEnd, "slow")

	assert.True(t, quick.quickStart)
	assert.False(t, slow.quickStart)
	assert.True(t, quick.better(slow))
}

func TestScoreClipContentIDTieBreakIsDeterministic(t *testing.T) {
	eventStart := testDay.Add(12 * time.Hour)
	eventEnd := eventStart.Add(20 * time.Second)
	windowStart := eventStart.Add(-10 * time.Second)
	windowEnd := eventEnd.Add(30 * time.Second)

	a := scoreClip(eventStart, eventEnd.Add(10*time.Second), eventStart, eventEnd, windowStart, windowEnd, "media://a")
	b := scoreClip(eventStart, eventEnd.Add(10*time.Second), eventStart, eventEnd, windowStart, windowEnd, "media://b")

	assert.True(t, b.better(a))
	assert.False(t, a.better(b))
}
