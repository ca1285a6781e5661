package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// segmenterHarness drives a Segmenter from a ManualClock and counts boundaries
// the way a session loop would: the timeout callback hands the token back to
// Expire.
type segmenterHarness struct {
	clock      *ManualClock
	seg        *Segmenter
	boundaries int
	stale      int
}

func newSegmenterHarness(t *testing.T) *segmenterHarness {
	t.Helper()
	h := &segmenterHarness{clock: NewManualClock(time.Unix(0, 0))}
	h.seg = NewSegmenter(DefaultVADParams(), h.clock, func(token uint64) {
		if h.seg.Expire(token) {
			h.boundaries++
		} else {
			h.stale++
		}
	})
	return h
}

// at moves the clock to the absolute offset (from the epoch) and feeds one frame.
func (h *segmenterHarness) at(offset time.Duration, f Frame) bool {
	now := h.clock.Now()
	target := time.Unix(0, 0).Add(offset)
	if d := target.Sub(now); d > 0 {
		h.clock.Advance(d)
	}
	return h.seg.OnFrame(f, h.clock.Now())
}

func (h *segmenterHarness) advanceTo(offset time.Duration) {
	target := time.Unix(0, 0).Add(offset)
	if d := target.Sub(h.clock.Now()); d > 0 {
		h.clock.Advance(d)
	}
}

var (
	speechFrame  = constFrame(2000, 320)
	silenceFrame = constFrame(10, 320)
)

func TestSegmenter_NoTimerBeforeSpeech(t *testing.T) {
	h := newSegmenterHarness(t)

	for ms := 0; ms < 5000; ms += 20 {
		assert.False(t, h.at(time.Duration(ms)*time.Millisecond, silenceFrame))
	}
	assert.False(t, h.seg.Pending())
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, 0, h.boundaries)
}

func TestSegmenter_SpeechCancelsPendingTimer(t *testing.T) {
	h := newSegmenterHarness(t)

	require.True(t, h.at(0, speechFrame))
	for ms := 1; ms <= 1190; ms++ {
		h.at(time.Duration(ms)*time.Millisecond, silenceFrame)
	}
	require.True(t, h.seg.Pending())

	require.True(t, h.at(1195*time.Millisecond, speechFrame))
	assert.False(t, h.seg.Pending())

	h.advanceTo(1200 * time.Millisecond)
	assert.Equal(t, 0, h.boundaries)

	h.advanceTo(5 * time.Second)
	assert.Equal(t, 0, h.boundaries, "no silence frame since speech resumed, so no timer")
}

func TestSegmenter_BoundaryAfterTimeout(t *testing.T) {
	h := newSegmenterHarness(t)

	h.at(0, speechFrame)
	h.at(20*time.Millisecond, silenceFrame)
	require.True(t, h.seg.Pending())

	// Keep feeding silence: only one timer may be pending.
	for ms := 40; ms < 1220; ms += 20 {
		h.at(time.Duration(ms)*time.Millisecond, silenceFrame)
	}
	assert.Equal(t, 0, h.boundaries)
	assert.Equal(t, 1, h.clock.Pending())

	h.advanceTo(1220 * time.Millisecond)
	assert.Equal(t, 1, h.boundaries)
	assert.False(t, h.seg.Pending())
	_, heard := h.seg.LastSpeech()
	assert.False(t, heard)

	// Silence after the boundary does not re-arm until speech is heard again.
	h.at(2*time.Second, silenceFrame)
	h.advanceTo(10 * time.Second)
	assert.Equal(t, 1, h.boundaries)
}

func TestSegmenter_SecondUtterance(t *testing.T) {
	h := newSegmenterHarness(t)

	h.at(0, speechFrame)
	h.at(20*time.Millisecond, silenceFrame)
	h.advanceTo(1220 * time.Millisecond)
	require.Equal(t, 1, h.boundaries)

	h.at(2*time.Second, speechFrame)
	h.at(2020*time.Millisecond, silenceFrame)
	h.advanceTo(3220 * time.Millisecond)
	assert.Equal(t, 2, h.boundaries)
}

func TestSegmenter_StaleTokenIgnored(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var fired []uint64
	seg := NewSegmenter(DefaultVADParams(), clock, func(token uint64) { fired = append(fired, token) })

	seg.OnFrame(speechFrame, clock.Now())
	seg.OnFrame(silenceFrame, clock.Now())
	clock.Advance(DefaultSilenceTimeout)
	require.Len(t, fired, 1)

	// Speech arrives before the owner processes the fired timer.
	seg.OnFrame(speechFrame, clock.Now())
	assert.False(t, seg.Expire(fired[0]))
	assert.False(t, seg.Expire(0))
}

func TestSegmenter_StopCancelsTimer(t *testing.T) {
	h := newSegmenterHarness(t)

	h.at(0, speechFrame)
	h.at(20*time.Millisecond, silenceFrame)
	h.seg.Stop()

	h.advanceTo(5 * time.Second)
	assert.Equal(t, 0, h.boundaries)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestSegmenter_LastSpeechRecorded(t *testing.T) {
	h := newSegmenterHarness(t)

	h.at(300*time.Millisecond, speechFrame)
	last, heard := h.seg.LastSpeech()
	require.True(t, heard)
	assert.Equal(t, time.Unix(0, 0).Add(300*time.Millisecond), last)
}
