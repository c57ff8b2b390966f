// Package moments turns a time-aligned transcript into a ranked,
// non-overlapping set of candidate clips.
package moments

import (
	"strings"
	"time"
)

// Moment is a scored, time-bounded candidate clip within a source video.
// Index is stable within one discovery result and is the identifier clients
// use to select moments for rendering. Read-only once returned.
type Moment struct {
	Index   int
	Start   time.Duration
	End     time.Duration
	Score   float64
	Hook    string
	Caption string
}

// Duration returns the moment length.
func (m Moment) Duration() time.Duration {
	return m.End - m.Start
}

// Overlaps reports whether two half-open time ranges intersect.
func (m Moment) Overlaps(other Moment) bool {
	return m.Start < other.End && other.Start < m.End
}

// Window is an ephemeral candidate time range with transcript-derived
// features, consumed by scoring and discarded.
type Window struct {
	Start        time.Duration
	End          time.Duration
	Text         string
	SegmentCount int
	// WordsPerSecond is the transcript density inside the window.
	WordsPerSecond float64
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End - w.Start
}

func wordsPerSecond(text string, span time.Duration) float64 {
	if span <= 0 {
		return 0
	}
	words := len(strings.Fields(text))
	return float64(words) / span.Seconds()
}
