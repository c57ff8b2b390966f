// Package transcript defines the time-aligned transcript value types shared
// by discovery and rendering.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Segment is one utterance of spoken audio with timing and confidence.
// Segments within a Transcript are ordered and non-overlapping.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Transcript is the ordered segment sequence produced by the feature
// extractor. Immutable once produced.
type Transcript struct {
	Segments []Segment `json:"segments"`
}

// StartTime returns the segment start as a duration.
func (s Segment) StartTime() time.Duration {
	return secondsToDuration(s.Start)
}

// EndTime returns the segment end as a duration.
func (s Segment) EndTime() time.Duration {
	return secondsToDuration(s.End)
}

// Empty reports whether the transcript carries no usable speech.
func (t Transcript) Empty() bool {
	for _, seg := range t.Segments {
		if strings.TrimSpace(seg.Text) != "" {
			return false
		}
	}
	return true
}

// Text joins all segment text into a single string.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Load reads a WhisperX-style JSON transcript from disk.
func Load(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, err
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return Transcript{}, fmt.Errorf("parse transcript json: %w", err)
	}
	return t, nil
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
