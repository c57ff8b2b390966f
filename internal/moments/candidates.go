package moments

import (
	"strings"
	"time"

	"clipforge/internal/transcript"
)

// maxCandidates bounds scoring work on very long transcripts.
const maxCandidates = 500

// BuildCandidates slides windows across the transcript timeline, anchored to
// utterance boundaries on both edges so no clip starts or ends mid-thought.
// Every window whose duration falls within [minClip, maxClip] becomes a
// candidate.
func BuildCandidates(tr transcript.Transcript, minClip, maxClip time.Duration) []Window {
	if minClip <= 0 {
		minClip = time.Second
	}
	if maxClip <= 0 || maxClip < minClip {
		return nil
	}

	segs := tr.Segments
	if len(segs) == 0 {
		return nil
	}

	var out []Window
	for i := 0; i < len(segs); i++ {
		start := segs[i].StartTime()
		var parts []string
		for j := i; j < len(segs); j++ {
			end := segs[j].EndTime()
			span := end - start
			if span > maxClip {
				break
			}
			if text := strings.TrimSpace(segs[j].Text); text != "" {
				parts = append(parts, text)
			}
			if span < minClip {
				continue
			}
			text := strings.Join(parts, " ")
			if text == "" {
				continue
			}
			out = append(out, Window{
				Start:          start,
				End:            end,
				Text:           text,
				SegmentCount:   j - i + 1,
				WordsPerSecond: wordsPerSecond(text, span),
			})
			if len(out) >= maxCandidates {
				return out
			}
		}
	}
	return out
}
