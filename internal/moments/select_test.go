package moments

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/transcript"
)

// scriptedScorer returns a fixed score per window start second.
type scriptedScorer struct {
	scores map[int]float64
	err    error
}

func (s scriptedScorer) Score(_ context.Context, window Window) (Scored, error) {
	if s.err != nil {
		return Scored{}, s.err
	}
	score := s.scores[int(window.Start.Seconds())]
	return Scored{Score: score, Hook: "hook", Caption: window.Text}, nil
}

func segment(start, end float64, text string) transcript.Segment {
	return transcript.Segment{Start: start, End: end, Text: text}
}

func TestBuildCandidatesAnchorsToSegmentBoundaries(t *testing.T) {
	tr := transcript.Transcript{Segments: []transcript.Segment{
		segment(0, 10, "First thought."),
		segment(10, 25, "Second thought with more words."),
		segment(25, 50, "Third thought, a long one."),
	}}

	candidates := BuildCandidates(tr, 15*time.Second, 60*time.Second)
	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}
	starts := map[time.Duration]bool{0: true, 10 * time.Second: true, 25 * time.Second: true}
	ends := map[time.Duration]bool{10 * time.Second: true, 25 * time.Second: true, 50 * time.Second: true}
	for _, c := range candidates {
		if !starts[c.Start] {
			t.Fatalf("window start %v not on a segment boundary", c.Start)
		}
		if !ends[c.End] {
			t.Fatalf("window end %v not on a segment boundary", c.End)
		}
		if c.Duration() < 15*time.Second || c.Duration() > 60*time.Second {
			t.Fatalf("window duration %v out of bounds", c.Duration())
		}
	}
}

func TestBuildCandidatesEmptyTranscript(t *testing.T) {
	if got := BuildCandidates(transcript.Transcript{}, time.Second, time.Minute); got != nil {
		t.Fatalf("expected nil, got %d candidates", len(got))
	}
}

func TestDiscoverReturnsNonOverlappingDescendingMoments(t *testing.T) {
	tr := transcript.Transcript{Segments: []transcript.Segment{
		segment(0, 20, "Here is the first big idea!"),
		segment(20, 40, "A quieter stretch of narration."),
		segment(40, 60, "The second big payoff you must hear."),
		segment(60, 80, "Closing remarks and thanks."),
	}}
	scorer := scriptedScorer{scores: map[int]float64{0: 9.5, 20: 3.0, 40: 8.0, 60: 1.0}}
	selector := NewSelector(scorer, logging.NewNop())

	result, err := selector.Discover(context.Background(), tr, 3, 15*time.Second, 25*time.Second)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result) == 0 {
		t.Fatal("expected moments")
	}
	for i := 1; i < len(result); i++ {
		if result[i].Score > result[i-1].Score {
			t.Fatalf("scores not descending: %v then %v", result[i-1].Score, result[i].Score)
		}
	}
	for i := range result {
		if result[i].Index != i {
			t.Fatalf("index %d not re-indexed in selection order: %d", i, result[i].Index)
		}
		if result[i].Duration() <= 0 {
			t.Fatalf("moment %d has non-positive duration", i)
		}
		for j := i + 1; j < len(result); j++ {
			if result[i].Overlaps(result[j]) {
				t.Fatalf("moments %d and %d overlap", i, j)
			}
		}
	}
}

func TestDiscoverUnderFulfillmentIsNotAnError(t *testing.T) {
	// Exactly two disjoint windows can score: asking for three yields two.
	tr := transcript.Transcript{Segments: []transcript.Segment{
		segment(0, 30, "Window one speech."),
		segment(30, 60, "Window two speech."),
	}}
	scorer := scriptedScorer{scores: map[int]float64{0: 7, 30: 6}}
	selector := NewSelector(scorer, logging.NewNop())

	result, err := selector.Discover(context.Background(), tr, 3, 25*time.Second, 60*time.Second)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result) >= 3 {
		t.Fatalf("expected under-fulfillment, got %d moments", len(result))
	}
	for i := 1; i < len(result); i++ {
		if result[i].Score > result[i-1].Score {
			t.Fatal("scores not descending")
		}
	}
}

func TestDiscoverTieBreaksByEarlierStart(t *testing.T) {
	tr := transcript.Transcript{Segments: []transcript.Segment{
		segment(0, 20, "Alpha section."),
		segment(40, 60, "Beta section."),
	}}
	scorer := scriptedScorer{scores: map[int]float64{0: 5, 40: 5}}
	selector := NewSelector(scorer, logging.NewNop())

	result, err := selector.Discover(context.Background(), tr, 2, 15*time.Second, 25*time.Second)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("moments = %d, want 2", len(result))
	}
	if result[0].Start != 0 {
		t.Fatalf("tie not broken by earlier start: first moment starts at %v", result[0].Start)
	}
}

func TestDiscoverAllScoringFailuresSurface(t *testing.T) {
	tr := transcript.Transcript{Segments: []transcript.Segment{
		segment(0, 30, "Some speech."),
	}}
	selector := NewSelector(scriptedScorer{err: errors.New("upstream down")}, logging.NewNop())

	if _, err := selector.Discover(context.Background(), tr, 1, 15*time.Second, 60*time.Second); err == nil {
		t.Fatal("expected error when every candidate fails scoring")
	}
}

func TestHeuristicScorerRange(t *testing.T) {
	window := Window{
		Start:          0,
		End:            30 * time.Second,
		Text:           "Here is why you should never skip step 1! How to do this? Remember the key mistake.",
		WordsPerSecond: 2.5,
	}
	scored, err := HeuristicScorer{}.Score(context.Background(), window)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if scored.Score < 0 || scored.Score > 10 {
		t.Fatalf("score %v outside [0,10]", scored.Score)
	}
	if scored.Hook == "" || scored.Caption == "" {
		t.Fatal("expected hook and caption")
	}
}
