package moments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/transcript"
)

// Selector scores candidate windows and picks the ranked non-overlapping
// subset returned to the caller.
type Selector struct {
	scorer Scorer
	logger *slog.Logger
}

// NewSelector constructs a Selector around the provided scoring capability.
func NewSelector(scorer Scorer, logger *slog.Logger) *Selector {
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	return &Selector{
		scorer: scorer,
		logger: logging.NewComponentLogger(logger, "selector"),
	}
}

// Discover builds candidate windows from the transcript, scores them, and
// returns up to count non-overlapping moments ordered by descending score.
// Fewer than count results is a normal outcome, never an error.
func (s *Selector) Discover(ctx context.Context, tr transcript.Transcript, count int, minClip, maxClip time.Duration) ([]Moment, error) {
	if count <= 0 {
		return nil, errors.New("discover: count must be positive")
	}

	candidates := BuildCandidates(tr, minClip, maxClip)
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := make([]scoredWindow, 0, len(candidates))
	var lastErr error
	for _, window := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.scorer.Score(ctx, window)
		if err != nil {
			lastErr = err
			s.logger.Warn("window scoring failed",
				logging.Error(err),
				logging.Duration("window_start", window.Start),
				logging.String(logging.FieldEventType, "score_failed"),
			)
			continue
		}
		scored = append(scored, scoredWindow{window: window, result: result})
	}
	if len(scored) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("discover: all candidates failed scoring: %w", lastErr)
		}
		return nil, nil
	}

	return selectTop(scored, count), nil
}

type scoredWindow struct {
	window Window
	result Scored
}

// selectTop applies greedy non-overlap selection: highest score first, ties
// broken by earlier start time, every intersecting candidate discarded.
func selectTop(scored []scoredWindow, count int) []Moment {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].result.Score != scored[j].result.Score {
			return scored[i].result.Score > scored[j].result.Score
		}
		return scored[i].window.Start < scored[j].window.Start
	})

	selected := make([]Moment, 0, count)
	for _, candidate := range scored {
		if len(selected) >= count {
			break
		}
		m := Moment{
			Start:   candidate.window.Start,
			End:     candidate.window.End,
			Score:   candidate.result.Score,
			Hook:    candidate.result.Hook,
			Caption: candidate.result.Caption,
		}
		if m.Duration() <= 0 {
			continue
		}
		overlaps := false
		for _, kept := range selected {
			if m.Overlaps(kept) {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		m.Index = len(selected)
		selected = append(selected, m)
	}
	return selected
}
