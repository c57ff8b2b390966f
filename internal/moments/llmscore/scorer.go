// Package llmscore implements the moment scoring capability on top of the
// shared chat-completions client.
package llmscore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clipforge/internal/moments"
	"clipforge/internal/services/llm"
)

// Scorer rates candidate windows via the LLM.
type Scorer struct {
	client *llm.Client
}

// New constructs an LLM-backed scorer. Returns an error when the client has
// no credentials so callers can fall back to the heuristic scorer explicitly.
func New(client *llm.Client) (*Scorer, error) {
	if client == nil || !client.Configured() {
		return nil, errors.New("llm scorer: api key required")
	}
	return &Scorer{client: client}, nil
}

type scorePayload struct {
	Score   float64 `json:"score"`
	Hook    string  `json:"hook"`
	Caption string  `json:"caption"`
}

// Score rates one candidate window in [0, 10] with a hook and caption.
func (s *Scorer) Score(ctx context.Context, window moments.Window) (moments.Scored, error) {
	var empty moments.Scored
	text := strings.TrimSpace(window.Text)
	if text == "" {
		return empty, nil
	}

	user := fmt.Sprintf("Duration: %.0f seconds\nTranscript excerpt:\n%s", window.Duration().Seconds(), text)
	content, err := s.client.CompleteJSON(ctx, WindowScoringPrompt, user)
	if err != nil {
		return empty, fmt.Errorf("llm score: %w", err)
	}

	var parsed scorePayload
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("llm score: parse payload: %w", err)
	}
	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 10 {
		parsed.Score = 10
	}
	hook := strings.TrimSpace(parsed.Hook)
	caption := strings.TrimSpace(parsed.Caption)
	if caption == "" {
		caption = text
	}
	return moments.Scored{Score: parsed.Score, Hook: hook, Caption: caption}, nil
}
