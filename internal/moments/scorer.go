package moments

import (
	"context"
	"regexp"
	"strings"
)

// Scored is the result of evaluating one candidate window.
type Scored struct {
	// Score is the window's overall value in [0, 10].
	Score float64
	// Hook is a short attention line for the clip opening.
	Hook string
	// Caption is the display caption for the clip.
	Caption string
}

// Scorer evaluates candidate windows. Scoring is delegated to an external
// reasoning capability in production and must stay swappable.
type Scorer interface {
	Score(ctx context.Context, window Window) (Scored, error)
}

var (
	reNum     = regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\b`)
	reHook    = regexp.MustCompile(`(?i)\b(important|key|secret|mistake|never|always|here\s+is\s+why|remember)\b`)
	reHow     = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|do\s+this)\b`)
	reStepNum = regexp.MustCompile(`(?i)\bstep\s+\d+\b`)
)

// HeuristicScorer ranks windows with cheap deterministic text signals. It is
// the fallback when no LLM is configured and keeps discovery usable offline.
type HeuristicScorer struct{}

// Score combines informational and hook signals into a single [0, 10] scalar.
func (HeuristicScorer) Score(_ context.Context, window Window) (Scored, error) {
	text := strings.TrimSpace(window.Text)
	if text == "" {
		return Scored{}, nil
	}
	lower := strings.ToLower(text)

	info := float64(len(reNum.FindAllStringIndex(text, -1))) * 0.4
	if reHow.MatchString(lower) {
		info += 1.2
	}
	info -= 0.0006 * float64(len([]rune(text)))

	hook := float64(len(reHook.FindAllStringIndex(lower, -1))) * 0.9
	hook += float64(len(reStepNum.FindAllStringIndex(lower, -1))) * 0.4
	hook += float64(strings.Count(text, "?")) * 0.7
	hook += float64(strings.Count(text, "!")) * 0.3

	// Dense speech holds attention better than sparse narration.
	density := window.WordsPerSecond * 0.5

	score := clamp(info, 0, 10)*0.4 + clamp(hook, 0, 10)*0.4 + clamp(density, 0, 10)*0.2

	return Scored{
		Score:   clamp(score, 0, 10),
		Hook:    firstSentence(text),
		Caption: truncate(text, 120),
	}, nil
}

func firstSentence(text string) string {
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' {
			return strings.TrimSpace(text[:i+1])
		}
	}
	return truncate(text, 80)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
