// Package localize translates a moment's caption and hook text into target
// languages. Each call is pure: no shared mutable state between languages.
package localize

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Request carries the text of one moment and the target language for one
// render job.
type Request struct {
	Hook     string
	Caption  string
	Language string
	// VoiceReference optionally keys synthesized narration to a cloned voice.
	VoiceReference string
}

// Localized is the translation result for one (moment, language) pair.
type Localized struct {
	Language string
	Hook     string
	Caption  string
	// NarrationPath points at synthesized narration audio when the backing
	// provider supports it; empty otherwise.
	NarrationPath string
}

// Translator is the swappable localization capability.
type Translator interface {
	Translate(ctx context.Context, req Request) (Localized, error)
}

// UnsupportedLanguageError marks a target language the localizer cannot
// serve. It is terminal: the owning render job fails without retry.
type UnsupportedLanguageError struct {
	Code string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported target language %q", e.Code)
}

// ErrorKind classifies the failure for job status mapping.
func (e *UnsupportedLanguageError) ErrorKind() string { return "terminal" }

// ValidateLanguage parses a BCP 47 language code and returns its canonical
// string form.
func ValidateLanguage(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", &UnsupportedLanguageError{Code: code}
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", &UnsupportedLanguageError{Code: trimmed}
	}
	return tag.String(), nil
}
