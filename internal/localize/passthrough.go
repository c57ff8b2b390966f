package localize

import "context"

// Passthrough is the no-credentials fallback translator: it validates the
// target language but returns the source text untranslated. Lets the pipeline
// run end to end before an API key is configured.
type Passthrough struct{}

// Translate validates the language and echoes the request text.
func (Passthrough) Translate(ctx context.Context, req Request) (Localized, error) {
	lang, err := ValidateLanguage(req.Language)
	if err != nil {
		return Localized{}, err
	}
	return Localized{Language: lang, Hook: req.Hook, Caption: req.Caption}, nil
}
