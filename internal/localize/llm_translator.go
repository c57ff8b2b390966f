package localize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clipforge/internal/services/llm"
)

// LLMTranslator implements Translator on the shared chat-completions client.
type LLMTranslator struct {
	client *llm.Client
}

// NewLLMTranslator constructs an LLM-backed translator.
func NewLLMTranslator(client *llm.Client) (*LLMTranslator, error) {
	if client == nil || !client.Configured() {
		return nil, errors.New("llm translator: api key required")
	}
	return &LLMTranslator{client: client}, nil
}

type translationPayload struct {
	Hook    string `json:"hook"`
	Caption string `json:"caption"`
}

// Translate localizes one moment's hook and caption into the target language.
func (t *LLMTranslator) Translate(ctx context.Context, req Request) (Localized, error) {
	var empty Localized

	lang, err := ValidateLanguage(req.Language)
	if err != nil {
		return empty, err
	}
	hook := strings.TrimSpace(req.Hook)
	caption := strings.TrimSpace(req.Caption)
	if hook == "" && caption == "" {
		return empty, errors.New("translate: hook or caption required")
	}

	user := fmt.Sprintf("Target language: %s\nHook: %s\nCaption: %s", lang, hook, caption)
	content, err := t.client.CompleteJSON(ctx, TranslationPrompt, user)
	if err != nil {
		return empty, fmt.Errorf("translate: %w", err)
	}

	var parsed translationPayload
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("translate: parse payload: %w", err)
	}

	out := Localized{
		Language: lang,
		Hook:     strings.TrimSpace(parsed.Hook),
		Caption:  strings.TrimSpace(parsed.Caption),
	}
	if out.Hook == "" {
		out.Hook = hook
	}
	if out.Caption == "" {
		out.Caption = caption
	}
	return out, nil
}
