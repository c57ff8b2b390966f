package localize

// TranslationPrompt captures the instructions sent to the LLM when localizing
// clip text. Keep updates centralized here so it is easy to tweak without
// hunting through call sites.
const TranslationPrompt = `You localize short-form video text into a target language.

Rules:

- Translate the hook and the caption, preserving tone, energy, and intent rather than literal wording.
- Keep each translation short enough for on-screen display; never pad.
- Keep numbers, proper nouns, and product names unchanged.
- Do not add quotation marks, emoji, or commentary.

You must respond ONLY with a JSON object like: {"hook": "translated hook", "caption": "translated caption"}`
