// Package llm wraps an OpenRouter-compatible chat completions API with
// JSON-only responses, bounded retry, and payload sanitation. Both the moment
// scorer and the caption translator build on it.
package llm
