// Package llm abstracts the language model backends used for poll and note
// generation. A local Ollama server and the Gemini API are supported; both
// return raw completion text that callers parse with ExtractJSON.
package llm
