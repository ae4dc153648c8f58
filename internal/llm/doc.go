// Package llm sends assembled prompts to language model providers. A
// Controller picks a primary provider, bounds each attempt with a timeout and
// falls back to a secondary provider at most once.
package llm
