// Package indexer implements the write side of the semantic message memory
// pipeline: extracting indexable text from message parts, the shared
// processing routine (filter, embed, upsert) used by both execution modes,
// and the dispatcher that selects inline or queued processing at startup.
package indexer

import (
	"strings"

	"github.com/54b3r/chatmem-go/internal/memory"
)

// ExtractText returns the plain text of a job's parts: text parts
// concatenated in their original order, joined by newlines. Non-text parts
// (files, tool calls, ...) contribute nothing.
func ExtractText(parts []memory.Part) string {
	var texts []string
	for _, p := range parts {
		if p.Type == memory.PartTypeText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// truncate returns at most limit characters of s. Truncation counts runes,
// not bytes, so multi-byte text is never cut mid-character.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
