package usecase

import (
	"fmt"
	"strings"

	"github.com/antonkh/ragline/internal/core/domain"
)

const evidenceTrailer = `---
Answer using the retrieved documents above. Cite document numbers such as [1]
when you rely on them, state explicitly when the documents do not cover part
of the question, and point out contradictions between documents.`

// formatEvidence renders ranked passages into a citation-friendly context
// block. Empty input returns an empty string, which signals "no augmentation"
// to the orchestrator. The output is deterministic for a given input.
func formatEvidence(ranked []domain.Passage, originalQuery string) string {
	if len(ranked) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Retrieved Context for: %s\n\n", originalQuery)
	for idx, passage := range ranked {
		fmt.Fprintf(&b, "### [%d] %s (relevance %.0f%%)\n%s\n\n",
			idx+1,
			sourceLabel(passage.Source),
			passage.Score*100,
			strings.TrimRight(passage.Content, "\n"),
		)
	}
	b.WriteString(evidenceTrailer)
	return b.String()
}

// sourceLabel reduces an opaque source locator to its last path segment.
func sourceLabel(source string) string {
	source = strings.TrimRight(source, "/")
	if source == "" {
		return "unknown"
	}
	if idx := strings.LastIndex(source, "/"); idx >= 0 {
		source = source[idx+1:]
	}
	if source == "" {
		return "unknown"
	}
	return source
}
