package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antonkh/ragline/internal/core/domain"
	"github.com/antonkh/ragline/internal/core/ports"
)

const fallbackRationale = "decomposition unavailable"

// Decomposer turns one user question into complementary sub-queries using a
// single JSON completion call. It never fails: any error collapses to a
// one-element decomposition containing the original query.
type Decomposer struct {
	completer     ports.Completer
	maxSubQueries int
}

func NewDecomposer(completer ports.Completer, maxSubQueries int) *Decomposer {
	if maxSubQueries <= 0 {
		maxSubQueries = 5
	}
	return &Decomposer{
		completer:     completer,
		maxSubQueries: maxSubQueries,
	}
}

func (d *Decomposer) Decompose(ctx context.Context, query string) domain.Decomposition {
	fallback := domain.Decomposition{
		SubQueries: []string{query},
		Rationale:  fallbackRationale,
	}

	if d.completer == nil {
		slog.Debug("decomposition_skipped", "reason", "no completer configured")
		return fallback
	}

	raw, err := d.completer.CompleteJSON(ctx, buildDecompositionPrompt(query, d.maxSubQueries))
	if err != nil {
		slog.Warn("decomposition_failed", "error", err)
		return fallback
	}

	decomposition, err := parseDecomposition(raw, d.maxSubQueries)
	if err != nil {
		slog.Warn("decomposition_unparseable", "error", err)
		return fallback
	}
	return decomposition
}

func parseDecomposition(raw string, maxSubQueries int) (domain.Decomposition, error) {
	var parsed struct {
		Rationale string   `json:"rationale"`
		Queries   []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return domain.Decomposition{}, fmt.Errorf("unmarshal decomposition json: %w", err)
	}

	queries := make([]string, 0, len(parsed.Queries))
	seen := make(map[string]struct{}, len(parsed.Queries))
	for _, q := range parsed.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(q)]; dup {
			continue
		}
		seen[strings.ToLower(q)] = struct{}{}
		queries = append(queries, q)
		if len(queries) == maxSubQueries {
			break
		}
	}
	if len(queries) == 0 {
		return domain.Decomposition{}, fmt.Errorf("decomposition returned no queries")
	}

	return domain.Decomposition{
		SubQueries: queries,
		Rationale:  strings.TrimSpace(parsed.Rationale),
	}, nil
}

func buildDecompositionPrompt(query string, maxSubQueries int) string {
	return fmt.Sprintf(`You decompose a user question into search queries for a knowledge base.
Propose up to %d complementary queries covering different facets of the question:
its components, its prerequisites, and both specific and broad phrasings.
Return strict JSON object with keys:
rationale (string), queries (array of strings).
No markdown, no extra keys.

Question:
%s`, maxSubQueries, query)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
