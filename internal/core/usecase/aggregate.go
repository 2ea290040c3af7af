package usecase

import (
	"fmt"
	"sort"

	"github.com/antonkh/ragline/internal/core/domain"
)

const signaturePrefixRunes = 100

// contentSignature is the deduplication key for a passage. Two passages with
// equal signature are the same evidence no matter which sub-query found them.
func contentSignature(content string) string {
	runes := []rune(content)
	prefix := runes
	if len(runes) > signaturePrefixRunes {
		prefix = runes[:signaturePrefixRunes]
	}
	return fmt.Sprintf("%s:%d", string(prefix), len(runes))
}

// passageAccumulator folds passages from successive sub-query retrievals into
// a unique set, first occurrence wins. Insertion order is preserved so that
// ranking ties break deterministically by submission order.
type passageAccumulator struct {
	order       []string
	bySignature map[string]domain.Passage
}

func newPassageAccumulator() *passageAccumulator {
	return &passageAccumulator{
		bySignature: make(map[string]domain.Passage),
	}
}

func (a *passageAccumulator) add(passages []domain.Passage) int {
	added := 0
	for _, passage := range passages {
		signature := contentSignature(passage.Content)
		if _, exists := a.bySignature[signature]; exists {
			continue
		}
		a.bySignature[signature] = passage
		a.order = append(a.order, signature)
		added++
	}
	return added
}

func (a *passageAccumulator) size() int {
	return len(a.order)
}

// results returns the unique passages in first-seen order.
func (a *passageAccumulator) results() []domain.Passage {
	out := make([]domain.Passage, 0, len(a.order))
	for _, signature := range a.order {
		out = append(out, a.bySignature[signature])
	}
	return out
}

// mergeResultSets flattens per-sub-query result sets, deduplicates by content
// signature and ranks by score. Re-running with the same inputs in the same
// order always retains the same duplicate and yields the same order.
func mergeResultSets(resultSets [][]domain.Passage) []domain.Passage {
	acc := newPassageAccumulator()
	for _, set := range resultSets {
		acc.add(set)
	}
	return rankPassages(acc.results())
}

// rankPassages sorts by score descending; the sort is stable so equal scores
// keep their insertion order.
func rankPassages(passages []domain.Passage) []domain.Passage {
	out := make([]domain.Passage, len(passages))
	copy(out, passages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// uniqueSources lists the distinct source locators of ranked passages,
// in ranked order.
func uniqueSources(passages []domain.Passage) []string {
	seen := make(map[string]struct{}, len(passages))
	out := make([]string, 0, len(passages))
	for _, passage := range passages {
		if _, ok := seen[passage.Source]; ok {
			continue
		}
		seen[passage.Source] = struct{}{}
		out = append(out, passage.Source)
	}
	return out
}
