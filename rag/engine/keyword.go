package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/mudler/ragcontext/rag/types"
)

// KeywordReranker scores documents by the share of query terms they contain.
// It needs no network access and is useful when no hosted reranker is
// available.
type KeywordReranker struct{}

func NewKeywordReranker() *KeywordReranker {
	return &KeywordReranker{}
}

func (k *KeywordReranker) Rerank(ctx context.Context, req types.RerankRequest) ([]types.RerankResult, error) {
	queryTerms := uniqueTerms(req.Query)
	results := make([]types.RerankResult, 0, len(req.Documents))

	for i, doc := range req.Documents {
		score := 0.0
		if len(queryTerms) > 0 {
			contentLower := strings.ToLower(doc)
			matched := 0
			for _, term := range queryTerms {
				if strings.Contains(contentLower, term) {
					matched++
				}
			}
			score = float64(matched) / float64(len(queryTerms))
		}
		results = append(results, types.RerankResult{Index: i, RelevanceScore: types.Score(score)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].RelevanceScore > *results[j].RelevanceScore
	})

	if req.TopN > 0 && len(results) > req.TopN {
		results = results[:req.TopN]
	}

	return results, nil
}

func uniqueTerms(s string) []string {
	seen := map[string]struct{}{}
	terms := []string{}
	for _, t := range strings.Fields(strings.ToLower(s)) {
		t = strings.Trim(t, ".,;:!?\"'()[]{}")
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}
