package types

import "context"

// Reranker scores a list of documents against a query.
type Reranker interface {
	// Rerank returns one entry per scored document. Entries reference the
	// position of the document in the request and are not guaranteed to be
	// sorted nor to cover every document.
	Rerank(ctx context.Context, req RerankRequest) ([]RerankResult, error)
}

// RerankRequest is the input of a reranking call.
type RerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
	Model     string   `json:"model,omitempty"`
}

// RerankResult is a single entry returned by a reranker.
type RerankResult struct {
	// Index is the position of the document in RerankRequest.Documents.
	Index int `json:"index"`

	// RelevanceScore is nil when the provider did not score the document.
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

// Score is a helper to build a RerankResult score.
func Score(f float64) *float64 {
	return &f
}
