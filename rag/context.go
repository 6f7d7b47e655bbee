package rag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mudler/ragcontext/rag/types"
	"github.com/mudler/xlog"
)

const (
	DefaultTopK               = types.DefaultTopK
	DefaultRerankModel        = types.DefaultRerankModel
	DefaultRelevanceThreshold = types.DefaultRelevanceThreshold

	NoContentPlaceholder = "No content available"
	ContextSeparator     = "\n\n---\n\n"
)

// Options controls a single BuildContext call.
type Options struct {
	TopK               int
	IncludeData        bool
	UseReranking       bool
	RerankModel        string
	RelevanceThreshold float64
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		TopK:               DefaultTopK,
		IncludeData:        true,
		UseReranking:       true,
		RerankModel:        DefaultRerankModel,
		RelevanceThreshold: DefaultRelevanceThreshold,
	}
}

func (o Options) apply(opts ...Option) Options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithTopK sets the number of candidates requested from the vector search.
// Non positive values are ignored.
func WithTopK(k int) Option {
	return func(o *Options) {
		if k > 0 {
			o.TopK = k
		}
	}
}

func WithIncludeData(include bool) Option {
	return func(o *Options) { o.IncludeData = include }
}

func WithReranking(enabled bool) Option {
	return func(o *Options) { o.UseReranking = enabled }
}

// WithRerankModel sets the model passed to the reranker. An empty name is
// ignored.
func WithRerankModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.RerankModel = model
		}
	}
}

func WithRelevanceThreshold(threshold float64) Option {
	return func(o *Options) { o.RelevanceThreshold = threshold }
}

// ContextResult is the outcome of a successful BuildContext call.
type ContextResult struct {
	ContextText  string         `json:"context_text"`
	SystemPrompt string         `json:"system_prompt"`
	Results      []types.Result `json:"results"`
}

// ContextBuilder turns a user query into a ranked context block for a
// language model prompt. Both collaborators are optional: without a searcher
// every call yields nil, without a reranker the search order is kept.
type ContextBuilder struct {
	searcher VectorSearcher
	reranker Reranker
	defaults Options
}

func NewContextBuilder(searcher VectorSearcher, reranker Reranker, defaults ...Option) *ContextBuilder {
	return &ContextBuilder{
		searcher: searcher,
		reranker: reranker,
		defaults: DefaultOptions().apply(defaults...),
	}
}

// Defaults returns the options used when BuildContext is called without
// overrides.
func (b *ContextBuilder) Defaults() Options {
	return b.defaults
}

// BuildContext searches for query, optionally reranks the candidates and
// formats them into a system prompt. It returns nil when retrieval is not
// configured, the query is blank, nothing matched, or the search failed.
func (b *ContextBuilder) BuildContext(ctx context.Context, query string, opts ...Option) (res *ContextResult) {
	if b == nil || b.searcher == nil {
		xlog.Debug("Vector search is not configured, skipping context")
		return nil
	}
	if strings.TrimSpace(query) == "" {
		xlog.Debug("Empty query, skipping context")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			xlog.Error("Recovered while building context", "query", query, "panic", r)
			res = nil
		}
	}()

	o := b.defaults.apply(opts...)

	candidates, err := b.searcher.Query(ctx, types.Query{
		Text:            query,
		TopK:            o.TopK,
		IncludeData:     o.IncludeData,
		IncludeMetadata: true,
	})
	if err != nil {
		xlog.Error("Vector search failed", "query", query, "error", err)
		return nil
	}
	if len(candidates) == 0 {
		xlog.Info("No results from vector search", "query", query)
		return nil
	}
	if len(candidates) > o.TopK {
		candidates = candidates[:o.TopK]
	}
	xlog.Debug("Vector search results", "query", query, "count", len(candidates))

	final := candidates
	if o.UseReranking && b.reranker != nil && len(candidates) > 1 {
		if reranked := b.rerank(ctx, query, candidates, o); len(reranked) > 0 {
			final = reranked
		}
	}

	contextText := FormatContext(final)
	return &ContextResult{
		ContextText:  contextText,
		SystemPrompt: SystemPrompt(query, contextText),
		Results:      final,
	}
}

// rerank returns the candidates reordered by relevance, or nil when the
// original order should be kept.
func (b *ContextBuilder) rerank(ctx context.Context, query string, candidates []types.Result, o Options) []types.Result {
	var docs []string
	var origin []int
	for i, c := range candidates {
		if strings.TrimSpace(c.Data) == "" {
			continue
		}
		docs = append(docs, c.Data)
		origin = append(origin, i)
	}
	if len(docs) == 0 {
		xlog.Info("No candidate payloads to rerank, keeping search order")
		return nil
	}

	ranked, err := b.reranker.Rerank(ctx, types.RerankRequest{
		Query:     query,
		Documents: docs,
		TopN:      o.TopK,
		Model:     o.RerankModel,
	})
	if err != nil {
		xlog.Warn("Reranking failed, keeping search order", "error", err)
		return nil
	}

	kept := make([]types.RerankResult, 0, len(ranked))
	for _, r := range ranked {
		if r.RelevanceScore != nil && *r.RelevanceScore > o.RelevanceThreshold {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return *kept[i].RelevanceScore > *kept[j].RelevanceScore
	})

	var out []types.Result
	seen := make(map[int]bool, len(kept))
	for _, r := range kept {
		if len(out) == o.TopK {
			break
		}
		if r.Index < 0 || r.Index >= len(origin) {
			xlog.Warn("Reranker returned an unknown document index", "index", r.Index, "documents", len(docs))
			continue
		}
		if seen[r.Index] {
			xlog.Warn("Reranker returned a document twice", "index", r.Index)
			continue
		}
		seen[r.Index] = true
		c := candidates[origin[r.Index]]
		c.Score = *r.RelevanceScore
		out = append(out, c)
	}

	if len(out) == 0 {
		xlog.Info("No reranked result above threshold, keeping search order", "threshold", o.RelevanceThreshold)
		return nil
	}
	xlog.Debug("Reranked results", "before", len(candidates), "after", len(out))
	return out
}

// FormatContext renders results as a numbered list separated by
// ContextSeparator. Scores are not rendered.
func FormatContext(results []types.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		data := r.Data
		if strings.TrimSpace(data) == "" {
			data = NoContentPlaceholder
		}
		parts[i] = strconv.Itoa(i+1) + ": " + data
	}
	return strings.Join(parts, ContextSeparator)
}

// SystemPrompt wraps a formatted context block for query.
func SystemPrompt(query, contextText string) string {
	return fmt.Sprintf("You are a helpful AI assistant. The user has asked the following question: \"%s\"\n\n"+
		"Here is a ranked list of context that you can use to answer the user's question:\n%s\n", query, contextText)
}
