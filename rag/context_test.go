package rag_test

import (
	"context"
	"strings"
	"sync"

	. "github.com/mudler/ragcontext/rag"
	"github.com/mudler/ragcontext/rag/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ContextBuilder", func() {
	var (
		ctx      context.Context
		searcher *fakeSearcher
		reranker *fakeReranker
		builder  *ContextBuilder
		original []types.Result
	)

	BeforeEach(func() {
		ctx = context.Background()
		original = []types.Result{
			{ID: "a", Score: 0.80, Data: "alpha"},
			{ID: "b", Score: 0.70, Data: "bravo"},
			{ID: "c", Score: 0.60, Data: "charlie"},
		}
		searcher = &fakeSearcher{results: original}
		reranker = &fakeReranker{}
		builder = NewContextBuilder(searcher, reranker)
	})

	Context("short circuits", func() {
		It("returns nil without a vector searcher", func() {
			Expect(NewContextBuilder(nil, reranker).BuildContext(ctx, "anything")).To(BeNil())
			Expect(reranker.requests).To(BeEmpty())
		})

		It("returns nil for blank queries", func() {
			Expect(builder.BuildContext(ctx, "")).To(BeNil())
			Expect(builder.BuildContext(ctx, " \t\n ")).To(BeNil())
			Expect(searcher.queries).To(BeEmpty())
		})

		It("returns nil when the search has no results", func() {
			searcher.results = nil
			Expect(builder.BuildContext(ctx, "q")).To(BeNil())
		})

		It("returns nil when the search fails", func() {
			searcher.err = errProvider
			Expect(builder.BuildContext(ctx, "q")).To(BeNil())
		})

		It("recovers panics into nil", func() {
			searcher.panics = true
			Expect(func() {
				Expect(builder.BuildContext(ctx, "q")).To(BeNil())
			}).ToNot(Panic())
		})
	})

	It("issues one search with the default options", func() {
		builder.BuildContext(ctx, "what is go")
		Expect(searcher.queries).To(HaveLen(1))
		Expect(searcher.queries[0].Text).To(Equal("what is go"))
		Expect(searcher.queries[0].TopK).To(Equal(DefaultTopK))
		Expect(searcher.queries[0].IncludeData).To(BeTrue())
	})

	It("applies per call options over builder defaults", func() {
		builder = NewContextBuilder(searcher, reranker, WithTopK(8), WithRerankModel("rerank-v3"))
		builder.BuildContext(ctx, "q", WithTopK(2), WithIncludeData(false))
		Expect(searcher.queries[0].TopK).To(Equal(2))
		Expect(searcher.queries[0].IncludeData).To(BeFalse())
		Expect(builder.Defaults().TopK).To(Equal(8))
		Expect(builder.Defaults().RerankModel).To(Equal("rerank-v3"))
	})

	It("reorders by relevance and drops entries under the threshold", func() {
		reranker.results = []types.RerankResult{
			{Index: 1, RelevanceScore: types.Score(0.05)},
			{Index: 0, RelevanceScore: types.Score(0.3)},
			{Index: 2, RelevanceScore: types.Score(0.9)},
		}

		res := builder.BuildContext(ctx, "q")
		Expect(res).ToNot(BeNil())
		Expect(res.Results).To(HaveLen(2))
		Expect(res.Results[0].ID).To(Equal(types.ID("c")))
		Expect(res.Results[0].Score).To(Equal(0.9))
		Expect(res.Results[1].ID).To(Equal(types.ID("a")))
		Expect(res.Results[1].Score).To(Equal(0.3))
		Expect(res.ContextText).To(Equal("1: charlie\n\n---\n\n2: alpha"))

		By("leaving the search results untouched")
		Expect(original[2].Score).To(Equal(0.60))

		By("sending the rerank request")
		Expect(reranker.requests).To(HaveLen(1))
		req := reranker.requests[0]
		Expect(req.Query).To(Equal("q"))
		Expect(req.Documents).To(Equal([]string{"alpha", "bravo", "charlie"}))
		Expect(req.TopN).To(Equal(DefaultTopK))
		Expect(req.Model).To(Equal(DefaultRerankModel))
	})

	It("keeps provider order on equal relevance", func() {
		reranker.results = []types.RerankResult{
			{Index: 2, RelevanceScore: types.Score(0.5)},
			{Index: 0, RelevanceScore: types.Score(0.5)},
		}
		res := builder.BuildContext(ctx, "q")
		Expect(res.Results[0].ID).To(Equal(types.ID("c")))
		Expect(res.Results[1].ID).To(Equal(types.ID("a")))
	})

	It("keeps the search order when every score is under the threshold", func() {
		reranker.results = []types.RerankResult{
			{Index: 2, RelevanceScore: types.Score(0.1)},
			{Index: 0, RelevanceScore: types.Score(0.01)},
			{Index: 1},
		}
		res := builder.BuildContext(ctx, "q")
		Expect(res).ToNot(BeNil())
		Expect(res.Results).To(Equal(original))
	})

	It("keeps the search order when the reranker fails", func() {
		reranker.err = errProvider
		res := builder.BuildContext(ctx, "q")
		Expect(res).ToNot(BeNil())
		Expect(res.Results).To(Equal(original))
	})

	It("honours a custom threshold", func() {
		reranker.results = []types.RerankResult{
			{Index: 0, RelevanceScore: types.Score(0.3)},
			{Index: 1, RelevanceScore: types.Score(0.2)},
		}
		res := builder.BuildContext(ctx, "q", WithRelevanceThreshold(0.25))
		Expect(res.Results).To(HaveLen(1))
		Expect(res.Results[0].ID).To(Equal(types.ID("a")))
	})

	It("maps rerank indices back across blank payloads", func() {
		searcher.results = []types.Result{
			{ID: "empty", Score: 0.9},
			{ID: "x", Score: 0.8, Data: "x-ray"},
			{ID: "y", Score: 0.7, Data: "yankee"},
		}
		reranker.results = []types.RerankResult{
			{Index: 1, RelevanceScore: types.Score(0.8)},
			{Index: 0, RelevanceScore: types.Score(0.4)},
		}

		res := builder.BuildContext(ctx, "q")
		Expect(reranker.requests[0].Documents).To(Equal([]string{"x-ray", "yankee"}))
		Expect(res.Results).To(HaveLen(2))
		Expect(res.Results[0].ID).To(Equal(types.ID("y")))
		Expect(res.Results[1].ID).To(Equal(types.ID("x")))
	})

	It("drops rerank entries pointing outside the document list", func() {
		reranker.results = []types.RerankResult{
			{Index: 7, RelevanceScore: types.Score(0.99)},
			{Index: -1, RelevanceScore: types.Score(0.98)},
			{Index: 1, RelevanceScore: types.Score(0.5)},
		}
		res := builder.BuildContext(ctx, "q")
		Expect(res.Results).To(HaveLen(1))
		Expect(res.Results[0].ID).To(Equal(types.ID("b")))
	})

	It("keeps each candidate once when the reranker repeats an index", func() {
		searcher.results = original[:2]
		reranker.results = []types.RerankResult{
			{Index: 0, RelevanceScore: types.Score(0.9)},
			{Index: 0, RelevanceScore: types.Score(0.8)},
			{Index: 1, RelevanceScore: types.Score(0.7)},
		}

		res := builder.BuildContext(ctx, "q", WithTopK(2))
		Expect(res.Results).To(HaveLen(2))
		Expect(res.Results[0].ID).To(Equal(types.ID("a")))
		Expect(res.Results[0].Score).To(Equal(0.9))
		Expect(res.Results[1].ID).To(Equal(types.ID("b")))
		Expect(res.ContextText).To(Equal("1: alpha\n\n---\n\n2: bravo"))
	})

	It("keeps the first score of a repeated index", func() {
		reranker.results = []types.RerankResult{
			{Index: 2, RelevanceScore: types.Score(0.9)},
			{Index: 1, RelevanceScore: types.Score(0.8)},
			{Index: 0, RelevanceScore: types.Score(0.7)},
			{Index: 1, RelevanceScore: types.Score(0.6)},
		}

		res := builder.BuildContext(ctx, "q")
		Expect(res.Results).To(HaveLen(3))
		Expect(res.Results[1].ID).To(Equal(types.ID("b")))
		Expect(res.Results[1].Score).To(Equal(0.8))
		Expect(res.Results[2].ID).To(Equal(types.ID("a")))
	})

	Context("when reranking is skipped", func() {
		It("does not call a disabled reranker", func() {
			res := builder.BuildContext(ctx, "q", WithReranking(false))
			Expect(res.Results).To(Equal(original))
			Expect(reranker.requests).To(BeEmpty())
		})

		It("does not rerank a single candidate", func() {
			searcher.results = original[:1]
			res := builder.BuildContext(ctx, "q")
			Expect(res.Results).To(HaveLen(1))
			Expect(reranker.requests).To(BeEmpty())
		})

		It("does not rerank without payloads", func() {
			searcher.results = []types.Result{{ID: "1"}, {ID: "2"}}
			res := builder.BuildContext(ctx, "q")
			Expect(res.Results).To(HaveLen(2))
			Expect(reranker.requests).To(BeEmpty())
		})

		It("works without a reranker", func() {
			res := NewContextBuilder(searcher, nil).BuildContext(ctx, "q")
			Expect(res.Results).To(Equal(original))
		})
	})

	It("truncates provider results to top k", func() {
		res := builder.BuildContext(ctx, "q", WithTopK(2), WithReranking(false))
		Expect(res.Results).To(HaveLen(2))
		Expect(res.Results[1].ID).To(Equal(types.ID("b")))
	})

	It("renders a placeholder for missing payloads", func() {
		searcher.results = []types.Result{
			{ID: "1", Score: 0.123456, Data: "A"},
			{ID: "2", Score: 0.654321},
		}
		res := builder.BuildContext(ctx, "q", WithReranking(false))
		Expect(res.ContextText).To(Equal("1: A\n\n---\n\n2: No content available"))
		Expect(res.ContextText).ToNot(ContainSubstring("0.12"))
		Expect(res.ContextText).ToNot(ContainSubstring("0.65"))
	})

	It("embeds the literal query once in the system prompt", func() {
		query := "How do goroutines communicate?"
		res := builder.BuildContext(ctx, query, WithReranking(false))
		Expect(strings.Count(res.SystemPrompt, query)).To(Equal(1))
		Expect(res.SystemPrompt).To(HavePrefix("You are a helpful AI assistant."))
		Expect(res.SystemPrompt).To(ContainSubstring("Here is a ranked list of context"))
		Expect(res.SystemPrompt).To(ContainSubstring(res.ContextText))
		Expect(strings.Index(res.SystemPrompt, query)).To(BeNumerically("<", strings.Index(res.SystemPrompt, res.ContextText)))
	})

	It("is safe for concurrent use", func() {
		reranker.results = []types.RerankResult{{Index: 2, RelevanceScore: types.Score(0.9)}}

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				res := builder.BuildContext(ctx, "q")
				Expect(res).ToNot(BeNil())
				Expect(res.Results[0].ID).To(Equal(types.ID("c")))
			}()
		}
		wg.Wait()
		Expect(original[2].Score).To(Equal(0.60))
	})
})

var _ = Describe("Options", func() {
	It("has the documented defaults", func() {
		o := DefaultOptions()
		Expect(o.TopK).To(Equal(5))
		Expect(o.IncludeData).To(BeTrue())
		Expect(o.UseReranking).To(BeTrue())
		Expect(o.RerankModel).To(Equal("rerank-english-v2.0"))
		Expect(o.RelevanceThreshold).To(Equal(0.1))
	})

	It("ignores invalid overrides", func() {
		b := NewContextBuilder(nil, nil, WithTopK(0), WithTopK(-3), WithRerankModel(""))
		Expect(b.Defaults()).To(Equal(DefaultOptions()))
	})
})
