package engine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/mudler/ragcontext/rag/engine"
	"github.com/mudler/ragcontext/rag/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTPReranker", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		reranker *HTTPReranker
		got      types.RerankRequest
		status   int
		body     string
		calls    int
	)

	BeforeEach(func() {
		ctx = context.Background()
		calls = 0
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			calls++
			Expect(r.URL.Path).To(Equal("/v1/rerank"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer co-key"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			w.WriteHeader(status)
			w.Write([]byte(body))
		}))
		reranker = NewHTTPReranker(server.URL+"/v1", "co-key", server.Client())
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends the Cohere request shape and decodes scores", func() {
		body = `{"id":"x","results":[{"index":1,"relevance_score":0.9},{"index":0,"relevance_score":0.2},{"index":2}]}`

		results, err := reranker.Rerank(ctx, types.RerankRequest{
			Query:     "q",
			Documents: []string{"a", "b", "c"},
			TopN:      3,
			Model:     "rerank-english-v2.0",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(got.Query).To(Equal("q"))
		Expect(got.Documents).To(Equal([]string{"a", "b", "c"}))
		Expect(got.TopN).To(Equal(3))
		Expect(got.Model).To(Equal("rerank-english-v2.0"))

		Expect(results).To(HaveLen(3))
		Expect(results[0].Index).To(Equal(1))
		Expect(*results[0].RelevanceScore).To(Equal(0.9))
		Expect(results[2].RelevanceScore).To(BeNil())
	})

	It("returns an error on non 2xx answers", func() {
		status = http.StatusTooManyRequests
		body = `{"message":"rate limited"}`

		_, err := reranker.Rerank(ctx, types.RerankRequest{Query: "q", Documents: []string{"a"}})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("429"))
	})

	It("does not call the provider without documents", func() {
		results, err := reranker.Rerank(ctx, types.RerankRequest{Query: "q"})
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(BeEmpty())
		Expect(calls).To(BeZero())
	})
})

var _ = Describe("KeywordReranker", func() {
	It("scores documents by query term coverage", func() {
		r := NewKeywordReranker()
		results, err := r.Rerank(context.Background(), types.RerankRequest{
			Query:     "Go channels, goroutines",
			Documents: []string{"python lists", "goroutines talk over channels", "channels in go"},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(3))
		Expect(results[0].Index).To(Equal(1))
		Expect(*results[0].RelevanceScore).To(BeNumerically("~", 1.0))
		Expect(results[2].Index).To(Equal(0))
	})

	It("honours TopN", func() {
		r := NewKeywordReranker()
		results, err := r.Rerank(context.Background(), types.RerankRequest{
			Query:     "alpha",
			Documents: []string{"alpha", "beta", "alpha beta"},
			TopN:      2,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Index).To(Equal(0))
		Expect(results[1].Index).To(Equal(2))
	})
})
