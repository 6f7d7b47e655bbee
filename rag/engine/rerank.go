package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mudler/ragcontext/rag/types"
)

// DefaultCohereBaseURL is used when no rerank base URL is configured.
const DefaultCohereBaseURL = "https://api.cohere.com/v1"

// HTTPReranker calls a Cohere compatible /rerank endpoint. LocalAI and Jina
// expose the same request and response shape.
type HTTPReranker struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPReranker(baseURL, apiKey string, client *http.Client) *HTTPReranker {
	if baseURL == "" {
		baseURL = DefaultCohereBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPReranker{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type rerankResponse struct {
	Results []types.RerankResult `json:"results"`
}

func (r *HTTPReranker) Rerank(ctx context.Context, req types.RerankRequest) ([]types.RerankResult, error) {
	if len(req.Documents) == 0 {
		return []types.RerankResult{}, nil
	}

	var resp rerankResponse
	if err := doJSON(ctx, r.client, http.MethodPost, r.baseURL+"/rerank", r.apiKey, req, &resp); err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	return resp.Results, nil
}
