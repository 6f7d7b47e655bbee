package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mudler/ragcontext/rag/types"
)

// UpstashIndex talks to an Upstash Vector index through its REST API. The
// index embeds text server side, so no local embedding model is needed.
type UpstashIndex struct {
	url    string
	token  string
	client *http.Client
}

func NewUpstashIndex(url, token string, client *http.Client) *UpstashIndex {
	if client == nil {
		client = http.DefaultClient
	}
	return &UpstashIndex{
		url:    strings.TrimSuffix(url, "/"),
		token:  token,
		client: client,
	}
}

type upstashQuery struct {
	Data            string `json:"data"`
	TopK            int    `json:"topK"`
	IncludeData     bool   `json:"includeData"`
	IncludeMetadata bool   `json:"includeMetadata"`
	IncludeVectors  bool   `json:"includeVectors"`
}

type upstashUpsert struct {
	ID       string            `json:"id"`
	Data     string            `json:"data"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type upstashInfo struct {
	VectorCount int `json:"vectorCount"`
}

type upstashResponse[T any] struct {
	Result T `json:"result"`
}

func (u *UpstashIndex) Query(ctx context.Context, q types.Query) ([]types.Result, error) {
	var resp upstashResponse[[]types.Result]
	err := doJSON(ctx, u.client, http.MethodPost, u.url+"/query-data", u.token, upstashQuery{
		Data:            q.Text,
		TopK:            q.TopK,
		IncludeData:     q.IncludeData,
		IncludeMetadata: q.IncludeMetadata,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("upstash query: %w", err)
	}
	if resp.Result == nil {
		return []types.Result{}, nil
	}
	return resp.Result, nil
}

func (u *UpstashIndex) Store(ctx context.Context, docs []string, metadata map[string]string) ([]types.Result, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	upserts := make([]upstashUpsert, len(docs))
	results := make([]types.Result, len(docs))
	for i, d := range docs {
		id := uuid.NewString()
		upserts[i] = upstashUpsert{ID: id, Data: d, Metadata: metadata}
		results[i] = types.Result{ID: types.ID(id), Data: d}
	}

	if err := doJSON(ctx, u.client, http.MethodPost, u.url+"/upsert-data", u.token, upserts, nil); err != nil {
		return nil, fmt.Errorf("upstash upsert: %w", err)
	}
	return results, nil
}

func (u *UpstashIndex) Reset(ctx context.Context) error {
	if err := doJSON(ctx, u.client, http.MethodDelete, u.url+"/reset", u.token, nil, nil); err != nil {
		return fmt.Errorf("upstash reset: %w", err)
	}
	return nil
}

func (u *UpstashIndex) Count(ctx context.Context) (int, error) {
	var resp upstashResponse[upstashInfo]
	if err := doJSON(ctx, u.client, http.MethodGet, u.url+"/info", u.token, nil, &resp); err != nil {
		return 0, fmt.Errorf("upstash info: %w", err)
	}
	return resp.Result.VectorCount, nil
}
