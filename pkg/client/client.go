package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mudler/ragcontext/rag"
	"github.com/mudler/ragcontext/rag/types"
)

// Client is a client for the ragcontext API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: http.DefaultClient,
	}
}

// ContextRequest is the body of a context build request. Zero values leave
// the server defaults in place.
type ContextRequest struct {
	Query              string           `json:"query,omitempty"`
	Message            *rag.MessagePart `json:"message,omitempty"`
	TopK               int              `json:"top_k,omitempty"`
	IncludeData        *bool            `json:"include_data,omitempty"`
	UseReranking       *bool            `json:"use_reranking,omitempty"`
	RerankModel        string           `json:"rerank_model,omitempty"`
	RelevanceThreshold *float64         `json:"relevance_threshold,omitempty"`
}

// Info describes the configured providers.
type Info struct {
	VectorEngine string `json:"vector_engine"`
	Reranker     string `json:"reranker"`
	Count        int    `json:"count"`
}

// StoreResult is returned by the ingestion endpoints.
type StoreResult struct {
	Stored  int            `json:"stored"`
	Results []types.Result `json:"results"`
}

// Error is returned for non successful answers.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// BuildContext asks the server for a context block. It returns nil, nil when
// the server had no context for the query.
func (c *Client) BuildContext(ctx context.Context, req ContextRequest) (*rag.ContextResult, error) {
	var result rag.ContextResult
	status, err := c.do(ctx, http.MethodPost, "/api/context", req, &result)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &result, nil
}

// Search runs a raw vector search
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]types.Result, error) {
	type request struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}

	var results []types.Result
	if _, err := c.do(ctx, http.MethodPost, "/api/search", request{Query: query, MaxResults: maxResults}, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// StoreText stores a text document
func (c *Client) StoreText(ctx context.Context, text string, metadata map[string]string) (*StoreResult, error) {
	type request struct {
		Text     string            `json:"text"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}

	var result StoreResult
	if _, err := c.do(ctx, http.MethodPost, "/api/documents", request{Text: text, Metadata: metadata}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddSource ingests a web page, sitemap or git repository
func (c *Client) AddSource(ctx context.Context, url string) (*StoreResult, error) {
	type request struct {
		URL string `json:"url"`
	}

	var result StoreResult
	if _, err := c.do(ctx, http.MethodPost, "/api/sources", request{URL: url}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reset removes every stored document
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/reset", nil, nil)
	return err
}

// Info returns the configured providers and document count
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if _, err := c.do(ctx, http.MethodGet, "/api/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Upload stores a file
func (c *Client) Upload(ctx context.Context, filePath string) (*StoreResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(file.Name()))
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/documents/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result StoreResult
	if _, err := c.send(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) (int, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(msg, &apiErr) == nil && apiErr.Error != "" {
			return resp.StatusCode, &Error{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return resp.StatusCode, &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, nil
}
