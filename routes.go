package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mudler/ragcontext/rag"
	"github.com/mudler/ragcontext/rag/engine"
	"github.com/mudler/ragcontext/rag/types"
	"github.com/mudler/xlog"
)

type server struct {
	clients  *rag.Clients
	builder  *rag.ContextBuilder
	ingestor *rag.Ingestor
}

func newServer(clients *rag.Clients, builder *rag.ContextBuilder, ingestor *rag.Ingestor) *server {
	return &server{
		clients:  clients,
		builder:  builder,
		ingestor: ingestor,
	}
}

func newEcho(s *server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	registerStaticHandler(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.POST("/api/context", s.buildContext)
	e.POST("/api/search", s.search)
	e.POST("/api/documents", s.storeText)
	e.POST("/api/documents/upload", s.uploadFile)
	e.POST("/api/sources", s.addSource)
	e.POST("/api/reset", s.reset)
	e.GET("/api/info", s.info)

	return e
}

func errorMessage(message string) map[string]string {
	return map[string]string{"error": message}
}

type contextRequest struct {
	Query              string           `json:"query"`
	Message            *rag.MessagePart `json:"message"`
	TopK               int              `json:"top_k"`
	IncludeData        *bool            `json:"include_data"`
	UseReranking       *bool            `json:"use_reranking"`
	RerankModel        string           `json:"rerank_model"`
	RelevanceThreshold *float64         `json:"relevance_threshold"`
}

func (r *contextRequest) options() []rag.Option {
	opts := []rag.Option{rag.WithTopK(r.TopK), rag.WithRerankModel(r.RerankModel)}
	if r.IncludeData != nil {
		opts = append(opts, rag.WithIncludeData(*r.IncludeData))
	}
	if r.UseReranking != nil {
		opts = append(opts, rag.WithReranking(*r.UseReranking))
	}
	if r.RelevanceThreshold != nil {
		opts = append(opts, rag.WithRelevanceThreshold(*r.RelevanceThreshold))
	}
	return opts
}

// buildContext answers 204 when no context could be built.
func (s *server) buildContext(c echo.Context) error {
	r := new(contextRequest)
	if err := c.Bind(r); err != nil {
		return c.JSON(http.StatusBadRequest, errorMessage("Invalid request"))
	}

	query := r.Query
	if query == "" && r.Message != nil {
		query = rag.ExtractUserQuery(*r.Message)
	}

	result := s.builder.BuildContext(c.Request().Context(), query, r.options()...)
	if result == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *server) search(c echo.Context) error {
	if s.clients.Searcher == nil {
		return c.JSON(http.StatusServiceUnavailable, errorMessage("Vector search is not configured"))
	}

	type request struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}

	r := new(request)
	if err := c.Bind(r); err != nil || r.Query == "" {
		return c.JSON(http.StatusBadRequest, errorMessage("Invalid request"))
	}
	if r.MaxResults <= 0 {
		r.MaxResults = s.builder.Defaults().TopK
	}

	results, err := s.clients.Searcher.Query(c.Request().Context(), types.Query{
		Text:            r.Query,
		TopK:            r.MaxResults,
		IncludeData:     true,
		IncludeMetadata: true,
	})
	if err != nil {
		xlog.Error("Search failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorMessage("Failed to search: "+err.Error()))
	}
	if results == nil {
		results = []types.Result{}
	}
	return c.JSON(http.StatusOK, results)
}

type storeResponse struct {
	Stored  int            `json:"stored"`
	Results []types.Result `json:"results"`
}

func storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, rag.ErrNoEngine):
		return c.JSON(http.StatusServiceUnavailable, errorMessage(err.Error()))
	case errors.Is(err, engine.ErrEmptyDocuments), errors.Is(err, rag.ErrUnsupportedFile):
		return c.JSON(http.StatusBadRequest, errorMessage(err.Error()))
	}
	xlog.Error("Failed to store", "error", err)
	return c.JSON(http.StatusInternalServerError, errorMessage("Failed to store: "+err.Error()))
}

func stored(c echo.Context, results []types.Result) error {
	return c.JSON(http.StatusCreated, storeResponse{Stored: len(results), Results: results})
}

func (s *server) storeText(c echo.Context) error {
	type request struct {
		Text     string            `json:"text"`
		Metadata map[string]string `json:"metadata"`
	}

	r := new(request)
	if err := c.Bind(r); err != nil {
		return c.JSON(http.StatusBadRequest, errorMessage("Invalid request"))
	}

	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]string{"source": "inline"}
	}

	results, err := s.ingestor.StoreText(c.Request().Context(), r.Text, metadata)
	if err != nil {
		return storeError(c, err)
	}
	return stored(c, results)
}

func (s *server) uploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorMessage("Failed to read file: "+err.Error()))
	}

	f, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorMessage("Failed to open file: "+err.Error()))
	}
	defer f.Close()

	dir, err := os.MkdirTemp("", "upload-*")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorMessage("Failed to create file"))
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(file.Filename))
	out, err := os.Create(path)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorMessage("Failed to create file"))
	}

	_, err = io.Copy(out, f)
	out.Close()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorMessage("Failed to copy file"))
	}

	results, err := s.ingestor.StoreFile(c.Request().Context(), path)
	if err != nil {
		return storeError(c, err)
	}
	return stored(c, results)
}

func (s *server) addSource(c echo.Context) error {
	type request struct {
		URL string `json:"url"`
	}

	r := new(request)
	if err := c.Bind(r); err != nil || r.URL == "" {
		return c.JSON(http.StatusBadRequest, errorMessage("Invalid request"))
	}

	results, err := s.ingestor.StoreSource(c.Request().Context(), r.URL)
	if err != nil {
		return storeError(c, err)
	}
	return stored(c, results)
}

func (s *server) reset(c echo.Context) error {
	if s.clients.Engine == nil {
		return c.JSON(http.StatusServiceUnavailable, errorMessage(rag.ErrNoEngine.Error()))
	}
	if err := s.clients.Engine.Reset(c.Request().Context()); err != nil {
		xlog.Error("Reset failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorMessage("Failed to reset: "+err.Error()))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) info(c echo.Context) error {
	type response struct {
		VectorEngine string `json:"vector_engine"`
		Reranker     string `json:"reranker"`
		Count        int    `json:"count"`
	}

	res := response{
		VectorEngine: s.clients.VectorEngine,
		Reranker:     s.clients.RerankEngine,
	}
	if s.clients.Engine != nil {
		count, err := s.clients.Engine.Count(c.Request().Context())
		if err != nil {
			xlog.Warn("Failed to count documents", "error", err)
		}
		res.Count = count
	}
	return c.JSON(http.StatusOK, res)
}
