package rag

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/mudler/ragcontext/pkg/config"
	"github.com/mudler/ragcontext/rag/engine"
	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"
)

// Clients holds the optional provider capabilities. A nil field means the
// feature is not configured.
type Clients struct {
	Searcher VectorSearcher
	Engine   Engine
	Reranker Reranker

	VectorEngine string
	RerankEngine string

	closers []func()
}

// NewClients builds at most one vector engine and one reranker from cfg.
// Missing credentials or a failing engine leave the field nil and are
// logged; startup never fails here.
func NewClients(ctx context.Context, cfg *config.Config) *Clients {
	c := &Clients{}
	if cfg == nil {
		return c
	}

	c.setupEngine(ctx, cfg)
	c.setupReranker(cfg)
	return c
}

// Close releases engine connections.
func (c *Clients) Close() {
	for _, closer := range c.closers {
		closer()
	}
	c.closers = nil
}

func (c *Clients) setEngine(name string, e Engine) {
	c.VectorEngine = name
	c.Engine = e
	c.Searcher = e
	xlog.Info("Vector engine configured", "engine", name)
}

func (c *Clients) setupEngine(ctx context.Context, cfg *config.Config) {
	switch cfg.VectorEngine {
	case config.VectorEngineUpstash:
		if cfg.UpstashURL == "" || cfg.UpstashToken == "" {
			xlog.Warn("Upstash credentials missing, context retrieval disabled")
			return
		}
		c.setEngine(cfg.VectorEngine, engine.NewUpstashIndex(cfg.UpstashURL, cfg.UpstashToken, http.DefaultClient))

	case config.VectorEngineChromem:
		db, err := engine.NewChromemDBCollection(cfg.CollectionName, filepath.Join(cfg.CollectionDBPath, cfg.CollectionName), embeddings(cfg))
		if err != nil {
			xlog.Error("Failed to create ChromemDB", "error", err)
			return
		}
		c.setEngine(cfg.VectorEngine, db)

	case config.VectorEnginePostgres:
		if cfg.DatabaseURL == "" {
			xlog.Warn("database_url missing, context retrieval disabled")
			return
		}
		db, err := engine.NewPostgresDBCollection(ctx, cfg.CollectionName, cfg.DatabaseURL, embeddings(cfg))
		if err != nil {
			xlog.Error("Failed to create PostgresDB", "error", err)
			return
		}
		c.closers = append(c.closers, db.Close)
		c.setEngine(cfg.VectorEngine, db)

	case config.VectorEngineQdrant:
		db, err := engine.NewQdrantDBCollection(ctx, cfg.CollectionName, engine.QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: cfg.QdrantTLS,
		}, embeddings(cfg))
		if err != nil {
			xlog.Error("Failed to create QdrantDB", "error", err)
			return
		}
		c.closers = append(c.closers, func() { db.Close() })
		c.setEngine(cfg.VectorEngine, db)

	case "":
		xlog.Warn("No vector engine configured, context retrieval disabled")

	default:
		xlog.Error("Unknown vector engine, context retrieval disabled", "engine", cfg.VectorEngine)
	}
}

func (c *Clients) setupReranker(cfg *config.Config) {
	switch cfg.RerankEngine {
	case config.RerankEngineCohere:
		key := cfg.CohereAPIKey
		if key == "" {
			key = cfg.RerankAPIKey
		}
		if key == "" {
			xlog.Warn("Cohere API key missing, reranking disabled")
			return
		}
		baseURL := cfg.RerankBaseURL
		if baseURL == "" {
			baseURL = engine.DefaultCohereBaseURL
		}
		c.Reranker = engine.NewHTTPReranker(baseURL, key, http.DefaultClient)

	case config.RerankEngineLocalAI:
		if cfg.RerankBaseURL == "" {
			xlog.Warn("rerank_base_url missing, reranking disabled")
			return
		}
		c.Reranker = engine.NewHTTPReranker(cfg.RerankBaseURL, cfg.RerankAPIKey, http.DefaultClient)

	case config.RerankEngineKeyword:
		c.Reranker = engine.NewKeywordReranker()

	case config.RerankEngineNone, "":
		xlog.Info("Reranking disabled")
		return

	default:
		xlog.Error("Unknown rerank engine, reranking disabled", "engine", cfg.RerankEngine)
		return
	}

	c.RerankEngine = cfg.RerankEngine
	xlog.Info("Reranker configured", "engine", cfg.RerankEngine)
}

func embeddings(cfg *config.Config) engine.EmbeddingFunc {
	openaiConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		openaiConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return engine.OpenAIEmbeddings(openai.NewClientWithConfig(openaiConfig), cfg.EmbeddingModel)
}

// ContextOptions turns the configured builder defaults into options.
func ContextOptions(cfg *config.Config) []Option {
	if cfg == nil {
		return nil
	}
	return []Option{
		WithTopK(cfg.RAG.TopK),
		WithIncludeData(cfg.RAG.IncludeData),
		WithReranking(cfg.RAG.UseReranking),
		WithRerankModel(cfg.RAG.RerankModel),
		WithRelevanceThreshold(cfg.RAG.RelevanceThreshold),
	}
}
