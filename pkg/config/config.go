package config

import (
	"fmt"
	"strings"

	"github.com/mudler/ragcontext/rag/types"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	VectorEngineUpstash  = "upstash"
	VectorEngineChromem  = "chromem"
	VectorEnginePostgres = "postgres"
	VectorEngineQdrant   = "qdrant"

	RerankEngineCohere  = "cohere"
	RerankEngineLocalAI = "localai"
	RerankEngineKeyword = "keyword"
	RerankEngineNone    = "none"
)

// Config holds all application configuration.
type Config struct {
	ListenAddress string `mapstructure:"listen_address"`

	VectorEngine string `mapstructure:"vector_engine"`
	UpstashURL   string `mapstructure:"upstash_url"`
	UpstashToken string `mapstructure:"upstash_token"`

	RerankEngine  string `mapstructure:"rerank_engine"`
	CohereAPIKey  string `mapstructure:"cohere_api_key"`
	RerankBaseURL string `mapstructure:"rerank_base_url"`
	RerankAPIKey  string `mapstructure:"rerank_api_key"`

	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	OpenAIBaseURL  string `mapstructure:"openai_base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`

	CollectionName   string `mapstructure:"collection_name"`
	CollectionDBPath string `mapstructure:"collection_db_path"`
	DatabaseURL      string `mapstructure:"database_url"`

	QdrantHost   string `mapstructure:"qdrant_host"`
	QdrantPort   int    `mapstructure:"qdrant_port"`
	QdrantAPIKey string `mapstructure:"qdrant_api_key"`
	QdrantTLS    bool   `mapstructure:"qdrant_tls"`

	MaxChunkSize  int    `mapstructure:"max_chunk_size"`
	GitPrivateKey string `mapstructure:"git_private_key"`

	RAG RAGConfig `mapstructure:",squash"`
}

// RAGConfig holds the defaults of the context builder.
type RAGConfig struct {
	TopK               int     `mapstructure:"rag_top_k"`
	IncludeData        bool    `mapstructure:"rag_include_data"`
	UseReranking       bool    `mapstructure:"rag_use_reranking"`
	RerankModel        string  `mapstructure:"rag_rerank_model"`
	RelevanceThreshold float64 `mapstructure:"rag_relevance_threshold"`
}

var defaults = map[string]any{
	"listen_address":          ":8080",
	"vector_engine":           VectorEngineUpstash,
	"rerank_engine":           RerankEngineCohere,
	"embedding_model":         "text-embedding-3-small",
	"collection_name":         "default",
	"collection_db_path":      "collections",
	"qdrant_host":             "localhost",
	"qdrant_port":             6334,
	"max_chunk_size":          400,
	"rag_top_k":               types.DefaultTopK,
	"rag_include_data":        true,
	"rag_use_reranking":       true,
	"rag_rerank_model":        types.DefaultRerankModel,
	"rag_relevance_threshold": types.DefaultRelevanceThreshold,
}

// Keys lists every configuration key.
var Keys = []string{
	"listen_address",
	"vector_engine", "upstash_url", "upstash_token",
	"rerank_engine", "cohere_api_key", "rerank_base_url", "rerank_api_key",
	"openai_api_key", "openai_base_url", "embedding_model",
	"collection_name", "collection_db_path", "database_url",
	"qdrant_host", "qdrant_port", "qdrant_api_key", "qdrant_tls",
	"max_chunk_size", "git_private_key",
	"rag_top_k", "rag_include_data", "rag_use_reranking", "rag_rerank_model", "rag_relevance_threshold",
}

// envAliases keeps the environment names used by existing deployments.
var envAliases = map[string][]string{
	"upstash_url":     {"UPSTASH_VECTOR_REST_URL"},
	"upstash_token":   {"UPSTASH_VECTOR_REST_TOKEN"},
	"cohere_api_key":  {"COHERE_API_KEY"},
	"openai_base_url": {"OPENAI_API_BASE_URL"},
	"listen_address":  {"LISTENING_ADDRESS"},
	"max_chunk_size":  {"MAX_CHUNKING_SIZE"},
}

// New returns a viper instance with defaults and environment bindings set.
// Every key can be set with its upper cased name, e.g. VECTOR_ENGINE.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		_ = v.BindEnv(append([]string{key, strings.ToUpper(key)}, envAliases[key]...)...)
	}
	return v
}

// BindFlags binds command line flags named after config keys, with dashes
// instead of underscores.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	known := make(map[string]bool, len(Keys))
	for _, k := range Keys {
		known[k] = true
	}

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !known[key] {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = fmt.Errorf("binding flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

// Load reads configuration from the optional file at path and from the
// environment.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.VectorEngine = strings.ToLower(strings.TrimSpace(cfg.VectorEngine))
	cfg.RerankEngine = strings.ToLower(strings.TrimSpace(cfg.RerankEngine))

	return &cfg, nil
}

// Validate checks configuration for issues and returns warnings. None of
// them stop the service: the affected feature is disabled instead.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.VectorEngine {
	case VectorEngineUpstash:
		if c.UpstashURL == "" || c.UpstashToken == "" {
			warnings = append(warnings, "vector engine 'upstash' needs upstash_url and upstash_token, context retrieval is disabled")
		}
	case VectorEngineChromem, VectorEnginePostgres, VectorEngineQdrant:
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			warnings = append(warnings, fmt.Sprintf("vector engine '%s' needs embeddings but neither openai_api_key nor openai_base_url is set", c.VectorEngine))
		}
		if c.VectorEngine == VectorEnginePostgres && c.DatabaseURL == "" {
			warnings = append(warnings, "vector engine 'postgres' needs database_url")
		}
	case "":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown vector engine '%s'", c.VectorEngine))
	}

	switch c.RerankEngine {
	case RerankEngineCohere:
		if c.CohereAPIKey == "" && c.RerankAPIKey == "" {
			warnings = append(warnings, "rerank engine 'cohere' needs cohere_api_key, reranking is disabled")
		}
	case RerankEngineLocalAI:
		if c.RerankBaseURL == "" {
			warnings = append(warnings, "rerank engine 'localai' needs rerank_base_url, reranking is disabled")
		}
	case RerankEngineKeyword, RerankEngineNone, "":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown rerank engine '%s'", c.RerankEngine))
	}

	if c.RAG.TopK <= 0 {
		warnings = append(warnings, fmt.Sprintf("rag_top_k %d is not positive, the default is used", c.RAG.TopK))
	}
	if c.MaxChunkSize <= 0 {
		warnings = append(warnings, fmt.Sprintf("max_chunk_size %d is not positive, documents are not split", c.MaxChunkSize))
	}

	return warnings
}
