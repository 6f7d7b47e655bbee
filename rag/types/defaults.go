package types

// Context builder defaults shared by the builder and the configuration layer.
const (
	DefaultTopK               = 5
	DefaultRerankModel        = "rerank-english-v2.0"
	DefaultRelevanceThreshold = 0.1
)
