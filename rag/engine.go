package rag

import (
	"github.com/mudler/ragcontext/rag/interfaces"
	"github.com/mudler/ragcontext/rag/types"
)

// Engine is an alias for interfaces.Engine
type Engine = interfaces.Engine

// VectorSearcher is an alias for interfaces.VectorSearcher
type VectorSearcher = interfaces.VectorSearcher

// Reranker is an alias for types.Reranker
type Reranker = types.Reranker

// Result is an alias for types.Result
type Result = types.Result
