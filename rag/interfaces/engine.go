package interfaces

import (
	"context"

	"github.com/mudler/ragcontext/rag/types"
)

// VectorSearcher runs similarity searches against a vector store.
type VectorSearcher interface {
	Query(ctx context.Context, q types.Query) ([]types.Result, error)
}

// Engine is a VectorSearcher that can also be written to.
type Engine interface {
	VectorSearcher
	Store(ctx context.Context, docs []string, metadata map[string]string) ([]types.Result, error)
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
