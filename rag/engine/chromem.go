package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/mudler/ragcontext/rag/types"
	"github.com/mudler/xlog"
	"github.com/philippgille/chromem-go"
)

// ChromemDB is an embedded vector engine. Embeddings are computed locally
// through the configured EmbeddingFunc.
type ChromemDB struct {
	sync.RWMutex
	collectionName string
	collection     *chromem.Collection
	index          int
	db             *chromem.DB
	embed          EmbeddingFunc
}

// NewChromemDBCollection opens (or creates) a collection. An empty path keeps
// the database in memory.
func NewChromemDBCollection(collection, path string, embed EmbeddingFunc) (*ChromemDB, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db at %s: %w", path, err)
		}
	}

	chromemDB := &ChromemDB{
		collectionName: collection,
		index:          1,
		db:             db,
		embed:          normalized(embed),
	}

	c, err := db.GetOrCreateCollection(collection, nil, chromem.EmbeddingFunc(chromemDB.embed))
	if err != nil {
		return nil, err
	}
	chromemDB.collection = c

	if count := c.Count(); count > 0 {
		chromemDB.index = count + 1
	}

	xlog.Info("Chromem collection ready", "collection", collection, "path", path, "documents", c.Count())

	return chromemDB, nil
}

func (c *ChromemDB) Count(ctx context.Context) (int, error) {
	c.RLock()
	defer c.RUnlock()
	return c.collection.Count(), nil
}

func (c *ChromemDB) Reset(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()

	if err := c.db.DeleteCollection(c.collectionName); err != nil {
		return fmt.Errorf("error deleting collection: %w", err)
	}
	collection, err := c.db.GetOrCreateCollection(c.collectionName, nil, chromem.EmbeddingFunc(c.embed))
	if err != nil {
		return fmt.Errorf("error creating collection: %w", err)
	}
	c.collection = collection
	c.index = 1

	return nil
}

func (c *ChromemDB) Store(ctx context.Context, docs []string, metadata map[string]string) ([]types.Result, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	c.Lock()
	defer c.Unlock()

	results := make([]types.Result, len(docs))
	documents := make([]chromem.Document, len(docs))
	for i, content := range docs {
		docID := fmt.Sprint(c.index + i)
		documents[i] = chromem.Document{
			ID:       docID,
			Metadata: metadata,
			Content:  content,
		}
		results[i] = types.Result{ID: types.ID(docID), Data: content}
	}

	if err := c.collection.AddDocuments(ctx, documents, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("adding documents to chromem: %w", err)
	}
	c.index += len(docs)

	return results, nil
}

func (c *ChromemDB) Query(ctx context.Context, q types.Query) ([]types.Result, error) {
	c.RLock()
	defer c.RUnlock()

	n := q.TopK
	// chromem refuses to return more results than the collection holds
	if count := c.collection.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return []types.Result{}, nil
	}

	chromemResults, err := c.collection.Query(ctx, q.Text, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]types.Result, 0, len(chromemResults))
	for _, r := range chromemResults {
		res := types.Result{
			ID:    types.ID(r.ID),
			Score: float64(r.Similarity),
		}
		if q.IncludeData {
			res.Data = r.Content
		}
		if q.IncludeMetadata {
			res.Metadata = metadataToAny(r.Metadata)
		}
		results = append(results, res)
	}

	return results, nil
}
