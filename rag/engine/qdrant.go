package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mudler/ragcontext/rag/types"
	"github.com/mudler/xlog"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const qdrantContentKey = "content"

// QdrantConfig holds the connection settings of a Qdrant instance.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantDB stores documents in a Qdrant collection. The collection is created
// on first store, once the embedding width is known.
type QdrantDB struct {
	client     *qdrant.Client
	collection string
	embed      EmbeddingFunc

	mu     sync.Mutex
	exists bool
}

func NewQdrantDBCollection(ctx context.Context, collection string, cfg QdrantConfig, embed EmbeddingFunc) (*QdrantDB, error) {
	qdrantConfig := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}
	if !cfg.UseTLS {
		qdrantConfig.GrpcOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("checking qdrant collection: %w", err)
	}

	xlog.Info("Qdrant collection ready", "host", cfg.Host, "port", cfg.Port, "collection", collection, "exists", exists)

	return &QdrantDB{
		client:     client,
		collection: collection,
		embed:      embed,
		exists:     exists,
	}, nil
}

func (q *QdrantDB) collectionExists() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exists
}

func (q *QdrantDB) ensureCollection(ctx context.Context, size int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.exists {
		return nil
	}

	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(size),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating qdrant collection: %w", err)
	}
	q.exists = true
	return nil
}

func (q *QdrantDB) Store(ctx context.Context, docs []string, metadata map[string]string) ([]types.Result, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	vectors, err := embedAll(ctx, q.embed, docs)
	if err != nil {
		return nil, err
	}

	if err := q.ensureCollection(ctx, len(vectors[0])); err != nil {
		return nil, err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	results := make([]types.Result, len(docs))
	for i, content := range docs {
		payload := map[string]*qdrant.Value{
			qdrantContentKey: {Kind: &qdrant.Value_StringValue{StringValue: content}},
		}
		for k, v := range metadata {
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
		}

		id := uuid.NewString()
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
		results[i] = types.Result{ID: types.ID(id), Data: content}
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant upsert: %w", err)
	}

	return results, nil
}

func (q *QdrantDB) Query(ctx context.Context, query types.Query) ([]types.Result, error) {
	if !q.collectionExists() {
		return []types.Result{}, nil
	}

	vector, err := q.embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w", err)
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(query.TopK)),
		WithPayload:    qdrant.NewWithPayload(query.IncludeData || query.IncludeMetadata),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	results := make([]types.Result, 0, len(points))
	for _, p := range points {
		r := types.Result{
			ID:    types.ID(pointID(p.GetId())),
			Score: float64(p.GetScore()),
		}
		for k, v := range p.GetPayload() {
			if k == qdrantContentKey {
				if query.IncludeData {
					r.Data = v.GetStringValue()
				}
				continue
			}
			if !query.IncludeMetadata {
				continue
			}
			if r.Metadata == nil {
				r.Metadata = map[string]any{}
			}
			r.Metadata[k] = payloadValue(v)
		}
		results = append(results, r)
	}

	return results, nil
}

func (q *QdrantDB) Count(ctx context.Context) (int, error) {
	if !q.collectionExists() {
		return 0, nil
	}
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(n), nil
}

// Reset drops the collection. It is recreated by the next store.
func (q *QdrantDB) Reset(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.exists {
		return nil
	}
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	q.exists = false
	return nil
}

func (q *QdrantDB) Close() error {
	return q.client.Close()
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}

func payloadValue(v *qdrant.Value) any {
	switch val := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	default:
		return nil
	}
}
