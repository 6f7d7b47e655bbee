package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyDocuments is returned when a store call carries no content.
var ErrEmptyDocuments = errors.New("no documents to store")

// EmbeddingFunc turns a text into a vector.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// OpenAIEmbeddings returns an EmbeddingFunc backed by an OpenAI compatible
// embeddings endpoint (OpenAI, LocalAI, ...).
func OpenAIEmbeddings(client *openai.Client, model string) EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.CreateEmbeddings(ctx,
			openai.EmbeddingRequestStrings{
				Input: []string{text},
				Model: openai.EmbeddingModel(model),
			},
		)
		if err != nil {
			return nil, fmt.Errorf("error getting embedding: %w", err)
		}

		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("no response from embeddings API")
		}

		return resp.Data[0].Embedding, nil
	}
}

// normalized scales the vectors returned by embed to unit length. chromem
// only normalizes query vectors, stored documents keep what embed returns.
func normalized(embed EmbeddingFunc) EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		v, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum == 0 {
			return v, nil
		}
		norm := float32(math.Sqrt(sum))
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = x / norm
		}
		return out, nil
	}
}

func embedAll(ctx context.Context, embed EmbeddingFunc, docs []string) ([][]float32, error) {
	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		v, err := embed(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("embedding document %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

func metadataToAny(m map[string]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
