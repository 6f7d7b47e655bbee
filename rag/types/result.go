package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID identifies a vector record. Providers return either strings or integers,
// both are accepted and kept in their textual form.
type ID string

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Int returns the numeric value of the id when it is an integer.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (id ID) String() string {
	return string(id)
}

// Result represents a single candidate returned by a vector search.
type Result struct {
	ID ID `json:"id"`

	// Score is the similarity reported by the provider, or the relevance
	// score when the result went through a reranker. The range depends on
	// the provider.
	Score float64 `json:"score"`

	// Data is the payload text stored alongside the vector. Empty when the
	// provider was asked not to include it or the record has none.
	Data string `json:"data,omitempty"`

	Vector   []float32      `json:"vector,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Query describes a vector search request.
type Query struct {
	Text            string
	TopK            int
	IncludeData     bool
	IncludeMetadata bool
}
