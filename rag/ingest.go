package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/mudler/ragcontext/pkg/chunk"
	"github.com/mudler/ragcontext/rag/engine"
	"github.com/mudler/ragcontext/rag/sources"
	"github.com/mudler/ragcontext/rag/types"
	"github.com/mudler/xlog"
)

var (
	ErrNoEngine        = errors.New("no writable vector engine configured")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// Ingestor chunks documents and stores them in a vector engine.
type Ingestor struct {
	engine       Engine
	maxChunkSize int
	sourceConfig *sources.Config
}

func NewIngestor(e Engine, maxChunkSize int, sourceConfig *sources.Config) *Ingestor {
	return &Ingestor{
		engine:       e,
		maxChunkSize: maxChunkSize,
		sourceConfig: sourceConfig,
	}
}

// StoreText splits text into chunks and stores each of them with metadata.
func (i *Ingestor) StoreText(ctx context.Context, text string, metadata map[string]string) ([]types.Result, error) {
	if i == nil || i.engine == nil {
		return nil, ErrNoEngine
	}

	chunks := chunk.SplitTextIntoChunks(text, i.maxChunkSize)
	if len(chunks) == 0 {
		return nil, engine.ErrEmptyDocuments
	}
	xlog.Debug("Storing text", "chunks", len(chunks), "metadata", metadata)

	results, err := i.engine.Store(ctx, chunks, metadata)
	if err != nil {
		return nil, fmt.Errorf("storing chunks: %w", err)
	}
	return results, nil
}

// StoreFile extracts the text of a .pdf, .txt or .md file and stores it.
func (i *Ingestor) StoreFile(ctx context.Context, path string) ([]types.Result, error) {
	if i == nil || i.engine == nil {
		return nil, ErrNoEngine
	}

	text, err := fileText(path)
	if err != nil {
		return nil, err
	}
	return i.StoreText(ctx, text, map[string]string{"source": filepath.Base(path)})
}

// StoreSource downloads url (web page, sitemap or git repository) and
// stores every piece of content it yields.
func (i *Ingestor) StoreSource(ctx context.Context, url string) ([]types.Result, error) {
	if i == nil || i.engine == nil {
		return nil, ErrNoEngine
	}

	contents, err := sources.SourceRouter(ctx, url, i.sourceConfig)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	var results []types.Result
	for _, c := range contents {
		stored, err := i.StoreText(ctx, c.Text, map[string]string{"source": c.Source})
		if errors.Is(err, engine.ErrEmptyDocuments) {
			xlog.Debug("Skipping empty content", "source", c.Source)
			continue
		}
		if err != nil {
			return results, err
		}
		results = append(results, stored...)
	}
	if len(results) == 0 {
		return nil, engine.ErrEmptyDocuments
	}

	xlog.Info("Stored source", "url", url, "documents", len(contents), "chunks", len(results))
	return results, nil
}

func fileText(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("file %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		r, err := pdf.Open(path)
		if err != nil {
			return "", fmt.Errorf("opening pdf: %w", err)
		}
		b, err := r.GetPlainText()
		if err != nil {
			return "", fmt.Errorf("reading pdf: %w", err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(b); err != nil {
			return "", err
		}
		return buf.String(), nil
	case ".txt", ".md":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(content), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
}
