package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/Aman-CERP/semdesk/internal/query"
)

// ErrIndexPathNotDir is returned when the index path exists but is not a directory.
var ErrIndexPathNotDir = errors.New("index path exists and is not a directory")

// Hit is one full-text search result.
type Hit struct {
	Resource     string   `json:"resource"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// FullTextIndex is a bleve index holding one document per resource.
type FullTextIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// textDocument is the document structure stored in bleve.
type textDocument struct {
	Content string `json:"content"`
}

// validateIndexIntegrity checks that an existing index directory looks
// usable before bleve opens it.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError checks if a bleve open error indicates corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt") ||
		errors.Is(err, bleve.ErrorIndexMetaCorrupt)
}

// OpenFullTextIndex opens or creates the index directory at path.
// If path is empty, creates an in-memory index for testing.
// A corrupted index directory is cleared and recreated; a path that exists
// but is not a directory is refused.
func OpenFullTextIndex(path string) (*FullTextIndex, error) {
	indexMapping := createIndexMapping()

	if path == "" {
		idx, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
		return &FullTextIndex{index: idx}, nil
	}

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrIndexPathNotDir)
	}

	if validErr := validateIndexIntegrity(path); validErr != nil {
		slog.Warn("fulltext_index_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))

		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, err, validErr)
		}
		slog.Info("fulltext_index_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, please reindex"))
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, indexMapping)
	} else if err != nil && isCorruptionError(err) {
		slog.Warn("fulltext_index_open_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))

		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index corrupted, cannot clear: %w (original: %v)", removeErr, err)
		}
		idx, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &FullTextIndex{index: idx, path: path}, nil
}

func createIndexMapping() *mapping.IndexMappingImpl {
	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false
	content.IncludeTermVectors = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", content)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Update replaces the document of resource with text. Empty text deletes it.
func (f *FullTextIndex) Update(ctx context.Context, resource, text string) error {
	if strings.TrimSpace(text) == "" {
		return f.Delete(ctx, resource)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("index is closed")
	}
	if err := f.index.Index(resource, textDocument{Content: text}); err != nil {
		return fmt.Errorf("failed to index document %s: %w", resource, err)
	}
	return nil
}

// Delete removes the documents of the given resources.
func (f *FullTextIndex) Delete(ctx context.Context, resources ...string) error {
	if len(resources) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("index is closed")
	}

	batch := f.index.NewBatch()
	for _, id := range resources {
		batch.Delete(id)
	}
	if err := f.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Search returns a lazy cursor over resources matching q, best first.
// Results are fetched from bleve a page at a time; limit <= 0 means no limit.
func (f *FullTextIndex) Search(ctx context.Context, q string, limit int) query.Iterator[Hit] {
	if strings.TrimSpace(q) == "" {
		return query.Empty[Hit]()
	}

	var (
		from int
		page []Hit
		pos  int
		done bool
	)

	return query.New(func() (Hit, bool, error) {
		if pos >= len(page) {
			if done {
				return Hit{}, false, nil
			}
			size := pageSize
			if limit > 0 && limit-from < size {
				size = limit - from
			}
			if size <= 0 {
				return Hit{}, false, nil
			}
			var err error
			page, err = f.searchPage(ctx, q, from, size)
			if err != nil {
				return Hit{}, false, err
			}
			from += len(page)
			pos = 0
			if len(page) < size {
				done = true
			}
			if len(page) == 0 {
				return Hit{}, false, nil
			}
		}
		h := page[pos]
		pos++
		return h, true, nil
	}, nil)
}

func (f *FullTextIndex) searchPage(ctx context.Context, q string, from, size int) ([]Hit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, fmt.Errorf("index is closed")
	}

	matchQuery := bleve.NewMatchQuery(q)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequestOptions(matchQuery, size, from, false)
	req.IncludeLocations = true

	result, err := f.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, Hit{
			Resource:     h.ID,
			Score:        h.Score,
			MatchedTerms: matchedTerms(h),
		})
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (f *FullTextIndex) Count() (uint64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return f.index.DocCount()
}

// Path returns the index directory ("" for in-memory indexes).
func (f *FullTextIndex) Path() string {
	return f.path
}

// Close closes the index.
func (f *FullTextIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.index.Close()
}

func matchedTerms(hit *search.DocumentMatch) []string {
	var terms []string
	for term := range hit.Locations["content"] {
		terms = append(terms, term)
	}
	return terms
}
