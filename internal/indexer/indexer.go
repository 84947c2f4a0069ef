// Package indexer turns files into RDF statements in the repository model.
//
// Each (re)index writes the resource's statements into a fresh instance-base
// graph with its own metadata graph. The previous statements are removed in
// the same transaction, which leaves the old graph empty for the graph
// maintainer to reclaim.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/rdf"
	"github.com/Aman-CERP/semdesk/internal/store"
)

// Config configures a FileIndexer.
type Config struct {
	// MaxTextBytes caps the text stored as nie:plainTextContent (0 = no text).
	MaxTextBytes int
	// MaxFileSize rejects larger files (0 = no limit).
	MaxFileSize int64
	// CacheSize is the number of url->resource lookups kept.
	CacheSize int
}

// Result describes one indexed file.
type Result struct {
	Resource   string `json:"resource"`
	Graph      string `json:"graph"`
	Statements int    `json:"statements"`
}

// FileIndexer indexes single files and folders into a store.Model.
// It is safe for concurrent use.
type FileIndexer struct {
	model *store.Model
	cfg   Config
	cache *lru.Cache[string, string]
	now   func() time.Time
}

// New creates a FileIndexer writing to model.
func New(model *store.Model, cfg Config) (*FileIndexer, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create lookup cache: %w", err)
	}
	return &FileIndexer{model: model, cfg: cfg, cache: cache, now: time.Now}, nil
}

// Index (re)indexes the file or folder at path.
func (ix *FileIndexer) Index(ctx context.Context, path string) (Result, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, semerrors.New(semerrors.ErrCodeFileNotFound, "file not found", err).WithDetail("path", path)
		}
		if os.IsPermission(err) {
			return Result{}, semerrors.New(semerrors.ErrCodeFilePermission, "permission denied", err).WithDetail("path", path)
		}
		return Result{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() && ix.cfg.MaxFileSize > 0 && info.Size() > ix.cfg.MaxFileSize {
		return Result{}, semerrors.New(semerrors.ErrCodeFileTooLarge, "file exceeds max_file_size", nil).
			WithDetail("path", path).
			WithDetail("size", fmt.Sprint(info.Size()))
	}

	url := rdf.FileURL(path)
	resource, err := ix.resourceFor(ctx, url.Value)
	if err != nil {
		return Result{}, err
	}
	res := rdf.URI(resource)
	if resource == "" {
		res = rdf.NewResourceURI()
	}

	graph := rdf.NewGraphURI()
	meta := rdf.NewGraphURI()

	stmts := []rdf.Statement{
		rdf.NewStatement(graph, rdf.RDFType, rdf.NRLInstanceBase, meta),
		rdf.NewStatement(graph, rdf.NAOCreated, rdf.DateTime(ix.now()), meta),
		rdf.NewStatement(meta, rdf.RDFType, rdf.NRLGraphMetadata, meta),
		rdf.NewStatement(meta, rdf.NRLCoreGraphMetadataFor, graph, meta),

		rdf.NewStatement(res, rdf.NIEURL, url, graph),
		rdf.NewStatement(res, rdf.NFOFileName, rdf.Literal(info.Name()), graph),
		rdf.NewStatement(res, rdf.NIELastModified, rdf.DateTime(info.ModTime()), graph),
	}

	if parent := filepath.Dir(path); parent != path {
		stmts = append(stmts, rdf.NewStatement(res, rdf.NIEIsPartOf, rdf.FileURL(parent), graph))
	}

	if info.IsDir() {
		stmts = append(stmts,
			rdf.NewStatement(res, rdf.RDFType, rdf.NFOFolder, graph),
			rdf.NewStatement(res, rdf.NIEMimeType, rdf.Literal(folderMimeType), graph),
		)
	} else {
		mimeType, text, err := ix.inspect(path, info.Size())
		if err != nil {
			return Result{}, err
		}
		stmts = append(stmts,
			rdf.NewStatement(res, rdf.RDFType, rdf.NFOFileDataObject, graph),
			rdf.NewStatement(res, rdf.NFOFileSize, rdf.Long(info.Size()), graph),
			rdf.NewStatement(res, rdf.NIEMimeType, rdf.Literal(mimeType), graph),
		)
		if text != "" {
			stmts = append(stmts, rdf.NewStatement(res, rdf.NIEPlainTextContent, rdf.Literal(text), graph))
		}
	}

	err = ix.model.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.Remove(ctx, rdf.Pattern{Subject: res}); err != nil {
			return err
		}
		return tx.Add(ctx, stmts...)
	})
	if err != nil {
		return Result{}, semerrors.New(semerrors.ErrCodeIndexFailed, "failed to store file metadata", err).WithDetail("path", path)
	}

	ix.cache.Add(url.Value, res.Value)

	slog.Debug("file_indexed",
		slog.String("path", path),
		slog.String("resource", res.Value),
		slog.Int("statements", len(stmts)))

	return Result{Resource: res.Value, Graph: graph.Value, Statements: len(stmts)}, nil
}

// inspect detects the mime type and extracts text content when the file
// is textual.
func (ix *FileIndexer) inspect(path string, size int64) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return "", "", semerrors.New(semerrors.ErrCodeFilePermission, "permission denied", err).WithDetail("path", path)
		}
		return "", "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// One byte past the text cap tells extractText the file was cut.
	limit := int64(sniffLen)
	if n := int64(ix.cfg.MaxTextBytes) + 1; n > limit {
		limit = n
	}
	if size < limit {
		limit = size
	}

	head := make([]byte, limit)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	head = head[:n]

	mimeType := detectMimeType(path, head)
	if ix.cfg.MaxTextBytes <= 0 || !isTextual(mimeType) {
		return mimeType, "", nil
	}
	return mimeType, extractText(head, ix.cfg.MaxTextBytes), nil
}

// IsUpToDate reports whether path is indexed with a last-modified time
// equal to mtime.
func (ix *FileIndexer) IsUpToDate(ctx context.Context, path string, mtime time.Time) (bool, error) {
	resource, err := ix.resourceFor(ctx, rdf.FileURL(filepath.Clean(path)).Value)
	if err != nil || resource == "" {
		return false, err
	}

	props, err := ix.model.Resource(ctx, resource)
	if err != nil {
		return false, err
	}
	for _, v := range props[rdf.NIELastModified.Value] {
		stored, err := rdf.ParseDateTime(v)
		if err != nil {
			continue
		}
		if stored.Equal(mtime.UTC().Truncate(time.Second)) {
			return true, nil
		}
	}
	return false, nil
}

// Remove deletes the resource indexed for path. A folder takes every
// resource below it along. It reports whether anything was removed.
func (ix *FileIndexer) Remove(ctx context.Context, path string) (bool, error) {
	path = filepath.Clean(path)

	children, err := ix.Children(ctx, path)
	if err != nil {
		return false, err
	}
	removed := false
	for _, child := range children {
		ok, err := ix.Remove(ctx, child.Path)
		if err != nil {
			return removed, err
		}
		removed = removed || ok
	}

	url := rdf.FileURL(path).Value
	resource, err := ix.resourceFor(ctx, url)
	if err != nil || resource == "" {
		return removed, err
	}

	if _, err := ix.model.RemoveResource(ctx, resource); err != nil {
		return removed, fmt.Errorf("remove %s: %w", path, err)
	}
	ix.cache.Remove(url)

	slog.Debug("file_removed", slog.String("path", path), slog.String("resource", resource))
	return true, nil
}

// IndexedFile pairs a resource with the path it describes.
type IndexedFile struct {
	Resource string `json:"resource"`
	Path     string `json:"path"`
}

// Children returns the indexed resources whose nie:isPartOf is folder.
func (ix *FileIndexer) Children(ctx context.Context, folder string) ([]IndexedFile, error) {
	subjects, err := ix.model.Store().Subjects(ctx, rdf.Pattern{
		Predicate: rdf.NIEIsPartOf,
		Object:    rdf.FileURL(filepath.Clean(folder)),
	})
	if err != nil {
		return nil, err
	}

	var out []IndexedFile
	for _, subject := range subjects {
		props, err := ix.model.Resource(ctx, subject)
		if err != nil {
			return nil, err
		}
		for _, u := range props[rdf.NIEURL.Value] {
			p, err := rdf.PathFromURL(u.Value)
			if err != nil {
				continue
			}
			out = append(out, IndexedFile{Resource: subject, Path: p})
		}
	}
	return out, nil
}

// ResourceFor returns the resource indexed for path, or "" if none.
func (ix *FileIndexer) ResourceFor(ctx context.Context, path string) (string, error) {
	return ix.resourceFor(ctx, rdf.FileURL(filepath.Clean(path)).Value)
}

func (ix *FileIndexer) resourceFor(ctx context.Context, url string) (string, error) {
	if res, ok := ix.cache.Get(url); ok {
		return res, nil
	}
	res, ok, err := ix.model.ResourceByURL(ctx, url)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", url, err)
	}
	if !ok {
		return "", nil
	}
	ix.cache.Add(url, res)
	return res, nil
}
