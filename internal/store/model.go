package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Aman-CERP/semdesk/internal/query"
	"github.com/Aman-CERP/semdesk/internal/rdf"
)

// Model composes the quad store with the full-text index: every write
// refreshes the full-text document of each subject it touched.
type Model struct {
	// writeMu orders index refreshes the same way as store commits.
	writeMu sync.Mutex
	store   *QuadStore
	index   *FullTextIndex
}

// NewModel returns a model over store and index.
func NewModel(store *QuadStore, index *FullTextIndex) *Model {
	return &Model{store: store, index: index}
}

// Store returns the underlying quad store.
func (m *Model) Store() *QuadStore {
	return m.store
}

// Index returns the underlying full-text index.
func (m *Model) Index() *FullTextIndex {
	return m.index
}

// Update runs fn in one store transaction and then refreshes the
// full-text documents of every subject fn touched.
func (m *Model) Update(ctx context.Context, fn func(*Tx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	touched, err := m.store.update(ctx, fn)
	if err != nil {
		return err
	}
	return m.refresh(ctx, touched)
}

// AddStatements adds statements and refreshes the affected documents.
func (m *Model) AddStatements(ctx context.Context, stmts ...rdf.Statement) error {
	return m.Update(ctx, func(tx *Tx) error {
		return tx.Add(ctx, stmts...)
	})
}

// RemoveStatements removes statements matching p and refreshes the
// affected documents.
func (m *Model) RemoveStatements(ctx context.Context, p rdf.Pattern) (int64, error) {
	var n int64
	err := m.Update(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.Remove(ctx, p)
		return err
	})
	return n, err
}

// RemoveGraphs removes every statement in the given graphs in one
// transaction and refreshes the affected documents.
func (m *Model) RemoveGraphs(ctx context.Context, graphs ...string) (int64, error) {
	var n int64
	err := m.Update(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.RemoveGraphs(ctx, graphs...)
		return err
	})
	return n, err
}

// RemoveResource removes every statement about resource. Resources are
// never removed implicitly; this is the only way one disappears.
func (m *Model) RemoveResource(ctx context.Context, resource string) (int64, error) {
	return m.RemoveStatements(ctx, rdf.Pattern{Subject: rdf.URI(resource)})
}

// Statements returns a lazy cursor over statements matching p.
func (m *Model) Statements(ctx context.Context, p rdf.Pattern) query.Iterator[rdf.Statement] {
	return m.store.Statements(ctx, p)
}

// Resource returns the properties of resource keyed by predicate URI.
// An unknown resource yields an empty map.
func (m *Model) Resource(ctx context.Context, resource string) (map[string][]rdf.Term, error) {
	props := make(map[string][]rdf.Term)
	it := m.store.Statements(ctx, rdf.Pattern{Subject: rdf.URI(resource)})
	for it.Next() {
		st := it.Current()
		props[st.Predicate.Value] = append(props[st.Predicate.Value], st.Object)
	}
	if err := errors.Join(it.Err(), it.Close()); err != nil {
		return nil, fmt.Errorf("failed to read resource %s: %w", resource, err)
	}
	return props, nil
}

// ResourceByURL returns the resource whose nie:url is url.
func (m *Model) ResourceByURL(ctx context.Context, url string) (string, bool, error) {
	subjects, err := m.store.Subjects(ctx, rdf.Pattern{Predicate: rdf.NIEURL, Object: rdf.URI(url)})
	if err != nil {
		return "", false, err
	}
	if len(subjects) == 0 {
		return "", false, nil
	}
	if len(subjects) > 1 {
		slog.Warn("duplicate_resources_for_url",
			slog.String("url", url),
			slog.Int("count", len(subjects)))
	}
	return subjects[0], true, nil
}

// EmptyInstanceBases returns up to limit instance-base graphs holding no
// statements, leaving out those in skip.
func (m *Model) EmptyInstanceBases(ctx context.Context, limit int, skip []string) ([]string, error) {
	return m.store.EmptyInstanceBases(ctx, limit, skip)
}

// MetadataGraphsFor returns the metadata graphs describing graph.
func (m *Model) MetadataGraphsFor(ctx context.Context, graph string) ([]string, error) {
	return m.store.MetadataGraphsFor(ctx, graph)
}

// Search runs a full-text query and returns matching resources.
func (m *Model) Search(ctx context.Context, q string, limit int) query.Iterator[Hit] {
	return m.index.Search(ctx, q, limit)
}

// Reindex rebuilds the full-text document of every subject in the store.
func (m *Model) Reindex(ctx context.Context) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	subjects, err := m.store.Subjects(ctx, rdf.Pattern{})
	if err != nil {
		return 0, err
	}
	return len(subjects), m.refresh(ctx, subjects)
}

// refresh rewrites the full-text documents of subjects from the store.
func (m *Model) refresh(ctx context.Context, subjects []string) error {
	var errs []error
	for _, subject := range subjects {
		text, err := m.documentText(ctx, subject)
		if err == nil {
			err = m.index.Update(ctx, subject, text)
		}
		if err != nil {
			slog.Warn("fulltext_refresh_failed",
				slog.String("resource", subject),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("full-text refresh failed for %d resources: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// documentText concatenates the plain literal values of subject.
func (m *Model) documentText(ctx context.Context, subject string) (string, error) {
	var parts []string
	it := m.store.Statements(ctx, rdf.Pattern{Subject: rdf.URI(subject)})
	for it.Next() {
		obj := it.Current().Object
		if obj.IsLiteral() && (obj.Datatype == "" || obj.Datatype == rdf.XSDString) {
			parts = append(parts, obj.Value)
		}
	}
	if err := errors.Join(it.Err(), it.Close()); err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}
