package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/semdesk/internal/query"
	"github.com/Aman-CERP/semdesk/internal/rdf"
)

// pageSize bounds how many rows a Statements cursor pulls per query, so an
// open cursor never pins the single connection.
const pageSize = 256

// QuadStore is a SQLite-backed store of RDF quads.
// All writes run in one transaction under the store lock, so a concurrent
// reader never observes half of a removal.
type QuadStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenQuadStore opens or creates the quad store at path.
// If path is empty, creates an in-memory store for testing.
func OpenQuadStore(path string) (*QuadStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; also keeps an in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -32768",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &QuadStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Debug("quad_store_opened", slog.String("path", path))
	return s, nil
}

func (s *QuadStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS statements (
		id           INTEGER PRIMARY KEY,
		subject      TEXT NOT NULL,
		subject_kind TEXT NOT NULL,
		predicate    TEXT NOT NULL,
		object       TEXT NOT NULL,
		object_kind  TEXT NOT NULL,
		datatype     TEXT NOT NULL DEFAULT '',
		lang         TEXT NOT NULL DEFAULT '',
		graph        TEXT NOT NULL,
		UNIQUE (subject, predicate, object, object_kind, datatype, lang, graph)
	);

	CREATE INDEX IF NOT EXISTS idx_statements_graph ON statements(graph);
	CREATE INDEX IF NOT EXISTS idx_statements_subject ON statements(subject);
	CREATE INDEX IF NOT EXISTS idx_statements_po ON statements(predicate, object);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path ("" for in-memory stores).
func (s *QuadStore) Path() string {
	return s.path
}

// Tx is a write transaction on the store. It is only valid inside Update.
// It records every subject whose statements it changed.
type Tx struct {
	tx      *sql.Tx
	touched map[string]struct{}
}

// Update runs fn in a single write transaction. The transaction commits if
// fn returns nil and rolls back otherwise.
func (s *QuadStore) Update(ctx context.Context, fn func(*Tx) error) error {
	_, err := s.update(ctx, fn)
	return err
}

// update is Update that also reports the subjects the transaction touched.
func (s *QuadStore) update(ctx context.Context, fn func(*Tx) error) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t := &Tx{tx: tx, touched: make(map[string]struct{})}
	if err := fn(t); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	touched := make([]string, 0, len(t.touched))
	for subject := range t.touched {
		touched = append(touched, subject)
	}
	sort.Strings(touched)
	return touched, nil
}

func (t *Tx) touch(subjects ...string) {
	for _, s := range subjects {
		t.touched[s] = struct{}{}
	}
}

// Add inserts statements, ignoring exact duplicates.
func (t *Tx) Add(ctx context.Context, stmts ...rdf.Statement) error {
	if len(stmts) == 0 {
		return nil
	}

	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO statements
			(subject, subject_kind, predicate, object, object_kind, datatype, lang, graph)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, st := range stmts {
		if err := st.Valid(); err != nil {
			return fmt.Errorf("invalid statement %s: %w", st, err)
		}
		if _, err := stmt.ExecContext(ctx,
			st.Subject.Value, st.Subject.Kind.String(),
			st.Predicate.Value,
			st.Object.Value, st.Object.Kind.String(), st.Object.Datatype, st.Object.Lang,
			st.Graph.Value,
		); err != nil {
			return fmt.Errorf("failed to insert statement: %w", err)
		}
		t.touch(st.Subject.Value)
	}
	return nil
}

// Remove deletes statements matching p and returns how many were removed.
func (t *Tx) Remove(ctx context.Context, p rdf.Pattern) (int64, error) {
	if p.Subject.IsZero() {
		subjects, err := t.Subjects(ctx, p)
		if err != nil {
			return 0, err
		}
		t.touch(subjects...)
	} else {
		t.touch(p.Subject.Value)
	}

	where, args := patternWhere(p)
	res, err := t.tx.ExecContext(ctx, "DELETE FROM statements"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to remove statements: %w", err)
	}
	return res.RowsAffected()
}

// RemoveGraphs deletes every statement in the given graphs.
func (t *Tx) RemoveGraphs(ctx context.Context, graphs ...string) (int64, error) {
	if len(graphs) == 0 {
		return 0, nil
	}

	rows, err := t.tx.QueryContext(ctx,
		"SELECT DISTINCT subject FROM statements WHERE graph IN ("+placeholders(len(graphs))+")",
		stringArgs(graphs)...)
	if err != nil {
		return 0, fmt.Errorf("failed to query graph subjects: %w", err)
	}
	subjects, err := query.Collect(query.FromRows(rows, scanString))
	if err != nil {
		return 0, err
	}
	t.touch(subjects...)

	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM statements WHERE graph IN ("+placeholders(len(graphs))+")",
		stringArgs(graphs)...)
	if err != nil {
		return 0, fmt.Errorf("failed to remove graphs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	// A declaration stored outside the removed metadata graphs would keep
	// the graph listed as an instance base.
	res, err = t.tx.ExecContext(ctx,
		"DELETE FROM statements WHERE predicate = ? AND object = ? AND object_kind = 'uri' AND subject IN ("+placeholders(len(graphs))+")",
		append([]any{rdf.RDFType.Value, rdf.NRLInstanceBase.Value}, stringArgs(graphs)...)...)
	if err != nil {
		return 0, fmt.Errorf("failed to remove graph declarations: %w", err)
	}
	declared, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n + declared, nil
}

// Subjects returns the distinct subjects of statements matching p.
func (t *Tx) Subjects(ctx context.Context, p rdf.Pattern) ([]string, error) {
	where, args := patternWhere(p)
	rows, err := t.tx.QueryContext(ctx, "SELECT DISTINCT subject FROM statements"+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	return query.Collect(query.FromRows(rows, scanString))
}

// AddStatements inserts statements in one transaction.
func (s *QuadStore) AddStatements(ctx context.Context, stmts ...rdf.Statement) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Add(ctx, stmts...)
	})
}

// RemoveStatements deletes statements matching p in one transaction.
func (s *QuadStore) RemoveStatements(ctx context.Context, p rdf.Pattern) (int64, error) {
	var n int64
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.Remove(ctx, p)
		return err
	})
	return n, err
}

// RemoveGraphs deletes every statement in the given graphs in one transaction.
func (s *QuadStore) RemoveGraphs(ctx context.Context, graphs ...string) (int64, error) {
	var n int64
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.RemoveGraphs(ctx, graphs...)
		return err
	})
	return n, err
}

// Statements returns a lazy cursor over statements matching p, ordered by
// insertion. Rows are fetched a page at a time.
func (s *QuadStore) Statements(ctx context.Context, p rdf.Pattern) query.Iterator[rdf.Statement] {
	where, args := patternWhere(p)
	if where == "" {
		where = " WHERE id > ?"
	} else {
		where += " AND id > ?"
	}
	sqlText := "SELECT id, subject, subject_kind, predicate, object, object_kind, datatype, lang, graph FROM statements" +
		where + " ORDER BY id LIMIT " + fmt.Sprint(pageSize)

	var (
		lastID int64
		page   []idStatement
		pos    int
		done   bool
	)

	return query.New(func() (rdf.Statement, bool, error) {
		if pos >= len(page) {
			if done {
				return rdf.Statement{}, false, nil
			}
			var err error
			page, err = s.fetchPage(ctx, sqlText, append(args[:len(args):len(args)], lastID))
			if err != nil {
				return rdf.Statement{}, false, err
			}
			pos = 0
			if len(page) < pageSize {
				done = true
			}
			if len(page) == 0 {
				return rdf.Statement{}, false, nil
			}
		}
		row := page[pos]
		pos++
		lastID = row.id
		return row.st, true, nil
	}, nil)
}

type idStatement struct {
	id int64
	st rdf.Statement
}

func (s *QuadStore) fetchPage(ctx context.Context, sqlText string, args []any) ([]idStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	return query.Collect(query.FromRows(rows, scanStatement))
}

func scanStatement(rows *sql.Rows) (idStatement, error) {
	var (
		row                                     idStatement
		subject, subjectKind, predicate, object string
		objectKind, datatype, lang, graph       string
	)
	if err := rows.Scan(&row.id, &subject, &subjectKind, &predicate, &object, &objectKind, &datatype, &lang, &graph); err != nil {
		return row, err
	}

	sk, err := rdf.ParseKind(subjectKind)
	if err != nil {
		return row, err
	}
	objKind, err := rdf.ParseKind(objectKind)
	if err != nil {
		return row, err
	}

	row.st = rdf.Statement{
		Subject:   rdf.Term{Kind: sk, Value: subject},
		Predicate: rdf.URI(predicate),
		Object:    rdf.Term{Kind: objKind, Value: object, Datatype: datatype, Lang: lang},
		Graph:     rdf.URI(graph),
	}
	return row, nil
}

func scanString(rows *sql.Rows) (string, error) {
	var v string
	err := rows.Scan(&v)
	return v, err
}

// Contains reports whether the exact statement is stored.
func (s *QuadStore) Contains(ctx context.Context, st rdf.Statement) (bool, error) {
	n, err := s.Count(ctx, rdf.Pattern(st))
	return n > 0, err
}

// Count returns the number of statements matching p.
func (s *QuadStore) Count(ctx context.Context, p rdf.Pattern) (int64, error) {
	where, args := patternWhere(p)
	return s.queryInt(ctx, "SELECT COUNT(*) FROM statements"+where, args...)
}

// GraphCount returns the number of distinct named graphs.
func (s *QuadStore) GraphCount(ctx context.Context) (int64, error) {
	return s.queryInt(ctx, "SELECT COUNT(DISTINCT graph) FROM statements")
}

func (s *QuadStore) queryInt(ctx context.Context, sqlText string, args ...any) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, sqlText, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

// Subjects returns the distinct subjects of statements matching p.
func (s *QuadStore) Subjects(ctx context.Context, p rdf.Pattern) ([]string, error) {
	where, args := patternWhere(p)
	return s.queryStrings(ctx, "SELECT DISTINCT subject FROM statements"+where, args...)
}

// EmptyInstanceBases returns up to limit graphs declared nrl:InstanceBase
// that contain no statements. Graphs listed in skip are left out.
func (s *QuadStore) EmptyInstanceBases(ctx context.Context, limit int, skip []string) ([]string, error) {
	sqlText := `
		SELECT DISTINCT d.subject FROM statements d
		WHERE d.predicate = ? AND d.object = ? AND d.object_kind = 'uri'
		  AND NOT EXISTS (SELECT 1 FROM statements x WHERE x.graph = d.subject)`
	args := []any{rdf.RDFType.Value, rdf.NRLInstanceBase.Value}
	if len(skip) > 0 {
		sqlText += " AND d.subject NOT IN (" + placeholders(len(skip)) + ")"
		args = append(args, stringArgs(skip)...)
	}
	sqlText += " ORDER BY d.subject LIMIT ?"
	args = append(args, limit)

	return s.queryStrings(ctx, sqlText, args...)
}

// MetadataGraphsFor returns the metadata graphs describing graph.
func (s *QuadStore) MetadataGraphsFor(ctx context.Context, graph string) ([]string, error) {
	return s.queryStrings(ctx,
		"SELECT DISTINCT subject FROM statements WHERE predicate = ? AND object = ? AND object_kind = 'uri'",
		rdf.NRLCoreGraphMetadataFor.Value, graph)
}

func (s *QuadStore) queryStrings(ctx context.Context, sqlText string, args ...any) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return query.Collect(query.FromRows(rows, scanString))
}

// Close closes the database. Later calls are no-ops.
func (s *QuadStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// patternWhere renders p as a WHERE clause ("" when p matches everything).
func patternWhere(p rdf.Pattern) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !p.Subject.IsZero() {
		conds = append(conds, "subject = ?", "subject_kind = ?")
		args = append(args, p.Subject.Value, p.Subject.Kind.String())
	}
	if !p.Predicate.IsZero() {
		conds = append(conds, "predicate = ?")
		args = append(args, p.Predicate.Value)
	}
	if !p.Object.IsZero() {
		conds = append(conds, "object = ?", "object_kind = ?", "datatype = ?", "lang = ?")
		args = append(args, p.Object.Value, p.Object.Kind.String(), p.Object.Datatype, p.Object.Lang)
	}
	if !p.Graph.IsZero() {
		conds = append(conds, "graph = ?")
		args = append(args, p.Graph.Value)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
