package graph

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultBatchSize = 10000

// SQLiteStore persists nodes and links in a SQLite database.
//
// Writes are batched into a transaction that is committed every batchSize
// writes, before any read, and on Close. All access is serialized through
// one mutex and one connection.
type SQLiteStore struct {
	db        *sql.DB
	ids       IdentityFactory
	mu        sync.Mutex
	tx        *sql.Tx
	pending   int
	batchSize int
}

// OpenSQLiteStore opens (or creates) the database at dbPath and brings its
// schema up to date.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	// Bulk-load tuning; the database is a derived artifact.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLiteStore(db), nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:        db,
		ids:       NewNamespaceIdentity(DefaultNamespace),
		batchSize: defaultBatchSize,
	}
}

// CreateIdentity implements NodeStore.
func (s *SQLiteStore) CreateIdentity(seed string) string { return s.ids.CreateIdentity(seed) }

// ContentDigest implements NodeStore.
func (s *SQLiteStore) ContentDigest(v jsonvalue.Value) string { return ContentDigest(v) }

// CreateNode implements NodeStore. Re-creating a node keeps its original
// position in Nodes().
func (s *SQLiteStore) CreateNode(ctx context.Context, n *Node) error {
	fields, err := n.Fields.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode fields of %s: %w", n.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.beginLocked()
	if err != nil {
		return err
	}
	if err := insertNode(ctx, tx, n, fields); err != nil {
		return err
	}
	return s.wroteLocked(1)
}

// CreateParentChildLink implements NodeStore.
func (s *SQLiteStore) CreateParentChildLink(ctx context.Context, parentID, childID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.beginLocked()
	if err != nil {
		return err
	}
	if err := insertLink(ctx, tx, parentID, childID); err != nil {
		return err
	}
	return s.wroteLocked(1)
}

// applyBatch writes ops inside a savepoint of the shared transaction: either
// all of them land or none do.
func (s *SQLiteStore) applyBatch(ctx context.Context, ops []batchOp) error {
	encoded := make([][]byte, len(ops))
	for i, op := range ops {
		if op.node == nil {
			continue
		}
		fields, err := op.node.Fields.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode fields of %s: %w", op.node.ID, err)
		}
		encoded[i] = fields
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.beginLocked()
	if err != nil {
		return err
	}
	wctx := context.WithoutCancel(ctx)
	if _, err := tx.ExecContext(wctx, `SAVEPOINT batch`); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	for i, op := range ops {
		if op.node != nil {
			err = insertNode(ctx, tx, op.node, encoded[i])
		} else {
			err = insertLink(ctx, tx, op.parent, op.child)
		}
		if err != nil {
			if _, rerr := tx.ExecContext(wctx, `ROLLBACK TO batch`); rerr != nil {
				return errors.Join(err, fmt.Errorf("rollback batch: %w", rerr))
			}
			_, _ = tx.ExecContext(wctx, `RELEASE batch`)
			return err
		}
	}
	if _, err := tx.ExecContext(wctx, `RELEASE batch`); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return s.wroteLocked(len(ops))
}

// Statements inside the shared transaction run without cancellation:
// interrupting one would roll back every pending write, not just the
// caller's. Callers are checked for cancellation before taking the lock.
func insertNode(ctx context.Context, tx *sql.Tx, n *Node, fields []byte) error {
	_, err := tx.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO nodes (id, seq, type, parent_id, digest, fields)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM nodes), ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			parent_id = excluded.parent_id,
			digest = excluded.digest,
			fields = excluded.fields`,
		n.ID, n.Type, nullString(n.Parent), n.Digest, string(fields))
	if err != nil {
		return fmt.Errorf("insert node %s: %w", n.ID, err)
	}
	return nil
}

func insertLink(ctx context.Context, tx *sql.Tx, parentID, childID string) error {
	_, err := tx.ExecContext(context.WithoutCancel(ctx), `
		INSERT OR IGNORE INTO links (parent_id, child_id, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM links WHERE parent_id = ?))`,
		parentID, childID, parentID)
	if err != nil {
		return fmt.Errorf("insert link %s -> %s: %w", parentID, childID, err)
	}
	return nil
}

// beginLocked returns the shared write transaction, opening it if needed.
// The transaction outlives any single caller, so it is not bound to a
// caller's context.
func (s *SQLiteStore) beginLocked() (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	s.tx = tx
	return tx, nil
}

func (s *SQLiteStore) wroteLocked(n int) error {
	s.pending += n
	if s.pending >= s.batchSize {
		return s.flushLocked()
	}
	return nil
}

func (s *SQLiteStore) flushLocked() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	s.pending = 0
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Flush commits pending writes.
func (s *SQLiteStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// GetNode implements Graph.
func (s *SQLiteStore) GetNode(id string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`SELECT id, type, parent_id, digest, fields FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.Children, err = s.childrenLocked(id); err != nil {
		return nil, err
	}
	return n, nil
}

// ListChildren implements Graph.
func (s *SQLiteStore) ListChildren(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return s.childrenLocked(id)
}

func (s *SQLiteStore) childrenLocked(id string) ([]string, error) {
	rows, err := s.db.Query(`SELECT child_id FROM links WHERE parent_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	children := []string{}
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, child)
	}
	return children, rows.Err()
}

// Nodes implements Graph.
func (s *SQLiteStore) Nodes() ([]*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT id, type, parent_id, digest, fields FROM nodes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// Children are read after the node cursor is closed: the store runs on
	// a single connection.
	for _, n := range nodes {
		if n.Children, err = s.childrenLocked(n.ID); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// DeleteDescendants implements Pruner.
func (s *SQLiteStore) DeleteDescendants(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE sub(id) AS (
			SELECT child_id FROM links WHERE parent_id = ?
			UNION
			SELECT l.child_id FROM links l JOIN sub ON l.parent_id = sub.id
		)
		SELECT id FROM sub WHERE id != ?`, id, id)
	if err != nil {
		return fmt.Errorf("query descendants of %s: %w", id, err)
	}
	var doomed []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan descendant: %w", err)
		}
		doomed = append(doomed, d)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE parent_id = ?`, id); err != nil {
		return fmt.Errorf("unlink %s: %w", id, err)
	}
	for _, d := range doomed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, d); err != nil {
			return fmt.Errorf("delete node %s: %w", d, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE parent_id = ? OR child_id = ?`, d, d); err != nil {
			return fmt.Errorf("delete links of %s: %w", d, err)
		}
	}
	return tx.Commit()
}

// Close commits pending writes and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var (
		n      Node
		parent sql.NullString
		fields sql.NullString
	)
	if err := row.Scan(&n.ID, &n.Type, &parent, &n.Digest, &fields); err != nil {
		return nil, err
	}
	n.Parent = parent.String
	n.Fields = jsonvalue.ObjectValue()
	if fields.Valid && fields.String != "" {
		v, err := jsonvalue.Parse([]byte(fields.String))
		if err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", n.ID, err)
		}
		n.Fields = v
	}
	return &n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ NodeStore = (*SQLiteStore)(nil)
	_ Graph     = (*SQLiteStore)(nil)
	_ Pruner    = (*SQLiteStore)(nil)
)
