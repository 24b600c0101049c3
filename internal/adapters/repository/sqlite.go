package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/internal/domain/model"
	"github.com/okian/rinkside/pkg/logger"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS lessons (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLiteStore keeps documents as JSON rows in a SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	opts *options
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// lessons table exists. ":memory:" gives a private in-memory database.
// PRE: path is non-empty
// POST: Store is ready; the caller owns Close
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("open sqlite: empty path")
	}

	memory := path == ":memory:"
	dsn := path
	if !strings.Contains(path, "?") {
		if memory {
			dsn += "?_pragma=busy_timeout(5000)"
		} else {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create lessons table: %w", err)
	}

	s := &SQLiteStore{db: db, opts: buildOptions(opts)}
	s.opts.log.Info(ctx, "sqlite store ready", logger.String("path", path))
	return s, nil
}

// Create inserts data under a fresh ID.
// PRE: data is JSON-encodable
// POST: One row is added at the end of the creation order
func (s *SQLiteStore) Create(ctx context.Context, data map[string]any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadRecord, err)
	}
	id := s.opts.newID()
	now := s.opts.now().UTC().Format(time.RFC3339Nano)

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(raw), now, now,
	); err != nil {
		return "", s.wrap("insert lesson", err)
	}

	s.opts.notify(model.OpCreate, id)
	return id, nil
}

// Update replaces the document stored under id.
// PRE: id is non-empty
// POST: Row data is replaced or ErrNotFound is returned
// INVARIANT: Creation order is unchanged
func (s *SQLiteStore) Update(ctx context.Context, id string, data map[string]any) error {
	if id == "" {
		return ErrEmptyID
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadRecord, err)
	}
	now := s.opts.now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx,
		`UPDATE lessons SET data = ?, updated_at = ? WHERE id = ?`,
		string(raw), now, id,
	)
	if err != nil {
		return s.wrap("update lesson", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap("update lesson", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.opts.notify(model.OpUpdate, id)
	return nil
}

// Delete removes id if present.
// POST: No row with id exists
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = ?`, id)
	if err != nil {
		return s.wrap("delete lesson", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	s.opts.notify(model.OpDelete, id)
	return nil
}

// List returns all documents in creation order.
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) List(ctx context.Context) ([]lesson.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM lessons ORDER BY seq`)
	if err != nil {
		return nil, s.wrap("list lessons", err)
	}
	defer rows.Close()

	out := []lesson.Document{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, s.wrap("scan lesson", err)
		}
		doc, err := decode(id, []byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list lessons", err)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&n); err != nil {
		return 0, s.wrap("count lessons", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// wrap maps use-after-close to ErrClosed.
func (s *SQLiteStore) wrap(op string, err error) error {
	if strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("%s: %w", op, err)
}
