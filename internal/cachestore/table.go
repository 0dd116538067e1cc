package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Dialect selects the SQL flavor used by the table-backed store.
type Dialect string

const (
	// DialectSQLite targets SQLite (modernc.org/sqlite or compatible).
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres targets PostgreSQL (pgx stdlib or compatible).
	DialectPostgres Dialect = "postgres"
)

var validDialects = map[Dialect]struct{}{
	DialectSQLite:   {},
	DialectPostgres: {},
}

// DefaultTableName is the table used when no override is configured.
const DefaultTableName = "query-result-cache"

// DBTX is the subset of database/sql used by TableStore. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TableOptions tunes a TableStore.
type TableOptions struct {
	// Name is the cache table name; defaults to DefaultTableName.
	Name string
	// Dialect selects placeholder and column-type syntax; defaults to
	// DialectSQLite.
	Dialect Dialect
}

// TableStore implements Store by persisting entries as rows in the same
// database being queried. It is portable and needs no extra infrastructure,
// at the cost of one round-trip per cache read.
type TableStore struct {
	db      DBTX
	name    string
	dialect Dialect

	mu     sync.RWMutex
	closed bool
	ready  bool
}

// NewTableStore creates a table-backed store over the given connection.
// The connection's lifetime is owned by the caller; Disconnect does not
// close it.
func NewTableStore(db DBTX, opts TableOptions) (*TableStore, error) {
	name := opts.Name
	if name == "" {
		name = DefaultTableName
	}
	dialect := opts.Dialect
	if dialect == "" {
		dialect = DialectSQLite
	}
	if _, ok := validDialects[dialect]; !ok {
		return nil, fmt.Errorf("cachestore: unsupported dialect %q", dialect)
	}
	return &TableStore{db: db, name: name, dialect: dialect}, nil
}

// Connect creates the cache table if it does not exist.
func (t *TableStore) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrStoreClosed
	}

	payloadType := "BLOB"
	if t.dialect == DialectPostgres {
		payloadType = "BYTEA"
	}
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %q (identifier TEXT PRIMARY KEY, query TEXT NOT NULL, time BIGINT NOT NULL, duration BIGINT NOT NULL, result %s NOT NULL)",
		t.name, payloadType,
	)
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("cachestore: create table %q: %w", t.name, err)
	}
	t.ready = true
	return nil
}

// Disconnect rejects further operations. The underlying connection is left
// open for its owner.
func (t *TableStore) Disconnect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.ready = false
	return nil
}

func (t *TableStore) usable() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrStoreClosed
	}
	if !t.ready {
		return errors.New("cachestore: table store used before Connect")
	}
	return nil
}

// Get returns the row for the identifier, or (nil, nil) when absent.
func (t *TableStore) Get(ctx context.Context, identifier string) (*Entry, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}

	stmt := t.rebind(fmt.Sprintf(
		"SELECT identifier, query, time, duration, result FROM %q WHERE identifier = ?", t.name,
	))
	var entry Entry
	err := t.db.QueryRowContext(ctx, stmt, identifier).Scan(
		&entry.Identifier, &entry.Query, &entry.Time, &entry.Duration, &entry.Payload,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cachestore: get %q: %w", identifier, err)
	}
	return &entry, nil
}

// Put upserts the entry keyed by its identifier.
func (t *TableStore) Put(ctx context.Context, entry *Entry) error {
	if err := t.usable(); err != nil {
		return err
	}

	stmt := t.rebind(fmt.Sprintf(
		"INSERT INTO %q (identifier, query, time, duration, result) VALUES (?, ?, ?, ?, ?) "+
			"ON CONFLICT (identifier) DO UPDATE SET query = excluded.query, time = excluded.time, duration = excluded.duration, result = excluded.result",
		t.name,
	))
	_, err := t.db.ExecContext(ctx, stmt, entry.Identifier, entry.Query, entry.Time, entry.Duration, entry.Payload)
	if err != nil {
		return fmt.Errorf("cachestore: put %q: %w", entry.Identifier, err)
	}
	return nil
}

// Clear deletes the row for the identifier, if present.
func (t *TableStore) Clear(ctx context.Context, identifier string) error {
	if err := t.usable(); err != nil {
		return err
	}

	stmt := t.rebind(fmt.Sprintf("DELETE FROM %q WHERE identifier = ?", t.name))
	if _, err := t.db.ExecContext(ctx, stmt, identifier); err != nil {
		return fmt.Errorf("cachestore: clear %q: %w", identifier, err)
	}
	return nil
}

// ClearAll deletes every row in the cache table.
func (t *TableStore) ClearAll(ctx context.Context) error {
	if err := t.usable(); err != nil {
		return err
	}

	if _, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", t.name)); err != nil {
		return fmt.Errorf("cachestore: clear all: %w", err)
	}
	return nil
}

// ClearExpired deletes rows that are expired at the given instant. Expiry is
// lazy; this exists so administrative tooling can reclaim space.
func (t *TableStore) ClearExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := t.usable(); err != nil {
		return 0, err
	}

	stmt := t.rebind(fmt.Sprintf("DELETE FROM %q WHERE time + duration <= ?", t.name))
	res, err := t.db.ExecContext(ctx, stmt, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cachestore: clear expired: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cachestore: clear expired: %w", err)
	}
	return affected, nil
}

// rebind rewrites ? placeholders to the dialect's style.
func (t *TableStore) rebind(stmt string) string {
	if t.dialect != DialectPostgres {
		return stmt
	}
	var b strings.Builder
	b.Grow(len(stmt))
	n := 0
	for _, r := range stmt {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ensure TableStore implements Store interface
var _ Store = (*TableStore)(nil)
