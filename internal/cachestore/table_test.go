package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *TableStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A pooled second connection would see a different in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewTableStore(db, TableOptions{})
	if err != nil {
		t.Fatalf("NewTableStore returned error: %v", err)
	}
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	return store
}

func TestTableStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	entry := &Entry{
		Identifier: "qrc:abc123",
		Query:      `SELECT * FROM users WHERE "isAdmin" = ?`,
		Payload:    []byte(`[{"id":1,"isAdmin":true}]`),
		Time:       time.Now().UnixMilli(),
		Duration:   1000,
	}
	if err := store.Put(ctx, entry); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, err := store.Get(ctx, "qrc:abc123")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row")
	}
	if got.Query != entry.Query {
		t.Errorf("query = %q, want %q", got.Query, entry.Query)
	}
	if string(got.Payload) != string(entry.Payload) {
		t.Errorf("payload = %s, want %s", got.Payload, entry.Payload)
	}
	if got.Time != entry.Time || got.Duration != entry.Duration {
		t.Errorf("time/duration = %d/%d, want %d/%d", got.Time, got.Duration, entry.Time, entry.Duration)
	}
}

func TestTableStore_MissIsNotAnError(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil", got)
	}
}

func TestTableStore_Upsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Put(ctx, &Entry{Identifier: "k", Query: "q1", Payload: []byte("old"), Time: 1, Duration: 500}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := store.Put(ctx, &Entry{Identifier: "k", Query: "q2", Payload: []byte("new"), Time: 2, Duration: 900}); err != nil {
		t.Fatalf("second Put returned error: %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(got.Payload) != "new" || got.Query != "q2" || got.Time != 2 || got.Duration != 900 {
		t.Errorf("entry after upsert = %+v, want the replacement row", got)
	}
}

func TestTableStore_ClearOperations(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, id := range []string{"a", "b"} {
		if err := store.Put(ctx, &Entry{Identifier: id, Payload: []byte("{}"), Duration: 1000}); err != nil {
			t.Fatalf("Put returned error: %v", err)
		}
	}

	if err := store.Clear(ctx, "a"); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if got, _ := store.Get(ctx, "a"); got != nil {
		t.Error("expected a to be deleted")
	}
	if got, _ := store.Get(ctx, "b"); got == nil {
		t.Error("expected b to survive")
	}

	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll returned error: %v", err)
	}
	if got, _ := store.Get(ctx, "b"); got != nil {
		t.Error("expected b to be deleted by ClearAll")
	}
}

func TestTableStore_ClearExpired(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.UnixMilli(100_000)
	rows := []*Entry{
		{Identifier: "expired", Payload: []byte("{}"), Time: 98_000, Duration: 1000},
		{Identifier: "boundary", Payload: []byte("{}"), Time: 99_000, Duration: 1000},
		{Identifier: "fresh", Payload: []byte("{}"), Time: 99_500, Duration: 1000},
	}
	for _, row := range rows {
		if err := store.Put(ctx, row); err != nil {
			t.Fatalf("Put returned error: %v", err)
		}
	}

	pruned, err := store.ClearExpired(ctx, now)
	if err != nil {
		t.Fatalf("ClearExpired returned error: %v", err)
	}
	if pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}
	if got, _ := store.Get(ctx, "fresh"); got == nil {
		t.Error("expected fresh row to survive pruning")
	}
	if got, _ := store.Get(ctx, "boundary"); got != nil {
		t.Error("expected row expiring exactly now to be pruned")
	}
}

// countlessResult mimics drivers that cannot report affected rows.
type countlessResult struct{ err error }

func (r countlessResult) LastInsertId() (int64, error) { return 0, nil }
func (r countlessResult) RowsAffected() (int64, error) { return 0, r.err }

type countlessDB struct{ err error }

func (d *countlessDB) ExecContext(_ context.Context, _ string, _ ...any) (sql.Result, error) {
	return countlessResult{err: d.err}, nil
}

func (d *countlessDB) QueryRowContext(_ context.Context, _ string, _ ...any) *sql.Row {
	return nil
}

func TestTableStore_ClearExpiredReportsCountFailure(t *testing.T) {
	ctx := context.Background()
	countErr := errors.New("driver does not report row counts")

	store, err := NewTableStore(&countlessDB{err: countErr}, TableOptions{})
	if err != nil {
		t.Fatalf("NewTableStore returned error: %v", err)
	}
	if err := store.Connect(ctx); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	if _, err := store.ClearExpired(ctx, time.UnixMilli(100_000)); !errors.Is(err, countErr) {
		t.Errorf("ClearExpired = %v, want it to wrap the count failure", err)
	}
}

func TestTableStore_Disconnect(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Get after Disconnect = %v, want ErrStoreClosed", err)
	}
	if err := store.Put(ctx, &Entry{Identifier: "k"}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Put after Disconnect = %v, want ErrStoreClosed", err)
	}
}

func TestTableStore_RequiresConnect(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	store, err := NewTableStore(db, TableOptions{})
	if err != nil {
		t.Fatalf("NewTableStore returned error: %v", err)
	}
	if _, err := store.Get(context.Background(), "k"); err == nil {
		t.Error("expected an error before Connect")
	}
}

func TestTableStore_RejectsUnknownDialect(t *testing.T) {
	if _, err := NewTableStore(nil, TableOptions{Dialect: "oracle"}); err == nil {
		t.Error("expected an error for an unsupported dialect")
	}
}

func TestTableStore_PostgresRebind(t *testing.T) {
	store := &TableStore{dialect: DialectPostgres}

	got := store.rebind("SELECT x FROM t WHERE a = ? AND b = ?")
	want := "SELECT x FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}
}
