package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func TestQueryGet(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT key, value FROM kv WHERE key = ANY\\(\\$1\\)").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("nodes", []byte(`[]`)).
			AddRow("currentSessionId", []byte(`"sess-1"`)))

	got, err := queryGet(context.Background(), db, []string{"nodes", "edges", "currentSessionId"})
	if err != nil {
		t.Fatalf("queryGet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d keys, want 2", len(got))
	}
	if string(got["currentSessionId"]) != `"sess-1"` {
		t.Errorf("currentSessionId = %s", got["currentSessionId"])
	}
	if _, ok := got["edges"]; ok {
		t.Error("edges should be absent")
	}
}

func TestQueryGet_NoKeys(t *testing.T) {
	db, _ := newMockDB(t)

	got, err := queryGet(context.Background(), db, nil)
	if err != nil {
		t.Fatalf("queryGet: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d keys, want 0", len(got))
	}
}

func TestQueryGet_Error(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT key, value FROM kv").
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	if _, err := queryGet(context.Background(), db, []string{"nodes"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestQuerySet_SortedUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec("INSERT INTO kv").
		WithArgs("edges", []byte(`[]`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO kv").
		WithArgs("nodes", []byte(`[{"id":"n1"}]`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := querySet(context.Background(), db, map[string][]byte{
		"nodes": []byte(`[{"id":"n1"}]`),
		"edges": []byte(`[]`),
	}, now)
	if err != nil {
		t.Fatalf("querySet: %v", err)
	}
}

func TestBackendSet_CommitsTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	b := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO kv").
		WithArgs("sessions", []byte(`[]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := b.Set(context.Background(), map[string][]byte{"sessions": []byte(`[]`)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
}

func TestBackendSet_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	b := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO kv").
		WithArgs("nodes", []byte(`[]`), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := b.Set(context.Background(), map[string][]byte{"nodes": []byte(`[]`)}); err == nil {
		t.Fatal("expected error")
	}
}
