package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/repository"
)

func newDocumentRepo(t *testing.T) (*DocumentRepository, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := NewDocumentRepository(mock)
	repo.now = func() time.Time { return now }
	return repo, mock, now
}

func TestDocumentRepository_Get(t *testing.T) {
	repo, mock, _ := newDocumentRepo(t)

	rows := pgxmock.NewRows([]string{"id", "data"}).
		AddRow("svc-1", []byte(`{"name":"cut","price":20}`))
	mock.ExpectQuery(`SELECT id, data FROM studio\.documents WHERE`).
		WithArgs("services", "svc-1").
		WillReturnRows(rows)

	record, err := repo.Get(context.Background(), "services", "svc-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record == nil || record.ID != "svc-1" || record.Fields["name"] != "cut" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Fields["price"] != float64(20) {
		t.Fatalf("expected numeric price, got %#v", record.Fields["price"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentRepository_GetMissing(t *testing.T) {
	repo, mock, _ := newDocumentRepo(t)

	mock.ExpectQuery(`SELECT id, data FROM studio\.documents`).
		WithArgs("services", "nope").
		WillReturnError(pgx.ErrNoRows)

	record, err := repo.Get(context.Background(), "services", "nope")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %+v", record)
	}
}

func TestDocumentRepository_ListWithContainment(t *testing.T) {
	repo, mock, _ := newDocumentRepo(t)

	rows := pgxmock.NewRows([]string{"id", "data"}).
		AddRow("b1", []byte(`{"status":"pending"}`)).
		AddRow("b2", []byte(`{"status":"pending"}`))
	mock.ExpectQuery(`SELECT id, data FROM studio\.documents WHERE collection = \$1 AND data @> \$2::jsonb ORDER BY created_at ASC, id ASC`).
		WithArgs("bookings", `{"status":"pending"}`).
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), "bookings", map[string]any{"status": "pending"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(records) != 2 || records[0].ID != "b1" || records[1].ID != "b2" {
		t.Fatalf("unexpected records: %+v", records)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentRepository_ListEmpty(t *testing.T) {
	repo, mock, _ := newDocumentRepo(t)

	mock.ExpectQuery(`SELECT id, data FROM studio\.documents`).
		WithArgs("gallery").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}))

	records, err := repo.List(context.Background(), "gallery", nil)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", records)
	}
}

func TestDocumentRepository_InsertConflict(t *testing.T) {
	repo, mock, now := newDocumentRepo(t)

	mock.ExpectExec(`INSERT INTO studio\.documents`).
		WithArgs("users", "u1", []byte(`{"name":"Ada"}`), now, now).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Insert(context.Background(), "users", domain.NewRecord("u1", map[string]any{"name": "Ada"}))
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestDocumentRepository_Upsert(t *testing.T) {
	repo, mock, now := newDocumentRepo(t)

	mock.ExpectExec(`INSERT INTO studio\.documents .* ON CONFLICT \(collection, id\) DO UPDATE`).
		WithArgs("settings", "site", []byte(`{"title":"Studio"}`), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Upsert(context.Background(), "settings", domain.NewRecord("site", map[string]any{"title": "Studio"})); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentRepository_Delete(t *testing.T) {
	repo, mock, _ := newDocumentRepo(t)

	mock.ExpectExec(`DELETE FROM studio\.documents WHERE`).
		WithArgs("bookings", "b1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "bookings", "b1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentRepository_MutateMergesUnderLock(t *testing.T) {
	repo, mock, now := newDocumentRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("settings/site").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT id, data FROM studio\.documents WHERE .* FOR UPDATE`).
		WithArgs("settings", "site").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).AddRow("site", []byte(`{"title":"Studio"}`)))
	mock.ExpectExec(`INSERT INTO studio\.documents .* ON CONFLICT \(collection, id\) DO UPDATE`).
		WithArgs("settings", "site", []byte(`{"theme":"dark","title":"Studio"}`), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.Mutate(context.Background(), "settings", "site", func(current *domain.Record) (*domain.Record, error) {
		if current == nil {
			t.Fatalf("expected the locked row to be passed in")
		}
		merged := domain.Record{ID: "site", Fields: domain.MergeFields(current.Fields, map[string]any{"theme": "dark"})}
		return &merged, nil
	})
	if err != nil {
		t.Fatalf("Mutate returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentRepository_MutateRollsBackOnCallbackError(t *testing.T) {
	repo, mock, _ := newDocumentRepo(t)
	denied := errors.New("denied")

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("users/ghost").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT id, data FROM studio\.documents WHERE .* FOR UPDATE`).
		WithArgs("users", "ghost").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Mutate(context.Background(), "users", "ghost", func(current *domain.Record) (*domain.Record, error) {
		if current != nil {
			t.Fatalf("expected missing row, got %+v", current)
		}
		return nil, denied
	})
	if !errors.Is(err, denied) {
		t.Fatalf("expected callback error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
