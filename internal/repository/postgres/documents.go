package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/repository"
)

const (
	documentsTable     = "studio.documents"
	uniqueViolationSQL = "23505"
	// The advisory lock also serializes writers of documents that do not exist yet, which
	// FOR UPDATE cannot lock.
	lockDocumentSQL = "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))"
)

// ErrNoTransactions is returned by Mutate when the executor cannot begin transactions.
var ErrNoTransactions = errors.New("document repository: executor cannot begin transactions")

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DocumentRepository stores schemaless documents as jsonb rows keyed by (collection, id).
type DocumentRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewDocumentRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewDocumentRepository(exec pgExecutor) *DocumentRepository {
	repo := &DocumentRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *DocumentRepository) WithTx(tx pgx.Tx) *DocumentRepository {
	if tx == nil {
		return r
	}
	return &DocumentRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
		now:     r.now,
	}
}

// Get fetches a single document. A missing document yields (nil, nil).
func (r *DocumentRepository) Get(ctx context.Context, collection, id string) (*domain.Record, error) {
	return r.get(ctx, collection, id, false)
}

func (r *DocumentRepository) get(ctx context.Context, collection, id string, forUpdate bool) (*domain.Record, error) {
	query := r.builder.
		Select("id", "data").
		From(documentsTable).
		Where(squirrel.Eq{"collection": collection, "id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select document sql: %w", err)
	}

	var (
		docID string
		raw   []byte
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&docID, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select document: %w", err)
	}

	record, err := decodeRecord(docID, raw)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns documents of a collection in insertion order. Equality constraints are pushed down
// as a jsonb containment predicate; remaining query clauses are evaluated by the caller.
func (r *DocumentRepository) List(ctx context.Context, collection string, equals map[string]any) ([]domain.Record, error) {
	query := r.builder.
		Select("id", "data").
		From(documentsTable).
		Where(squirrel.Eq{"collection": collection}).
		OrderBy("created_at ASC", "id ASC")

	if len(equals) > 0 {
		filter, err := json.Marshal(equals)
		if err != nil {
			return nil, fmt.Errorf("encode containment filter: %w", err)
		}
		query = query.Where(squirrel.Expr("data @> ?::jsonb", string(filter)))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list documents sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	records := make([]domain.Record, 0)
	for rows.Next() {
		var (
			docID string
			raw   []byte
		)
		if err := rows.Scan(&docID, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		record, err := decodeRecord(docID, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return records, nil
}

// Insert creates a document and fails with repository.ErrAlreadyExists on id collisions.
func (r *DocumentRepository) Insert(ctx context.Context, collection string, record domain.Record) error {
	data, err := encodeFields(record.Fields)
	if err != nil {
		return err
	}
	now := r.now()

	stmt, args, err := r.builder.Insert(documentsTable).
		Columns("collection", "id", "data", "created_at", "updated_at").
		Values(collection, record.ID, data, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert document sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQL {
			return fmt.Errorf("%w: %s/%s", repository.ErrAlreadyExists, collection, record.ID)
		}
		return fmt.Errorf("insert document: %w", err)
	}

	return nil
}

// Upsert replaces the document body, creating the row when needed.
func (r *DocumentRepository) Upsert(ctx context.Context, collection string, record domain.Record) error {
	data, err := encodeFields(record.Fields)
	if err != nil {
		return err
	}
	now := r.now()

	stmt, args, err := r.builder.Insert(documentsTable).
		Columns("collection", "id", "data", "created_at", "updated_at").
		Values(collection, record.ID, data, now, now).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert document sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	return nil
}

// Mutate runs fn inside a transaction that holds an advisory lock on the document key and a row
// lock on the current row, then upserts the record fn returns.
func (r *DocumentRepository) Mutate(ctx context.Context, collection, id string, fn func(current *domain.Record) (*domain.Record, error)) (err error) {
	beginner, ok := r.exec.(pgBeginner)
	if !ok {
		return ErrNoTransactions
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin document transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, lockDocumentSQL, collection+"/"+id); err != nil {
		return fmt.Errorf("lock document: %w", err)
	}

	txRepo := r.WithTx(tx)
	current, err := txRepo.get(ctx, collection, id, true)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next != nil {
		if err = txRepo.Upsert(ctx, collection, *next); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit document transaction: %w", err)
	}
	return nil
}

// Delete removes a document. Removing a missing document is not an error.
func (r *DocumentRepository) Delete(ctx context.Context, collection, id string) error {
	stmt, args, err := r.builder.Delete(documentsTable).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete document sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return nil
}

func encodeFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

func decodeRecord(id string, raw []byte) (domain.Record, error) {
	fields := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return domain.Record{}, fmt.Errorf("decode document %s: %w", id, err)
		}
	}
	return domain.Record{ID: id, Fields: fields}, nil
}

var _ port.DocumentRepository = (*DocumentRepository)(nil)
