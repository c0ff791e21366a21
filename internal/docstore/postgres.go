package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema creates the single table PostgresStore keeps documents in.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT        NOT NULL,
  id         TEXT        NOT NULL,
  version    BIGINT      NOT NULL DEFAULT 1,
  doc        JSONB       NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_doc_gin ON documents USING GIN (doc jsonb_path_ops);
`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps JSONB documents and runs every transaction at
// SERIALIZABLE isolation; serialization failures are retried.
type PostgresStore struct {
	db    *pgxpool.Pool
	retry RetryConfig
}

func NewPostgresStore(db *pgxpool.Pool, retry RetryConfig) *PostgresStore {
	return &PostgresStore{db: db, retry: retry}
}

// Migrate creates the documents table when it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("docstore: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string, out any) error {
	return pgGet(ctx, s.db, collection, id, out)
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filter Filter, out any) error {
	return pgQuery(ctx, s.db, collection, filter, out)
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc any) error {
	return pgSet(ctx, s.db, collection, id, doc)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	return pgDelete(ctx, s.db, collection, id)
}

func (s *PostgresStore) Close(ctx context.Context) error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	return withRetry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("docstore: begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(ctx, &pgTx{tx: tx}); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("docstore: commit tx: %w", err)
		}
		return nil
	}, isPgRetryable)
}

func isPgRetryable(err error) bool {
	if isConflict(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, collection, id string, out any) error {
	return pgGet(ctx, t.tx, collection, id, out)
}

func (t *pgTx) Query(ctx context.Context, collection string, filter Filter, out any) error {
	return pgQuery(ctx, t.tx, collection, filter, out)
}

func (t *pgTx) Set(ctx context.Context, collection, id string, doc any) error {
	return pgSet(ctx, t.tx, collection, id, doc)
}

func (t *pgTx) Delete(ctx context.Context, collection, id string) error {
	return pgDelete(ctx, t.tx, collection, id)
}

func pgGet(ctx context.Context, q querier, collection, id string, out any) error {
	var doc string
	err := q.QueryRow(ctx,
		`SELECT doc::text FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
	}
	return nil
}

func pgQuery(ctx context.Context, q querier, collection string, filter Filter, out any) error {
	if filter == nil {
		filter = Filter{}
	}
	match, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("docstore: encode filter: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT doc::text FROM documents WHERE collection = $1 AND doc @> $2::text::jsonb ORDER BY id`,
		collection, string(match),
	)
	if err != nil {
		return fmt.Errorf("docstore: query %s: %w", collection, err)
	}
	defer rows.Close()

	var raw [][]byte
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("docstore: scan %s: %w", collection, err)
		}
		raw = append(raw, []byte(doc))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("docstore: query %s: %w", collection, err)
	}
	return decodeList(raw, out)
}

func pgSet(ctx context.Context, q querier, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	_, err = q.Exec(ctx, `
INSERT INTO documents (collection, id, doc)
VALUES ($1, $2, $3::text::jsonb)
ON CONFLICT (collection, id)
DO UPDATE SET doc = EXCLUDED.doc, version = documents.version + 1, updated_at = now()`,
		collection, id, string(data),
	)
	if err != nil {
		return fmt.Errorf("docstore: set %s/%s: %w", collection, id, err)
	}
	return nil
}

func pgDelete(ctx context.Context, q querier, collection, id string) error {
	if _, err := q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, err)
	}
	return nil
}
