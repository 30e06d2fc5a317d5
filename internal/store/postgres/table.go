// Package postgres persists aggregates as JSONB documents. Every mutation runs
// in a transaction holding a row lock (SELECT ... FOR UPDATE) on the aggregate.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pos-ledger/internal/core"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// table maps one aggregate type onto a (id, status, created_at, doc) table.
type table[T any] struct {
	pool *pgxpool.Pool
	name string
	kind string
	// index extracts the listing columns from an aggregate.
	index func(*T) (id, status string, createdAt time.Time)
}

func (t *table[T]) insert(ctx context.Context, v *T) error {
	id, status, createdAt := t.index(v)
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", t.kind, id, err)
	}
	_, err = t.pool.Exec(ctx,
		"INSERT INTO "+t.name+" (id, status, created_at, doc) VALUES ($1, $2, $3, $4)",
		id, status, createdAt, doc)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.NewError(core.KindInvalidState, "%s %s already exists", t.kind, id)
		}
		return fmt.Errorf("failed to insert %s %s: %w", t.kind, id, err)
	}
	return nil
}

// load reads one document. forUpdate must only be set inside a transaction.
func (t *table[T]) load(ctx context.Context, q pgxQuerier, id string, forUpdate bool) (*T, error) {
	sql := "SELECT doc FROM " + t.name + " WHERE id = $1"
	if forUpdate {
		sql += " FOR UPDATE"
	}
	var doc []byte
	if err := q.QueryRow(ctx, sql, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NewError(core.KindNotFound, "%s %s not found", t.kind, id)
		}
		return nil, fmt.Errorf("failed to load %s %s: %w", t.kind, id, err)
	}
	v := new(T)
	if err := json.Unmarshal(doc, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", t.kind, id, err)
	}
	return v, nil
}

func (t *table[T]) get(ctx context.Context, id string) (*T, error) {
	return t.load(ctx, t.pool, id, false)
}

func (t *table[T]) save(ctx context.Context, q pgxQuerier, v *T) error {
	id, status, _ := t.index(v)
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", t.kind, id, err)
	}
	if _, err := q.Exec(ctx, "UPDATE "+t.name+" SET status = $2, doc = $3 WHERE id = $1", id, status, doc); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", t.kind, id, err)
	}
	return nil
}

// update locks the row, applies fn and writes back in one transaction.
// The transaction is rolled back when fn fails.
func (t *table[T]) update(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	v, err := t.load(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := fn(v); err != nil {
		return nil, err
	}
	if err := t.save(ctx, tx, v); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit %s %s: %w", t.kind, id, err)
	}
	return v, nil
}

func (t *table[T]) listByStatus(ctx context.Context, status string) ([]T, error) {
	rows, err := t.pool.Query(ctx,
		"SELECT doc FROM "+t.name+" WHERE status = $1 ORDER BY created_at, id", status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.kind, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.kind, err)
		}
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", t.kind, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
