package repo

import (
	"context"
	"database/sql"
	"strings"

	"riderBack/internal/storage"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// boundTx applies the dialect rebind to every statement run inside a transaction.
type boundTx struct {
	tx      *sql.Tx
	dialect storage.Dialect
}

func (b boundTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.tx.ExecContext(ctx, b.dialect.Rebind(query), args...)
}

func (b boundTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.tx.QueryContext(ctx, b.dialect.Rebind(query), args...)
}

func (b boundTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.tx.QueryRowContext(ctx, b.dialect.Rebind(query), args...)
}

// boundDB is the non-transactional counterpart of boundTx.
type boundDB struct {
	db *storage.DB
}

func (b boundDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.db.ExecContext(ctx, b.db.Dialect.Rebind(query), args...)
}

func (b boundDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, b.db.Dialect.Rebind(query), args...)
}

func (b boundDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, b.db.Dialect.Rebind(query), args...)
}

func withTx(ctx context.Context, db *storage.DB, fn func(q execer) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(boundTx{tx: tx, dialect: db.Dialect}); err != nil {
		return err
	}
	return tx.Commit()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullOrString(val sql.NullString) interface{} {
	if val.Valid {
		return val.String
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
