// Package catalog_repo provides PostgreSQL implementations for catalog
// repositories: products with their kit BOMs, warehouses and locations.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/apperror"
	"stockcore/internal/infrastructure/storage/postgres"
)

type base struct {
	txm *postgres.TxManager
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r base) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// getOne scans a single row into dst, mapping no rows to NOT_FOUND.
func (r base) getOne(ctx context.Context, dst any, q squirrel.SelectBuilder, entity string, key any) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(entity, key)
		}
		return fmt.Errorf("get %s: %w", entity, err)
	}
	return nil
}

// insert writes the columns of v into table.
func (r base) insert(ctx context.Context, table string, columns []string, v any) error {
	sql, args, err := r.Builder().Insert(table).SetMap(postgres.ColumnMap(v, columns)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	return postgres.MapError("insert "+table, err)
}
