// Package document_repo provides PostgreSQL implementations for document
// repositories: purchase orders and goods receipts with their lines.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/infrastructure/storage/postgres"
)

// BaseDocumentRepo provides header/line plumbing shared by document repos.
type BaseDocumentRepo[H any, L any] struct {
	txm         *postgres.TxManager
	entity      string
	headerTable string
	lineTable   string
	lineFK      string
	headerCols  []string
	lineCols    []string
}

func newBaseDocumentRepo[H any, L any](txm *postgres.TxManager, entity, headerTable, lineTable, lineFK string) *BaseDocumentRepo[H, L] {
	return &BaseDocumentRepo[H, L]{
		txm:         txm,
		entity:      entity,
		headerTable: headerTable,
		lineTable:   lineTable,
		lineFK:      lineFK,
		headerCols:  postgres.ExtractDBColumns[H](),
		lineCols:    postgres.ExtractDBColumns[L](),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseDocumentRepo[H, L]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// getHeader loads one header matching where, optionally locking it.
func (r *BaseDocumentRepo[H, L]) getHeader(ctx context.Context, where squirrel.Eq, forUpdate bool, key any) (*H, error) {
	q := r.Builder().Select(r.headerCols...).From(r.headerTable).Where(where)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var h H
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &h, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(r.entity, key)
		}
		return nil, fmt.Errorf("get %s: %w", r.entity, err)
	}
	return &h, nil
}

// getLines loads the lines of docID ordered by position.
func (r *BaseDocumentRepo[H, L]) getLines(ctx context.Context, docID id.ID) ([]L, error) {
	sql, args, err := r.Builder().Select(r.lineCols...).
		From(r.lineTable).
		Where(squirrel.Eq{r.lineFK: docID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var lines []L
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get %s lines: %w", r.entity, err)
	}
	return lines, nil
}

// insert writes header and lines.
func (r *BaseDocumentRepo[H, L]) insert(ctx context.Context, header *H, lines []L) error {
	querier := r.txm.GetQuerier(ctx)

	sql, args, err := r.Builder().Insert(r.headerTable).
		SetMap(postgres.ColumnMap(header, r.headerCols)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert "+r.entity, err)
	}
	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().Insert(r.lineTable).Columns(r.lineCols...)
	for i := range lines {
		row := postgres.StructToMap(&lines[i])
		values := make([]any, len(r.lineCols))
		for j, col := range r.lineCols {
			values[j] = row[col]
		}
		q = q.Values(values...)
	}
	sql, args, err = q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert "+r.entity+" lines", err)
	}
	return nil
}
