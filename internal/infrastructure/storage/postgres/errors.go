package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockcore/internal/core/apperror"
)

// SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// UniqueConstraint names the entity and field a unique index protects.
type UniqueConstraint struct {
	Entity string
	Field  string
}

// uniqueConstraints maps index names from db/migrations to domain fields.
var uniqueConstraints = map[string]UniqueConstraint{
	"uq_stock_movements_number":     {Entity: "stock_movement", Field: "number"},
	"uq_stock_transactions_number":  {Entity: "stock_transaction", Field: "number"},
	"uq_goods_receipts_number":      {Entity: "goods_receipt", Field: "number"},
	"uq_purchase_orders_number":     {Entity: "purchase_order", Field: "number"},
	"uq_stock_buckets_serial":       {Entity: "stock_bucket", Field: "serial_number"},
	"uq_stock_buckets_key":          {Entity: "stock_bucket", Field: "key"},
	"uq_products_sku":               {Entity: "product", Field: "sku"},
	"uq_warehouses_code":            {Entity: "warehouse", Field: "code"},
	"uq_warehouse_locations_code":   {Entity: "location", Field: "code"},
	"uq_kit_components_kit_product": {Entity: "kit_component", Field: "component_id"},
}

// IsRetryable reports whether err is a serialization failure or a deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// MapError translates driver errors into AppErrors. Unknown errors are
// wrapped with op and returned as is.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			c, ok := uniqueConstraints[pgErr.ConstraintName]
			if !ok {
				c = UniqueConstraint{Entity: pgErr.TableName, Field: pgErr.ColumnName}
			}
			return apperror.NewDuplicate(c.Entity, c.Field, pgErr.Detail).WithCause(err)
		case codeForeignKeyViolation:
			return apperror.NewNotFound(pgErr.TableName, pgErr.Detail).WithCause(err)
		case codeCheckViolation:
			return apperror.NewValidation(pgErr.Message).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
