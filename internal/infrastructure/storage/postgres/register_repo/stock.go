// Package register_repo provides PostgreSQL implementations for the stock
// register: buckets, movements and transaction headers.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	bucketsTable      = "reg_stock_buckets"
	movementsTable    = "reg_stock_movements"
	transactionsTable = "reg_stock_transactions"
)

var (
	bucketColumns      = postgres.ExtractDBColumns[stock.Bucket]()
	movementColumns    = postgres.ExtractDBColumns[stock.Movement]()
	transactionColumns = postgres.ExtractDBColumns[stock.Transaction]()
)

type base struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func newBase(txm *postgres.TxManager) base {
	return base{txm: txm, builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// eqNullable matches col against p, or IS NULL when p is nil.
func eqNullable[T any](col string, p *T) squirrel.Eq {
	if p == nil {
		return squirrel.Eq{col: nil}
	}
	return squirrel.Eq{col: *p}
}

// BucketRepo implements stock.BucketRepository.
type BucketRepo struct{ base }

var _ stock.BucketRepository = (*BucketRepo)(nil)

// NewBucketRepo creates a bucket repository.
func NewBucketRepo(txm *postgres.TxManager) *BucketRepo {
	return &BucketRepo{newBase(txm)}
}

func (r *BucketRepo) selectBuckets() squirrel.SelectBuilder {
	return r.builder.Select(bucketColumns...).From(bucketsTable)
}

func (r *BucketRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, bucketID id.ID) (*stock.Bucket, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var b stock.Bucket
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock_bucket", bucketID)
		}
		return nil, fmt.Errorf("get bucket: %w", err)
	}
	return &b, nil
}

// Get returns the bucket or NOT_FOUND.
func (r *BucketRepo) Get(ctx context.Context, bucketID id.ID) (*stock.Bucket, error) {
	return r.getOne(ctx, r.selectBuckets().Where(squirrel.Eq{"id": bucketID}), bucketID)
}

// GetForUpdate returns the bucket with a row lock.
func (r *BucketRepo) GetForUpdate(ctx context.Context, bucketID id.ID) (*stock.Bucket, error) {
	return r.getOne(ctx, r.selectBuckets().Where(squirrel.Eq{"id": bucketID}).Suffix("FOR UPDATE"), bucketID)
}

// ListAvailable locks and returns AVAILABLE buckets in consumption order.
func (r *BucketRepo) ListAvailable(ctx context.Context, productID, warehouseID id.ID) ([]*stock.Bucket, error) {
	q := r.selectBuckets().
		Where(squirrel.Eq{
			"product_id":   productID,
			"warehouse_id": warehouseID,
			"status":       stock.BucketAvailable,
		}).
		OrderBy("expiry_date ASC NULLS LAST", "created_at ASC", "id ASC").
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var buckets []*stock.Bucket
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &buckets, sql, args...); err != nil {
		return nil, fmt.Errorf("list available buckets: %w", err)
	}
	return buckets, nil
}

// FindByKey locks and returns the oldest AVAILABLE bucket under key, or nil.
func (r *BucketRepo) FindByKey(ctx context.Context, key stock.BucketKey) (*stock.Bucket, error) {
	q := r.selectBuckets().
		Where(squirrel.Eq{
			"product_id":   key.ProductID,
			"warehouse_id": key.WarehouseID,
			"status":       stock.BucketAvailable,
		}).
		Where(eqNullable("location_id", key.LocationID)).
		Where(eqNullable("batch_number", key.BatchNumber)).
		Where(eqNullable("serial_number", key.SerialNumber)).
		OrderBy("created_at ASC", "id ASC").
		Limit(1).
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var b stock.Bucket
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find bucket by key: %w", err)
	}
	return &b, nil
}

// SerialExists reports whether any bucket already carries serial.
func (r *BucketRepo) SerialExists(ctx context.Context, serial string) (bool, error) {
	q := r.builder.Select("1").From(bucketsTable).
		Where(squirrel.Eq{"serial_number": serial}).
		Limit(1)
	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	err = r.txm.GetQuerier(ctx).QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check serial: %w", err)
	}
	return exists, nil
}

// Create inserts b.
func (r *BucketRepo) Create(ctx context.Context, b *stock.Bucket) error {
	sql, args, err := r.builder.Insert(bucketsTable).
		SetMap(postgres.ColumnMap(b, bucketColumns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	return postgres.MapError("insert bucket", err)
}

// Update writes the mutable columns of b.
func (r *BucketRepo) Update(ctx context.Context, b *stock.Bucket) error {
	sql, args, err := r.builder.Update(bucketsTable).
		Set("quantity", b.Quantity).
		Set("reserved_quantity", b.ReservedQuantity).
		Set("unit_cost", b.UnitCost).
		Set("expiry_date", b.ExpiryDate).
		Set("status", b.Status).
		Set("updated_at", b.UpdatedAt).
		Where(squirrel.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update bucket", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock_bucket", b.ID)
	}
	return nil
}

// MovementRepo implements stock.MovementRepository.
type MovementRepo struct{ base }

var _ stock.MovementRepository = (*MovementRepo)(nil)

// NewMovementRepo creates a movement repository.
func NewMovementRepo(txm *postgres.TxManager) *MovementRepo {
	return &MovementRepo{newBase(txm)}
}

// Create appends m.
func (r *MovementRepo) Create(ctx context.Context, m *stock.Movement) error {
	sql, args, err := r.builder.Insert(movementsTable).
		SetMap(postgres.ColumnMap(m, movementColumns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	return postgres.MapError("insert movement", err)
}

// ListByTransaction returns the movements of a transaction in number order.
func (r *MovementRepo) ListByTransaction(ctx context.Context, transactionID id.ID) ([]*stock.Movement, error) {
	sql, args, err := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"transaction_id": transactionID}).
		OrderBy("number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var movements []*stock.Movement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// TransactionRepo implements stock.TransactionRepository.
type TransactionRepo struct{ base }

var _ stock.TransactionRepository = (*TransactionRepo)(nil)

// NewTransactionRepo creates a transaction header repository.
func NewTransactionRepo(txm *postgres.TxManager) *TransactionRepo {
	return &TransactionRepo{newBase(txm)}
}

// Create inserts t.
func (r *TransactionRepo) Create(ctx context.Context, t *stock.Transaction) error {
	sql, args, err := r.builder.Insert(transactionsTable).
		SetMap(postgres.ColumnMap(t, transactionColumns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	return postgres.MapError("insert transaction", err)
}

// GetByNumber returns the transaction or NOT_FOUND.
func (r *TransactionRepo) GetByNumber(ctx context.Context, number string) (*stock.Transaction, error) {
	sql, args, err := r.builder.Select(transactionColumns...).
		From(transactionsTable).
		Where(squirrel.Eq{"number": number}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var t stock.Transaction
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock_transaction", number)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}
