// Package ledger_store binds the PostgreSQL repositories into a
// ledger.Store whose units of work are database transactions.
package ledger_store

import (
	"context"

	"stockcore/internal/core/apperror"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/documents/purchase_order"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/internal/infrastructure/storage/postgres/catalog_repo"
	"stockcore/internal/infrastructure/storage/postgres/document_repo"
	"stockcore/internal/infrastructure/storage/postgres/register_repo"
)

// Store implements ledger.Store on PostgreSQL.
type Store struct {
	txm  *postgres.TxManager
	opts postgres.TxOptions
	uow  *unitOfWork
}

var _ ledger.Store = (*Store)(nil)

// New creates a store. opts controls isolation, statement timeout and how
// many times a unit is retried after a serialization failure or deadlock.
func New(txm *postgres.TxManager, opts postgres.TxOptions) *Store {
	return &Store{
		txm:  txm,
		opts: opts,
		uow: &unitOfWork{
			buckets:      register_repo.NewBucketRepo(txm),
			movements:    register_repo.NewMovementRepo(txm),
			transactions: register_repo.NewTransactionRepo(txm),
			products:     catalog_repo.NewNomenclatureRepo(txm),
			warehouses:   catalog_repo.NewWarehouseRepo(txm),
			orders:       document_repo.NewPurchaseOrderRepo(txm),
			receipts:     document_repo.NewGoodsReceiptRepo(txm),
		},
	}
}

// Atomic runs fn in one transaction. fn may run more than once when the
// transaction is retried, so it must not keep side effects outside the store.
// A conflict that survives every retry is reported as a concurrent modification.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	err := s.txm.RunInTransactionWithOptions(ctx, s.opts, func(ctx context.Context) error {
		return fn(ctx, s.uow)
	})
	if postgres.IsRetryable(err) {
		return apperror.NewConcurrentModification("ledger", "").WithCause(err)
	}
	return err
}

// Read runs fn against the pool without opening a transaction. Locking
// reads inside fn then lock nothing beyond their own statement, which is
// all a pre-check needs.
func (s *Store) Read(ctx context.Context, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	return fn(ctx, s.uow)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.txm.Ping(ctx)
}

type unitOfWork struct {
	buckets      *register_repo.BucketRepo
	movements    *register_repo.MovementRepo
	transactions *register_repo.TransactionRepo
	products     *catalog_repo.NomenclatureRepo
	warehouses   *catalog_repo.WarehouseRepo
	orders       *document_repo.PurchaseOrderRepo
	receipts     *document_repo.GoodsReceiptRepo
}

func (u *unitOfWork) Buckets() stock.BucketRepository           { return u.buckets }
func (u *unitOfWork) Movements() stock.MovementRepository       { return u.movements }
func (u *unitOfWork) Transactions() stock.TransactionRepository { return u.transactions }
func (u *unitOfWork) Products() nomenclature.Repository         { return u.products }
func (u *unitOfWork) Warehouses() warehouse.Repository          { return u.warehouses }
func (u *unitOfWork) PurchaseOrders() purchase_order.Repository { return u.orders }
func (u *unitOfWork) GoodsReceipts() goods_receipt.Repository   { return u.receipts }
