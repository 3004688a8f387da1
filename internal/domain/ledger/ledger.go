// Package ledger defines the unit of work every stock-changing business event
// runs in.
package ledger

import (
	"context"

	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/documents/purchase_order"
	"stockcore/internal/domain/registers/stock"
)

// UnitOfWork exposes repositories bound to one atomic scope. Everything
// written through it commits together or not at all.
type UnitOfWork interface {
	Buckets() stock.BucketRepository
	Movements() stock.MovementRepository
	Transactions() stock.TransactionRepository
	Products() nomenclature.Repository
	Warehouses() warehouse.Repository
	PurchaseOrders() purchase_order.Repository
	GoodsReceipts() goods_receipt.Repository
}

// Store opens units of work.
type Store interface {
	// Atomic runs fn in one all-or-nothing unit. Any error returned by fn
	// discards every write made through uow.
	Atomic(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error

	// Read runs fn against committed state without opening a write unit.
	// Used for pre-checks.
	Read(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// Selector returns a consumption selector bound to uow.
func Selector(uow UnitOfWork) *stock.Selector {
	return stock.NewSelector(uow.Buckets(), uow.Movements())
}
