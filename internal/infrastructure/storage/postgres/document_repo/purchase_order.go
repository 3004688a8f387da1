package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/documents/purchase_order"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable     = "doc_purchase_orders"
	purchaseOrderItemsTable = "doc_purchase_order_items"
)

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	*BaseDocumentRepo[purchase_order.PurchaseOrder, purchase_order.Item]
}

var _ purchase_order.Repository = (*PurchaseOrderRepo)(nil)

// NewPurchaseOrderRepo creates a purchase order repository.
func NewPurchaseOrderRepo(txm *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		BaseDocumentRepo: newBaseDocumentRepo[purchase_order.PurchaseOrder, purchase_order.Item](
			txm, "purchase_order", purchaseOrdersTable, purchaseOrderItemsTable, "purchase_order_id"),
	}
}

func (r *PurchaseOrderRepo) load(ctx context.Context, orderID id.ID, forUpdate bool) (*purchase_order.PurchaseOrder, error) {
	po, err := r.getHeader(ctx, squirrel.Eq{"id": orderID}, forUpdate, orderID)
	if err != nil {
		return nil, err
	}
	if po.Items, err = r.getLines(ctx, po.ID); err != nil {
		return nil, err
	}
	return po, nil
}

func (r *PurchaseOrderRepo) Get(ctx context.Context, orderID id.ID) (*purchase_order.PurchaseOrder, error) {
	return r.load(ctx, orderID, false)
}

func (r *PurchaseOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*purchase_order.PurchaseOrder, error) {
	return r.load(ctx, orderID, true)
}

// Update writes status, received date and every line's received quantity.
func (r *PurchaseOrderRepo) Update(ctx context.Context, po *purchase_order.PurchaseOrder) error {
	querier := r.txm.GetQuerier(ctx)

	sql, args, err := r.Builder().Update(purchaseOrdersTable).
		Set("status", po.Status).
		Set("received_date", po.ReceivedDate).
		Set("updated_at", po.UpdatedAt).
		Where(squirrel.Eq{"id": po.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update purchase order", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase_order", po.ID)
	}

	for _, item := range po.Items {
		sql, args, err := r.Builder().Update(purchaseOrderItemsTable).
			Set("received_quantity", item.ReceivedQuantity).
			Where(squirrel.Eq{"id": item.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return postgres.MapError("update purchase order item", err)
		}
	}
	return nil
}

func (r *PurchaseOrderRepo) Create(ctx context.Context, po *purchase_order.PurchaseOrder) error {
	return r.insert(ctx, po, po.Items)
}
