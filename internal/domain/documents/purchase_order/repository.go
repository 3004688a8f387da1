package purchase_order

import (
	"context"

	"stockcore/internal/core/id"
)

// Repository defines persistence for purchase orders and their lines.
type Repository interface {
	// Get returns the order with its lines.
	Get(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)

	// GetForUpdate returns the order with its lines and locks the header row.
	GetForUpdate(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)

	// Update writes header status/received date and every line's received quantity.
	Update(ctx context.Context, po *PurchaseOrder) error

	Create(ctx context.Context, po *PurchaseOrder) error
}
