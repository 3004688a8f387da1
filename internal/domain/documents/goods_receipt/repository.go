package goods_receipt

import (
	"context"

	"stockcore/internal/core/id"
)

// Repository defines persistence for goods receipts.
type Repository interface {
	// Create inserts header and items. A taken number yields a DUPLICATE_ENTRY
	// error on field "number".
	Create(ctx context.Context, gr *GoodsReceipt) error

	Get(ctx context.Context, receiptID id.ID) (*GoodsReceipt, error)

	// GetForUpdate returns the receipt with items and locks the header row.
	GetForUpdate(ctx context.Context, receiptID id.ID) (*GoodsReceipt, error)

	// GetByNumber returns the receipt with items, or NOT_FOUND.
	GetByNumber(ctx context.Context, number string) (*GoodsReceipt, error)

	// MarkVoided persists the void fields of gr.
	MarkVoided(ctx context.Context, gr *GoodsReceipt) error
}
