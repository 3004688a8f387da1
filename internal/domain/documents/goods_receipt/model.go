// Package goods_receipt provides the GoodsReceipt document: stock received
// against a purchase order, and its void.
package goods_receipt

import (
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/registers/stock"
)

// GoodsReceipt records goods received against one purchase order.
type GoodsReceipt struct {
	ID              id.ID  `db:"id" json:"id"`
	Number          string `db:"number" json:"number"`
	PurchaseOrderID id.ID  `db:"purchase_order_id" json:"purchaseOrderId"`

	// TransactionID is the PURCHASE_RECEIPT transaction that booked the stock
	TransactionID id.ID `db:"transaction_id" json:"transactionId"`

	ReceivedDate time.Time `db:"received_date" json:"receivedDate"`
	Notes        string    `db:"notes" json:"notes,omitempty"`

	// IdempotencyKey is the caller key the number was derived from, if any
	IdempotencyKey *string `db:"idempotency_key" json:"idempotencyKey,omitempty"`

	Voided     bool       `db:"voided" json:"voided"`
	VoidedAt   *time.Time `db:"voided_at" json:"voidedAt,omitempty"`
	VoidedBy   *string    `db:"voided_by" json:"voidedBy,omitempty"`
	VoidReason *string    `db:"void_reason" json:"voidReason,omitempty"`

	ActorID   string    `db:"actor_id" json:"actorId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	Items []Item `db:"-" json:"items"`
}

// Item is one received line.
type Item struct {
	ID                  id.ID            `db:"id" json:"id"`
	GoodsReceiptID      id.ID            `db:"goods_receipt_id" json:"goodsReceiptId"`
	PurchaseOrderItemID id.ID            `db:"purchase_order_item_id" json:"purchaseOrderItemId"`
	ProductID           id.ID            `db:"product_id" json:"productId"`
	WarehouseID         id.ID            `db:"warehouse_id" json:"warehouseId"`
	LocationID          *id.ID           `db:"location_id" json:"locationId,omitempty"`
	BatchNumber         *string          `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate          *time.Time       `db:"expiry_date" json:"expiryDate,omitempty"`
	SerialNumber        *string          `db:"serial_number" json:"serialNumber,omitempty"`
	Quantity            types.Quantity   `db:"quantity" json:"quantity"`
	UnitCost            types.MinorUnits `db:"unit_cost" json:"unitCost"`

	// BucketID is the bucket the line was booked into
	BucketID id.ID `db:"bucket_id" json:"bucketId"`
	Position int   `db:"position" json:"position"`
}

// BucketKey is the natural key of the bucket the line was booked into.
func (i *Item) BucketKey() stock.BucketKey {
	return stock.BucketKey{
		ProductID:    i.ProductID,
		WarehouseID:  i.WarehouseID,
		LocationID:   i.LocationID,
		BatchNumber:  i.BatchNumber,
		SerialNumber: i.SerialNumber,
	}
}

// RequireNotVoided fails with ALREADY_VOIDED once the receipt is voided.
func (g *GoodsReceipt) RequireNotVoided() error {
	if g.Voided {
		return apperror.NewAlreadyVoided("goods_receipt", g.Number)
	}
	return nil
}

// MarkVoided flags the receipt voided by actorID for reason at now.
func (g *GoodsReceipt) MarkVoided(actorID, reason string, now time.Time) {
	g.Voided = true
	g.VoidedAt = &now
	g.VoidedBy = &actorID
	g.VoidReason = &reason
}

// Clone returns a deep copy.
func (g *GoodsReceipt) Clone() *GoodsReceipt {
	c := *g
	c.Items = append([]Item(nil), g.Items...)
	return &c
}
