// Package purchase_order provides the PurchaseOrder document as seen by receiving.
package purchase_order

import (
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusApproved          Status = "APPROVED"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusReceived          Status = "RECEIVED"
	StatusCancelled         Status = "CANCELLED"
)

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	ID     id.ID  `db:"id" json:"id"`
	Number string `db:"number" json:"number"`
	Status Status `db:"status" json:"status"`

	// ReceivedDate is set once every line is fully received
	ReceivedDate *time.Time `db:"received_date" json:"receivedDate,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Items []Item `db:"-" json:"items"`
}

// Item is one ordered product line.
type Item struct {
	ID               id.ID            `db:"id" json:"id"`
	PurchaseOrderID  id.ID            `db:"purchase_order_id" json:"purchaseOrderId"`
	ProductID        id.ID            `db:"product_id" json:"productId"`
	OrderedQuantity  types.Quantity   `db:"ordered_quantity" json:"orderedQuantity"`
	ReceivedQuantity types.Quantity   `db:"received_quantity" json:"receivedQuantity"`
	UnitPrice        types.MinorUnits `db:"unit_price" json:"unitPrice"`
	Position         int              `db:"position" json:"position"`
}

// Remaining is ordered minus received, never negative.
func (i *Item) Remaining() types.Quantity {
	if r := i.OrderedQuantity - i.ReceivedQuantity; r > 0 {
		return r
	}
	return 0
}

// IsReceivable reports whether goods may be received against the order.
func (po *PurchaseOrder) IsReceivable() bool {
	return po.Status == StatusApproved || po.Status == StatusPartiallyReceived
}

// RequireReceivable fails with INVALID_STATE unless the order is receivable.
func (po *PurchaseOrder) RequireReceivable() error {
	if !po.IsReceivable() {
		return apperror.NewInvalidState("purchase_order", po.Status,
			"purchase order must be APPROVED or PARTIALLY_RECEIVED to receive goods")
	}
	return nil
}

// MatchItem returns the line a receipt of productID should book against.
// pending holds quantities already assigned per line within the same request.
// The first line of the product with quantity left wins; if none has any left
// the first line of the product is returned so the caller reports over-receipt.
func (po *PurchaseOrder) MatchItem(productID id.ID, pending map[id.ID]types.Quantity) *Item {
	var first *Item
	for i := range po.Items {
		it := &po.Items[i]
		if it.ProductID != productID {
			continue
		}
		if first == nil {
			first = it
		}
		if it.Remaining()-pending[it.ID] > 0 {
			return it
		}
	}
	return first
}

// Item returns the line with itemID, or nil.
func (po *PurchaseOrder) Item(itemID id.ID) *Item {
	for i := range po.Items {
		if po.Items[i].ID == itemID {
			return &po.Items[i]
		}
	}
	return nil
}

// ApplyReceipt recomputes status after receiving goods on receivedDate.
func (po *PurchaseOrder) ApplyReceipt(receivedDate time.Time, now time.Time) {
	full := len(po.Items) > 0
	for i := range po.Items {
		if po.Items[i].ReceivedQuantity < po.Items[i].OrderedQuantity {
			full = false
			break
		}
	}
	if full {
		po.Status = StatusReceived
		d := types.DateOnly(receivedDate)
		po.ReceivedDate = &d
	} else {
		po.Status = StatusPartiallyReceived
		po.ReceivedDate = nil
	}
	po.UpdatedAt = now
}

// Unreceive lowers the line's received quantity, floored at zero.
func (i *Item) Unreceive(qty types.Quantity) {
	i.ReceivedQuantity -= qty
	if i.ReceivedQuantity < 0 {
		i.ReceivedQuantity = 0
	}
}

// ApplyVoid recomputes status after a receipt against the order was voided.
func (po *PurchaseOrder) ApplyVoid(now time.Time) {
	po.Status = StatusApproved
	for i := range po.Items {
		if po.Items[i].ReceivedQuantity > 0 {
			po.Status = StatusPartiallyReceived
			break
		}
	}
	po.ReceivedDate = nil
	po.UpdatedAt = now
}

// Clone returns a deep copy.
func (po *PurchaseOrder) Clone() *PurchaseOrder {
	c := *po
	if po.ReceivedDate != nil {
		d := *po.ReceivedDate
		c.ReceivedDate = &d
	}
	c.Items = append([]Item(nil), po.Items...)
	return &c
}
