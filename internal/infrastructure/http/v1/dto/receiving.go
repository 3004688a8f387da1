package dto

import (
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/receiving"
)

// ReceiveRequest books goods against a purchase order.
type ReceiveRequest struct {
	Items        []ReceiveItemRequest `json:"items" binding:"required,min=1,dive"`
	ReceivedDate *Date                `json:"receivedDate"`
	Notes        string               `json:"notes" binding:"max=1000"`
}

// ReceiveItemRequest is one received line.
type ReceiveItemRequest struct {
	ProductID    id.ID          `json:"productId" binding:"required"`
	WarehouseID  id.ID          `json:"warehouseId" binding:"required"`
	Quantity     types.Quantity `json:"quantity" binding:"required"`
	LocationID   *id.ID         `json:"locationId"`
	BatchNumber  *string        `json:"batchNumber" binding:"omitempty,max=100"`
	ExpiryDate   *Date          `json:"expiryDate"`
	SerialNumber *string        `json:"serialNumber" binding:"omitempty,max=100"`
}

// ToInput builds the engine input. A missing received date means today.
func (r *ReceiveRequest) ToInput(orderID id.ID, idempotencyKey, actorID string) receiving.ReceiveInput {
	in := receiving.ReceiveInput{
		PurchaseOrderID: orderID,
		IdempotencyKey:  idempotencyKey,
		Notes:           r.Notes,
		ActorID:         actorID,
	}
	if d := r.ReceivedDate.Ptr(); d != nil {
		in.ReceivedDate = *d
	}
	for _, it := range r.Items {
		in.Items = append(in.Items, receiving.ReceiveItem{
			ProductID:    it.ProductID,
			WarehouseID:  it.WarehouseID,
			Quantity:     it.Quantity,
			LocationID:   it.LocationID,
			BatchNumber:  it.BatchNumber,
			ExpiryDate:   it.ExpiryDate.Ptr(),
			SerialNumber: it.SerialNumber,
		})
	}
	return in
}

// VoidRequest reverses a goods receipt.
type VoidRequest struct {
	Reason string `json:"reason" binding:"required,notblank,max=500"`
}

// ToInput builds the engine input.
func (r *VoidRequest) ToInput(receiptID id.ID, actorID string) receiving.VoidInput {
	return receiving.VoidInput{ReceiptID: receiptID, Reason: r.Reason, ActorID: actorID}
}

// VoidResponse confirms a void.
type VoidResponse struct {
	ReceiptID id.ID  `json:"receiptId"`
	Voided    bool   `json:"voided"`
	Reason    string `json:"reason"`
}
