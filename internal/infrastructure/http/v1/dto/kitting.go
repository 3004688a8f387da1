package dto

import (
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/kitting"
)

// SetBOMRequest replaces a kit's bill of materials. An empty list clears it.
type SetBOMRequest struct {
	Components []BOMComponentRequest `json:"components" binding:"dive"`
}

// BOMComponentRequest is one BOM row.
type BOMComponentRequest struct {
	ComponentID id.ID          `json:"componentId" binding:"required"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
}

// ToInput builds the engine input.
func (r *SetBOMRequest) ToInput(kitID id.ID, actorID string) kitting.SetBOMInput {
	in := kitting.SetBOMInput{KitID: kitID, ActorID: actorID}
	for _, c := range r.Components {
		in.Components = append(in.Components, kitting.ComponentInput{
			ComponentID: c.ComponentID,
			Quantity:    c.Quantity,
		})
	}
	return in
}

// AssembleRequest builds kits from components.
type AssembleRequest struct {
	WarehouseID  id.ID          `json:"warehouseId" binding:"required"`
	Quantity     types.Quantity `json:"quantity" binding:"required"`
	LocationID   *id.ID         `json:"locationId"`
	BatchNumber  *string        `json:"batchNumber" binding:"omitempty,max=100"`
	ExpiryDate   *Date          `json:"expiryDate"`
	SerialNumber *string        `json:"serialNumber" binding:"omitempty,max=100"`
	Notes        string         `json:"notes" binding:"max=1000"`
}

// ToInput builds the engine input.
func (r *AssembleRequest) ToInput(kitID id.ID, actorID string) kitting.AssembleInput {
	return kitting.AssembleInput{
		KitID:        kitID,
		WarehouseID:  r.WarehouseID,
		Quantity:     r.Quantity,
		LocationID:   r.LocationID,
		BatchNumber:  r.BatchNumber,
		ExpiryDate:   r.ExpiryDate.Ptr(),
		SerialNumber: r.SerialNumber,
		Notes:        r.Notes,
		ActorID:      actorID,
	}
}

// DisassembleRequest breaks kits back into components.
type DisassembleRequest struct {
	Quantity types.Quantity `json:"quantity" binding:"required"`
	Notes    string         `json:"notes" binding:"max=1000"`
}

// ToInput builds the engine input.
func (r *DisassembleRequest) ToInput(bucketID id.ID, actorID string) kitting.DisassembleInput {
	return kitting.DisassembleInput{
		BucketID: bucketID,
		Quantity: r.Quantity,
		Notes:    r.Notes,
		ActorID:  actorID,
	}
}
