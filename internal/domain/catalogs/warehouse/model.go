// Package warehouse provides the warehouse and storage location catalog.
package warehouse

import (
	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
)

// Warehouse is a physical site holding stock.
type Warehouse struct {
	ID       id.ID  `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"isActive"`
}

// Location is a place inside a warehouse (zone, rack, bin).
type Location struct {
	ID          id.ID  `db:"id" json:"id"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
	IsActive    bool   `db:"is_active" json:"isActive"`
}

// RequireActive fails unless the warehouse is active.
func (w *Warehouse) RequireActive() error {
	if !w.IsActive {
		return apperror.NewNotFound("warehouse", w.ID).WithDetail("reason", "inactive")
	}
	return nil
}

// RequireIn fails unless the location is active and belongs to warehouseID.
func (l *Location) RequireIn(warehouseID id.ID) error {
	if !l.IsActive {
		return apperror.NewNotFound("location", l.ID).WithDetail("reason", "inactive")
	}
	if l.WarehouseID != warehouseID {
		return apperror.NewValidation("location does not belong to warehouse").
			WithDetail("locationId", l.ID.String()).
			WithDetail("warehouseId", warehouseID.String())
	}
	return nil
}
