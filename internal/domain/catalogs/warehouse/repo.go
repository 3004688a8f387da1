package warehouse

import (
	"context"

	"stockcore/internal/core/id"
)

// Repository defines persistence for warehouses and locations.
type Repository interface {
	Get(ctx context.Context, warehouseID id.ID) (*Warehouse, error)
	GetLocation(ctx context.Context, locationID id.ID) (*Location, error)
	Create(ctx context.Context, w *Warehouse) error
	CreateLocation(ctx context.Context, l *Location) error
}
