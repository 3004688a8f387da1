package nomenclature

import (
	"context"

	"stockcore/internal/core/id"
)

// Repository defines persistence for products and kit BOM rows.
type Repository interface {
	// Get returns the product or a NOT_FOUND error.
	Get(ctx context.Context, productID id.ID) (*Product, error)

	// ListKitComponents returns the BOM of kitID ordered by position,
	// with component name, SKU and unit filled in.
	ListKitComponents(ctx context.Context, kitID id.ID) ([]KitComponent, error)

	// ListKitIDs returns every product flagged as a kit.
	ListKitIDs(ctx context.Context) ([]id.ID, error)

	// ListKitEdges returns all BOM edges in the catalog.
	ListKitEdges(ctx context.Context) ([]KitEdge, error)

	// ReplaceKitComponents deletes the BOM of kitID and inserts rows in order.
	ReplaceKitComponents(ctx context.Context, kitID id.ID, rows []KitComponent) error

	// Create inserts a product.
	Create(ctx context.Context, p *Product) error
}
