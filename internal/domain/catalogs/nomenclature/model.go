// Package nomenclature provides the product catalog and kit bills of materials.
package nomenclature

import (
	"strings"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// Product is a stockable item. A kit is a product assembled from other products.
type Product struct {
	ID   id.ID  `db:"id" json:"id"`
	SKU  string `db:"sku" json:"sku"`
	Name string `db:"name" json:"name"`

	// Unit of measure shown next to quantities (pcs, kg, ...)
	Unit string `db:"unit" json:"unit"`

	IsActive bool `db:"is_active" json:"isActive"`

	// IsKit marks products that have a bill of materials
	IsKit bool `db:"is_kit" json:"isKit"`

	// Tracking flags decide which bucket attributes are mandatory on inbound stock
	TrackByBatch        bool `db:"track_by_batch" json:"trackByBatch"`
	TrackByExpiry       bool `db:"track_by_expiry" json:"trackByExpiry"`
	TrackBySerialNumber bool `db:"track_by_serial_number" json:"trackBySerialNumber"`
}

// Tracking carries the optional bucket attributes supplied for inbound stock.
type Tracking struct {
	BatchNumber  *string
	ExpiryDate   *time.Time
	SerialNumber *string
}

// ValidateTracking checks the supplied attributes against the tracking flags.
func (p *Product) ValidateTracking(t Tracking) error {
	if p.TrackByBatch && blank(t.BatchNumber) {
		return apperror.NewTrackingRequired("batchNumber", p.ID)
	}
	if p.TrackByExpiry && t.ExpiryDate == nil {
		return apperror.NewTrackingRequired("expiryDate", p.ID)
	}
	if p.TrackBySerialNumber && blank(t.SerialNumber) {
		return apperror.NewTrackingRequired("serialNumber", p.ID)
	}
	return nil
}

// KitComponent is one BOM row: how much of ComponentID one kit unit consumes.
type KitComponent struct {
	ID          id.ID          `db:"id" json:"id"`
	KitID       id.ID          `db:"kit_id" json:"kitId"`
	ComponentID id.ID          `db:"component_id" json:"componentId"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`

	// Position keeps insertion order
	Position int `db:"position" json:"position"`

	// Denormalized on read
	ComponentName string `db:"component_name" json:"componentName,omitempty"`
	ComponentSKU  string `db:"component_sku" json:"componentSku,omitempty"`
	ComponentUnit string `db:"component_unit" json:"componentUnit,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// KitEdge is a bare kit → component reference used for graph checks.
type KitEdge struct {
	KitID       id.ID `db:"kit_id"`
	ComponentID id.ID `db:"component_id"`
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
