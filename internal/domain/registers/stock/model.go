// Package stock holds the physical stock register: buckets, the append-only
// movement trail, the transactions grouping them, and the consumption selector.
package stock

import (
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// BucketStatus is the lifecycle state of a bucket. Only AVAILABLE buckets
// take part in consumption and find-or-create.
type BucketStatus string

const (
	BucketAvailable   BucketStatus = "AVAILABLE"
	BucketQuarantined BucketStatus = "QUARANTINED"
	BucketDepleted    BucketStatus = "DEPLETED"
)

// Bucket is a quantity of one product at one warehouse, optionally narrowed
// by location, batch, expiry and serial number.
type Bucket struct {
	ID               id.ID             `db:"id" json:"id"`
	ProductID        id.ID             `db:"product_id" json:"productId"`
	WarehouseID      id.ID             `db:"warehouse_id" json:"warehouseId"`
	LocationID       *id.ID            `db:"location_id" json:"locationId,omitempty"`
	BatchNumber      *string           `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate       *time.Time        `db:"expiry_date" json:"expiryDate,omitempty"`
	SerialNumber     *string           `db:"serial_number" json:"serialNumber,omitempty"`
	Quantity         types.Quantity    `db:"quantity" json:"quantity"`
	ReservedQuantity types.Quantity    `db:"reserved_quantity" json:"reservedQuantity"`
	UnitCost         *types.MinorUnits `db:"unit_cost" json:"unitCost,omitempty"`
	Status           BucketStatus      `db:"status" json:"status"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updatedAt"`
}

// Available is on-hand minus reserved, never below zero.
func (b *Bucket) Available() types.Quantity {
	if avail := b.Quantity - b.ReservedQuantity; avail > 0 {
		return avail
	}
	return 0
}

// Key returns the natural find-or-create key of the bucket.
func (b *Bucket) Key() BucketKey {
	return BucketKey{
		ProductID:    b.ProductID,
		WarehouseID:  b.WarehouseID,
		LocationID:   b.LocationID,
		BatchNumber:  b.BatchNumber,
		SerialNumber: b.SerialNumber,
	}
}

// Clone returns a deep copy.
func (b *Bucket) Clone() *Bucket {
	c := *b
	c.LocationID = clonePtr(b.LocationID)
	c.BatchNumber = clonePtr(b.BatchNumber)
	c.ExpiryDate = clonePtr(b.ExpiryDate)
	c.SerialNumber = clonePtr(b.SerialNumber)
	c.UnitCost = clonePtr(b.UnitCost)
	return &c
}

// BucketKey is (product, warehouse, location, batch, serial). Nil parts match
// only buckets where that part is also empty.
type BucketKey struct {
	ProductID    id.ID
	WarehouseID  id.ID
	LocationID   *id.ID
	BatchNumber  *string
	SerialNumber *string
}

// Matches reports whether b sits under this key.
func (k BucketKey) Matches(b *Bucket) bool {
	return b.ProductID == k.ProductID &&
		b.WarehouseID == k.WarehouseID &&
		id.EqualPtr(b.LocationID, k.LocationID) &&
		equalString(b.BatchNumber, k.BatchNumber) &&
		equalString(b.SerialNumber, k.SerialNumber)
}

// NewBucket builds an AVAILABLE bucket under key.
func NewBucket(key BucketKey, qty types.Quantity, unitCost *types.MinorUnits, expiry *time.Time, now time.Time) *Bucket {
	return &Bucket{
		ID:           id.New(),
		ProductID:    key.ProductID,
		WarehouseID:  key.WarehouseID,
		LocationID:   clonePtr(key.LocationID),
		BatchNumber:  clonePtr(key.BatchNumber),
		ExpiryDate:   types.DateOnlyPtr(expiry),
		SerialNumber: clonePtr(key.SerialNumber),
		Quantity:     qty,
		UnitCost:     clonePtr(unitCost),
		Status:       BucketAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MovementType classifies a ledger line.
type MovementType string

const (
	MovementPurchaseReceipt MovementType = "PURCHASE_RECEIPT"
	MovementSalesShipment   MovementType = "SALES_SHIPMENT"
	MovementTransfer        MovementType = "TRANSFER"
	MovementAdjustment      MovementType = "ADJUSTMENT"
	MovementReturn          MovementType = "RETURN"
	MovementAssembly        MovementType = "ASSEMBLY"
	MovementDisassembly     MovementType = "DISASSEMBLY"
)

// Movement is one immutable quantity delta. Reversals are new movements
// with negated quantity.
type Movement struct {
	ID              id.ID          `db:"id" json:"id"`
	Number          string         `db:"number" json:"number"`
	TransactionID   *id.ID         `db:"transaction_id" json:"transactionId,omitempty"`
	Type            MovementType   `db:"movement_type" json:"type"`
	ProductID       id.ID          `db:"product_id" json:"productId"`
	BucketID        *id.ID         `db:"bucket_id" json:"bucketId,omitempty"`
	FromWarehouseID *id.ID         `db:"from_warehouse_id" json:"fromWarehouseId,omitempty"`
	ToWarehouseID   *id.ID         `db:"to_warehouse_id" json:"toWarehouseId,omitempty"`
	BatchNumber     *string        `db:"batch_number" json:"batchNumber,omitempty"`
	SerialNumber    *string        `db:"serial_number" json:"serialNumber,omitempty"`
	Quantity        types.Quantity `db:"quantity" json:"quantity"`
	ReferenceNumber string         `db:"reference_number" json:"referenceNumber,omitempty"`
	Reason          string         `db:"reason" json:"reason,omitempty"`
	ActorID         string         `db:"actor_id" json:"actorId"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}

// Inbound builds a positive movement into b's warehouse.
func Inbound(tx *Transaction, number string, typ MovementType, b *Bucket, qty types.Quantity) *Movement {
	m := newMovement(tx, number, typ, b, qty)
	m.ToWarehouseID = &b.WarehouseID
	return m
}

// Outbound builds a negative movement out of b's warehouse.
func Outbound(tx *Transaction, number string, typ MovementType, b *Bucket, qty types.Quantity) *Movement {
	m := newMovement(tx, number, typ, b, -qty)
	m.FromWarehouseID = &b.WarehouseID
	return m
}

func newMovement(tx *Transaction, number string, typ MovementType, b *Bucket, qty types.Quantity) *Movement {
	bucketID := b.ID
	txID := tx.ID
	return &Movement{
		ID:            id.New(),
		Number:        number,
		TransactionID: &txID,
		Type:          typ,
		ProductID:     b.ProductID,
		BucketID:      &bucketID,
		BatchNumber:   clonePtr(b.BatchNumber),
		SerialNumber:  clonePtr(b.SerialNumber),
		Quantity:      qty,
		ActorID:       tx.ActorID,
		CreatedAt:     tx.CreatedAt,
	}
}

// TransactionType classifies a business event.
type TransactionType = MovementType

// Transaction groups the movements of one business event.
type Transaction struct {
	ID            id.ID           `db:"id" json:"id"`
	Number        string          `db:"number" json:"number"`
	Type          TransactionType `db:"transaction_type" json:"type"`
	ReferenceType string          `db:"reference_type" json:"referenceType"`
	ReferenceID   string          `db:"reference_id" json:"referenceId"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	ActorID       string          `db:"actor_id" json:"actorId"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// NewTransaction creates a transaction header.
func NewTransaction(number string, typ TransactionType, refType, refID, notes, actorID string, now time.Time) *Transaction {
	return &Transaction{
		ID:            id.New(),
		Number:        number,
		Type:          typ,
		ReferenceType: refType,
		ReferenceID:   refID,
		Notes:         notes,
		ActorID:       actorID,
		CreatedAt:     now,
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
