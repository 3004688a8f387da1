package stock

import (
	"context"

	"stockcore/internal/core/id"
)

// BucketRepository persists stock buckets.
// Reads used inside a unit of work before an update must go through
// GetForUpdate or ListAvailable, both of which lock the returned rows.
type BucketRepository interface {
	Get(ctx context.Context, bucketID id.ID) (*Bucket, error)
	GetForUpdate(ctx context.Context, bucketID id.ID) (*Bucket, error)

	// ListAvailable returns AVAILABLE buckets of product in warehouse, locked.
	ListAvailable(ctx context.Context, productID, warehouseID id.ID) ([]*Bucket, error)

	// FindByKey returns the AVAILABLE bucket under key, locked, or nil when absent.
	FindByKey(ctx context.Context, key BucketKey) (*Bucket, error)

	// SerialExists reports whether any bucket, of any product and in any
	// status, carries serial.
	SerialExists(ctx context.Context, serial string) (bool, error)

	Create(ctx context.Context, b *Bucket) error
	Update(ctx context.Context, b *Bucket) error
}

// MovementRepository appends movements. Movements are never updated.
type MovementRepository interface {
	Create(ctx context.Context, m *Movement) error
	ListByTransaction(ctx context.Context, transactionID id.ID) ([]*Movement, error)
}

// TransactionRepository persists transaction headers.
type TransactionRepository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByNumber(ctx context.Context, number string) (*Transaction, error)
}
