package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// SortForConsumption orders buckets first-expired-first-out: expiry
// ascending with no-expiry last, then oldest first, then by id.
func SortForConsumption(buckets []*Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// Take is the quantity drawn from one bucket.
type Take struct {
	Bucket         *Bucket
	Quantity       types.Quantity
	MovementNumber string
}

// Cost is Quantity times the bucket unit cost, a missing cost counting as zero.
func (t Take) Cost() decimal.Decimal {
	return types.CostOf(t.Quantity, t.Bucket.UnitCost)
}

// Plan picks buckets for qty in consumption order without touching them.
// It fails with INSUFFICIENT_STOCK when the buckets cannot cover qty.
func Plan(productID id.ID, buckets []*Bucket, qty types.Quantity) ([]Take, error) {
	ordered := make([]*Bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Status == BucketAvailable {
			ordered = append(ordered, b)
		}
	}
	SortForConsumption(ordered)

	var takes []Take
	remaining := qty
	for _, b := range ordered {
		if remaining <= 0 {
			break
		}
		avail := b.Available()
		if avail <= 0 {
			continue
		}
		taken := types.Min(remaining, avail)
		takes = append(takes, Take{Bucket: b, Quantity: taken})
		remaining -= taken
	}
	if remaining > 0 {
		return nil, apperror.NewInsufficientStock(productID, qty, qty-remaining).
			WithDetail("shortfall", remaining.String())
	}
	return takes, nil
}

// TotalAvailable sums Available over AVAILABLE buckets.
func TotalAvailable(buckets []*Bucket) types.Quantity {
	var total types.Quantity
	for _, b := range buckets {
		if b.Status == BucketAvailable {
			total += b.Available()
		}
	}
	return total
}

// ConsumeRequest describes one consumption pass for a single product.
type ConsumeRequest struct {
	ProductID       id.ID
	WarehouseID     id.ID
	Quantity        types.Quantity
	Type            MovementType
	Transaction     *Transaction
	Numbers         *MovementNumbers
	ReferenceNumber string
	Reason          string
	Now             time.Time
}

// ConsumeResult lists what was drawn and its cost.
type ConsumeResult struct {
	Takes        []Take
	ConsumedCost decimal.Decimal
}

// Selector draws stock from buckets of one warehouse.
type Selector struct {
	buckets   BucketRepository
	movements MovementRepository
}

// NewSelector creates a Selector over the given repositories.
func NewSelector(buckets BucketRepository, movements MovementRepository) *Selector {
	return &Selector{buckets: buckets, movements: movements}
}

// Available sums available quantity of product across warehouse buckets.
func (s *Selector) Available(ctx context.Context, productID, warehouseID id.ID) (types.Quantity, error) {
	buckets, err := s.buckets.ListAvailable(ctx, productID, warehouseID)
	if err != nil {
		return 0, fmt.Errorf("list buckets: %w", err)
	}
	return TotalAvailable(buckets), nil
}

// Consume draws req.Quantity from the product's buckets in consumption order,
// decrementing each bucket and writing one negative movement per bucket.
// Sufficiency is checked before the first write.
func (s *Selector) Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResult, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("consumption quantity must be positive")
	}
	buckets, err := s.buckets.ListAvailable(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	takes, err := Plan(req.ProductID, buckets, req.Quantity)
	if err != nil {
		return nil, err
	}

	result := &ConsumeResult{ConsumedCost: decimal.Zero}
	for i := range takes {
		t := &takes[i]
		t.Bucket.Quantity -= t.Quantity
		t.Bucket.UpdatedAt = req.Now
		if err := s.buckets.Update(ctx, t.Bucket); err != nil {
			return nil, fmt.Errorf("update bucket %s: %w", t.Bucket.ID, err)
		}

		t.MovementNumber = req.Numbers.Next()
		m := Outbound(req.Transaction, t.MovementNumber, req.Type, t.Bucket, t.Quantity)
		m.ReferenceNumber = req.ReferenceNumber
		m.Reason = req.Reason
		if err := s.movements.Create(ctx, m); err != nil {
			return nil, fmt.Errorf("create movement: %w", err)
		}
		result.ConsumedCost = result.ConsumedCost.Add(t.Cost())
	}
	result.Takes = takes
	return result, nil
}
