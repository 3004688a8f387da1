// Package memory provides an in-process ledger.Store. Each unit of work runs
// under one lock against live state and restores a snapshot if it fails.
package memory

import (
	"context"
	"maps"
	"sync"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/documents/purchase_order"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/registers/stock"
)

// FaultFunc is consulted before every write; a non-nil error aborts the write.
// op is "<entity>.<verb>", e.g. "bucket.update".
type FaultFunc func(op string) error

// Store is an in-memory ledger.Store.
type Store struct {
	mu    sync.Mutex
	state *state
	fault FaultFunc
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// InjectFault installs f for subsequent writes. Pass nil to clear.
func (s *Store) InjectFault(f FaultFunc) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

// Atomic implements ledger.Store.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, &unitOfWork{st: s.state, fault: s.fault}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Read implements ledger.Store. Writes made by fn are discarded.
func (s *Store) Read(ctx context.Context, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	s.mu.Lock()
	view := s.state.clone()
	s.mu.Unlock()
	return fn(ctx, &unitOfWork{st: view})
}

// Buckets returns copies of every bucket of product.
func (s *Store) Buckets(productID id.ID) []*stock.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*stock.Bucket
	for _, b := range s.state.buckets {
		if b.ProductID == productID {
			out = append(out, b.Clone())
		}
	}
	stock.SortForConsumption(out)
	return out
}

// Movements returns copies of every movement in insertion order.
func (s *Store) Movements() []stock.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stock.Movement, len(s.state.movements))
	for i, m := range s.state.movements {
		out[i] = *m
	}
	return out
}

// Transactions returns copies of every transaction in insertion order.
func (s *Store) Transactions() []stock.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stock.Transaction, len(s.state.transactions))
	for i, t := range s.state.transactions {
		out[i] = *t
	}
	return out
}

var _ ledger.Store = (*Store)(nil)

type state struct {
	products      map[id.ID]*nomenclature.Product
	kitComponents map[id.ID][]nomenclature.KitComponent
	warehouses    map[id.ID]*warehouse.Warehouse
	locations     map[id.ID]*warehouse.Location
	buckets       map[id.ID]*stock.Bucket
	movements     []*stock.Movement
	transactions  []*stock.Transaction
	orders        map[id.ID]*purchase_order.PurchaseOrder
	receipts      map[id.ID]*goods_receipt.GoodsReceipt
}

func newState() *state {
	return &state{
		products:      make(map[id.ID]*nomenclature.Product),
		kitComponents: make(map[id.ID][]nomenclature.KitComponent),
		warehouses:    make(map[id.ID]*warehouse.Warehouse),
		locations:     make(map[id.ID]*warehouse.Location),
		buckets:       make(map[id.ID]*stock.Bucket),
		orders:        make(map[id.ID]*purchase_order.PurchaseOrder),
		receipts:      make(map[id.ID]*goods_receipt.GoodsReceipt),
	}
}

// clone copies everything a unit of work can mutate. Products, warehouses and
// locations are replaced, never mutated in place, so shallow map copies suffice.
func (s *state) clone() *state {
	c := &state{
		products:      maps.Clone(s.products),
		kitComponents: make(map[id.ID][]nomenclature.KitComponent, len(s.kitComponents)),
		warehouses:    maps.Clone(s.warehouses),
		locations:     maps.Clone(s.locations),
		buckets:       make(map[id.ID]*stock.Bucket, len(s.buckets)),
		movements:     append([]*stock.Movement(nil), s.movements...),
		transactions:  append([]*stock.Transaction(nil), s.transactions...),
		orders:        make(map[id.ID]*purchase_order.PurchaseOrder, len(s.orders)),
		receipts:      make(map[id.ID]*goods_receipt.GoodsReceipt, len(s.receipts)),
	}
	for k, v := range s.kitComponents {
		c.kitComponents[k] = append([]nomenclature.KitComponent(nil), v...)
	}
	for k, v := range s.buckets {
		c.buckets[k] = v.Clone()
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.receipts {
		c.receipts[k] = v.Clone()
	}
	return c
}

type unitOfWork struct {
	st    *state
	fault FaultFunc
}

func (u *unitOfWork) check(op string) error {
	if u.fault == nil {
		return nil
	}
	return u.fault(op)
}

func (u *unitOfWork) Buckets() stock.BucketRepository           { return bucketRepo{u} }
func (u *unitOfWork) Movements() stock.MovementRepository       { return movementRepo{u} }
func (u *unitOfWork) Transactions() stock.TransactionRepository { return transactionRepo{u} }
func (u *unitOfWork) Products() nomenclature.Repository         { return productRepo{u} }
func (u *unitOfWork) Warehouses() warehouse.Repository          { return warehouseRepo{u} }
func (u *unitOfWork) PurchaseOrders() purchase_order.Repository { return orderRepo{u} }
func (u *unitOfWork) GoodsReceipts() goods_receipt.Repository   { return receiptRepo{u} }
