package kitting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockcore/internal/core/clock"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/security"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/infrastructure/storage/memory"
)

const actor = "user-1"

type recorder struct {
	mu      sync.Mutex
	entries []audit.Activity
}

func (r *recorder) LogActivity(_ context.Context, a audit.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, a)
	return nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	clock    *clock.Fixed
	activity *recorder
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithChecker(t, security.AllowAll{})
}

func newFixtureWithChecker(t *testing.T, checker security.Checker) *fixture {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewFixed(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	rec := &recorder{}
	svc := NewService(Config{
		Store:     store,
		Checker:   checker,
		Numbering: numerator.NewNumbering(numerator.NewMemoryGenerator(), nil, clk),
		Activity:  rec,
		Clock:     clk,
	})
	return &fixture{t: t, ctx: context.Background(), store: store, clock: clk, activity: rec, svc: svc}
}

func (f *fixture) atomic(fn func(ctx context.Context, uow ledger.UnitOfWork) error) {
	f.t.Helper()
	require.NoError(f.t, f.store.Atomic(f.ctx, fn))
}

func (f *fixture) warehouse(active bool) id.ID {
	w := &warehouse.Warehouse{ID: id.New(), Code: "W", Name: "Main", IsActive: active}
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error {
		return uow.Warehouses().Create(ctx, w)
	})
	return w.ID
}

func (f *fixture) location(warehouseID id.ID) id.ID {
	l := &warehouse.Location{ID: id.New(), WarehouseID: warehouseID, Code: "A1", Name: "Rack A1", IsActive: true}
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error {
		return uow.Warehouses().CreateLocation(ctx, l)
	})
	return l.ID
}

func (f *fixture) product(name string, opts ...func(*nomenclature.Product)) id.ID {
	p := &nomenclature.Product{ID: id.New(), SKU: name + "-" + id.New().String()[:8], Name: name, Unit: "pcs", IsActive: true}
	for _, o := range opts {
		o(p)
	}
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error {
		return uow.Products().Create(ctx, p)
	})
	return p.ID
}

func asKit(p *nomenclature.Product) { p.IsKit = true }

func (f *fixture) kit(components map[id.ID]int64, order []id.ID, opts ...func(*nomenclature.Product)) id.ID {
	kitID := f.product("kit", append([]func(*nomenclature.Product){asKit}, opts...)...)
	in := SetBOMInput{KitID: kitID, ActorID: actor}
	for _, c := range order {
		in.Components = append(in.Components, ComponentInput{ComponentID: c, Quantity: types.NewQuantity(components[c])})
	}
	_, err := f.svc.SetKitBOM(f.ctx, in)
	require.NoError(f.t, err)
	return kitID
}

func (f *fixture) bucket(productID, warehouseID id.ID, qty int64, unitCost int64, expiry *time.Time) id.ID {
	c := types.MinorUnits(unitCost)
	f.clock.Advance(time.Minute)
	b := stock.NewBucket(stock.BucketKey{ProductID: productID, WarehouseID: warehouseID}, types.NewQuantity(qty), &c, expiry, f.clock.Now())
	b.BatchNumber = ptr(id.New().String()[:6])
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error {
		return uow.Buckets().Create(ctx, b)
	})
	return b.ID
}

func (f *fixture) onHand(productID id.ID) types.Quantity {
	var total types.Quantity
	for _, b := range f.store.Buckets(productID) {
		total += b.Quantity
	}
	return total
}

func (f *fixture) bucketQty(productID, bucketID id.ID) types.Quantity {
	for _, b := range f.store.Buckets(productID) {
		if b.ID == bucketID {
			return b.Quantity
		}
	}
	f.t.Fatalf("bucket %s not found", bucketID)
	return 0
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func readBOM(kitID id.ID, out *[]id.ID) func(ctx context.Context, uow ledger.UnitOfWork) error {
	return func(ctx context.Context, uow ledger.UnitOfWork) error {
		rows, err := uow.Products().ListKitComponents(ctx, kitID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			*out = append(*out, r.ComponentID)
		}
		return nil
	}
}
