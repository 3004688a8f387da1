package receiving

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
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/documents/purchase_order"
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

func (r *recorder) actions() []audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Action, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// hookStore runs before once ahead of the next Atomic call and afterRead
// once behind the next Read call.
type hookStore struct {
	*memory.Store
	before    func()
	afterRead func()
}

func (h *hookStore) Read(ctx context.Context, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	err := h.Store.Read(ctx, fn)
	if a := h.afterRead; a != nil {
		h.afterRead = nil
		a()
	}
	return err
}

func (h *hookStore) Atomic(ctx context.Context, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	if b := h.before; b != nil {
		h.before = nil
		b()
	}
	return h.Store.Atomic(ctx, fn)
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	mem       *memory.Store
	store     *hookStore
	clock     *clock.Fixed
	numbering *numerator.Numbering
	activity  *recorder
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.NewStore()
	store := &hookStore{Store: mem}
	clk := clock.NewFixed(time.Date(2024, 4, 15, 8, 30, 0, 0, time.UTC))
	numbering := numerator.NewNumbering(numerator.NewMemoryGenerator(), nil, clk)
	f := &fixture{t: t, ctx: context.Background(), mem: mem, store: store, clock: clk, numbering: numbering, activity: &recorder{}}
	f.svc = f.service(store, security.AllowAll{})
	return f
}

func (f *fixture) service(store ledger.Store, checker security.Checker) *Service {
	return NewService(Config{Store: store, Checker: checker, Numbering: f.numbering, Activity: f.activity, Clock: f.clock})
}

func (f *fixture) atomic(fn func(ctx context.Context, uow ledger.UnitOfWork) error) {
	f.t.Helper()
	require.NoError(f.t, f.mem.Atomic(f.ctx, fn))
}

func (f *fixture) warehouse(active bool) id.ID {
	w := &warehouse.Warehouse{ID: id.New(), Code: "W", Name: "Main", IsActive: active}
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error { return uow.Warehouses().Create(ctx, w) })
	return w.ID
}

func (f *fixture) location(warehouseID id.ID) id.ID {
	l := &warehouse.Location{ID: id.New(), WarehouseID: warehouseID, Code: "R1", Name: "Receiving", IsActive: true}
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error { return uow.Warehouses().CreateLocation(ctx, l) })
	return l.ID
}

func (f *fixture) product(opts ...func(*nomenclature.Product)) id.ID {
	p := &nomenclature.Product{ID: id.New(), SKU: "SKU-" + id.New().String()[:8], Name: "Widget", Unit: "pcs", IsActive: true}
	for _, o := range opts {
		o(p)
	}
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error { return uow.Products().Create(ctx, p) })
	return p.ID
}

type orderLine struct {
	product id.ID
	ordered int64
	price   int64
}

func (f *fixture) order(status purchase_order.Status, lines ...orderLine) *purchase_order.PurchaseOrder {
	po := &purchase_order.PurchaseOrder{ID: id.New(), Number: "PO-" + id.New().String()[:6], Status: status, CreatedAt: f.clock.Now()}
	for i, l := range lines {
		po.Items = append(po.Items, purchase_order.Item{
			ID:              id.New(),
			PurchaseOrderID: po.ID,
			ProductID:       l.product,
			OrderedQuantity: types.NewQuantity(l.ordered),
			UnitPrice:       types.MinorUnits(l.price),
			Position:        i + 1,
		})
	}
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error { return uow.PurchaseOrders().Create(ctx, po) })
	return po
}

func (f *fixture) loadOrder(orderID id.ID) *purchase_order.PurchaseOrder {
	var po *purchase_order.PurchaseOrder
	require.NoError(f.t, f.mem.Read(f.ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		var err error
		po, err = uow.PurchaseOrders().Get(ctx, orderID)
		return err
	}))
	return po
}

func (f *fixture) loadReceipt(receiptID id.ID) *goods_receipt.GoodsReceipt {
	var gr *goods_receipt.GoodsReceipt
	require.NoError(f.t, f.mem.Read(f.ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		var err error
		gr, err = uow.GoodsReceipts().Get(ctx, receiptID)
		return err
	}))
	return gr
}

func (f *fixture) onHand(productID id.ID) types.Quantity {
	var total types.Quantity
	for _, b := range f.mem.Buckets(productID) {
		total += b.Quantity
	}
	return total
}

func (f *fixture) movementsOf(typ stock.MovementType) []stock.Movement {
	var out []stock.Movement
	for _, m := range f.mem.Movements() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func line(productID, warehouseID id.ID, qty int64) ReceiveItem {
	return ReceiveItem{ProductID: productID, WarehouseID: warehouseID, Quantity: types.NewQuantity(qty)}
}

func ptr[T any](v T) *T { return &v }
