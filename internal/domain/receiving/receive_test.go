package receiving

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/security"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/documents/purchase_order"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/registers/stock"
)

func TestReceiveGoodsBooksStockAndAdvancesOrder(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})

	gr, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiveItem{line(p, wh, 4)},
		Notes:           "first truck",
		ActorID:         actor,
	})
	require.NoError(t, err)

	assert.Equal(t, "GRN-2024-00001", gr.Number)
	assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), gr.ReceivedDate)
	require.Len(t, gr.Items, 1)
	assert.Equal(t, types.MinorUnits(150), gr.Items[0].UnitCost)

	buckets := f.mem.Buckets(p)
	require.Len(t, buckets, 1)
	assert.Equal(t, types.NewQuantity(4), buckets[0].Quantity)
	require.NotNil(t, buckets[0].UnitCost)
	assert.Equal(t, types.MinorUnits(150), *buckets[0].UnitCost)
	assert.Equal(t, buckets[0].ID, gr.Items[0].BucketID)

	moves := f.movementsOf(stock.MovementPurchaseReceipt)
	require.Len(t, moves, 1)
	assert.Equal(t, "RCV-2024-00001-001", moves[0].Number)
	assert.Equal(t, "GRN-2024-00001", moves[0].ReferenceNumber)
	assert.Equal(t, types.NewQuantity(4), moves[0].Quantity)
	assert.Equal(t, actor, moves[0].ActorID)

	txs := f.mem.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "RCV-2024-00001", txs[0].Number)
	assert.Equal(t, gr.TransactionID, txs[0].ID)
	assert.Equal(t, gr.ID.String(), txs[0].ReferenceID)

	stored := f.loadOrder(po.ID)
	assert.Equal(t, purchase_order.StatusPartiallyReceived, stored.Status)
	assert.Nil(t, stored.ReceivedDate)
	assert.Equal(t, types.NewQuantity(4), stored.Items[0].ReceivedQuantity)

	assert.Equal(t, []audit.Action{audit.ActionGoodsReceived}, f.activity.actions())
}

func TestReceiveGoodsCompletesOrder(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})

	_, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: []ReceiveItem{line(p, wh, 4)}, ActorID: actor})
	require.NoError(t, err)

	received := time.Date(2024, 4, 20, 17, 45, 0, 0, time.UTC)
	gr, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiveItem{line(p, wh, 6)},
		ReceivedDate:    received,
		ActorID:         actor,
	})
	require.NoError(t, err)
	assert.Equal(t, "GRN-2024-00002", gr.Number)

	stored := f.loadOrder(po.ID)
	assert.Equal(t, purchase_order.StatusReceived, stored.Status)
	require.NotNil(t, stored.ReceivedDate)
	assert.Equal(t, time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), *stored.ReceivedDate)

	// Same key both times, so one bucket holds everything.
	buckets := f.mem.Buckets(p)
	require.Len(t, buckets, 1)
	assert.Equal(t, types.NewQuantity(10), buckets[0].Quantity)
}

func TestReceiveGoodsOverwritesCostOfExistingBucket(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	old := types.MinorUnits(99)
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error {
		b := stock.NewBucket(stock.BucketKey{ProductID: p, WarehouseID: wh}, types.NewQuantity(2), &old, nil, f.clock.Now())
		return uow.Buckets().Create(ctx, b)
	})
	po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 5, price: 120})

	_, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: []ReceiveItem{line(p, wh, 5)}, ActorID: actor})
	require.NoError(t, err)

	buckets := f.mem.Buckets(p)
	require.Len(t, buckets, 1)
	assert.Equal(t, types.NewQuantity(7), buckets[0].Quantity)
	assert.Equal(t, types.MinorUnits(120), *buckets[0].UnitCost)
}

func TestReceiveGoodsSplitsAcrossOrderLines(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	po := f.order(purchase_order.StatusApproved,
		orderLine{product: p, ordered: 3, price: 100},
		orderLine{product: p, ordered: 5, price: 110},
	)

	gr, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiveItem{line(p, wh, 3), line(p, wh, 2)},
		ActorID:         actor,
	})
	require.NoError(t, err)
	require.Len(t, gr.Items, 2)
	assert.Equal(t, po.Items[0].ID, gr.Items[0].PurchaseOrderItemID)
	assert.Equal(t, po.Items[1].ID, gr.Items[1].PurchaseOrderItemID)
	assert.Equal(t, types.MinorUnits(110), gr.Items[1].UnitCost)

	stored := f.loadOrder(po.ID)
	assert.Equal(t, types.NewQuantity(3), stored.Items[0].ReceivedQuantity)
	assert.Equal(t, types.NewQuantity(2), stored.Items[1].ReceivedQuantity)
	assert.Equal(t, purchase_order.StatusPartiallyReceived, stored.Status)
}

func TestReceiveGoodsIdempotentRetry(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})
	in := ReceiveInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiveItem{line(p, wh, 4)},
		IdempotencyKey:  "dock-7/2024-04-15/1",
		ActorID:         actor,
	}

	first, err := f.svc.ReceiveGoods(f.ctx, in)
	require.NoError(t, err)
	second, err := f.svc.ReceiveGoods(f.ctx, in)
	require.NoError(t, err)

	assert.Regexp(t, `^GRN-[0-9A-F]{12}$`, first.Number)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Number, second.Number)
	require.NotNil(t, second.IdempotencyKey)
	assert.Equal(t, in.IdempotencyKey, *second.IdempotencyKey)

	assert.Equal(t, types.NewQuantity(4), f.onHand(p))
	assert.Len(t, f.mem.Transactions(), 1)
	assert.Equal(t, types.NewQuantity(4), f.loadOrder(po.ID).Items[0].ReceivedQuantity)
	assert.Len(t, f.activity.actions(), 1)
}

func TestReceiveGoodsConcurrentDuplicateReturnsStoredReceipt(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})
	in := ReceiveInput{
		PurchaseOrderID: po.ID,
		Items:           []ReceiveItem{line(p, wh, 4)},
		IdempotencyKey:  "race",
		ActorID:         actor,
	}

	// Another caller commits the same key after our pre-check but before our unit runs.
	var winner string
	f.store.before = func() {
		other := f.service(f.mem, security.AllowAll{})
		gr, err := other.ReceiveGoods(f.ctx, in)
		require.NoError(t, err)
		winner = gr.Number
	}

	gr, err := f.svc.ReceiveGoods(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, winner, gr.Number)
	assert.Equal(t, types.NewQuantity(4), f.onHand(p))
	assert.Len(t, f.mem.Transactions(), 1)
}

func TestReceiveGoodsConcurrentRetryFillingOrder(t *testing.T) {
	tests := []struct {
		name string
		race func(f *fixture, commit func())
	}{
		{name: "commits before the unit", race: func(f *fixture, commit func()) { f.store.before = commit }},
		{name: "commits before validation", race: func(f *fixture, commit func()) { f.store.afterRead = commit }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			wh := f.warehouse(true)
			p := f.product()
			po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})
			in := ReceiveInput{
				PurchaseOrderID: po.ID,
				Items:           []ReceiveItem{line(p, wh, 10)},
				IdempotencyKey:  "full-race",
				ActorID:         actor,
			}

			var winner string
			tt.race(f, func() {
				other := f.service(f.mem, security.AllowAll{})
				gr, err := other.ReceiveGoods(f.ctx, in)
				require.NoError(t, err)
				winner = gr.Number
			})

			gr, err := f.svc.ReceiveGoods(f.ctx, in)
			require.NoError(t, err)
			assert.Equal(t, winner, gr.Number)
			assert.Equal(t, types.NewQuantity(10), f.onHand(p))
			assert.Len(t, f.mem.Transactions(), 1)
			assert.Equal(t, purchase_order.StatusReceived, f.loadOrder(po.ID).Status)
		})
	}
}

func TestReceiveGoodsKeyReusedForAnotherOrder(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	first := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})
	second := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})

	_, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: first.ID, Items: []ReceiveItem{line(p, wh, 4)}, IdempotencyKey: "1", ActorID: actor})
	require.NoError(t, err)

	_, err = f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: second.ID, Items: []ReceiveItem{line(p, wh, 5)}, IdempotencyKey: "1", ActorID: actor})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperror.CodeIdempotency, appErr.Code)
	assert.Equal(t, "1", appErr.Details["idempotency_key"])

	assert.Equal(t, types.NewQuantity(0), f.loadOrder(second.ID).Items[0].ReceivedQuantity)
	assert.Equal(t, types.NewQuantity(4), f.onHand(p))
}

func TestReceiveGoodsKeyedFailureSurfacesWithoutStoredReceipt(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})
	f.mem.InjectFault(func(op string) error {
		if op == "movement.create" {
			return apperror.NewDuplicate("stock_movement", "number", "RCV-2024-00001-001")
		}
		return nil
	})

	_, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: []ReceiveItem{line(p, wh, 4)}, IdempotencyKey: "k-1", ActorID: actor})
	require.Error(t, err)
	assert.True(t, apperror.IsDuplicate(err, "number"))
	assert.Empty(t, f.mem.Transactions())
	assert.Equal(t, purchase_order.StatusApproved, f.loadOrder(po.ID).Status)
}

func TestReceiveGoodsOverReceipt(t *testing.T) {
	tests := []struct {
		name      string
		received  int64
		items     []int64
		remaining string
	}{
		{name: "single line", items: []int64{11}, remaining: "10.0000"},
		{name: "cumulative lines", items: []int64{6, 5}, remaining: "4.0000"},
		{name: "after partial receipt", received: 8, items: []int64{3}, remaining: "2.0000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			wh := f.warehouse(true)
			p := f.product()
			po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})
			if tt.received > 0 {
				_, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: []ReceiveItem{line(p, wh, tt.received)}, ActorID: actor})
				require.NoError(t, err)
			}
			before := f.onHand(p)

			var items []ReceiveItem
			for _, q := range tt.items {
				items = append(items, line(p, wh, q))
			}
			_, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: items, ActorID: actor})

			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, apperror.CodeOverReceipt, appErr.Code)
			assert.Equal(t, tt.remaining, appErr.Details["remaining"])
			assert.Equal(t, before, f.onHand(p))
			assert.Equal(t, types.NewQuantity(tt.received), f.loadOrder(po.ID).Items[0].ReceivedQuantity)
		})
	}
}

func TestReceiveGoodsPreconditions(t *testing.T) {
	serialTracked := func(p *nomenclature.Product) { p.TrackBySerialNumber = true }
	batchTracked := func(p *nomenclature.Product) { p.TrackByBatch = true }

	tests := []struct {
		name   string
		status purchase_order.Status
		setup  func(f *fixture, p, wh id.ID) []ReceiveItem
		opts   []func(*nomenclature.Product)
		code   string
	}{
		{
			name:   "draft order",
			status: purchase_order.StatusDraft,
			setup:  func(_ *fixture, p, wh id.ID) []ReceiveItem { return []ReceiveItem{line(p, wh, 1)} },
			code:   apperror.CodeInvalidState,
		},
		{
			name:   "fully received order",
			status: purchase_order.StatusReceived,
			setup:  func(_ *fixture, p, wh id.ID) []ReceiveItem { return []ReceiveItem{line(p, wh, 1)} },
			code:   apperror.CodeInvalidState,
		},
		{
			name:  "no items",
			setup: func(*fixture, id.ID, id.ID) []ReceiveItem { return nil },
			code:  apperror.CodeValidation,
		},
		{
			name:  "zero quantity",
			setup: func(_ *fixture, p, wh id.ID) []ReceiveItem { return []ReceiveItem{line(p, wh, 0)} },
			code:  apperror.CodeValidation,
		},
		{
			name: "product not on order",
			setup: func(f *fixture, _, wh id.ID) []ReceiveItem {
				return []ReceiveItem{line(f.product(), wh, 1)}
			},
			code: apperror.CodeValidation,
		},
		{
			name: "inactive warehouse",
			setup: func(f *fixture, p, _ id.ID) []ReceiveItem {
				return []ReceiveItem{line(p, f.warehouse(false), 1)}
			},
			code: apperror.CodeNotFound,
		},
		{
			name:  "unknown warehouse",
			setup: func(_ *fixture, p, _ id.ID) []ReceiveItem { return []ReceiveItem{line(p, id.New(), 1)} },
			code:  apperror.CodeNotFound,
		},
		{
			name: "location of another warehouse",
			setup: func(f *fixture, p, wh id.ID) []ReceiveItem {
				it := line(p, wh, 1)
				it.LocationID = ptr(f.location(f.warehouse(true)))
				return []ReceiveItem{it}
			},
			code: apperror.CodeValidation,
		},
		{
			name:  "batch missing",
			opts:  []func(*nomenclature.Product){batchTracked},
			setup: func(_ *fixture, p, wh id.ID) []ReceiveItem { return []ReceiveItem{line(p, wh, 1)} },
			code:  apperror.CodeTrackingRequired,
		},
		{
			name:  "serial missing",
			opts:  []func(*nomenclature.Product){serialTracked},
			setup: func(_ *fixture, p, wh id.ID) []ReceiveItem { return []ReceiveItem{line(p, wh, 1)} },
			code:  apperror.CodeTrackingRequired,
		},
		{
			name: "serial quantity above one",
			opts: []func(*nomenclature.Product){serialTracked},
			setup: func(_ *fixture, p, wh id.ID) []ReceiveItem {
				it := line(p, wh, 2)
				it.SerialNumber = ptr("SN-1")
				return []ReceiveItem{it}
			},
			code: apperror.CodeValidation,
		},
		{
			name: "serial repeated in request",
			opts: []func(*nomenclature.Product){serialTracked},
			setup: func(_ *fixture, p, wh id.ID) []ReceiveItem {
				a, b := line(p, wh, 1), line(p, wh, 1)
				a.SerialNumber, b.SerialNumber = ptr("SN-1"), ptr("SN-1")
				return []ReceiveItem{a, b}
			},
			code: apperror.CodeDuplicate,
		},
		{
			name: "serial already in stock",
			opts: []func(*nomenclature.Product){serialTracked},
			setup: func(f *fixture, p, wh id.ID) []ReceiveItem {
				f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error {
					key := stock.BucketKey{ProductID: p, WarehouseID: wh, SerialNumber: ptr("SN-1")}
					return uow.Buckets().Create(ctx, stock.NewBucket(key, types.NewQuantity(1), nil, nil, f.clock.Now()))
				})
				it := line(p, wh, 1)
				it.SerialNumber = ptr("SN-1")
				return []ReceiveItem{it}
			},
			code: apperror.CodeDuplicate,
		},
		{
			name: "serial held by another product",
			opts: []func(*nomenclature.Product){serialTracked},
			setup: func(f *fixture, p, wh id.ID) []ReceiveItem {
				other := f.product()
				f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error {
					key := stock.BucketKey{ProductID: other, WarehouseID: wh, SerialNumber: ptr("SN-1")}
					return uow.Buckets().Create(ctx, stock.NewBucket(key, types.NewQuantity(1), nil, nil, f.clock.Now()))
				})
				it := line(p, wh, 1)
				it.SerialNumber = ptr("SN-1")
				return []ReceiveItem{it}
			},
			code: apperror.CodeDuplicate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			wh := f.warehouse(true)
			p := f.product(tt.opts...)
			status := tt.status
			if status == "" {
				status = purchase_order.StatusApproved
			}
			po := f.order(status, orderLine{product: p, ordered: 10, price: 150})
			items := tt.setup(f, p, wh)
			movesBefore := len(f.mem.Movements())

			_, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: items, ActorID: actor})

			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
			assert.Len(t, f.mem.Movements(), movesBefore)
			assert.Equal(t, status, f.loadOrder(po.ID).Status)
			assert.Empty(t, f.activity.actions())
		})
	}
}

func TestReceiveGoodsUnknownOrder(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()

	_, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: id.New(), Items: []ReceiveItem{line(p, wh, 1)}, ActorID: actor})
	assert.True(t, apperror.IsNotFound(err))
}

func TestReceiveGoodsTrackedLine(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	loc := f.location(wh)
	p := f.product(func(p *nomenclature.Product) {
		p.TrackByBatch = true
		p.TrackByExpiry = true
	})
	po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})
	it := line(p, wh, 10)
	it.LocationID = &loc
	it.BatchNumber = ptr("B-42")
	it.ExpiryDate = ptr(time.Date(2025, 1, 31, 13, 0, 0, 0, time.UTC))

	gr, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: []ReceiveItem{it}, ActorID: actor})
	require.NoError(t, err)

	b := f.mem.Buckets(p)[0]
	assert.Equal(t, "B-42", *b.BatchNumber)
	assert.Equal(t, loc, *b.LocationID)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), *b.ExpiryDate)
	assert.Equal(t, "B-42", *gr.Items[0].BatchNumber)
	assert.Equal(t, purchase_order.StatusReceived, f.loadOrder(po.ID).Status)
}

func TestReceiveGoodsRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})
	f.mem.InjectFault(func(op string) error {
		if op == "goods_receipt.create" {
			return assert.AnError
		}
		return nil
	})

	_, err := f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: []ReceiveItem{line(p, wh, 4)}, ActorID: actor})
	require.ErrorIs(t, err, assert.AnError)

	assert.Empty(t, f.mem.Buckets(p))
	assert.Empty(t, f.mem.Movements())
	assert.Empty(t, f.mem.Transactions())
	assert.Equal(t, purchase_order.StatusApproved, f.loadOrder(po.ID).Status)
}

func TestReceiveGoodsRequiresPermission(t *testing.T) {
	f := newFixture(t)
	wh := f.warehouse(true)
	p := f.product()
	po := f.order(purchase_order.StatusApproved, orderLine{product: p, ordered: 10, price: 150})
	deny := security.CheckerFunc(func(context.Context, string, security.Permission) (bool, error) { return false, nil })
	svc := f.service(f.store, deny)

	_, err := svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: []ReceiveItem{line(p, wh, 1)}, ActorID: actor})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	_, err = f.svc.ReceiveGoods(f.ctx, ReceiveInput{PurchaseOrderID: po.ID, Items: []ReceiveItem{line(p, wh, 1)}})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}
