package kitting

import (
	"context"
	"errors"
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
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/registers/stock"
)

func TestAssembleKitEndToEnd(t *testing.T) {
	f := newFixture(t)
	w := f.warehouse(true)
	c := f.product("component")
	noExpiry := f.bucket(c, w, 10, 200, nil)
	jan := f.bucket(c, w, 5, 100, day(2024, 1, 1))
	k := f.kit(map[id.ID]int64{c: 3}, []id.ID{c})

	res, err := f.svc.AssembleKit(f.ctx, AssembleInput{
		KitID:       k,
		WarehouseID: w,
		Quantity:    types.NewQuantity(3),
		ActorID:     actor,
	})
	require.NoError(t, err)

	assert.True(t, f.bucketQty(c, jan).IsZero())
	assert.Equal(t, types.NewQuantity(6), f.bucketQty(c, noExpiry))

	// 5*100 + 4*200 = 1300 over 3 kits
	assert.Equal(t, types.MinorUnits(433), res.UnitCost)
	assert.Equal(t, types.NewQuantity(3), res.Quantity)
	assert.Equal(t, "ASM-2024-00001", res.TransactionNumber)
	assert.Equal(t, types.NewQuantity(3), f.onHand(k))
	require.NotNil(t, res.Bucket.UnitCost)
	assert.Equal(t, types.MinorUnits(433), *res.Bucket.UnitCost)

	var numbers []string
	var quantities []types.Quantity
	for _, m := range f.store.Movements() {
		assert.Equal(t, stock.MovementAssembly, m.Type)
		assert.Equal(t, actor, m.ActorID)
		numbers = append(numbers, m.Number)
		quantities = append(quantities, m.Quantity)
	}
	assert.Equal(t, []string{"ASM-2024-00001-001", "ASM-2024-00001-002", "ASM-2024-00001-003"}, numbers)
	assert.Equal(t, []types.Quantity{types.NewQuantity(-5), types.NewQuantity(-4), types.NewQuantity(3)}, quantities)

	txs := f.store.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, stock.MovementAssembly, txs[0].Type)
	assert.Equal(t, actor, txs[0].ActorID)

	require.NotEmpty(t, f.activity.entries)
	last := f.activity.entries[len(f.activity.entries)-1]
	assert.Equal(t, audit.ActionKitAssembled, last.Action)
	assert.Equal(t, k.String(), last.EntityID)
}

func TestAssembleKitConservation(t *testing.T) {
	f := newFixture(t)
	w := f.warehouse(true)
	a := f.product("a")
	b := f.product("b")
	f.bucket(a, w, 20, 10, nil)
	f.bucket(b, w, 20, 30, nil)
	k := f.kit(map[id.ID]int64{a: 2, b: 1}, []id.ID{a, b})

	res, err := f.svc.AssembleKit(f.ctx, AssembleInput{KitID: k, WarehouseID: w, Quantity: types.NewQuantity(4), ActorID: actor})
	require.NoError(t, err)

	assert.Equal(t, types.NewQuantity(12), f.onHand(a))
	assert.Equal(t, types.NewQuantity(16), f.onHand(b))
	assert.Equal(t, types.NewQuantity(4), f.onHand(k))
	// (8*10 + 4*30) / 4
	assert.Equal(t, types.MinorUnits(50), res.UnitCost)

	var consumed types.Quantity
	for _, cc := range res.Consumed {
		consumed += cc.Quantity
	}
	assert.Equal(t, types.NewQuantity(4*3), consumed)
}

func TestAssembleKitBlendsCostIntoExistingBucket(t *testing.T) {
	f := newFixture(t)
	w := f.warehouse(true)
	c := f.product("component")
	f.bucket(c, w, 5, 100, day(2024, 1, 1))
	f.bucket(c, w, 10, 200, nil)
	k := f.kit(map[id.ID]int64{c: 3}, []id.ID{c})

	first, err := f.svc.AssembleKit(f.ctx, AssembleInput{KitID: k, WarehouseID: w, Quantity: types.NewQuantity(3), ActorID: actor})
	require.NoError(t, err)
	second, err := f.svc.AssembleKit(f.ctx, AssembleInput{KitID: k, WarehouseID: w, Quantity: types.NewQuantity(1), ActorID: actor})
	require.NoError(t, err)

	assert.Equal(t, first.Bucket.ID, second.Bucket.ID)
	assert.Equal(t, types.MinorUnits(600), second.UnitCost)
	// (3*433 + 1*600) / 4 = 474.75
	assert.Equal(t, types.MinorUnits(475), *second.Bucket.UnitCost)
	assert.Equal(t, types.NewQuantity(4), second.Bucket.Quantity)
	assert.Equal(t, "ASM-2024-00002", second.TransactionNumber)
}

func TestAssembleKitInsufficientStockLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	w := f.warehouse(true)
	a := f.product("a")
	b := f.product("b")
	c := f.product("c")
	f.bucket(a, w, 10, 1, nil)
	f.bucket(b, w, 1, 1, nil)
	f.bucket(c, w, 10, 1, nil)
	k := f.kit(map[id.ID]int64{a: 1, b: 2, c: 1}, []id.ID{a, b, c})
	entries := len(f.activity.entries)

	_, err := f.svc.AssembleKit(f.ctx, AssembleInput{KitID: k, WarehouseID: w, Quantity: types.NewQuantity(1), ActorID: actor})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, b, appErr.Details["product_id"])
	assert.Equal(t, "2.0000", appErr.Details["required"])
	assert.Equal(t, "1.0000", appErr.Details["available"])

	assert.Equal(t, types.NewQuantity(10), f.onHand(a))
	assert.Equal(t, types.NewQuantity(1), f.onHand(b))
	assert.Equal(t, types.NewQuantity(10), f.onHand(c))
	assert.True(t, f.onHand(k).IsZero())
	assert.Empty(t, f.store.Movements())
	assert.Empty(t, f.store.Transactions())
	assert.Len(t, f.activity.entries, entries)
}

func TestAssembleKitRollsBackOnFailureInsideUnit(t *testing.T) {
	f := newFixture(t)
	w := f.warehouse(true)
	a := f.product("a")
	f.bucket(a, w, 10, 1, nil)
	k := f.kit(map[id.ID]int64{a: 2}, []id.ID{a})

	f.store.InjectFault(func(op string) error {
		if op == "bucket.create" {
			return errors.New("write failed")
		}
		return nil
	})

	_, err := f.svc.AssembleKit(f.ctx, AssembleInput{KitID: k, WarehouseID: w, Quantity: types.NewQuantity(2), ActorID: actor})
	require.Error(t, err)

	assert.Equal(t, types.NewQuantity(10), f.onHand(a))
	assert.Empty(t, f.store.Movements())
	assert.Empty(t, f.store.Transactions())
}

func TestAssembleKitPreconditions(t *testing.T) {
	f := newFixture(t)
	w := f.warehouse(true)
	closed := f.warehouse(false)
	other := f.warehouse(true)
	foreignLoc := f.location(other)
	c := f.product("component")
	f.bucket(c, w, 100, 1, nil)

	plain := f.product("plain")
	kit := f.kit(map[id.ID]int64{c: 1}, []id.ID{c})
	emptyKit := f.product("empty", asKit)
	inactive := f.product("retired", asKit, func(p *nomenclature.Product) { p.IsActive = false })
	f.atomic(func(ctx context.Context, uow ledger.UnitOfWork) error {
		return uow.Products().ReplaceKitComponents(ctx, inactive, []nomenclature.KitComponent{
			{ID: id.New(), KitID: inactive, ComponentID: c, Quantity: types.NewQuantity(1), Position: 1},
		})
	})
	serialKit := f.kit(map[id.ID]int64{c: 1}, []id.ID{c}, func(p *nomenclature.Product) { p.TrackBySerialNumber = true })
	batchKit := f.kit(map[id.ID]int64{c: 1}, []id.ID{c}, func(p *nomenclature.Product) { p.TrackByBatch = true })
	expiryKit := f.kit(map[id.ID]int64{c: 1}, []id.ID{c}, func(p *nomenclature.Product) { p.TrackByExpiry = true })
	otherSerialKit := f.kit(map[id.ID]int64{c: 1}, []id.ID{c}, func(p *nomenclature.Product) { p.TrackBySerialNumber = true })

	_, err := f.svc.AssembleKit(f.ctx, AssembleInput{KitID: serialKit, WarehouseID: w, Quantity: types.NewQuantity(1), SerialNumber: ptr("SN-1"), ActorID: actor})
	require.NoError(t, err)

	one := types.NewQuantity(1)
	tests := []struct {
		name string
		in   AssembleInput
		code string
	}{
		{name: "zero quantity", in: AssembleInput{KitID: kit, WarehouseID: w}, code: apperror.CodeValidation},
		{name: "negative quantity", in: AssembleInput{KitID: kit, WarehouseID: w, Quantity: -one}, code: apperror.CodeValidation},
		{name: "unknown kit", in: AssembleInput{KitID: id.New(), WarehouseID: w, Quantity: one}, code: apperror.CodeNotFound},
		{name: "not a kit", in: AssembleInput{KitID: plain, WarehouseID: w, Quantity: one}, code: apperror.CodeValidation},
		{name: "inactive kit", in: AssembleInput{KitID: inactive, WarehouseID: w, Quantity: one}, code: apperror.CodeNotFound},
		{name: "empty BOM", in: AssembleInput{KitID: emptyKit, WarehouseID: w, Quantity: one}, code: apperror.CodeBusinessRule},
		{name: "unknown warehouse", in: AssembleInput{KitID: kit, WarehouseID: id.New(), Quantity: one}, code: apperror.CodeNotFound},
		{name: "inactive warehouse", in: AssembleInput{KitID: kit, WarehouseID: closed, Quantity: one}, code: apperror.CodeNotFound},
		{name: "location of other warehouse", in: AssembleInput{KitID: kit, WarehouseID: w, Quantity: one, LocationID: &foreignLoc}, code: apperror.CodeValidation},
		{name: "serial kit quantity two", in: AssembleInput{KitID: serialKit, WarehouseID: w, Quantity: 2 * one, SerialNumber: ptr("SN-2")}, code: apperror.CodeValidation},
		{name: "serial missing", in: AssembleInput{KitID: serialKit, WarehouseID: w, Quantity: one}, code: apperror.CodeTrackingRequired},
		{name: "serial taken", in: AssembleInput{KitID: serialKit, WarehouseID: w, Quantity: one, SerialNumber: ptr("SN-1")}, code: apperror.CodeDuplicate},
		{name: "serial taken by another product", in: AssembleInput{KitID: otherSerialKit, WarehouseID: w, Quantity: one, SerialNumber: ptr("SN-1")}, code: apperror.CodeDuplicate},
		{name: "batch missing", in: AssembleInput{KitID: batchKit, WarehouseID: w, Quantity: one}, code: apperror.CodeTrackingRequired},
		{name: "expiry missing", in: AssembleInput{KitID: expiryKit, WarehouseID: w, Quantity: one}, code: apperror.CodeTrackingRequired},
		{name: "no actor", in: AssembleInput{KitID: kit, WarehouseID: w, Quantity: one}, code: apperror.CodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			if tt.code != apperror.CodeUnauthorized {
				in.ActorID = actor
			}
			before := len(f.store.Movements())

			_, err := f.svc.AssembleKit(f.ctx, in)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
			assert.Len(t, f.store.Movements(), before)
		})
	}
}

func TestAssembleKitForbiddenTouchesNothing(t *testing.T) {
	var calls []security.Permission
	deny := security.CheckerFunc(func(_ context.Context, _ string, perm security.Permission) (bool, error) {
		calls = append(calls, perm)
		return perm == security.PermKitBOMManage, nil
	})
	f := newFixtureWithChecker(t, deny)
	w := f.warehouse(true)
	c := f.product("component")
	f.bucket(c, w, 5, 1, nil)
	k := f.kit(map[id.ID]int64{c: 1}, []id.ID{c})

	_, err := f.svc.AssembleKit(f.ctx, AssembleInput{KitID: k, WarehouseID: w, Quantity: types.NewQuantity(1), ActorID: actor})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
	assert.Equal(t, []security.Permission{security.PermKitBOMManage, security.PermKitAssemble}, calls)
	assert.Equal(t, types.NewQuantity(5), f.onHand(c))
}

func TestAssembleKitIntoLocationWithBatchAndExpiry(t *testing.T) {
	f := newFixture(t)
	w := f.warehouse(true)
	loc := f.location(w)
	c := f.product("component")
	f.bucket(c, w, 4, 250, nil)
	k := f.kit(map[id.ID]int64{c: 2}, []id.ID{c}, func(p *nomenclature.Product) {
		p.TrackByBatch = true
		p.TrackByExpiry = true
	})
	expiry := time.Date(2025, 6, 30, 13, 0, 0, 0, time.UTC)

	res, err := f.svc.AssembleKit(f.ctx, AssembleInput{
		KitID:       k,
		WarehouseID: w,
		Quantity:    types.NewQuantity(2),
		LocationID:  &loc,
		BatchNumber: ptr("KB-1"),
		ExpiryDate:  &expiry,
		ActorID:     actor,
	})
	require.NoError(t, err)

	assert.Equal(t, &loc, res.Bucket.LocationID)
	assert.Equal(t, "KB-1", *res.Bucket.BatchNumber)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), *res.Bucket.ExpiryDate)
	assert.Equal(t, types.MinorUnits(500), res.UnitCost)
}
