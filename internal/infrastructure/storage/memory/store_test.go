package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/registers/stock"
)

func seedBucket(t *testing.T, s *Store, productID id.ID, qty int64, serial *string) *stock.Bucket {
	t.Helper()
	key := stock.BucketKey{ProductID: productID, WarehouseID: id.New(), SerialNumber: serial}
	b := stock.NewBucket(key, types.NewQuantity(qty), nil, nil, time.Now())
	require.NoError(t, s.Atomic(context.Background(), func(ctx context.Context, uow ledger.UnitOfWork) error {
		return uow.Buckets().Create(ctx, b)
	}))
	return b
}

func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := id.New()
	b := seedBucket(t, s, p, 5, nil)

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		got, err := uow.Buckets().GetForUpdate(ctx, b.ID)
		require.NoError(t, err)
		got.Quantity = types.NewQuantity(1)
		require.NoError(t, uow.Buckets().Update(ctx, got))

		tx := stock.NewTransaction("ADJ-1", stock.MovementAdjustment, "", "", "", "u", time.Now())
		require.NoError(t, uow.Transactions().Create(ctx, tx))
		return boom
	})
	require.ErrorIs(t, err, boom)

	buckets := s.Buckets(p)
	require.Len(t, buckets, 1)
	assert.Equal(t, types.NewQuantity(5), buckets[0].Quantity)
	assert.Empty(t, s.Transactions())
}

func TestInjectFaultAbortsUnit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := id.New()
	b := seedBucket(t, s, p, 5, nil)

	s.InjectFault(func(op string) error {
		if op == "movement.create" {
			return errors.New("disk full")
		}
		return nil
	})

	err := s.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		got, _ := uow.Buckets().GetForUpdate(ctx, b.ID)
		got.Quantity = 0
		if err := uow.Buckets().Update(ctx, got); err != nil {
			return err
		}
		tx := stock.NewTransaction("T-1", stock.MovementAdjustment, "", "", "", "u", time.Now())
		return uow.Movements().Create(ctx, stock.Outbound(tx, "T-1-001", stock.MovementAdjustment, got, types.NewQuantity(5)))
	})
	require.Error(t, err)
	assert.Equal(t, types.NewQuantity(5), s.Buckets(p)[0].Quantity)
}

func TestReadDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := id.New()
	b := seedBucket(t, s, p, 5, nil)

	require.NoError(t, s.Read(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		got, err := uow.Buckets().Get(ctx, b.ID)
		require.NoError(t, err)
		got.Quantity = 0
		return uow.Buckets().Update(ctx, got)
	}))
	assert.Equal(t, types.NewQuantity(5), s.Buckets(p)[0].Quantity)
}

func TestUniqueSerialAndNumbers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := id.New()
	serial := "SN-1"
	seedBucket(t, s, p, 1, &serial)

	err := s.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		dup := stock.NewBucket(stock.BucketKey{ProductID: p, WarehouseID: id.New(), SerialNumber: &serial}, types.NewQuantity(1), nil, nil, time.Now())
		return uow.Buckets().Create(ctx, dup)
	})
	assert.True(t, apperror.IsDuplicate(err, "serial_number"))

	err = s.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		other := stock.NewBucket(stock.BucketKey{ProductID: id.New(), WarehouseID: id.New(), SerialNumber: &serial}, types.NewQuantity(1), nil, nil, time.Now())
		return uow.Buckets().Create(ctx, other)
	})
	assert.True(t, apperror.IsDuplicate(err, "serial_number"), "serials are unique across products")

	err = s.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		now := time.Now()
		if err := uow.Transactions().Create(ctx, stock.NewTransaction("T-9", stock.MovementAdjustment, "", "", "", "u", now)); err != nil {
			return err
		}
		return uow.Transactions().Create(ctx, stock.NewTransaction("T-9", stock.MovementAdjustment, "", "", "", "u", now))
	})
	assert.True(t, apperror.IsDuplicate(err, "number"))
	assert.Empty(t, s.Transactions())
}

func TestFindByKeyMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Read(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		b, err := uow.Buckets().FindByKey(ctx, stock.BucketKey{ProductID: id.New(), WarehouseID: id.New()})
		assert.NoError(t, err)
		assert.Nil(t, b)
		return nil
	}))
}
