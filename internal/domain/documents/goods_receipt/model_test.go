package goods_receipt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/registers/stock"
)

func TestMarkVoided(t *testing.T) {
	gr := &GoodsReceipt{ID: id.New(), Number: "GRN-2024-00001"}
	require.NoError(t, gr.RequireNotVoided())

	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	gr.MarkVoided("user-7", "wrong supplier", now)

	assert.True(t, gr.Voided)
	assert.Equal(t, "user-7", *gr.VoidedBy)
	assert.Equal(t, "wrong supplier", *gr.VoidReason)
	assert.Equal(t, now, *gr.VoidedAt)
	assert.True(t, apperror.HasCode(gr.RequireNotVoided(), apperror.CodeAlreadyVoided))
}

func TestItemBucketKey(t *testing.T) {
	loc := id.New()
	batch := "LOT-9"
	it := Item{ProductID: id.New(), WarehouseID: id.New(), LocationID: &loc, BatchNumber: &batch}

	b := &stock.Bucket{ProductID: it.ProductID, WarehouseID: it.WarehouseID, LocationID: &loc, BatchNumber: &batch}
	assert.True(t, it.BucketKey().Matches(b))

	b.BatchNumber = nil
	assert.False(t, it.BucketKey().Matches(b))
}
