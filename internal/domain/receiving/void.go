package receiving

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/security"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/registers/stock"
	"stockcore/pkg/logger"
)

// VoidInput reverses receipt ReceiptID.
type VoidInput struct {
	ReceiptID id.ID
	Reason    string
	ActorID   string
}

// VoidGoodsReceipt takes every received line back out of stock, lowers the
// order's received quantities and marks the receipt voided. It fails as a
// whole if any line's stock has since been consumed or moved.
func (s *Service) VoidGoodsReceipt(ctx context.Context, in VoidInput) error {
	ctx, span := tracer.Start(ctx, "receiving.VoidGoodsReceipt",
		trace.WithAttributes(attribute.String("goods_receipt.id", in.ReceiptID.String())))
	defer span.End()

	if err := security.Require(ctx, s.checker, in.ActorID, security.PermGoodsReceiptVoid); err != nil {
		return err
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return apperror.NewValidation("void reason is required").WithDetail("field", "reason")
	}

	err := s.store.Read(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		gr, err := uow.GoodsReceipts().Get(ctx, in.ReceiptID)
		if err != nil {
			return err
		}
		_, err = checkVoid(ctx, uow, gr)
		return err
	})
	if err != nil {
		return err
	}

	var voided *goods_receipt.GoodsReceipt
	err = s.store.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		gr, err := uow.GoodsReceipts().GetForUpdate(ctx, in.ReceiptID)
		if err != nil {
			return err
		}
		buckets, err := checkVoid(ctx, uow, gr)
		if err != nil {
			return err
		}
		if err := s.void(ctx, uow, in, gr, buckets); err != nil {
			return err
		}
		voided = gr
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "goods receipt voided", "number", voided.Number, "reason", in.Reason)
	audit.Record(ctx, s.activity, audit.Activity{
		Action:      audit.ActionGoodsReceiptVoided,
		ActorUserID: in.ActorID,
		Entity:      "goods_receipt",
		EntityID:    voided.ID.String(),
		Changes: map[string]any{
			"number": voided.Number,
			"reason": in.Reason,
		},
	})
	return nil
}

// checkVoid returns the bucket of every receipt line, failing if the receipt
// is voided or a bucket no longer holds what the lines put there. Lines that
// share a bucket share the returned pointer.
func checkVoid(ctx context.Context, uow ledger.UnitOfWork, gr *goods_receipt.GoodsReceipt) ([]*stock.Bucket, error) {
	if err := gr.RequireNotVoided(); err != nil {
		return nil, err
	}

	byID := make(map[id.ID]*stock.Bucket)
	required := make(map[id.ID]types.Quantity)
	buckets := make([]*stock.Bucket, len(gr.Items))
	for i := range gr.Items {
		item := &gr.Items[i]
		b, err := uow.Buckets().FindByKey(ctx, item.BucketKey())
		if err != nil {
			return nil, fmt.Errorf("find bucket: %w", err)
		}
		if b == nil {
			return nil, apperror.NewStockConsumed(item.ProductID, item.Quantity, types.Quantity(0))
		}
		if seen, ok := byID[b.ID]; ok {
			b = seen
		} else {
			byID[b.ID] = b
		}
		required[b.ID] += item.Quantity
		if b.Quantity < required[b.ID] {
			return nil, apperror.NewStockConsumed(item.ProductID, required[b.ID], b.Quantity).
				WithDetail("bucketId", b.ID.String())
		}
		// Reserved stock stays covered by on-hand after the reversal.
		if b.Quantity-required[b.ID] < b.ReservedQuantity {
			return nil, apperror.NewStockConsumed(item.ProductID, required[b.ID], b.Quantity).
				WithDetail("bucketId", b.ID.String()).
				WithDetail("reserved", b.ReservedQuantity.String())
		}
		buckets[i] = b
	}
	return buckets, nil
}

func (s *Service) void(ctx context.Context, uow ledger.UnitOfWork, in VoidInput, gr *goods_receipt.GoodsReceipt, buckets []*stock.Bucket) error {
	now := s.clock.Now()

	number, err := s.numbering.Next(ctx, numerator.KindAdjustment)
	if err != nil {
		return fmt.Errorf("next adjustment number: %w", err)
	}
	tx := stock.NewTransaction(number, stock.MovementAdjustment, "goods_receipt", gr.ID.String(), in.Reason, in.ActorID, now)
	if err := uow.Transactions().Create(ctx, tx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	numbers := stock.NewMovementNumbers(number)

	po, err := uow.PurchaseOrders().GetForUpdate(ctx, gr.PurchaseOrderID)
	if err != nil {
		return err
	}

	for i := range gr.Items {
		item := &gr.Items[i]
		b := buckets[i]

		b.Quantity -= item.Quantity
		b.UpdatedAt = now
		if err := uow.Buckets().Update(ctx, b); err != nil {
			return fmt.Errorf("update bucket %s: %w", b.ID, err)
		}

		mv := stock.Outbound(tx, numbers.Next(), stock.MovementAdjustment, b, item.Quantity)
		mv.ReferenceNumber = gr.Number
		mv.Reason = in.Reason
		if err := uow.Movements().Create(ctx, mv); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}

		if orderItem := po.Item(item.PurchaseOrderItemID); orderItem != nil {
			orderItem.Unreceive(item.Quantity)
		}
	}

	po.ApplyVoid(now)
	if err := uow.PurchaseOrders().Update(ctx, po); err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}

	gr.MarkVoided(in.ActorID, in.Reason, now)
	if err := uow.GoodsReceipts().MarkVoided(ctx, gr); err != nil {
		return fmt.Errorf("mark receipt voided: %w", err)
	}
	return nil
}
