package kitting

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/security"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/registers/stock"
	"stockcore/pkg/logger"
)

// DisassembleInput breaks Quantity kits out of the kit bucket BucketID.
type DisassembleInput struct {
	BucketID id.ID
	Quantity types.Quantity
	Notes    string
	ActorID  string
}

// ReturnedComponent is one component put back into stock.
type ReturnedComponent struct {
	ComponentID id.ID          `json:"componentId"`
	Name        string         `json:"name"`
	Quantity    types.Quantity `json:"quantity"`
	BucketID    id.ID          `json:"bucketId"`
}

// DisassemblyResult describes a committed disassembly.
type DisassemblyResult struct {
	Quantity          types.Quantity      `json:"quantity"`
	Components        []ReturnedComponent `json:"components"`
	TransactionNumber string              `json:"transactionNumber"`
	Bucket            *stock.Bucket       `json:"bucket"`
}

// DisassembleKit takes kits out of a bucket and returns their components to
// the same warehouse and location. Returned stock carries no batch, serial,
// expiry or cost.
func (s *Service) DisassembleKit(ctx context.Context, in DisassembleInput) (*DisassemblyResult, error) {
	ctx, span := tracer.Start(ctx, "kitting.DisassembleKit",
		trace.WithAttributes(
			attribute.String("bucket.id", in.BucketID.String()),
			attribute.String("quantity", in.Quantity.String()),
		))
	defer span.End()

	if err := security.Require(ctx, s.checker, in.ActorID, security.PermKitDisassemble); err != nil {
		return nil, err
	}
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("disassembly quantity must be positive").
			WithDetail("quantity", in.Quantity.String())
	}

	err := s.store.Read(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		_, _, _, err := checkDisassembly(ctx, uow, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	var result *DisassemblyResult
	err = s.store.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		bucket, kit, bom, err := checkDisassembly(ctx, uow, in)
		if err != nil {
			return err
		}
		result, err = s.disassemble(ctx, uow, in, bucket, kit, bom)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "kit disassembled",
		"bucket_id", in.BucketID,
		"quantity", result.Quantity,
		"components", len(result.Components),
		"transaction", result.TransactionNumber)
	audit.Record(ctx, s.activity, audit.Activity{
		Action:      audit.ActionKitDisassembled,
		ActorUserID: in.ActorID,
		Entity:      "kit",
		EntityID:    result.Bucket.ProductID.String(),
		Changes: map[string]any{
			"transactionNumber": result.TransactionNumber,
			"bucketId":          in.BucketID.String(),
			"quantity":          result.Quantity.String(),
		},
	})
	return result, nil
}

func checkDisassembly(ctx context.Context, uow ledger.UnitOfWork, in DisassembleInput) (*stock.Bucket, *nomenclature.Product, []nomenclature.KitComponent, error) {
	bucket, err := uow.Buckets().GetForUpdate(ctx, in.BucketID)
	if err != nil {
		return nil, nil, nil, err
	}
	if bucket.Status != stock.BucketAvailable {
		return nil, nil, nil, apperror.NewInvalidState("stock_bucket", bucket.Status, "only AVAILABLE buckets can be disassembled")
	}
	if avail := bucket.Available(); avail < in.Quantity {
		return nil, nil, nil, apperror.NewInsufficientStock(bucket.ProductID, in.Quantity, avail).
			WithDetail("bucketId", bucket.ID.String())
	}
	kit, bom, err := loadKit(ctx, uow, bucket.ProductID)
	if err != nil {
		return nil, nil, nil, err
	}
	return bucket, kit, bom, nil
}

func (s *Service) disassemble(ctx context.Context, uow ledger.UnitOfWork, in DisassembleInput, bucket *stock.Bucket, kit *nomenclature.Product, bom []nomenclature.KitComponent) (*DisassemblyResult, error) {
	now := s.clock.Now()

	number, err := s.numbering.Next(ctx, numerator.KindDisassembly)
	if err != nil {
		return nil, fmt.Errorf("next disassembly number: %w", err)
	}
	tx := stock.NewTransaction(number, stock.MovementDisassembly, "kit", kit.ID.String(), in.Notes, in.ActorID, now)
	if err := uow.Transactions().Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	numbers := stock.NewMovementNumbers(number)

	bucket.Quantity -= in.Quantity
	bucket.UpdatedAt = now
	if err := uow.Buckets().Update(ctx, bucket); err != nil {
		return nil, fmt.Errorf("update kit bucket: %w", err)
	}
	out := stock.Outbound(tx, numbers.Next(), stock.MovementDisassembly, bucket, in.Quantity)
	out.ReferenceNumber = number
	out.Reason = "kit disassembly"
	if err := uow.Movements().Create(ctx, out); err != nil {
		return nil, fmt.Errorf("create movement: %w", err)
	}

	returned := make([]ReturnedComponent, 0, len(bom))
	for _, c := range bom {
		qty := c.Quantity.Mul(in.Quantity)
		key := stock.BucketKey{
			ProductID:   c.ComponentID,
			WarehouseID: bucket.WarehouseID,
			LocationID:  bucket.LocationID,
		}
		target, err := uow.Buckets().FindByKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("find component bucket: %w", err)
		}
		if target != nil {
			target.Quantity += qty
			target.UpdatedAt = now
			err = uow.Buckets().Update(ctx, target)
		} else {
			target = stock.NewBucket(key, qty, nil, nil, now)
			err = uow.Buckets().Create(ctx, target)
		}
		if err != nil {
			return nil, fmt.Errorf("return component %s: %w", c.ComponentID, err)
		}

		mv := stock.Inbound(tx, numbers.Next(), stock.MovementDisassembly, target, qty)
		mv.ReferenceNumber = number
		mv.Reason = "kit disassembly"
		if err := uow.Movements().Create(ctx, mv); err != nil {
			return nil, fmt.Errorf("create movement: %w", err)
		}

		returned = append(returned, ReturnedComponent{
			ComponentID: c.ComponentID,
			Name:        c.ComponentName,
			Quantity:    qty,
			BucketID:    target.ID,
		})
	}

	return &DisassemblyResult{
		Quantity:          in.Quantity,
		Components:        returned,
		TransactionNumber: number,
		Bucket:            bucket,
	}, nil
}
