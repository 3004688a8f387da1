package kitting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
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

// AssembleInput asks for Quantity kits to be built in WarehouseID.
type AssembleInput struct {
	KitID        id.ID
	WarehouseID  id.ID
	Quantity     types.Quantity
	LocationID   *id.ID
	BatchNumber  *string
	ExpiryDate   *time.Time
	SerialNumber *string
	Notes        string
	ActorID      string
}

// ConsumedComponent is what one BOM row drew from stock.
type ConsumedComponent struct {
	ComponentID id.ID           `json:"componentId"`
	Quantity    types.Quantity  `json:"quantity"`
	Cost        decimal.Decimal `json:"cost"`
}

// AssemblyResult describes a committed assembly.
type AssemblyResult struct {
	Quantity          types.Quantity      `json:"quantity"`
	UnitCost          types.MinorUnits    `json:"unitCost"`
	Bucket            *stock.Bucket       `json:"bucket"`
	TransactionNumber string              `json:"transactionNumber"`
	Consumed          []ConsumedComponent `json:"consumed"`
}

// AssembleKit consumes components first-expired-first-out and books the kits
// into one bucket at a cost equal to what was consumed.
func (s *Service) AssembleKit(ctx context.Context, in AssembleInput) (*AssemblyResult, error) {
	ctx, span := tracer.Start(ctx, "kitting.AssembleKit",
		trace.WithAttributes(
			attribute.String("kit.id", in.KitID.String()),
			attribute.String("warehouse.id", in.WarehouseID.String()),
			attribute.String("quantity", in.Quantity.String()),
		))
	defer span.End()

	if err := security.Require(ctx, s.checker, in.ActorID, security.PermKitAssemble); err != nil {
		return nil, err
	}
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("assembly quantity must be positive").
			WithDetail("quantity", in.Quantity.String())
	}

	err := s.store.Read(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		_, _, err := s.checkAssembly(ctx, uow, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	var result *AssemblyResult
	err = s.store.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		kit, bom, err := s.checkAssembly(ctx, uow, in)
		if err != nil {
			return err
		}
		result, err = s.assemble(ctx, uow, in, kit, bom)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "kit assembled",
		"kit_id", in.KitID,
		"warehouse_id", in.WarehouseID,
		"quantity", result.Quantity,
		"unit_cost", result.UnitCost,
		"transaction", result.TransactionNumber)
	audit.Record(ctx, s.activity, audit.Activity{
		Action:      audit.ActionKitAssembled,
		ActorUserID: in.ActorID,
		Entity:      "kit",
		EntityID:    in.KitID.String(),
		Changes: map[string]any{
			"transactionNumber": result.TransactionNumber,
			"warehouseId":       in.WarehouseID.String(),
			"quantity":          result.Quantity.String(),
			"unitCost":          int64(result.UnitCost),
			"bucketId":          result.Bucket.ID.String(),
		},
	})
	return result, nil
}

// checkAssembly verifies every precondition, including component availability
// for the whole BOM, without writing anything.
func (s *Service) checkAssembly(ctx context.Context, uow ledger.UnitOfWork, in AssembleInput) (*nomenclature.Product, []nomenclature.KitComponent, error) {
	kit, bom, err := loadKit(ctx, uow, in.KitID)
	if err != nil {
		return nil, nil, err
	}
	if !kit.IsActive {
		return nil, nil, apperror.NewNotFound("product", kit.ID).WithDetail("reason", "inactive")
	}

	wh, err := uow.Warehouses().Get(ctx, in.WarehouseID)
	if err != nil {
		return nil, nil, err
	}
	if err := wh.RequireActive(); err != nil {
		return nil, nil, err
	}
	if in.LocationID != nil {
		loc, err := uow.Warehouses().GetLocation(ctx, *in.LocationID)
		if err != nil {
			return nil, nil, err
		}
		if err := loc.RequireIn(in.WarehouseID); err != nil {
			return nil, nil, err
		}
	}

	if kit.TrackBySerialNumber && in.Quantity != types.NewQuantity(1) {
		return nil, nil, apperror.NewValidation("serial-tracked kits are assembled one at a time").
			WithDetail("quantity", in.Quantity.String())
	}
	if err := kit.ValidateTracking(nomenclature.Tracking{
		BatchNumber:  in.BatchNumber,
		ExpiryDate:   in.ExpiryDate,
		SerialNumber: in.SerialNumber,
	}); err != nil {
		return nil, nil, err
	}
	if kit.TrackBySerialNumber {
		exists, err := uow.Buckets().SerialExists(ctx, *in.SerialNumber)
		if err != nil {
			return nil, nil, fmt.Errorf("check serial: %w", err)
		}
		if exists {
			return nil, nil, apperror.NewDuplicate("stock_bucket", "serial_number", *in.SerialNumber)
		}
	}

	selector := ledger.Selector(uow)
	for _, c := range bom {
		required := c.Quantity.Mul(in.Quantity)
		available, err := selector.Available(ctx, c.ComponentID, in.WarehouseID)
		if err != nil {
			return nil, nil, err
		}
		if available < required {
			return nil, nil, apperror.NewInsufficientStock(c.ComponentID, required, available).
				WithDetail("componentName", c.ComponentName)
		}
	}
	return kit, bom, nil
}

func (s *Service) assemble(ctx context.Context, uow ledger.UnitOfWork, in AssembleInput, kit *nomenclature.Product, bom []nomenclature.KitComponent) (*AssemblyResult, error) {
	now := s.clock.Now()

	number, err := s.numbering.Next(ctx, numerator.KindAssembly)
	if err != nil {
		return nil, fmt.Errorf("next assembly number: %w", err)
	}
	tx := stock.NewTransaction(number, stock.MovementAssembly, "kit", kit.ID.String(), in.Notes, in.ActorID, now)
	if err := uow.Transactions().Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	numbers := stock.NewMovementNumbers(number)
	selector := ledger.Selector(uow)
	total := decimal.Zero
	consumed := make([]ConsumedComponent, 0, len(bom))
	for _, c := range bom {
		res, err := selector.Consume(ctx, stock.ConsumeRequest{
			ProductID:       c.ComponentID,
			WarehouseID:     in.WarehouseID,
			Quantity:        c.Quantity.Mul(in.Quantity),
			Type:            stock.MovementAssembly,
			Transaction:     tx,
			Numbers:         numbers,
			ReferenceNumber: number,
			Reason:          "kit assembly",
			Now:             now,
		})
		if err != nil {
			return nil, err
		}
		total = total.Add(res.ConsumedCost)
		consumed = append(consumed, ConsumedComponent{
			ComponentID: c.ComponentID,
			Quantity:    c.Quantity.Mul(in.Quantity),
			Cost:        res.ConsumedCost,
		})
	}

	unitCost := types.UnitCost(total, in.Quantity)
	key := stock.BucketKey{
		ProductID:    kit.ID,
		WarehouseID:  in.WarehouseID,
		LocationID:   in.LocationID,
		BatchNumber:  in.BatchNumber,
		SerialNumber: in.SerialNumber,
	}
	bucket, err := uow.Buckets().FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find kit bucket: %w", err)
	}
	if bucket != nil {
		blended := types.WeightedUnitCost(bucket.Quantity, bucket.UnitCost, in.Quantity, unitCost)
		bucket.UnitCost = &blended
		bucket.Quantity += in.Quantity
		bucket.UpdatedAt = now
		if err := uow.Buckets().Update(ctx, bucket); err != nil {
			return nil, fmt.Errorf("update kit bucket: %w", err)
		}
	} else {
		bucket = stock.NewBucket(key, in.Quantity, &unitCost, in.ExpiryDate, now)
		if err := uow.Buckets().Create(ctx, bucket); err != nil {
			return nil, fmt.Errorf("create kit bucket: %w", err)
		}
	}

	out := stock.Inbound(tx, numbers.Next(), stock.MovementAssembly, bucket, in.Quantity)
	out.ReferenceNumber = number
	out.Reason = "kit assembly"
	if err := uow.Movements().Create(ctx, out); err != nil {
		return nil, fmt.Errorf("create movement: %w", err)
	}

	return &AssemblyResult{
		Quantity:          in.Quantity,
		UnitCost:          unitCost,
		Bucket:            bucket,
		TransactionNumber: number,
		Consumed:          consumed,
	}, nil
}
