package receiving

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/security"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/documents/purchase_order"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/registers/stock"
	"stockcore/pkg/logger"
)

// ReceiveItem is one incoming line.
type ReceiveItem struct {
	ProductID    id.ID
	WarehouseID  id.ID
	Quantity     types.Quantity
	LocationID   *id.ID
	BatchNumber  *string
	ExpiryDate   *time.Time
	SerialNumber *string
}

// ReceiveInput books Items against PurchaseOrderID. A non-empty
// IdempotencyKey makes retries return the receipt created by the first call.
type ReceiveInput struct {
	PurchaseOrderID id.ID
	Items           []ReceiveItem
	ReceivedDate    time.Time
	IdempotencyKey  string
	Notes           string
	ActorID         string
}

// plannedLine is a validated input line bound to its order line.
type plannedLine struct {
	item      ReceiveItem
	orderItem *purchase_order.Item
}

// ReceiveGoods creates a goods receipt, books every line into stock and
// advances the purchase order.
func (s *Service) ReceiveGoods(ctx context.Context, in ReceiveInput) (*goods_receipt.GoodsReceipt, error) {
	ctx, span := tracer.Start(ctx, "receiving.ReceiveGoods",
		trace.WithAttributes(
			attribute.String("purchase_order.id", in.PurchaseOrderID.String()),
			attribute.Int("items", len(in.Items)),
		))
	defer span.End()

	if err := security.Require(ctx, s.checker, in.ActorID, security.PermGoodsReceiptPost); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.ReceivedDate.IsZero() {
		in.ReceivedDate = s.clock.Now()
	}

	var number string
	if in.IdempotencyKey != "" {
		number = s.numbering.FromKey(ctx, numerator.KindGoodsReceipt, in.IdempotencyKey)
		existing, err := s.findByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			logger.Info(ctx, "goods receipt replayed", "number", number, "idempotency_key", in.IdempotencyKey)
			return replay(existing, in)
		}
	}

	err := s.store.Read(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		po, err := uow.PurchaseOrders().Get(ctx, in.PurchaseOrderID)
		if err != nil {
			return err
		}
		_, err = checkReceipt(ctx, uow, po, in)
		return err
	})
	if err != nil {
		return s.recoverStored(ctx, number, in, err)
	}

	var (
		receipt  *goods_receipt.GoodsReceipt
		replayed bool
	)
	err = s.store.Atomic(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		po, err := uow.PurchaseOrders().GetForUpdate(ctx, in.PurchaseOrderID)
		if err != nil {
			return err
		}
		// A concurrent call with the same key may have committed while we
		// waited for the order lock; its receipt wins over re-validation.
		if number != "" {
			gr, err := uow.GoodsReceipts().GetByNumber(ctx, number)
			switch {
			case err == nil:
				receipt, replayed = gr, true
				return nil
			case !apperror.IsNotFound(err):
				return err
			}
		}
		plan, err := checkReceipt(ctx, uow, po, in)
		if err != nil {
			return err
		}
		grNumber := number
		if grNumber == "" {
			if grNumber, err = s.numbering.Next(ctx, numerator.KindGoodsReceipt); err != nil {
				return fmt.Errorf("next receipt number: %w", err)
			}
		}
		receipt, err = s.receive(ctx, uow, in, po, plan, grNumber)
		return err
	})
	if err != nil {
		return s.recoverStored(ctx, number, in, err)
	}
	if replayed {
		logger.Info(ctx, "goods receipt created concurrently, returning stored copy", "number", number)
		return replay(receipt, in)
	}

	logger.Info(ctx, "goods received",
		"number", receipt.Number,
		"purchase_order_id", in.PurchaseOrderID,
		"items", len(receipt.Items))
	audit.Record(ctx, s.activity, audit.Activity{
		Action:      audit.ActionGoodsReceived,
		ActorUserID: in.ActorID,
		Entity:      "goods_receipt",
		EntityID:    receipt.ID.String(),
		Changes: map[string]any{
			"number":          receipt.Number,
			"purchaseOrderId": in.PurchaseOrderID.String(),
			"items":           len(receipt.Items),
		},
	})
	return receipt, nil
}

// recoverStored turns a failed attempt into a replay when a receipt with the
// key-derived number exists, which happens when a concurrent call with the
// same key committed first. Otherwise cause is returned unchanged.
func (s *Service) recoverStored(ctx context.Context, number string, in ReceiveInput, cause error) (*goods_receipt.GoodsReceipt, error) {
	if number == "" {
		return nil, cause
	}
	existing, err := s.findByNumber(ctx, number)
	if err != nil || existing == nil {
		return nil, cause
	}
	logger.Info(ctx, "goods receipt created concurrently, returning stored copy",
		"number", number, "cause", cause)
	return replay(existing, in)
}

// replay returns gr for a retried request. A key reused for another
// purchase order is rejected.
func replay(gr *goods_receipt.GoodsReceipt, in ReceiveInput) (*goods_receipt.GoodsReceipt, error) {
	if gr.PurchaseOrderID != in.PurchaseOrderID {
		return nil, apperror.NewIdempotencyMismatch(in.IdempotencyKey).
			WithDetail("purchase_order_id", in.PurchaseOrderID.String()).
			WithDetail("receipt_number", gr.Number)
	}
	return gr, nil
}

func (s *Service) findByNumber(ctx context.Context, number string) (*goods_receipt.GoodsReceipt, error) {
	var found *goods_receipt.GoodsReceipt
	err := s.store.Read(ctx, func(ctx context.Context, uow ledger.UnitOfWork) error {
		gr, err := uow.GoodsReceipts().GetByNumber(ctx, number)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil
			}
			return err
		}
		found = gr
		return nil
	})
	return found, err
}

// checkReceipt validates every line against po and the catalogs. Quantities
// are checked cumulatively so two lines cannot together exceed an order line.
func checkReceipt(ctx context.Context, uow ledger.UnitOfWork, po *purchase_order.PurchaseOrder, in ReceiveInput) ([]plannedLine, error) {
	if err := po.RequireReceivable(); err != nil {
		return nil, err
	}

	products := make(map[id.ID]*nomenclature.Product)
	pending := make(map[id.ID]types.Quantity)
	serials := make(map[string]struct{})
	plan := make([]plannedLine, 0, len(in.Items))

	for i, item := range in.Items {
		if err := checkDestination(ctx, uow, item); err != nil {
			return nil, err
		}

		orderItem := po.MatchItem(item.ProductID, pending)
		if orderItem == nil {
			return nil, apperror.NewValidation("product is not on the purchase order").
				WithDetail("index", i).
				WithDetail("productId", item.ProductID.String())
		}
		if !item.Quantity.IsPositive() {
			return nil, apperror.NewValidation("received quantity must be positive").
				WithDetail("index", i)
		}
		remaining := orderItem.Remaining() - pending[orderItem.ID]
		if item.Quantity > remaining {
			return nil, apperror.NewOverReceipt(item.ProductID, item.Quantity, types.Max(remaining, 0))
		}
		pending[orderItem.ID] += item.Quantity

		product, ok := products[item.ProductID]
		if !ok {
			p, err := uow.Products().Get(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			product = p
			products[item.ProductID] = p
		}
		if err := product.ValidateTracking(nomenclature.Tracking{
			BatchNumber:  item.BatchNumber,
			ExpiryDate:   item.ExpiryDate,
			SerialNumber: item.SerialNumber,
		}); err != nil {
			return nil, err
		}
		if item.SerialNumber != nil && strings.TrimSpace(*item.SerialNumber) != "" {
			if err := checkSerial(ctx, uow, product, item, serials); err != nil {
				return nil, err
			}
		}

		plan = append(plan, plannedLine{item: item, orderItem: orderItem})
	}
	return plan, nil
}

func checkDestination(ctx context.Context, uow ledger.UnitOfWork, item ReceiveItem) error {
	wh, err := uow.Warehouses().Get(ctx, item.WarehouseID)
	if err != nil {
		return err
	}
	if err := wh.RequireActive(); err != nil {
		return err
	}
	if item.LocationID == nil {
		return nil
	}
	loc, err := uow.Warehouses().GetLocation(ctx, *item.LocationID)
	if err != nil {
		return err
	}
	return loc.RequireIn(item.WarehouseID)
}

func checkSerial(ctx context.Context, uow ledger.UnitOfWork, product *nomenclature.Product, item ReceiveItem, seen map[string]struct{}) error {
	serial := *item.SerialNumber
	if product.TrackBySerialNumber && item.Quantity != types.NewQuantity(1) {
		return apperror.NewValidation("serial-tracked lines must have quantity 1").
			WithDetail("serialNumber", serial)
	}
	if _, dup := seen[serial]; dup {
		return apperror.NewDuplicate("stock_bucket", "serial_number", serial)
	}
	seen[serial] = struct{}{}

	exists, err := uow.Buckets().SerialExists(ctx, serial)
	if err != nil {
		return fmt.Errorf("check serial: %w", err)
	}
	if exists {
		return apperror.NewDuplicate("stock_bucket", "serial_number", serial)
	}
	return nil
}

func (s *Service) receive(ctx context.Context, uow ledger.UnitOfWork, in ReceiveInput, po *purchase_order.PurchaseOrder, plan []plannedLine, number string) (*goods_receipt.GoodsReceipt, error) {
	now := s.clock.Now()

	txNumber, err := s.numbering.Next(ctx, numerator.KindReceiptTransaction)
	if err != nil {
		return nil, fmt.Errorf("next receipt transaction number: %w", err)
	}
	receipt := &goods_receipt.GoodsReceipt{
		ID:              id.New(),
		Number:          number,
		PurchaseOrderID: po.ID,
		ReceivedDate:    types.DateOnly(in.ReceivedDate),
		Notes:           in.Notes,
		ActorID:         in.ActorID,
		CreatedAt:       now,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		receipt.IdempotencyKey = &key
	}

	tx := stock.NewTransaction(txNumber, stock.MovementPurchaseReceipt, "goods_receipt", receipt.ID.String(), in.Notes, in.ActorID, now)
	if err := uow.Transactions().Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	receipt.TransactionID = tx.ID
	numbers := stock.NewMovementNumbers(txNumber)

	for i, line := range plan {
		item := line.item
		price := line.orderItem.UnitPrice
		key := stock.BucketKey{
			ProductID:    item.ProductID,
			WarehouseID:  item.WarehouseID,
			LocationID:   item.LocationID,
			BatchNumber:  item.BatchNumber,
			SerialNumber: item.SerialNumber,
		}

		bucket, err := uow.Buckets().FindByKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("find bucket: %w", err)
		}
		if bucket != nil {
			bucket.Quantity += item.Quantity
			bucket.UnitCost = &price
			if bucket.ExpiryDate == nil {
				bucket.ExpiryDate = types.DateOnlyPtr(item.ExpiryDate)
			}
			bucket.UpdatedAt = now
			err = uow.Buckets().Update(ctx, bucket)
		} else {
			bucket = stock.NewBucket(key, item.Quantity, &price, item.ExpiryDate, now)
			err = uow.Buckets().Create(ctx, bucket)
		}
		if err != nil {
			return nil, fmt.Errorf("book line %d: %w", i+1, err)
		}

		mv := stock.Inbound(tx, numbers.Next(), stock.MovementPurchaseReceipt, bucket, item.Quantity)
		mv.ReferenceNumber = number
		if err := uow.Movements().Create(ctx, mv); err != nil {
			return nil, fmt.Errorf("create movement: %w", err)
		}

		line.orderItem.ReceivedQuantity += item.Quantity

		receipt.Items = append(receipt.Items, goods_receipt.Item{
			ID:                  id.New(),
			GoodsReceiptID:      receipt.ID,
			PurchaseOrderItemID: line.orderItem.ID,
			ProductID:           item.ProductID,
			WarehouseID:         item.WarehouseID,
			LocationID:          item.LocationID,
			BatchNumber:         item.BatchNumber,
			ExpiryDate:          types.DateOnlyPtr(item.ExpiryDate),
			SerialNumber:        item.SerialNumber,
			Quantity:            item.Quantity,
			UnitCost:            price,
			BucketID:            bucket.ID,
			Position:            i + 1,
		})
	}

	po.ApplyReceipt(in.ReceivedDate, now)
	if err := uow.PurchaseOrders().Update(ctx, po); err != nil {
		return nil, fmt.Errorf("update purchase order: %w", err)
	}
	if err := uow.GoodsReceipts().Create(ctx, receipt); err != nil {
		return nil, fmt.Errorf("create goods receipt: %w", err)
	}
	return receipt, nil
}
