package memory

import (
	"context"
	"sort"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalogs/nomenclature"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/documents/purchase_order"
	"stockcore/internal/domain/registers/stock"
)

// --- buckets ---

type bucketRepo struct{ u *unitOfWork }

func (r bucketRepo) Get(_ context.Context, bucketID id.ID) (*stock.Bucket, error) {
	b, ok := r.u.st.buckets[bucketID]
	if !ok {
		return nil, apperror.NewNotFound("stock_bucket", bucketID)
	}
	return b.Clone(), nil
}

func (r bucketRepo) GetForUpdate(ctx context.Context, bucketID id.ID) (*stock.Bucket, error) {
	return r.Get(ctx, bucketID)
}

func (r bucketRepo) ListAvailable(_ context.Context, productID, warehouseID id.ID) ([]*stock.Bucket, error) {
	var out []*stock.Bucket
	for _, b := range r.u.st.buckets {
		if b.ProductID == productID && b.WarehouseID == warehouseID && b.Status == stock.BucketAvailable {
			out = append(out, b.Clone())
		}
	}
	stock.SortForConsumption(out)
	return out, nil
}

func (r bucketRepo) FindByKey(_ context.Context, key stock.BucketKey) (*stock.Bucket, error) {
	var found *stock.Bucket
	for _, b := range r.u.st.buckets {
		if b.Status != stock.BucketAvailable || !key.Matches(b) {
			continue
		}
		if found == nil || b.CreatedAt.Before(found.CreatedAt) {
			found = b
		}
	}
	if found == nil {
		return nil, nil
	}
	return found.Clone(), nil
}

func (r bucketRepo) SerialExists(_ context.Context, serial string) (bool, error) {
	for _, b := range r.u.st.buckets {
		if b.SerialNumber != nil && *b.SerialNumber == serial {
			return true, nil
		}
	}
	return false, nil
}

func (r bucketRepo) Create(ctx context.Context, b *stock.Bucket) error {
	if err := r.u.check("bucket.create"); err != nil {
		return err
	}
	if _, ok := r.u.st.buckets[b.ID]; ok {
		return apperror.NewDuplicate("stock_bucket", "id", b.ID.String())
	}
	if b.SerialNumber != nil {
		exists, _ := r.SerialExists(ctx, *b.SerialNumber)
		if exists {
			return apperror.NewDuplicate("stock_bucket", "serial_number", *b.SerialNumber)
		}
	}
	r.u.st.buckets[b.ID] = b.Clone()
	return nil
}

func (r bucketRepo) Update(_ context.Context, b *stock.Bucket) error {
	if err := r.u.check("bucket.update"); err != nil {
		return err
	}
	if _, ok := r.u.st.buckets[b.ID]; !ok {
		return apperror.NewNotFound("stock_bucket", b.ID)
	}
	r.u.st.buckets[b.ID] = b.Clone()
	return nil
}

// --- movements ---

type movementRepo struct{ u *unitOfWork }

func (r movementRepo) Create(_ context.Context, m *stock.Movement) error {
	if err := r.u.check("movement.create"); err != nil {
		return err
	}
	for _, existing := range r.u.st.movements {
		if existing.Number == m.Number {
			return apperror.NewDuplicate("stock_movement", "number", m.Number)
		}
	}
	c := *m
	r.u.st.movements = append(r.u.st.movements, &c)
	return nil
}

func (r movementRepo) ListByTransaction(_ context.Context, transactionID id.ID) ([]*stock.Movement, error) {
	var out []*stock.Movement
	for _, m := range r.u.st.movements {
		if m.TransactionID != nil && *m.TransactionID == transactionID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- transactions ---

type transactionRepo struct{ u *unitOfWork }

func (r transactionRepo) Create(_ context.Context, t *stock.Transaction) error {
	if err := r.u.check("transaction.create"); err != nil {
		return err
	}
	for _, existing := range r.u.st.transactions {
		if existing.Number == t.Number {
			return apperror.NewDuplicate("inventory_transaction", "number", t.Number)
		}
	}
	c := *t
	r.u.st.transactions = append(r.u.st.transactions, &c)
	return nil
}

func (r transactionRepo) GetByNumber(_ context.Context, number string) (*stock.Transaction, error) {
	for _, t := range r.u.st.transactions {
		if t.Number == number {
			c := *t
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound("inventory_transaction", number)
}

// --- products and kits ---

type productRepo struct{ u *unitOfWork }

func (r productRepo) Get(_ context.Context, productID id.ID) (*nomenclature.Product, error) {
	p, ok := r.u.st.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	c := *p
	return &c, nil
}

func (r productRepo) ListKitComponents(_ context.Context, kitID id.ID) ([]nomenclature.KitComponent, error) {
	rows := r.u.st.kitComponents[kitID]
	out := make([]nomenclature.KitComponent, 0, len(rows))
	for _, row := range rows {
		if p, ok := r.u.st.products[row.ComponentID]; ok {
			row.ComponentName = p.Name
			row.ComponentSKU = p.SKU
			row.ComponentUnit = p.Unit
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r productRepo) ListKitIDs(_ context.Context) ([]id.ID, error) {
	var out []id.ID
	for _, p := range r.u.st.products {
		if p.IsKit {
			out = append(out, p.ID)
		}
	}
	return out, nil
}

func (r productRepo) ListKitEdges(_ context.Context) ([]nomenclature.KitEdge, error) {
	var out []nomenclature.KitEdge
	for kitID, rows := range r.u.st.kitComponents {
		for _, row := range rows {
			out = append(out, nomenclature.KitEdge{KitID: kitID, ComponentID: row.ComponentID})
		}
	}
	return out, nil
}

func (r productRepo) ReplaceKitComponents(_ context.Context, kitID id.ID, rows []nomenclature.KitComponent) error {
	if err := r.u.check("kit_component.replace"); err != nil {
		return err
	}
	stored := make([]nomenclature.KitComponent, len(rows))
	copy(stored, rows)
	if len(stored) == 0 {
		delete(r.u.st.kitComponents, kitID)
		return nil
	}
	r.u.st.kitComponents[kitID] = stored
	return nil
}

func (r productRepo) Create(_ context.Context, p *nomenclature.Product) error {
	if err := r.u.check("product.create"); err != nil {
		return err
	}
	for _, existing := range r.u.st.products {
		if existing.SKU == p.SKU {
			return apperror.NewDuplicate("product", "sku", p.SKU)
		}
	}
	c := *p
	r.u.st.products[p.ID] = &c
	return nil
}

// --- warehouses ---

type warehouseRepo struct{ u *unitOfWork }

func (r warehouseRepo) Get(_ context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	w, ok := r.u.st.warehouses[warehouseID]
	if !ok {
		return nil, apperror.NewNotFound("warehouse", warehouseID)
	}
	c := *w
	return &c, nil
}

func (r warehouseRepo) GetLocation(_ context.Context, locationID id.ID) (*warehouse.Location, error) {
	l, ok := r.u.st.locations[locationID]
	if !ok {
		return nil, apperror.NewNotFound("location", locationID)
	}
	c := *l
	return &c, nil
}

func (r warehouseRepo) Create(_ context.Context, w *warehouse.Warehouse) error {
	if err := r.u.check("warehouse.create"); err != nil {
		return err
	}
	c := *w
	r.u.st.warehouses[w.ID] = &c
	return nil
}

func (r warehouseRepo) CreateLocation(_ context.Context, l *warehouse.Location) error {
	if err := r.u.check("location.create"); err != nil {
		return err
	}
	c := *l
	r.u.st.locations[l.ID] = &c
	return nil
}

// --- purchase orders ---

type orderRepo struct{ u *unitOfWork }

func (r orderRepo) Get(_ context.Context, orderID id.ID) (*purchase_order.PurchaseOrder, error) {
	po, ok := r.u.st.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("purchase_order", orderID)
	}
	return po.Clone(), nil
}

func (r orderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*purchase_order.PurchaseOrder, error) {
	return r.Get(ctx, orderID)
}

func (r orderRepo) Update(_ context.Context, po *purchase_order.PurchaseOrder) error {
	if err := r.u.check("purchase_order.update"); err != nil {
		return err
	}
	if _, ok := r.u.st.orders[po.ID]; !ok {
		return apperror.NewNotFound("purchase_order", po.ID)
	}
	r.u.st.orders[po.ID] = po.Clone()
	return nil
}

func (r orderRepo) Create(_ context.Context, po *purchase_order.PurchaseOrder) error {
	if err := r.u.check("purchase_order.create"); err != nil {
		return err
	}
	r.u.st.orders[po.ID] = po.Clone()
	return nil
}

// --- goods receipts ---

type receiptRepo struct{ u *unitOfWork }

func (r receiptRepo) Create(_ context.Context, gr *goods_receipt.GoodsReceipt) error {
	if err := r.u.check("goods_receipt.create"); err != nil {
		return err
	}
	for _, existing := range r.u.st.receipts {
		if existing.Number == gr.Number {
			return apperror.NewDuplicate("goods_receipt", "number", gr.Number)
		}
	}
	r.u.st.receipts[gr.ID] = gr.Clone()
	return nil
}

func (r receiptRepo) Get(_ context.Context, receiptID id.ID) (*goods_receipt.GoodsReceipt, error) {
	gr, ok := r.u.st.receipts[receiptID]
	if !ok {
		return nil, apperror.NewNotFound("goods_receipt", receiptID)
	}
	return gr.Clone(), nil
}

func (r receiptRepo) GetForUpdate(ctx context.Context, receiptID id.ID) (*goods_receipt.GoodsReceipt, error) {
	return r.Get(ctx, receiptID)
}

func (r receiptRepo) GetByNumber(_ context.Context, number string) (*goods_receipt.GoodsReceipt, error) {
	for _, gr := range r.u.st.receipts {
		if gr.Number == number {
			return gr.Clone(), nil
		}
	}
	return nil, apperror.NewNotFound("goods_receipt", number)
}

func (r receiptRepo) MarkVoided(_ context.Context, gr *goods_receipt.GoodsReceipt) error {
	if err := r.u.check("goods_receipt.void"); err != nil {
		return err
	}
	stored, ok := r.u.st.receipts[gr.ID]
	if !ok {
		return apperror.NewNotFound("goods_receipt", gr.ID)
	}
	c := stored.Clone()
	c.Voided = gr.Voided
	c.VoidedAt = gr.VoidedAt
	c.VoidedBy = gr.VoidedBy
	c.VoidReason = gr.VoidReason
	r.u.st.receipts[gr.ID] = c
	return nil
}
