package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	goodsReceiptsTable     = "doc_goods_receipts"
	goodsReceiptItemsTable = "doc_goods_receipt_items"
)

// GoodsReceiptRepo implements goods_receipt.Repository.
type GoodsReceiptRepo struct {
	*BaseDocumentRepo[goods_receipt.GoodsReceipt, goods_receipt.Item]
}

var _ goods_receipt.Repository = (*GoodsReceiptRepo)(nil)

// NewGoodsReceiptRepo creates a new goods receipt repository.
func NewGoodsReceiptRepo(txm *postgres.TxManager) *GoodsReceiptRepo {
	return &GoodsReceiptRepo{
		BaseDocumentRepo: newBaseDocumentRepo[goods_receipt.GoodsReceipt, goods_receipt.Item](
			txm, "goods_receipt", goodsReceiptsTable, goodsReceiptItemsTable, "goods_receipt_id"),
	}
}

func (r *GoodsReceiptRepo) load(ctx context.Context, where squirrel.Eq, forUpdate bool, key any) (*goods_receipt.GoodsReceipt, error) {
	gr, err := r.getHeader(ctx, where, forUpdate, key)
	if err != nil {
		return nil, err
	}
	if gr.Items, err = r.getLines(ctx, gr.ID); err != nil {
		return nil, err
	}
	return gr, nil
}

// Create inserts header and items. The unique index on number surfaces as a
// DUPLICATE_ENTRY error on field "number".
func (r *GoodsReceiptRepo) Create(ctx context.Context, gr *goods_receipt.GoodsReceipt) error {
	return r.insert(ctx, gr, gr.Items)
}

func (r *GoodsReceiptRepo) Get(ctx context.Context, receiptID id.ID) (*goods_receipt.GoodsReceipt, error) {
	return r.load(ctx, squirrel.Eq{"id": receiptID}, false, receiptID)
}

func (r *GoodsReceiptRepo) GetForUpdate(ctx context.Context, receiptID id.ID) (*goods_receipt.GoodsReceipt, error) {
	return r.load(ctx, squirrel.Eq{"id": receiptID}, true, receiptID)
}

func (r *GoodsReceiptRepo) GetByNumber(ctx context.Context, number string) (*goods_receipt.GoodsReceipt, error) {
	return r.load(ctx, squirrel.Eq{"number": number}, false, number)
}

// MarkVoided sets the void columns. The voided = false guard makes a
// second void of the same row a no-op that reports ALREADY_VOIDED.
func (r *GoodsReceiptRepo) MarkVoided(ctx context.Context, gr *goods_receipt.GoodsReceipt) error {
	sql, args, err := r.Builder().Update(goodsReceiptsTable).
		Set("voided", true).
		Set("voided_at", gr.VoidedAt).
		Set("voided_by", gr.VoidedBy).
		Set("void_reason", gr.VoidReason).
		Where(squirrel.Eq{"id": gr.ID, "voided": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("void goods receipt", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewAlreadyVoided("goods_receipt", gr.ID)
	}
	return nil
}
