package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/receiving"
	"stockcore/internal/infrastructure/http/v1/dto"
)

const headerIdempotencyKey = "X-Idempotency-Key"

// ReceivingService is the receipt engine used by ReceiptHandler.
type ReceivingService interface {
	ReceiveGoods(ctx context.Context, in receiving.ReceiveInput) (*goods_receipt.GoodsReceipt, error)
	VoidGoodsReceipt(ctx context.Context, in receiving.VoidInput) error
}

// ReceiptHandler serves goods receipt endpoints.
type ReceiptHandler struct {
	*BaseHandler
	service ReceivingService
}

// NewReceiptHandler creates a receipt handler.
func NewReceiptHandler(base *BaseHandler, service ReceivingService) *ReceiptHandler {
	return &ReceiptHandler{BaseHandler: base, service: service}
}

// Receive books goods against a purchase order. The X-Idempotency-Key header
// makes retries return the receipt created by the first call.
// POST /api/v1/purchase-orders/:id/receipts
func (h *ReceiptHandler) Receive(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	key := c.GetHeader(headerIdempotencyKey)
	gr, err := h.service.ReceiveGoods(c.Request.Context(), req.ToInput(orderID, key, h.GetUserID(c)))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, gr)
}

// Void reverses a goods receipt.
// POST /api/v1/goods-receipts/:id/void
func (h *ReceiptHandler) Void(c *gin.Context) {
	receiptID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.VoidRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.VoidGoodsReceipt(c.Request.Context(), req.ToInput(receiptID, h.GetUserID(c))); err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.VoidResponse{ReceiptID: receiptID, Voided: true, Reason: req.Reason})
}
