package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/kitting"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// KittingService is the kit engine used by KitHandler.
type KittingService interface {
	SetKitBOM(ctx context.Context, in kitting.SetBOMInput) (*kitting.BOMResult, error)
	AssembleKit(ctx context.Context, in kitting.AssembleInput) (*kitting.AssemblyResult, error)
	DisassembleKit(ctx context.Context, in kitting.DisassembleInput) (*kitting.DisassemblyResult, error)
}

// KitHandler serves bill-of-materials and kit assembly endpoints.
type KitHandler struct {
	*BaseHandler
	service KittingService
}

// NewKitHandler creates a kit handler.
func NewKitHandler(base *BaseHandler, service KittingService) *KitHandler {
	return &KitHandler{BaseHandler: base, service: service}
}

// SetBOM replaces the kit's bill of materials.
// PUT /api/v1/kits/:id/bom
func (h *KitHandler) SetBOM(c *gin.Context) {
	kitID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.SetBOMRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.SetKitBOM(c.Request.Context(), req.ToInput(kitID, h.GetUserID(c)))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Assemble builds kits from components.
// POST /api/v1/kits/:id/assemble
func (h *KitHandler) Assemble(c *gin.Context) {
	kitID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AssembleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.AssembleKit(c.Request.Context(), req.ToInput(kitID, h.GetUserID(c)))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// Disassemble breaks kits from a kit bucket back into components.
// POST /api/v1/kit-stock/:id/disassemble
func (h *KitHandler) Disassemble(c *gin.Context) {
	bucketID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.DisassembleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.DisassembleKit(c.Request.Context(), req.ToInput(bucketID, h.GetUserID(c)))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}
