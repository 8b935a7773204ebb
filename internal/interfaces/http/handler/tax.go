package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apptax "github.com/taxflow/backend/internal/application/tax"
	"github.com/taxflow/backend/internal/interfaces/http/dto"
)

// TaxHandler serves tax computation and document finalization endpoints
type TaxHandler struct {
	BaseHandler
	engine   *apptax.Engine
	finalize *apptax.FinalizeService
	logger   *zap.Logger
}

// NewTaxHandler creates a new tax handler
func NewTaxHandler(engine *apptax.Engine, finalize *apptax.FinalizeService, logger *zap.Logger) *TaxHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaxHandler{
		engine:   engine,
		finalize: finalize,
		logger:   logger,
	}
}

// Compute diffs the submitted invoice against recorded history and
// returns the tax lines produced for the uncovered portions.
func (h *TaxHandler) Compute(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req dto.ComputeTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lines, err := h.engine.Compute(c.Request.Context(), req.ToDomain(tenantID))
	if err != nil {
		h.logger.Warn("tax computation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("invoice_id", req.Invoice.ID.String()),
			zap.Error(err))
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewComputeTaxResponse(req.Invoice.ID, req.DryRun, lines))
}

// CommitInvoice replays every successful tax call recorded for the
// invoice against the document service, committing the documents.
func (h *TaxHandler) CommitInvoice(c *gin.Context) {
	h.finalizeInvoice(c, h.finalize.CommitInvoice)
}

// VoidInvoice voids every previously committed tax document recorded
// for the invoice.
func (h *TaxHandler) VoidInvoice(c *gin.Context) {
	h.finalizeInvoice(c, h.finalize.VoidInvoice)
}

func (h *TaxHandler) finalizeInvoice(c *gin.Context, apply func(ctx context.Context, tenantID, invoiceID uuid.UUID) (int, error)) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}
	invoiceID := uuid.MustParse(req.ID)

	done, err := apply(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.logger.Warn("invoice finalization incomplete",
			zap.String("tenant_id", tenantID.String()),
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("documents", done),
			zap.Error(err))
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.FinalizeResponse{InvoiceID: invoiceID, Documents: done})
}
