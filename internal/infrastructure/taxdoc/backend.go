package taxdoc

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taxflow/backend/internal/domain/tax"
)

// DocumentBackend implements tax.Backend against the external document
// service: one transaction per group, with the provider doing the full
// jurisdiction calculation.
type DocumentBackend struct {
	client *Client
	logger *zap.Logger
}

// NewDocumentBackend creates a document-service backend.
func NewDocumentBackend(client *Client, logger *zap.Logger) *DocumentBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentBackend{client: client, logger: logger}
}

// Name identifies the backend in logs and call summaries.
func (b *DocumentBackend) Name() string { return "document" }

// ProcessSale submits one sale document taxing every item of the group.
func (b *DocumentBackend) ProcessSale(ctx context.Context, req tax.Request, group tax.SaleGroup) (*tax.CallResult, error) {
	code := tax.NewCorrelationCode(group.InvoiceID)
	doc, err := BuildSale(req, group, code, b.client.config.CompanyCode)
	if err != nil {
		// Build rejections never reach the service; no record, natural retry.
		return nil, err
	}
	itemDates := make(map[uuid.UUID]dateAndAdjustment, len(group.Items))
	for _, item := range group.Items {
		itemDates[item.ID] = dateAndAdjustment{}
	}
	return b.submit(ctx, req, doc, itemDates)
}

// ProcessReturn submits one return document crediting the group's net-new
// adjustments against the original invoice's sale.
func (b *DocumentBackend) ProcessReturn(ctx context.Context, req tax.Request, group tax.ReturnGroup) (*tax.CallResult, error) {
	code := tax.NewCorrelationCode(group.SourceInvoiceID)
	doc, err := BuildReturn(req, group, code, b.client.config.CompanyCode)
	if err != nil {
		return nil, err
	}
	itemDates := make(map[uuid.UUID]dateAndAdjustment, len(group.Lines))
	for _, line := range group.Lines {
		var adjID *uuid.UUID
		if len(line.Adjustments) > 0 {
			id := line.Adjustments[0].ID
			adjID = &id
		}
		itemDates[line.Item.ID] = dateAndAdjustment{adjustmentID: adjID}
	}
	return b.submit(ctx, req, doc, itemDates)
}

// dateAndAdjustment links a result line's item back to the adjustment
// that drove it (returns only).
type dateAndAdjustment struct {
	adjustmentID *uuid.UUID
}

func (b *DocumentBackend) submit(ctx context.Context, req tax.Request, doc *CreateTransactionRequest, items map[uuid.UUID]dateAndAdjustment) (*tax.CallResult, error) {
	result, err := b.client.CreateTransaction(ctx, doc)
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			// The service saw and rejected the document: record the failure
			// so operators can see it, but leave coverage unclaimed.
			b.logger.Warn("tax document rejected",
				zap.String("code", doc.Code),
				zap.Int("status", svcErr.StatusCode),
				zap.String("message", svcErr.Message))
			return &tax.CallResult{
				CorrelationCode: doc.Code,
				Outcome:         tax.CallOutcomeError,
				Summary:         svcErr.Error(),
			}, nil
		}
		// Transport failure: unknown whether the document exists; nothing
		// is recorded and the next invocation retries.
		return nil, err
	}

	lines := b.mapLines(req, doc, result, items)
	return &tax.CallResult{
		CorrelationCode: doc.Code,
		Outcome:         tax.CallOutcomeSuccess,
		Summary:         fmt.Sprintf("%s %s: total tax %s %s", doc.Type, result.Status, result.TotalTax, result.CurrencyCode),
		Lines:           lines,
	}, nil
}

// mapLines converts the service's result lines into tax line items on the
// target invoice, matched back to taxable items by line number. Lines the
// service returns with jurisdiction details produce one tax line per
// detail; lines without details produce a single aggregate line.
func (b *DocumentBackend) mapLines(req tax.Request, doc *CreateTransactionRequest, result *TransactionResult, items map[uuid.UUID]dateAndAdjustment) []tax.TaxLineItem {
	var out []tax.TaxLineItem
	for _, line := range result.Lines {
		itemID, err := uuid.Parse(line.LineNumber)
		if err != nil {
			b.logger.Warn("unmatchable result line",
				zap.String("code", result.Code),
				zap.String("line_number", line.LineNumber))
			continue
		}
		meta, ok := items[itemID]
		if !ok {
			b.logger.Warn("result line references unknown item",
				zap.String("code", result.Code),
				zap.String("item_id", itemID.String()))
			continue
		}

		taxDate := line.ParsedTaxDate(req.Invoice.Date)
		if len(line.Details) == 0 {
			if line.Tax.IsZero() {
				continue
			}
			tli := tax.NewTaxLineItem(req.Invoice.ID, itemID, line.Tax, req.Invoice.Currency, "", taxDate)
			tli.AdjustmentID = meta.adjustmentID
			out = append(out, tli)
			continue
		}
		for _, detail := range line.Details {
			if detail.Tax.IsZero() {
				continue
			}
			name := detail.TaxName
			if name == "" {
				name = detail.JurisName
			}
			tli := tax.NewTaxLineItem(req.Invoice.ID, itemID, detail.Tax, req.Invoice.Currency, name, taxDate)
			tli.AdjustmentID = meta.adjustmentID
			out = append(out, tli)
		}
	}
	return out
}
