package tax

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taxflow/backend/internal/domain/shared"
	"github.com/taxflow/backend/internal/domain/tax"
)

// Engine is the reconciliation driver: it reads the call ledger,
// classifies the invoice against it, executes one backend call per
// logical document and persists every attempted call before handing the
// synthesized tax lines back to the host.
//
// The host must serialize Compute calls per invoice; two concurrent
// computations of the same invoice can both classify against the same
// ledger state and issue duplicate external calls.
type Engine struct {
	ledger   tax.CallRecordRepository
	resolver BackendResolver
	logger   *zap.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(ledger tax.CallRecordRepository, resolver BackendResolver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{ledger: ledger, resolver: resolver, logger: logger}
}

// Compute reconciles the invoice's tax state and returns the newly
// synthesized tax line items. Repeated invocations with unchanged input
// return nothing: every successful call's coverage is persisted and
// classified items already accounted for are skipped.
//
// Per-group failures degrade to zero lines for that group so a provider
// outage never blocks invoice generation; only a ledger read failure
// before classification aborts the whole call.
func (e *Engine) Compute(ctx context.Context, req tax.Request) ([]tax.TaxLineItem, error) {
	if err := req.Invoice.ValidateCurrency(); err != nil {
		return nil, err
	}

	backend, err := e.resolver.Resolve(req.TenantID)
	if err != nil {
		return nil, err
	}

	history, err := e.loadHistory(ctx, req)
	if err != nil {
		return nil, err
	}

	classification := tax.Classify(req.Invoice, history)
	for _, skipped := range classification.Skipped {
		e.logger.Info("adjustment skipped during classification",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("invoice_id", req.Invoice.ID.String()),
			zap.String("adjustment_id", skipped.Adjustment.ID.String()),
			zap.String("reason", string(skipped.Reason)))
	}
	if classification.IsEmpty() {
		e.logger.Debug("invoice already settled, nothing to compute",
			zap.String("invoice_id", req.Invoice.ID.String()))
		return nil, nil
	}

	var out []tax.TaxLineItem
	if classification.Sale != nil {
		lines := e.processGroup(ctx, req, "sale", classification.Sale.InvoiceID, classification.Sale.Coverage(),
			func() (*tax.CallResult, error) {
				return backend.ProcessSale(ctx, req, *classification.Sale)
			})
		out = append(out, lines...)
	}
	for _, group := range classification.Returns {
		group := group
		lines := e.processGroup(ctx, req, "return", group.SourceInvoiceID, group.Coverage(),
			func() (*tax.CallResult, error) {
				return backend.ProcessReturn(ctx, req, group)
			})
		out = append(out, lines...)
	}
	return out, nil
}

// loadHistory reads the successful call records of the target invoice and
// of every invoice the adjustments reference. A read failure here is
// fatal: classifying against partial history risks double taxation.
func (e *Engine) loadHistory(ctx context.Context, req tax.Request) (*tax.CallHistory, error) {
	invoiceIDs := []uuid.UUID{req.Invoice.ID}
	seen := map[uuid.UUID]bool{req.Invoice.ID: true}
	for _, adj := range req.Invoice.Adjustments {
		if adj.TaxedInvoiceID != uuid.Nil && !seen[adj.TaxedInvoiceID] {
			seen[adj.TaxedInvoiceID] = true
			invoiceIDs = append(invoiceIDs, adj.TaxedInvoiceID)
		}
	}

	history := tax.NewCallHistory()
	for _, invoiceID := range invoiceIDs {
		records, err := e.ledger.FindSuccessfulByInvoice(ctx, req.TenantID, invoiceID)
		if err != nil {
			return nil, fmt.Errorf("%w: reading history of invoice %s: %v", shared.ErrLedgerUnavailable, invoiceID, err)
		}
		history.Add(invoiceID, records)
	}
	return history, nil
}

// processGroup runs one logical document end to end: call the backend,
// persist the attempt, return the lines. Any failure yields zero lines
// for this group only.
//
// A nil result with an error means the call was never attempted and
// nothing is recorded, so the next invocation retries the group. A
// non-nil result is recorded regardless of outcome, except on a dry
// run: provisional documents must leave no trace in the ledger.
// If the record cannot be appended the group's lines are
// dropped too: handing out lines without durable coverage would tax
// them again on the next run.
func (e *Engine) processGroup(ctx context.Context, req tax.Request, docType string, ledgerInvoiceID uuid.UUID, coverage tax.Coverage, call func() (*tax.CallResult, error)) []tax.TaxLineItem {
	log := e.logger.With(
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("invoice_id", req.Invoice.ID.String()),
		zap.String("document_type", docType))

	result, err := call()
	if err != nil {
		log.Warn("tax call not attempted, group skipped", zap.Error(err))
		return nil
	}
	if result == nil {
		log.Warn("backend returned no result, group skipped")
		return nil
	}

	if req.DryRun {
		log.Debug("dry run, call outcome not recorded",
			zap.String("correlation_code", result.CorrelationCode))
		return result.Lines
	}

	record, err := tax.NewCallRecord(req.TenantID, ledgerInvoiceID, result.CorrelationCode, coverage, result.Outcome, result.Summary)
	if err != nil {
		log.Error("invalid call record, group dropped", zap.Error(err))
		return nil
	}
	if err := e.ledger.Append(ctx, record); err != nil {
		log.Error("ledger append failed, group dropped",
			zap.String("correlation_code", result.CorrelationCode),
			zap.Error(err))
		return nil
	}

	if !record.Succeeded() {
		log.Warn("tax call recorded with error outcome",
			zap.String("correlation_code", result.CorrelationCode),
			zap.String("summary", result.Summary))
		return nil
	}

	log.Info("tax call recorded",
		zap.String("correlation_code", result.CorrelationCode),
		zap.Int("lines", len(result.Lines)))
	return result.Lines
}
