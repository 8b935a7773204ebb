package tax

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taxflow/backend/internal/domain/tax"
)

// DocumentFinalizer finalizes or cancels provider documents by their
// recorded correlation codes. The document-service backend implements
// this; the rate-table backend has nothing to finalize.
type DocumentFinalizer interface {
	Commit(ctx context.Context, correlationCode string) error
	Void(ctx context.Context, correlationCode string) error
}

// FinalizeService replays the ledger's successful correlation codes of
// an invoice through the provider's commit/void endpoints. The host
// calls it from its post-payment and on-cancel hooks.
type FinalizeService struct {
	ledger    tax.CallRecordRepository
	finalizer DocumentFinalizer
	logger    *zap.Logger
}

// NewFinalizeService creates a finalize service.
func NewFinalizeService(ledger tax.CallRecordRepository, finalizer DocumentFinalizer, logger *zap.Logger) *FinalizeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinalizeService{ledger: ledger, finalizer: finalizer, logger: logger}
}

// CommitInvoice commits every successfully recorded document of the
// invoice. Returns how many documents were committed.
func (s *FinalizeService) CommitInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (int, error) {
	return s.finalizeInvoice(ctx, tenantID, invoiceID, "commit", s.finalizer.Commit)
}

// VoidInvoice voids every successfully recorded document of the invoice.
// Returns how many documents were voided.
func (s *FinalizeService) VoidInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (int, error) {
	return s.finalizeInvoice(ctx, tenantID, invoiceID, "void", s.finalizer.Void)
}

// finalizeInvoice is best-effort: a ledger read failure here is advisory
// (there is nothing safe to replay, so it finalizes zero documents), and
// a failure on one document does not stop the others.
func (s *FinalizeService) finalizeInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID, op string, apply func(context.Context, string) error) (int, error) {
	log := s.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("op", op))

	records, err := s.ledger.FindSuccessfulByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		log.Warn("ledger unavailable, no documents finalized", zap.Error(err))
		return 0, nil
	}

	done := 0
	var firstErr error
	for _, rec := range records {
		if err := apply(ctx, rec.CorrelationCode); err != nil {
			log.Warn("document finalization failed",
				zap.String("correlation_code", rec.CorrelationCode),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%s %s: %w", op, rec.CorrelationCode, err)
			}
			continue
		}
		done++
	}
	return done, firstErr
}
