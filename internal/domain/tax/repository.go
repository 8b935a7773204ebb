package tax

import (
	"context"

	"github.com/google/uuid"
)

// CallRecordRepository is the append-only ledger of external tax calls.
// Records are inserted exactly once per attempted call, after the external
// response is known, and never updated.
type CallRecordRepository interface {
	// FindSuccessfulByInvoice returns the successful call records for an
	// invoice in ledger insertion order. A record whose stored coverage
	// cannot be decoded is skipped (and logged), not surfaced as an error.
	FindSuccessfulByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]CallRecord, error)

	// Append durably inserts one call record.
	Append(ctx context.Context, record *CallRecord) error
}
