package tax

import (
	"github.com/google/uuid"
)

// CallHistory is the reconstructed view over the successful call records of
// one or more invoices, in ledger insertion order per invoice. It answers
// the two questions classification needs: what has already been taxed or
// adjusted, and which correlation code identifies an invoice's original
// sale call.
type CallHistory struct {
	byInvoice map[uuid.UUID][]CallRecord
}

// NewCallHistory returns an empty history.
func NewCallHistory() *CallHistory {
	return &CallHistory{byInvoice: make(map[uuid.UUID][]CallRecord)}
}

// Add registers the records of one invoice, preserving their order.
// Records are expected to already be filtered to successful outcomes by
// the ledger read path.
func (h *CallHistory) Add(invoiceID uuid.UUID, records []CallRecord) {
	h.byInvoice[invoiceID] = append(h.byInvoice[invoiceID], records...)
}

// Coverage unions every successful record's mapping across all registered
// invoices.
func (h *CallHistory) Coverage() Coverage {
	cov := NewCoverage()
	for _, records := range h.byInvoice {
		for _, rec := range records {
			if !rec.Succeeded() {
				continue
			}
			cov.Merge(rec.Coverage)
		}
	}
	return cov
}

// FirstCorrelation returns the correlation code of the earliest successful
// call recorded for the invoice. This is the reference code a return
// document points at.
func (h *CallHistory) FirstCorrelation(invoiceID uuid.UUID) (string, bool) {
	for _, rec := range h.byInvoice[invoiceID] {
		if rec.Succeeded() {
			return rec.CorrelationCode, true
		}
	}
	return "", false
}
