package tax

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/taxflow/backend/internal/domain/shared"
)

// CallOutcome is the terminal status of one external tax-service call.
type CallOutcome string

const (
	CallOutcomeSuccess CallOutcome = "SUCCESS"
	CallOutcomeError   CallOutcome = "ERROR"
)

// IsValid checks if the outcome is a valid CallOutcome
func (o CallOutcome) IsValid() bool {
	return o == CallOutcomeSuccess || o == CallOutcomeError
}

// String returns the string representation of CallOutcome
func (o CallOutcome) String() string {
	return string(o)
}

// Coverage maps taxable item IDs to the set of adjustment IDs a call
// accounted for. A sale call lists each taxed item with an empty set.
type Coverage map[uuid.UUID]map[uuid.UUID]struct{}

// NewCoverage returns an empty coverage mapping.
func NewCoverage() Coverage {
	return make(Coverage)
}

// AddItem marks a taxable item as covered with no adjustments (a sale).
func (c Coverage) AddItem(itemID uuid.UUID) {
	if _, ok := c[itemID]; !ok {
		c[itemID] = make(map[uuid.UUID]struct{})
	}
}

// AddAdjustments marks adjustments of a taxable item as covered.
func (c Coverage) AddAdjustments(itemID uuid.UUID, adjustmentIDs ...uuid.UUID) {
	c.AddItem(itemID)
	for _, id := range adjustmentIDs {
		c[itemID][id] = struct{}{}
	}
}

// Merge unions another coverage mapping into this one.
func (c Coverage) Merge(other Coverage) {
	for itemID, adjs := range other {
		c.AddItem(itemID)
		for adjID := range adjs {
			c[itemID][adjID] = struct{}{}
		}
	}
}

// Covers returns true if the taxable item appears in the mapping, i.e. it
// has been through at least one successful sale call.
func (c Coverage) Covers(itemID uuid.UUID) bool {
	_, ok := c[itemID]
	return ok
}

// CoversAdjustment returns true if the adjustment has already been
// accounted for by a recorded call.
func (c Coverage) CoversAdjustment(itemID, adjustmentID uuid.UUID) bool {
	adjs, ok := c[itemID]
	if !ok {
		return false
	}
	_, ok = adjs[adjustmentID]
	return ok
}

// MaxCorrelationCodeLen bounds the correlation code sent to the provider.
const MaxCorrelationCodeLen = 50

const correlationSuffixLen = 12

// NewCorrelationCode builds a globally unique correlation code embedding
// the invoice identity for auditability: "{invoiceID}_{12-char-random}".
// The result never exceeds MaxCorrelationCodeLen, so multiple calls for
// the same invoice stay distinguishable.
func NewCorrelationCode(invoiceID uuid.UUID) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:correlationSuffixLen]
	code := fmt.Sprintf("%s_%s", invoiceID, suffix)
	if len(code) > MaxCorrelationCodeLen {
		code = code[:MaxCorrelationCodeLen]
	}
	return code
}

// CallRecord is the durable, append-only record of one external tax call:
// which invoice it belongs to, what it covered, and whether it succeeded.
// The union of all successful records for an invoice is the authoritative
// "already taxed / already adjusted" state. Records are created once per
// attempted call and never updated.
//
// Sale calls are recorded under the invoice whose items they taxed; return
// calls are recorded under the invoice the credited items were originally
// billed on, so the taxation state of an invoice's items is always
// reconstructible from that invoice's ledger alone.
type CallRecord struct {
	shared.TenantEntity
	InvoiceID       uuid.UUID
	CorrelationCode string
	Outcome         CallOutcome
	Summary         string // terse provider response summary for audits
	Coverage        Coverage
}

// NewCallRecord creates a ledger entry for one attempted external call.
func NewCallRecord(tenantID, invoiceID uuid.UUID, correlationCode string, coverage Coverage, outcome CallOutcome, summary string) (*CallRecord, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if correlationCode == "" {
		return nil, shared.NewDomainError("INVALID_CORRELATION_CODE", "Correlation code cannot be empty")
	}
	if len(correlationCode) > MaxCorrelationCodeLen {
		return nil, shared.NewDomainError("INVALID_CORRELATION_CODE", fmt.Sprintf("Correlation code cannot exceed %d characters", MaxCorrelationCodeLen))
	}
	if !outcome.IsValid() {
		return nil, shared.NewDomainError("INVALID_OUTCOME", fmt.Sprintf("Unknown call outcome %q", outcome))
	}
	if coverage == nil {
		coverage = NewCoverage()
	}
	return &CallRecord{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		InvoiceID:       invoiceID,
		CorrelationCode: correlationCode,
		Outcome:         outcome,
		Summary:         summary,
		Coverage:        coverage,
	}, nil
}

// Succeeded reports whether the recorded call completed successfully.
func (r *CallRecord) Succeeded() bool {
	return r.Outcome == CallOutcomeSuccess
}
