package tax

import (
	"context"

	"github.com/google/uuid"
)

// Request carries everything one Compute invocation needs: the tenant, the
// account owning the invoice, the invoice itself, the dry-run flag and the
// host-supplied properties.
type Request struct {
	TenantID   uuid.UUID
	Account    Account
	Invoice    Invoice
	DryRun     bool
	Properties Properties
}

// CallResult is the outcome of one attempted external call for one logical
// document. A nil result from a Backend method means the call was never
// attempted (build rejection, network failure) and must not be recorded,
// leaving the group eligible for retry. A non-nil result is recorded in
// the ledger regardless of outcome.
type CallResult struct {
	CorrelationCode string
	Outcome         CallOutcome
	Summary         string
	Lines           []TaxLineItem
}

// Backend executes one logical tax document against an external provider.
// Implementations own request building and response mapping; they share
// the classifier. The document-service backend submits structured sale and
// return transactions; the rate-table backend looks rates up by address
// and fans them out locally.
type Backend interface {
	// Name identifies the backend in logs and call summaries.
	Name() string

	// ProcessSale taxes every item of the group for its full amount.
	ProcessSale(ctx context.Context, req Request, group SaleGroup) (*CallResult, error)

	// ProcessReturn credits the net-new adjustment amount of every line in
	// the group against the original invoice's sale.
	ProcessReturn(ctx context.Context, req Request, group ReturnGroup) (*CallResult, error)
}
