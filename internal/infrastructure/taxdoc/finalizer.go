package taxdoc

import "context"

// Finalizer exposes document finalization against the configured company.
// Commit and Void act on correlation codes recorded in the call ledger.
type Finalizer struct {
	client *Client
}

// NewFinalizer creates a Finalizer over the given client.
func NewFinalizer(client *Client) *Finalizer {
	return &Finalizer{client: client}
}

// Commit finalizes the document identified by the correlation code.
func (f *Finalizer) Commit(ctx context.Context, correlationCode string) error {
	return f.client.Commit(ctx, f.client.config.CompanyCode, correlationCode)
}

// Void cancels the document identified by the correlation code.
func (f *Finalizer) Void(ctx context.Context, correlationCode string) error {
	return f.client.Void(ctx, f.client.config.CompanyCode, correlationCode)
}
