package ratetable

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/taxflow/backend/internal/domain/tax"
)

// RateTableBackend implements tax.Backend by looking up jurisdiction
// rates for the account's address and applying them locally to every
// line amount. It never registers documents with the provider, so
// commit and void are no-ops at the provider level; the ledger record
// alone carries the outcome.
type RateTableBackend struct {
	source RateSource
	logger *zap.Logger
}

// NewRateTableBackend creates a rate-table backend on top of source.
func NewRateTableBackend(source RateSource, logger *zap.Logger) *RateTableBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateTableBackend{source: source, logger: logger}
}

// Name identifies the backend in logs and call summaries.
func (b *RateTableBackend) Name() string { return "ratetable" }

// ProcessSale taxes every item of the group for its full amount at the
// looked-up rates.
func (b *RateTableBackend) ProcessSale(ctx context.Context, req tax.Request, group tax.SaleGroup) (*tax.CallResult, error) {
	if len(group.Items) == 0 {
		return nil, tax.ErrEmptyDocument
	}
	rates, err := b.resolveRates(ctx, req)
	if err != nil {
		return b.failure(tax.NewCorrelationCode(group.InvoiceID), "sale", err)
	}

	code := tax.NewCorrelationCode(group.InvoiceID)
	var lines []tax.TaxLineItem
	total := decimal.Zero
	for _, item := range group.Items {
		for _, jr := range applicableRates(rates, req.Properties.RateTypeFilters()) {
			amount := roundTax(item.Amount.Mul(jr.Rate), req)
			if amount.IsZero() {
				continue
			}
			total = total.Add(amount)
			lines = append(lines, tax.NewTaxLineItem(
				req.Invoice.ID, item.ID, amount, req.Invoice.Currency, jr.Name, req.Invoice.Date))
		}
	}

	return &tax.CallResult{
		CorrelationCode: code,
		Outcome:         tax.CallOutcomeSuccess,
		Summary:         fmt.Sprintf("rate sale: %d items, total tax %s %s", len(group.Items), total, req.Invoice.Currency),
		Lines:           lines,
	}, nil
}

// ProcessReturn credits the net-new adjustment amounts of the group at
// the same looked-up rates, dated to each item's original service date.
func (b *RateTableBackend) ProcessReturn(ctx context.Context, req tax.Request, group tax.ReturnGroup) (*tax.CallResult, error) {
	if len(group.Lines) == 0 {
		return nil, tax.ErrEmptyDocument
	}
	if group.ReferenceCode == "" {
		return nil, tax.ErrMissingReferenceCode
	}
	for _, line := range group.Lines {
		if line.Net.Abs().GreaterThan(line.Item.Amount.Abs()) {
			return nil, fmt.Errorf("%w: item %s net %s exceeds original %s",
				tax.ErrAdjustmentExceedsOriginal, line.Item.ID, line.Net, line.Item.Amount)
		}
	}
	rates, err := b.resolveRates(ctx, req)
	if err != nil {
		return b.failure(tax.NewCorrelationCode(group.SourceInvoiceID), "return", err)
	}

	code := tax.NewCorrelationCode(group.SourceInvoiceID)
	var lines []tax.TaxLineItem
	total := decimal.Zero
	for _, line := range group.Lines {
		var adjID *uuid.UUID
		if len(line.Adjustments) > 0 {
			id := line.Adjustments[0].ID
			adjID = &id
		}
		for _, jr := range applicableRates(rates, req.Properties.RateTypeFilters()) {
			amount := roundTax(line.Net.Mul(jr.Rate), req)
			if amount.IsZero() {
				continue
			}
			total = total.Add(amount)
			tli := tax.NewTaxLineItem(
				req.Invoice.ID, line.Item.ID, amount, req.Invoice.Currency, jr.Name, line.Item.ServiceDate)
			tli.AdjustmentID = adjID
			lines = append(lines, tli)
		}
	}

	return &tax.CallResult{
		CorrelationCode: code,
		Outcome:         tax.CallOutcomeSuccess,
		Summary:         fmt.Sprintf("rate return of %s: %d lines, total tax %s %s", group.SourceInvoiceID, len(group.Lines), total, req.Invoice.Currency),
		Lines:           lines,
	}, nil
}

// resolveRates picks the most precise lookup the account's address
// supports: full address, then postal code, otherwise the address is
// too thin to resolve a jurisdiction at all.
func (b *RateTableBackend) resolveRates(ctx context.Context, req tax.Request) (*RateResult, error) {
	addr := req.Account.Address
	switch {
	case addr.IsComplete():
		return b.source.RatesByAddress(ctx, addr)
	case addr.HasPostal():
		return b.source.RatesByPostal(ctx, addr.Country(), addr.PostalCode())
	default:
		return nil, tax.ErrIncompleteAddress
	}
}

// failure translates a lookup error into the backend contract: service
// rejections are recorded with an error outcome, everything else (build
// rejections, transport failures) surfaces unrecorded for a later retry.
func (b *RateTableBackend) failure(code, op string, err error) (*tax.CallResult, error) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		b.logger.Warn("rate lookup rejected",
			zap.String("op", op),
			zap.Int("status", svcErr.StatusCode),
			zap.String("message", svcErr.Message))
		return &tax.CallResult{
			CorrelationCode: code,
			Outcome:         tax.CallOutcomeError,
			Summary:         svcErr.Error(),
		}, nil
	}
	return nil, err
}

// applicableRates selects the sub-rates to apply. A result without a
// jurisdiction breakdown collapses to one unnamed rate at the flat total,
// as long as no type filter is asking for specific sub-rates.
func applicableRates(result *RateResult, filters []string) []JurisdictionRate {
	if len(result.Rates) == 0 {
		if len(filters) > 0 {
			return nil
		}
		return []JurisdictionRate{{Rate: result.TotalRate}}
	}
	if len(filters) == 0 {
		return result.Rates
	}
	allowed := make(map[string]bool, len(filters))
	for _, f := range filters {
		allowed[f] = true
	}
	var out []JurisdictionRate
	for _, jr := range result.Rates {
		if allowed[jr.Type] {
			out = append(out, jr)
		}
	}
	return out
}

func roundTax(amount decimal.Decimal, req tax.Request) decimal.Decimal {
	return amount.Round(req.Invoice.Currency.Exponent())
}

var _ tax.Backend = (*RateTableBackend)(nil)
