package tax

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taxflow/backend/internal/domain/shared"
	"github.com/taxflow/backend/internal/domain/shared/valueobject"
)

// TaxableItem is an invoice line eligible for taxation. Items are owned by
// the host invoicing system and are never mutated by this engine.
type TaxableItem struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    valueobject.Currency `json:"currency"`
	ServiceDate time.Time       `json:"service_date"`
	PlanName    string          `json:"plan_name"`
	PhaseName   string          `json:"phase_name"`
	UsageName   string          `json:"usage_name"`
	Description string          `json:"description"`
}

// AdjustmentKind distinguishes the flavors of corrections the host issues
// against a taxable item.
type AdjustmentKind string

const (
	AdjustmentKindItem   AdjustmentKind = "ITEM_ADJUSTMENT"   // adjustment on the item's own invoice
	AdjustmentKindRepair AdjustmentKind = "REPAIR_ADJUSTMENT" // adjustment issued from a later invoice
	AdjustmentKindCredit AdjustmentKind = "CREDIT"            // equivalent credit memo line
)

// IsValid checks if the kind is a valid AdjustmentKind
func (k AdjustmentKind) IsValid() bool {
	switch k {
	case AdjustmentKindItem, AdjustmentKindRepair, AdjustmentKindCredit:
		return true
	}
	return false
}

// AdjustmentItem is a correction referencing exactly one TaxableItem.
// Its owning invoice may differ from the taxed item's invoice: repairs
// adjust items billed on a prior invoice from a new one.
type AdjustmentItem struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`       // invoice carrying this adjustment
	Kind           AdjustmentKind  `json:"kind"`
	TaxedItemID    uuid.UUID       `json:"taxed_item_id"`    // referenced taxable item
	TaxedInvoiceID uuid.UUID       `json:"taxed_invoice_id"` // invoice the referenced item was billed on
	Amount         decimal.Decimal `json:"amount"`           // signed; credits are negative
}

// Account carries the customer identity and address the tax provider needs.
type Account struct {
	ID          uuid.UUID           `json:"id"`
	ExternalKey string              `json:"external_key"` // customer code at the tax provider
	Address     valueobject.Address `json:"address"`
}

// Invoice is the engine's view of the invoice being computed. Items holds
// only taxable (non-tax) lines; tax lines produced by earlier runs must not
// be supplied. ReferencedItems carries the taxable items billed on prior
// invoices that this invoice's repair adjustments point at.
type Invoice struct {
	ID              uuid.UUID            `json:"id"`
	Date            time.Time            `json:"date"`
	Currency        valueobject.Currency `json:"currency"`
	Items           []TaxableItem        `json:"items"`
	Adjustments     []AdjustmentItem     `json:"adjustments"`
	ReferencedItems []TaxableItem        `json:"referenced_items"`
}

// ValidateCurrency rejects invoices whose items carry a currency other
// than the invoice's own. Mixed-currency input would produce tax lines
// the host cannot book against the invoice. Items with an empty currency
// are treated as denominated in the invoice currency.
func (inv Invoice) ValidateCurrency() error {
	for _, it := range inv.Items {
		if it.Currency != "" && it.Currency != inv.Currency {
			return fmt.Errorf("%w: item %s is %s, invoice %s is %s",
				shared.ErrCurrencyMismatch, it.ID, it.Currency, inv.ID, inv.Currency)
		}
	}
	return nil
}

// ItemIndex returns a lookup over the invoice's own items and the
// referenced prior-invoice items.
func (inv Invoice) ItemIndex() map[uuid.UUID]TaxableItem {
	idx := make(map[uuid.UUID]TaxableItem, len(inv.Items)+len(inv.ReferencedItems))
	for _, it := range inv.Items {
		idx[it.ID] = it
	}
	for _, it := range inv.ReferencedItems {
		idx[it.ID] = it
	}
	return idx
}

// TaxLineItem is a newly synthesized invoice line of type tax. Ownership
// transfers to the host when Compute returns; the engine never taxes these
// again.
type TaxLineItem struct {
	ID           uuid.UUID            `json:"id"`
	InvoiceID    uuid.UUID            `json:"invoice_id"`    // invoice the line is written to
	TaxedItemID  uuid.UUID            `json:"taxed_item_id"` // taxable item the tax applies to
	AdjustmentID *uuid.UUID           `json:"adjustment_id,omitempty"` // set when a credit drove the line
	Amount       decimal.Decimal      `json:"amount"`
	Currency     valueobject.Currency `json:"currency"`
	TaxName      string               `json:"tax_name"`
	TaxDate      time.Time            `json:"tax_date"`
}

// DefaultTaxName is used when the provider omits a jurisdiction/tax name.
const DefaultTaxName = "Tax"

// NewTaxLineItem creates a tax line for the given invoice and taxed item.
func NewTaxLineItem(invoiceID, taxedItemID uuid.UUID, amount decimal.Decimal, currency valueobject.Currency, taxName string, taxDate time.Time) TaxLineItem {
	if taxName == "" {
		taxName = DefaultTaxName
	}
	return TaxLineItem{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		TaxedItemID: taxedItemID,
		Amount:      amount,
		Currency:    currency,
		TaxName:     taxName,
		TaxDate:     taxDate,
	}
}
