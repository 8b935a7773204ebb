package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taxflow/backend/internal/domain/shared/valueobject"
	"github.com/taxflow/backend/internal/domain/tax"
)

// AddressDTO carries the account's tax address. All fields are optional;
// the rate-table backend degrades from full-address to postal lookup.
type AddressDTO struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// AccountDTO identifies the customer at the tax provider
type AccountDTO struct {
	ID          uuid.UUID  `json:"id" binding:"required"`
	ExternalKey string     `json:"external_key"`
	Address     AddressDTO `json:"address"`
}

// TaxableItemDTO is one taxable invoice line
type TaxableItemDTO struct {
	ID          uuid.UUID       `json:"id" binding:"required"`
	InvoiceID   uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Currency    string          `json:"currency" binding:"omitempty,oneof=USD EUR GBP CAD AUD JPY"`
	ServiceDate time.Time       `json:"service_date"`
	PlanName    string          `json:"plan_name"`
	PhaseName   string          `json:"phase_name"`
	UsageName   string          `json:"usage_name"`
	Description string          `json:"description"`
}

// AdjustmentItemDTO is one correction referencing a taxable item
type AdjustmentItemDTO struct {
	ID             uuid.UUID       `json:"id" binding:"required"`
	InvoiceID      uuid.UUID       `json:"invoice_id" binding:"required"`
	Kind           string          `json:"kind" binding:"required,oneof=ITEM_ADJUSTMENT REPAIR_ADJUSTMENT CREDIT"`
	TaxedItemID    uuid.UUID       `json:"taxed_item_id" binding:"required"`
	TaxedInvoiceID uuid.UUID       `json:"taxed_invoice_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
}

// InvoiceDTO is the engine's view of the invoice being computed
type InvoiceDTO struct {
	ID              uuid.UUID           `json:"id" binding:"required"`
	Date            time.Time           `json:"date" binding:"required"`
	Currency        string              `json:"currency" binding:"required,oneof=USD EUR GBP CAD AUD JPY"`
	Items           []TaxableItemDTO    `json:"items" binding:"dive"`
	Adjustments     []AdjustmentItemDTO `json:"adjustments" binding:"dive"`
	ReferencedItems []TaxableItemDTO    `json:"referenced_items" binding:"dive"`
}

// ComputeTaxRequest is the body of POST /tax/compute. The tenant comes
// from the authenticated context, not the body.
type ComputeTaxRequest struct {
	Account    AccountDTO        `json:"account" binding:"required"`
	Invoice    InvoiceDTO        `json:"invoice" binding:"required"`
	DryRun     bool              `json:"dry_run"`
	Properties map[string]string `json:"properties"`
}

// ToDomain converts the request into the engine's input for the tenant
func (r *ComputeTaxRequest) ToDomain(tenantID uuid.UUID) tax.Request {
	return tax.Request{
		TenantID: tenantID,
		Account: tax.Account{
			ID:          r.Account.ID,
			ExternalKey: r.Account.ExternalKey,
			Address: valueobject.NewAddress(
				r.Account.Address.Street,
				r.Account.Address.City,
				r.Account.Address.Region,
				r.Account.Address.PostalCode,
				r.Account.Address.Country,
			),
		},
		Invoice: tax.Invoice{
			ID:              r.Invoice.ID,
			Date:            r.Invoice.Date,
			Currency:        valueobject.Currency(r.Invoice.Currency),
			Items:           toDomainItems(r.Invoice.Items, valueobject.Currency(r.Invoice.Currency)),
			Adjustments:     toDomainAdjustments(r.Invoice.Adjustments),
			ReferencedItems: toDomainItems(r.Invoice.ReferencedItems, valueobject.Currency(r.Invoice.Currency)),
		},
		DryRun:     r.DryRun,
		Properties: tax.Properties(r.Properties),
	}
}

func toDomainItems(items []TaxableItemDTO, invoiceCurrency valueobject.Currency) []tax.TaxableItem {
	out := make([]tax.TaxableItem, 0, len(items))
	for _, item := range items {
		currency := valueobject.Currency(item.Currency)
		if currency == "" {
			currency = invoiceCurrency
		}
		out = append(out, tax.TaxableItem{
			ID:          item.ID,
			InvoiceID:   item.InvoiceID,
			Amount:      item.Amount,
			Currency:    currency,
			ServiceDate: item.ServiceDate,
			PlanName:    item.PlanName,
			PhaseName:   item.PhaseName,
			UsageName:   item.UsageName,
			Description: item.Description,
		})
	}
	return out
}

func toDomainAdjustments(adjustments []AdjustmentItemDTO) []tax.AdjustmentItem {
	out := make([]tax.AdjustmentItem, 0, len(adjustments))
	for _, adj := range adjustments {
		out = append(out, tax.AdjustmentItem{
			ID:             adj.ID,
			InvoiceID:      adj.InvoiceID,
			Kind:           tax.AdjustmentKind(adj.Kind),
			TaxedItemID:    adj.TaxedItemID,
			TaxedInvoiceID: adj.TaxedInvoiceID,
			Amount:         adj.Amount,
		})
	}
	return out
}

// TaxLineItemDTO is one synthesized tax line returned to the host
type TaxLineItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	InvoiceID    uuid.UUID       `json:"invoice_id"`
	TaxedItemID  uuid.UUID       `json:"taxed_item_id"`
	AdjustmentID *uuid.UUID      `json:"adjustment_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	TaxName      string          `json:"tax_name"`
	TaxDate      time.Time       `json:"tax_date"`
}

// ComputeTaxResponse is the body returned by POST /tax/compute
type ComputeTaxResponse struct {
	InvoiceID uuid.UUID        `json:"invoice_id"`
	DryRun    bool             `json:"dry_run"`
	TaxItems  []TaxLineItemDTO `json:"tax_items"`
}

// NewComputeTaxResponse converts engine output into the response DTO
func NewComputeTaxResponse(invoiceID uuid.UUID, dryRun bool, lines []tax.TaxLineItem) ComputeTaxResponse {
	items := make([]TaxLineItemDTO, 0, len(lines))
	for _, line := range lines {
		items = append(items, TaxLineItemDTO{
			ID:           line.ID,
			InvoiceID:    line.InvoiceID,
			TaxedItemID:  line.TaxedItemID,
			AdjustmentID: line.AdjustmentID,
			Amount:       line.Amount,
			Currency:     line.Currency.String(),
			TaxName:      line.TaxName,
			TaxDate:      line.TaxDate,
		})
	}
	return ComputeTaxResponse{InvoiceID: invoiceID, DryRun: dryRun, TaxItems: items}
}

// FinalizeResponse is the body returned by the commit and void endpoints
type FinalizeResponse struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Documents int       `json:"documents"`
}
