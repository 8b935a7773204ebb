package taxdoc

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocType selects the document flavor sent to the tax service. Order
// subtypes are previews and are never persisted by the provider; invoice
// subtypes are committed when requested.
type DocType string

const (
	DocTypeSalesInvoice  DocType = "SalesInvoice"
	DocTypeSalesOrder    DocType = "SalesOrder"
	DocTypeReturnInvoice DocType = "ReturnInvoice"
	DocTypeReturnOrder   DocType = "ReturnOrder"
)

// TaxOverrideTypeTaxDate instructs the service to compute tax as of a
// past date instead of the document date.
const TaxOverrideTypeTaxDate = "TaxDate"

// TaxOverride carries an as-of-date instruction on a document or line.
type TaxOverride struct {
	Type    string `json:"type"`
	TaxDate string `json:"taxDate"` // yyyy-MM-dd
	Reason  string `json:"reason,omitempty"`
}

// DocAddress is the service's wire format for one address.
type DocAddress struct {
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Addresses carries the ship-to address applying to the whole document.
type Addresses struct {
	ShipTo *DocAddress `json:"shipTo,omitempty"`
}

// TransactionLine is one line of a transaction document. Number carries
// the taxable item's ID so result lines can be matched back.
type TransactionLine struct {
	Number      string          `json:"number"`
	Amount      decimal.Decimal `json:"amount"`
	ItemCode    string          `json:"itemCode,omitempty"`
	TaxCode     string          `json:"taxCode,omitempty"`
	Description string          `json:"description,omitempty"`
	TaxOverride *TaxOverride    `json:"taxOverride,omitempty"`
}

// CreateTransactionRequest is the wire request for document creation.
type CreateTransactionRequest struct {
	Code              string            `json:"code"`
	Type              DocType           `json:"type"`
	Date              string            `json:"date"` // yyyy-MM-dd
	CompanyCode       string            `json:"companyCode,omitempty"`
	CustomerCode      string            `json:"customerCode"`
	CurrencyCode      string            `json:"currencyCode,omitempty"`
	Commit            bool              `json:"commit"`
	ReferenceCode     string            `json:"referenceCode,omitempty"`
	CustomerUsageType string            `json:"customerUsageType,omitempty"`
	Addresses         Addresses         `json:"addresses"`
	Lines             []TransactionLine `json:"lines"`
}

// TaxDetail is one jurisdiction's share of a result line's tax.
type TaxDetail struct {
	TaxName      string          `json:"taxName"`
	JurisName    string          `json:"jurisName"`
	Tax          decimal.Decimal `json:"tax"`
	Rate         decimal.Decimal `json:"rate"`
	TaxableUnits decimal.Decimal `json:"taxableUnits"`
}

// ResultLine is one computed line of the service's response.
type ResultLine struct {
	LineNumber string          `json:"lineNumber"`
	Tax        decimal.Decimal `json:"tax"`
	TaxDate    string          `json:"taxDate"`
	Details    []TaxDetail     `json:"details"`
}

// TransactionResult is the service's response to document creation.
type TransactionResult struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	Status       string          `json:"status"`
	Date         string          `json:"date"`
	TotalTax     decimal.Decimal `json:"totalTax"`
	CurrencyCode string          `json:"currencyCode"`
	Lines        []ResultLine    `json:"lines"`
}

// ParsedTaxDate returns the result line's tax date, falling back to the
// given default when absent or malformed.
func (l ResultLine) ParsedTaxDate(fallback time.Time) time.Time {
	if l.TaxDate == "" {
		return fallback
	}
	d, err := time.Parse(wireDateLayout, l.TaxDate)
	if err != nil {
		return fallback
	}
	return d
}

const wireDateLayout = "2006-01-02"

// FormatWireDate renders a timestamp in the service's date format.
func FormatWireDate(t time.Time) string {
	return t.Format(wireDateLayout)
}
