package tax

import (
	"strings"

	"github.com/google/uuid"
)

// Recognized property keys passed by the host per Compute call.
const (
	// PropCompanyCode overrides the configured company code for this call.
	PropCompanyCode = "company_code"
	// PropCustomerUsageType sets the customer usage-type/exemption code.
	PropCustomerUsageType = "customer_usage_type"
	// PropTaxCodePrefix prefixes per-item tax code overrides; the full key
	// is the prefix followed by the taxable item's ID.
	PropTaxCodePrefix = "tax_code."
	// PropItemCodePrefix prefixes per-item item code overrides, keyed like
	// PropTaxCodePrefix. An override wins over any item label.
	PropItemCodePrefix = "item_code."
	// PropRateTypes restricts which jurisdiction-rate types the rate-table
	// backend applies (comma separated, e.g. "State,County").
	PropRateTypes = "rate_types"
)

// Properties is the free-form per-call configuration supplied by the host.
type Properties map[string]string

// CompanyCode returns the company-code override, if any.
func (p Properties) CompanyCode() string {
	return p[PropCompanyCode]
}

// CustomerUsageType returns the customer usage-type/exemption code, if any.
func (p Properties) CustomerUsageType() string {
	return p[PropCustomerUsageType]
}

// TaxCodeOverride returns the per-item tax code override for the given
// taxable item, if any.
func (p Properties) TaxCodeOverride(itemID uuid.UUID) string {
	return p[PropTaxCodePrefix+itemID.String()]
}

// ItemCodeOverride returns the per-item item code override for the given
// taxable item, if any.
func (p Properties) ItemCodeOverride(itemID uuid.UUID) string {
	return p[PropItemCodePrefix+itemID.String()]
}

// RateTypeFilters returns the jurisdiction-rate type filter list. An empty
// result means all returned sub-rates apply.
func (p Properties) RateTypeFilters() []string {
	raw := p[PropRateTypes]
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
