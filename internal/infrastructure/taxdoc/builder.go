package taxdoc

import (
	"fmt"

	"github.com/taxflow/backend/internal/domain/shared/valueobject"
	"github.com/taxflow/backend/internal/domain/tax"
)

// overrideReason is sent with as-of-date overrides so provider-side audit
// trails explain why a return is taxed under past rates.
const overrideReason = "Refund of previously taxed item"

// BuildSale assembles the document request for a sale group. Every item
// is taxed for its full amount on the target invoice's date.
func BuildSale(req tax.Request, group tax.SaleGroup, code, companyCode string) (*CreateTransactionRequest, error) {
	if len(group.Items) == 0 {
		return nil, tax.ErrEmptyDocument
	}
	shipTo, err := docAddress(req.Account.Address)
	if err != nil {
		return nil, err
	}

	docType := DocTypeSalesInvoice
	if req.DryRun {
		docType = DocTypeSalesOrder
	}

	doc := &CreateTransactionRequest{
		Code:              code,
		Type:              docType,
		Date:              FormatWireDate(req.Invoice.Date),
		CompanyCode:       resolveCompanyCode(req.Properties, companyCode),
		CustomerCode:      customerCode(req.Account),
		CurrencyCode:      req.Invoice.Currency.String(),
		Commit:            !req.DryRun,
		CustomerUsageType: req.Properties.CustomerUsageType(),
		Addresses:         Addresses{ShipTo: shipTo},
	}

	for _, item := range group.Items {
		doc.Lines = append(doc.Lines, TransactionLine{
			Number:      item.ID.String(),
			Amount:      item.Amount,
			ItemCode:    itemCode(req.Properties, item),
			TaxCode:     req.Properties.TaxCodeOverride(item.ID),
			Description: item.Description,
		})
	}
	return doc, nil
}

// BuildReturn assembles the document request for a return group. Each
// line credits the net-new adjustment amount of one already-taxed item,
// taxed as of the date the item was originally billed so rate changes
// between sale and refund cannot skew the credited tax.
func BuildReturn(req tax.Request, group tax.ReturnGroup, code, companyCode string) (*CreateTransactionRequest, error) {
	if len(group.Lines) == 0 {
		return nil, tax.ErrEmptyDocument
	}
	if group.ReferenceCode == "" {
		return nil, tax.ErrMissingReferenceCode
	}
	shipTo, err := docAddress(req.Account.Address)
	if err != nil {
		return nil, err
	}

	docType := DocTypeReturnInvoice
	if req.DryRun {
		docType = DocTypeReturnOrder
	}

	doc := &CreateTransactionRequest{
		Code:              code,
		Type:              docType,
		Date:              FormatWireDate(req.Invoice.Date),
		CompanyCode:       resolveCompanyCode(req.Properties, companyCode),
		CustomerCode:      customerCode(req.Account),
		CurrencyCode:      req.Invoice.Currency.String(),
		Commit:            !req.DryRun,
		ReferenceCode:     group.ReferenceCode,
		CustomerUsageType: req.Properties.CustomerUsageType(),
		Addresses:         Addresses{ShipTo: shipTo},
	}

	for _, line := range group.Lines {
		if line.Net.Abs().GreaterThan(line.Item.Amount.Abs()) {
			return nil, fmt.Errorf("%w: item %s, adjustment %s exceeds original %s",
				tax.ErrAdjustmentExceedsOriginal, line.Item.ID, line.Net, line.Item.Amount)
		}
		doc.Lines = append(doc.Lines, TransactionLine{
			Number:      line.Item.ID.String(),
			Amount:      line.Net,
			ItemCode:    itemCode(req.Properties, line.Item),
			TaxCode:     req.Properties.TaxCodeOverride(line.Item.ID),
			Description: line.Item.Description,
			TaxOverride: &TaxOverride{
				Type:    TaxOverrideTypeTaxDate,
				TaxDate: FormatWireDate(line.Item.ServiceDate),
				Reason:  overrideReason,
			},
		})
	}
	return doc, nil
}

// itemCode derives a stable provider-side item code: an explicit per-item
// override wins, then the most specific name the host supplied.
func itemCode(props tax.Properties, item tax.TaxableItem) string {
	switch {
	case props.ItemCodeOverride(item.ID) != "":
		return props.ItemCodeOverride(item.ID)
	case item.UsageName != "":
		return item.UsageName
	case item.PhaseName != "":
		return item.PhaseName
	case item.PlanName != "":
		return item.PlanName
	default:
		return item.Description
	}
}

func customerCode(account tax.Account) string {
	if account.ExternalKey != "" {
		return account.ExternalKey
	}
	return account.ID.String()
}

func resolveCompanyCode(props tax.Properties, configured string) string {
	if code := props.CompanyCode(); code != "" {
		return code
	}
	return configured
}

// docAddress converts the account address to wire format. The document
// service needs at least a postal-code level destination.
func docAddress(addr valueobject.Address) (*DocAddress, error) {
	if !addr.HasPostal() {
		return nil, tax.ErrIncompleteAddress
	}
	return &DocAddress{
		Line1:      addr.Street(),
		City:       addr.City(),
		Region:     addr.Region(),
		PostalCode: addr.PostalCode(),
		Country:    addr.Country(),
	}, nil
}
