package tax

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleGroup collects the invoice's items that have never been through a
// successful tax call. They are taxed for their full amount in a single
// sale document on the target invoice.
type SaleGroup struct {
	InvoiceID uuid.UUID
	Items     []TaxableItem
}

// Coverage returns the ledger coverage a call for this group accounts for:
// each item taxed, no adjustments.
func (g SaleGroup) Coverage() Coverage {
	cov := NewCoverage()
	for _, it := range g.Items {
		cov.AddItem(it.ID)
	}
	return cov
}

// ReturnLine pairs an already-taxed item with the net-new adjustments that
// have not been accounted for by any prior successful call. Net is the
// signed sum of only those adjustments; this is what keeps repeated
// partial adjustments additive instead of re-crediting the whole balance.
type ReturnLine struct {
	Item        TaxableItem
	Adjustments []AdjustmentItem
	Net         decimal.Decimal
}

// AdjustmentIDs returns the IDs of the line's net-new adjustments.
func (l ReturnLine) AdjustmentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(l.Adjustments))
	for i, adj := range l.Adjustments {
		ids[i] = adj.ID
	}
	return ids
}

// ReturnGroup collects the return lines crediting items billed on one
// original invoice. The external document format supports a single
// reference invoice per call, so classification produces one group per
// distinct source invoice. ReferenceCode is the correlation code of the
// source invoice's earliest successful call.
type ReturnGroup struct {
	SourceInvoiceID uuid.UUID
	ReferenceCode   string
	Lines           []ReturnLine
}

// Coverage returns the ledger coverage a call for this group accounts for:
// each credited item with exactly its net-new adjustments.
func (g ReturnGroup) Coverage() Coverage {
	cov := NewCoverage()
	for _, line := range g.Lines {
		cov.AddAdjustments(line.Item.ID, line.AdjustmentIDs()...)
	}
	return cov
}

// SkipReason explains why an adjustment was left out of classification.
type SkipReason string

const (
	// SkipReasonUnknownItem: the adjustment references a taxable item the
	// host did not supply; amounts cannot be validated without it.
	SkipReasonUnknownItem SkipReason = "REFERENCED_ITEM_NOT_SUPPLIED"
	// SkipReasonItemNotTaxed: the referenced item has no successful sale
	// call yet; the credit is deferred until the item has been taxed.
	SkipReasonItemNotTaxed SkipReason = "REFERENCED_ITEM_NOT_TAXED"
	// SkipReasonNoReferenceCode: the source invoice has no successful call
	// to reference; a return document cannot be built without one.
	SkipReasonNoReferenceCode SkipReason = "NO_REFERENCE_CODE"
)

// SkippedAdjustment records one adjustment excluded from this run. Skipped
// adjustments stay uncovered in the ledger and are reconsidered on the
// next invocation.
type SkippedAdjustment struct {
	Adjustment AdjustmentItem
	Reason     SkipReason
}

// Classification is the derived (never persisted) work plan for one
// Compute invocation: at most one sale group plus one return group per
// referenced source invoice.
type Classification struct {
	Sale    *SaleGroup
	Returns []ReturnGroup
	Skipped []SkippedAdjustment
}

// IsEmpty returns true when nothing needs an external call.
func (c Classification) IsEmpty() bool {
	return c.Sale == nil && len(c.Returns) == 0
}

// Classify derives the work plan for the invoice from the reconstructed
// call history.
//
// Every item with no prior successful call goes into the sale group for
// its full amount. Every adjustment not yet present in any successful
// record's coverage drives a return line on the group of the invoice its
// referenced item was billed on; adjustments already covered are dropped,
// which makes repeated invocations with unchanged input produce an empty
// classification.
func Classify(inv Invoice, history *CallHistory) Classification {
	cov := history.Coverage()
	var out Classification

	var saleItems []TaxableItem
	for _, it := range inv.Items {
		if !cov.Covers(it.ID) {
			saleItems = append(saleItems, it)
		}
	}
	if len(saleItems) > 0 {
		out.Sale = &SaleGroup{InvoiceID: inv.ID, Items: saleItems}
	}

	idx := inv.ItemIndex()

	// Group net-new adjustments strictly by the referenced item's invoice,
	// preserving first-appearance order for deterministic output.
	type pendingLine struct {
		item TaxableItem
		adjs []AdjustmentItem
	}
	type pendingGroup struct {
		sourceInvoiceID uuid.UUID
		lineOrder       []uuid.UUID
		lines           map[uuid.UUID]*pendingLine
	}
	groupOrder := make([]uuid.UUID, 0)
	groups := make(map[uuid.UUID]*pendingGroup)

	for _, adj := range inv.Adjustments {
		item, ok := idx[adj.TaxedItemID]
		if !ok {
			out.Skipped = append(out.Skipped, SkippedAdjustment{Adjustment: adj, Reason: SkipReasonUnknownItem})
			continue
		}
		if !cov.Covers(adj.TaxedItemID) {
			// The item is either in this run's sale group or was never
			// taxed at all; the credit waits for a taxed baseline.
			out.Skipped = append(out.Skipped, SkippedAdjustment{Adjustment: adj, Reason: SkipReasonItemNotTaxed})
			continue
		}
		if cov.CoversAdjustment(adj.TaxedItemID, adj.ID) {
			continue // already accounted for by a prior call
		}

		grp, ok := groups[adj.TaxedInvoiceID]
		if !ok {
			grp = &pendingGroup{
				sourceInvoiceID: adj.TaxedInvoiceID,
				lines:           make(map[uuid.UUID]*pendingLine),
			}
			groups[adj.TaxedInvoiceID] = grp
			groupOrder = append(groupOrder, adj.TaxedInvoiceID)
		}
		line, ok := grp.lines[adj.TaxedItemID]
		if !ok {
			line = &pendingLine{item: item}
			grp.lines[adj.TaxedItemID] = line
			grp.lineOrder = append(grp.lineOrder, adj.TaxedItemID)
		}
		line.adjs = append(line.adjs, adj)
	}

	for _, sourceID := range groupOrder {
		grp := groups[sourceID]
		refCode, ok := history.FirstCorrelation(sourceID)
		if !ok {
			// A covered item implies a successful call exists, but guard
			// against a ledger that covers items under a different invoice
			// than the adjustments claim.
			for _, itemID := range grp.lineOrder {
				for _, adj := range grp.lines[itemID].adjs {
					out.Skipped = append(out.Skipped, SkippedAdjustment{Adjustment: adj, Reason: SkipReasonNoReferenceCode})
				}
			}
			continue
		}

		rg := ReturnGroup{SourceInvoiceID: sourceID, ReferenceCode: refCode}
		for _, itemID := range grp.lineOrder {
			line := grp.lines[itemID]
			net := decimal.Zero
			for _, adj := range line.adjs {
				net = net.Add(adj.Amount)
			}
			rg.Lines = append(rg.Lines, ReturnLine{
				Item:        line.item,
				Adjustments: line.adjs,
				Net:         net,
			})
		}
		out.Returns = append(out.Returns, rg)
	}

	return out
}
