package tax

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxflow/backend/internal/domain/shared"
	"github.com/taxflow/backend/internal/domain/shared/valueobject"
	"github.com/taxflow/backend/internal/domain/tax"
)

// memoryLedger is an in-memory append-only CallRecordRepository with
// injectable failures.
type memoryLedger struct {
	records   []*tax.CallRecord
	findErr   error
	appendErr error
}

func (m *memoryLedger) FindSuccessfulByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]tax.CallRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []tax.CallRecord
	for _, rec := range m.records {
		if rec.TenantID == tenantID && rec.InvoiceID == invoiceID && rec.Succeeded() {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memoryLedger) Append(ctx context.Context, record *tax.CallRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memoryLedger) recordsFor(invoiceID uuid.UUID) []*tax.CallRecord {
	var out []*tax.CallRecord
	for _, rec := range m.records {
		if rec.InvoiceID == invoiceID {
			out = append(out, rec)
		}
	}
	return out
}

// flatRateBackend applies a fixed 8.75% rate locally, mirroring the
// rate-table behavior closely enough to drive the engine end to end.
// Errors are injectable per document type: saleErr/returnErr surface as
// not-attempted calls, reject turns calls into recorded error outcomes.
type flatRateBackend struct {
	saleErr     error
	returnErr   error
	reject      bool
	saleCalls   int
	returnCalls int
	lastRefCode string
}

const flatRate = "0.0875"

func (b *flatRateBackend) Name() string { return "flat" }

func (b *flatRateBackend) ProcessSale(ctx context.Context, req tax.Request, group tax.SaleGroup) (*tax.CallResult, error) {
	b.saleCalls++
	if b.saleErr != nil {
		return nil, b.saleErr
	}
	code := tax.NewCorrelationCode(group.InvoiceID)
	if b.reject {
		return &tax.CallResult{CorrelationCode: code, Outcome: tax.CallOutcomeError, Summary: "rejected"}, nil
	}
	var lines []tax.TaxLineItem
	for _, item := range group.Items {
		amount := item.Amount.Mul(decimal.RequireFromString(flatRate)).Round(req.Invoice.Currency.Exponent())
		lines = append(lines, tax.NewTaxLineItem(req.Invoice.ID, item.ID, amount, req.Invoice.Currency, "", req.Invoice.Date))
	}
	return &tax.CallResult{
		CorrelationCode: code,
		Outcome:         tax.CallOutcomeSuccess,
		Summary:         fmt.Sprintf("sale: %d items", len(group.Items)),
		Lines:           lines,
	}, nil
}

func (b *flatRateBackend) ProcessReturn(ctx context.Context, req tax.Request, group tax.ReturnGroup) (*tax.CallResult, error) {
	b.returnCalls++
	if b.returnErr != nil {
		return nil, b.returnErr
	}
	b.lastRefCode = group.ReferenceCode
	code := tax.NewCorrelationCode(group.SourceInvoiceID)
	if b.reject {
		return &tax.CallResult{CorrelationCode: code, Outcome: tax.CallOutcomeError, Summary: "rejected"}, nil
	}
	var lines []tax.TaxLineItem
	for _, line := range group.Lines {
		amount := line.Net.Mul(decimal.RequireFromString(flatRate)).Round(req.Invoice.Currency.Exponent())
		tli := tax.NewTaxLineItem(req.Invoice.ID, line.Item.ID, amount, req.Invoice.Currency, "", line.Item.ServiceDate)
		if len(line.Adjustments) > 0 {
			id := line.Adjustments[0].ID
			tli.AdjustmentID = &id
		}
		lines = append(lines, tli)
	}
	return &tax.CallResult{
		CorrelationCode: code,
		Outcome:         tax.CallOutcomeSuccess,
		Summary:         fmt.Sprintf("return of %s: %d lines", group.SourceInvoiceID, len(group.Lines)),
		Lines:           lines,
	}, nil
}

type engineFixture struct {
	engine  *Engine
	ledger  *memoryLedger
	backend *flatRateBackend
	tenant  uuid.UUID
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	tenant := uuid.New()
	ledger := &memoryLedger{}
	backend := &flatRateBackend{}
	resolver := NewStaticBackendResolver("flat", nil, backend)
	return &engineFixture{
		engine:  NewEngine(ledger, resolver, nil),
		ledger:  ledger,
		backend: backend,
		tenant:  tenant,
	}
}

func (f *engineFixture) request(inv tax.Invoice) tax.Request {
	return tax.Request{
		TenantID: f.tenant,
		Account: tax.Account{
			ID:          uuid.New(),
			ExternalKey: "cust-1",
			Address:     valueobject.NewAddress("1 Market St", "San Francisco", "CA", "94105", "US"),
		},
		Invoice:    inv,
		Properties: tax.Properties{},
	}
}

func newInvoice(amounts ...string) tax.Invoice {
	inv := tax.Invoice{
		ID:       uuid.New(),
		Date:     time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Currency: valueobject.USD,
	}
	for _, amount := range amounts {
		inv.Items = append(inv.Items, tax.TaxableItem{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Amount:      decimal.RequireFromString(amount),
			Currency:    valueobject.USD,
			ServiceDate: inv.Date,
			PlanName:    "standard-monthly",
		})
	}
	return inv
}

func sumLines(lines []tax.TaxLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}

func TestComputeNewInvoiceThenIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	inv := newInvoice("100.00")
	req := f.request(inv)

	lines, err := f.engine.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, sumLines(lines).Equal(decimal.RequireFromString("8.75")))

	records := f.ledger.recordsFor(inv.ID)
	require.Len(t, records, 1)
	assert.True(t, records[0].Succeeded())
	assert.True(t, records[0].Coverage.Covers(inv.Items[0].ID))

	again, err := f.engine.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, f.ledger.recordsFor(inv.ID), 1, "settled invoice must not produce a second record")
	assert.Equal(t, 1, f.backend.saleCalls)
}

func TestComputePartialAdjustment(t *testing.T) {
	f := newEngineFixture(t)
	inv := newInvoice("100.00")

	_, err := f.engine.Compute(context.Background(), f.request(inv))
	require.NoError(t, err)

	adj := tax.AdjustmentItem{
		ID:             uuid.New(),
		InvoiceID:      inv.ID,
		Kind:           tax.AdjustmentKindItem,
		TaxedItemID:    inv.Items[0].ID,
		TaxedInvoiceID: inv.ID,
		Amount:         decimal.RequireFromString("-50.00"),
	}
	inv.Adjustments = append(inv.Adjustments, adj)

	lines, err := f.engine.Compute(context.Background(), f.request(inv))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	// -50.00 * 8.75% = -4.375, rounded to the cent
	assert.True(t, sumLines(lines).Equal(decimal.RequireFromString("-4.38")))
	require.NotNil(t, lines[0].AdjustmentID)
	assert.Equal(t, adj.ID, *lines[0].AdjustmentID)

	again, err := f.engine.Compute(context.Background(), f.request(inv))
	require.NoError(t, err)
	assert.Empty(t, again, "covered adjustment must not be credited twice")
}

func TestComputeRepairAcrossInvoices(t *testing.T) {
	f := newEngineFixture(t)
	invoiceA := newInvoice("100.00")

	_, err := f.engine.Compute(context.Background(), f.request(invoiceA))
	require.NoError(t, err)
	saleCode := f.ledger.recordsFor(invoiceA.ID)[0].CorrelationCode

	invoiceB := newInvoice("10.00")
	invoiceB.Adjustments = []tax.AdjustmentItem{{
		ID:             uuid.New(),
		InvoiceID:      invoiceB.ID,
		Kind:           tax.AdjustmentKindRepair,
		TaxedItemID:    invoiceA.Items[0].ID,
		TaxedInvoiceID: invoiceA.ID,
		Amount:         decimal.RequireFromString("-50.00"),
	}}
	invoiceB.ReferencedItems = invoiceA.Items

	lines, err := f.engine.Compute(context.Background(), f.request(invoiceB))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	// sale on the new 10.00 item plus the credit against invoice A
	assert.True(t, sumLines(lines).Equal(decimal.RequireFromString("-3.50")))
	assert.Equal(t, saleCode, f.backend.lastRefCode, "return must reference invoice A's original sale")

	// every line lands on invoice B, but the documents are recorded under
	// the invoice whose items they tax
	for _, line := range lines {
		assert.Equal(t, invoiceB.ID, line.InvoiceID)
	}
	assert.Len(t, f.ledger.recordsFor(invoiceB.ID), 1)
	assert.Len(t, f.ledger.recordsFor(invoiceA.ID), 2)
}

func TestComputeTransportFailureLeavesNoRecordAndRetries(t *testing.T) {
	f := newEngineFixture(t)
	f.backend.saleErr = errors.New("connection refused")
	inv := newInvoice("100.00")
	req := f.request(inv)

	lines, err := f.engine.Compute(context.Background(), req)
	require.NoError(t, err, "a group failure must not surface to the host")
	assert.Empty(t, lines)
	assert.Empty(t, f.ledger.records)

	f.backend.saleErr = nil
	lines, err = f.engine.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, f.backend.saleCalls, "unrecorded group must be retried, not skipped")
}

func TestComputeServiceRejectionIsRecordedButRetriable(t *testing.T) {
	f := newEngineFixture(t)
	f.backend.reject = true
	inv := newInvoice("100.00")
	req := f.request(inv)

	lines, err := f.engine.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, lines)

	records := f.ledger.recordsFor(inv.ID)
	require.Len(t, records, 1)
	assert.Equal(t, tax.CallOutcomeError, records[0].Outcome)

	// the error record claims no coverage, so the next run tries again
	f.backend.reject = false
	lines, err = f.engine.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Len(t, f.ledger.recordsFor(inv.ID), 2)
}

func TestComputeLedgerReadFailureIsFatal(t *testing.T) {
	f := newEngineFixture(t)
	f.ledger.findErr = errors.New("connection reset")

	lines, err := f.engine.Compute(context.Background(), f.request(newInvoice("100.00")))
	assert.Empty(t, lines)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrLedgerUnavailable)
	assert.Zero(t, f.backend.saleCalls, "no external call without readable history")
}

func TestComputeAppendFailureDropsLines(t *testing.T) {
	f := newEngineFixture(t)
	f.ledger.appendErr = errors.New("disk full")

	lines, err := f.engine.Compute(context.Background(), f.request(newInvoice("100.00")))
	require.NoError(t, err)
	assert.Empty(t, lines, "lines without durable coverage would be taxed again")
}

func TestComputeDryRunLeavesNoRecord(t *testing.T) {
	f := newEngineFixture(t)
	req := f.request(newInvoice("100.00"))
	req.DryRun = true

	lines, err := f.engine.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Empty(t, f.ledger.records)

	// the real run afterwards still sees the items as untaxed
	req.DryRun = false
	lines, err = f.engine.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Len(t, f.ledger.records, 1)
}

func TestComputeGroupFailuresAreIsolated(t *testing.T) {
	f := newEngineFixture(t)
	invoiceA := newInvoice("100.00")
	_, err := f.engine.Compute(context.Background(), f.request(invoiceA))
	require.NoError(t, err)

	invoiceB := newInvoice("10.00")
	invoiceB.Adjustments = []tax.AdjustmentItem{{
		ID:             uuid.New(),
		InvoiceID:      invoiceB.ID,
		Kind:           tax.AdjustmentKindRepair,
		TaxedItemID:    invoiceA.Items[0].ID,
		TaxedInvoiceID: invoiceA.ID,
		Amount:         decimal.RequireFromString("-50.00"),
	}}
	invoiceB.ReferencedItems = invoiceA.Items

	f.backend.returnErr = errors.New("timeout")
	lines, err := f.engine.Compute(context.Background(), f.request(invoiceB))
	require.NoError(t, err)
	require.Len(t, lines, 1, "sale group must proceed despite the return failure")
	assert.True(t, sumLines(lines).Equal(decimal.RequireFromString("0.88")))
}

func TestComputeCoverageStaysDisjoint(t *testing.T) {
	f := newEngineFixture(t)
	inv := newInvoice("100.00")

	_, err := f.engine.Compute(context.Background(), f.request(inv))
	require.NoError(t, err)

	for i, amount := range []string{"-30.00", "-20.00"} {
		inv.Adjustments = append(inv.Adjustments, tax.AdjustmentItem{
			ID:             uuid.New(),
			InvoiceID:      inv.ID,
			Kind:           tax.AdjustmentKindItem,
			TaxedItemID:    inv.Items[0].ID,
			TaxedInvoiceID: inv.ID,
			Amount:         decimal.RequireFromString(amount),
		})
		_, err := f.engine.Compute(context.Background(), f.request(inv))
		require.NoError(t, err, "adjustment round %d", i+1)
	}

	records := f.ledger.recordsFor(inv.ID)
	require.Len(t, records, 3)
	seen := map[uuid.UUID]bool{}
	for _, rec := range records {
		for adjID := range rec.Coverage[inv.Items[0].ID] {
			assert.False(t, seen[adjID], "adjustment %s covered by two records", adjID)
			seen[adjID] = true
		}
	}
	assert.Len(t, seen, 2)
}

func TestComputeMixedItemCurrenciesRejected(t *testing.T) {
	f := newEngineFixture(t)
	inv := newInvoice("100.00", "20.00")
	inv.Items[1].Currency = valueobject.EUR

	_, err := f.engine.Compute(context.Background(), f.request(inv))
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)
	assert.Equal(t, 0, f.backend.saleCalls, "mismatched invoice must not reach the backend")
	assert.Empty(t, f.ledger.recordsFor(inv.ID))
}

func TestComputeUnknownBackendTenant(t *testing.T) {
	ledger := &memoryLedger{}
	resolver := NewStaticBackendResolver("document", nil /* no backends registered */)
	engine := NewEngine(ledger, resolver, nil)

	tenant := uuid.New()
	_, err := engine.Compute(context.Background(), tax.Request{TenantID: tenant, Invoice: newInvoice("1.00")})
	assert.ErrorIs(t, err, shared.ErrTenantNotConfigured)
}

func TestResolverPerTenantOverride(t *testing.T) {
	docBackend := &flatRateBackend{}
	tenant := uuid.New()
	resolver := NewStaticBackendResolver("missing", map[string]string{tenant.String(): "flat"}, docBackend)

	backend, err := resolver.Resolve(tenant)
	require.NoError(t, err)
	assert.Equal(t, "flat", backend.Name())

	_, err = resolver.Resolve(uuid.New())
	assert.ErrorIs(t, err, shared.ErrTenantNotConfigured)
}
