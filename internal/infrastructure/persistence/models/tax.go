package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taxflow/backend/internal/domain/tax"
)

// CoverageJSON stores a call record's item/adjustment coverage as JSONB:
// {"<taxable item id>": ["<adjustment id>", ...], ...}. A sale call maps
// each item to an empty array.
type CoverageJSON map[string][]string

// Value implements driver.Valuer interface for GORM to store as JSONB
func (c CoverageJSON) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (c *CoverageJSON) Scan(value interface{}) error {
	if value == nil {
		*c = CoverageJSON{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan CoverageJSON: unsupported type")
	}

	if len(bytes) == 0 {
		*c = CoverageJSON{}
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// CallRecordModel is the persistence model for the append-only external
// call ledger. Rows are inserted once and never updated.
type CallRecordModel struct {
	ID              uuid.UUID    `gorm:"type:uuid;primary_key"`
	CreatedAt       time.Time    `gorm:"not null;index:idx_call_records_invoice,priority:3"`
	TenantID        uuid.UUID    `gorm:"type:uuid;not null;index:idx_call_records_invoice,priority:1"`
	InvoiceID       uuid.UUID    `gorm:"type:uuid;not null;index:idx_call_records_invoice,priority:2"`
	CorrelationCode string       `gorm:"type:varchar(50);not null;uniqueIndex"`
	Outcome         string       `gorm:"type:varchar(10);not null"`
	Summary         string       `gorm:"type:text"`
	Coverage        CoverageJSON `gorm:"type:jsonb;default:'{}'"`
}

// TableName returns the table name for GORM
func (CallRecordModel) TableName() string {
	return "tax_call_records"
}

// FromDomain populates the model from a domain CallRecord
func (m *CallRecordModel) FromDomain(r *tax.CallRecord) {
	m.ID = r.ID
	m.CreatedAt = r.CreatedAt
	m.TenantID = r.TenantID
	m.InvoiceID = r.InvoiceID
	m.CorrelationCode = r.CorrelationCode
	m.Outcome = string(r.Outcome)
	m.Summary = r.Summary

	cov := make(CoverageJSON, len(r.Coverage))
	for itemID, adjs := range r.Coverage {
		ids := make([]string, 0, len(adjs))
		for adjID := range adjs {
			ids = append(ids, adjID.String())
		}
		cov[itemID.String()] = ids
	}
	m.Coverage = cov
}

// ToDomain converts the persistence model to a domain CallRecord. It fails
// on malformed coverage UUIDs so the repository can decide whether to skip
// the row.
func (m *CallRecordModel) ToDomain() (*tax.CallRecord, error) {
	cov := tax.NewCoverage()
	for itemStr, adjStrs := range m.Coverage {
		itemID, err := uuid.Parse(itemStr)
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q in coverage: %w", itemStr, err)
		}
		cov.AddItem(itemID)
		for _, adjStr := range adjStrs {
			adjID, err := uuid.Parse(adjStr)
			if err != nil {
				return nil, fmt.Errorf("invalid adjustment id %q in coverage: %w", adjStr, err)
			}
			cov.AddAdjustments(itemID, adjID)
		}
	}

	rec := &tax.CallRecord{
		InvoiceID:       m.InvoiceID,
		CorrelationCode: m.CorrelationCode,
		Outcome:         tax.CallOutcome(m.Outcome),
		Summary:         m.Summary,
		Coverage:        cov,
	}
	rec.ID = m.ID
	rec.CreatedAt = m.CreatedAt
	rec.TenantID = m.TenantID
	return rec, nil
}
