package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/taxflow/backend/internal/domain/tax"
	"github.com/taxflow/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormCallRecordRepository implements tax.CallRecordRepository using GORM
type GormCallRecordRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormCallRecordRepository creates a new GormCallRecordRepository
func NewGormCallRecordRepository(db *gorm.DB, logger *zap.Logger) *GormCallRecordRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormCallRecordRepository{db: db, logger: logger}
}

// FindSuccessfulByInvoice returns the successful ledger entries for one
// invoice in insertion order. Rows whose coverage cannot be decoded are
// logged and skipped rather than failing the whole read; a skipped row
// means its calls get retried, which the external service tolerates.
func (r *GormCallRecordRepository) FindSuccessfulByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]tax.CallRecord, error) {
	var rows []models.CallRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ? AND outcome = ?", tenantID, invoiceID, string(tax.CallOutcomeSuccess)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load call records for invoice %s: %w", invoiceID, err)
	}

	records := make([]tax.CallRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.ToDomain()
		if err != nil {
			r.logger.Warn("skipping call record with corrupt coverage",
				zap.String("call_record_id", row.ID.String()),
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(err))
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Append inserts one ledger entry. Entries are never updated or deleted.
func (r *GormCallRecordRepository) Append(ctx context.Context, record *tax.CallRecord) error {
	var model models.CallRecordModel
	model.FromDomain(record)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to append call record %s: %w", record.CorrelationCode, err)
	}
	return nil
}
