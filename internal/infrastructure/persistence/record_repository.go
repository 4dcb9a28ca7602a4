package persistence

import (
	"context"
	"errors"

	"github.com/afp/backend/internal/domain/certification"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRecordRepository implements both sides of the audit tables
type GormRecordRepository struct {
	db *gorm.DB
}

// NewGormRecordRepository creates a new GormRecordRepository
func NewGormRecordRepository(db *gorm.DB) *GormRecordRepository {
	return &GormRecordRepository{db: db}
}

// UpsertRaw inserts the raw row, overwriting an earlier delivery of the same (source, row)
func (r *GormRecordRepository) UpsertRaw(ctx context.Context, rec *certification.RawRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source_blob"}, {Name: "row_number"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"project", "cost_category", "po", "cost_amount", "raw_payload", "ingested_at",
			}),
		}).
		Create(rec).Error
}

// UpsertProcessed inserts the decision for (source, row) and returns the one it replaced
func (r *GormRecordRepository) UpsertProcessed(ctx context.Context, rec *certification.ProcessedRecord) (*certification.ProcessedRecord, error) {
	db := r.db.WithContext(ctx)

	var previous *certification.ProcessedRecord
	var existing certification.ProcessedRecord
	err := db.Where("source_blob = ? AND row_number = ?", rec.SourceBlob, rec.RowNumber).Take(&existing).Error
	switch {
	case err == nil:
		previous = &existing
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_blob"}, {Name: "row_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"project", "cost_category", "po", "cost_amount", "certification", "certified_cost",
			"po_remaining_before", "category_remaining_before", "error_message", "raw_payload", "processed_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// ListProcessed returns processed records newest first
func (r *GormRecordRepository) ListProcessed(ctx context.Context, filter certification.RecordFilter) ([]certification.ProcessedRecord, error) {
	q := r.db.WithContext(ctx).Order("id DESC")
	if filter.Outcome != nil {
		q = q.Where("certification = ?", string(*filter.Outcome))
	}
	if filter.SourceBlob != "" {
		q = q.Where("source_blob = ?", filter.SourceBlob)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []certification.ProcessedRecord
	return out, q.Find(&out).Error
}

// ListRaw returns raw records newest first. The outcome filter does not apply.
func (r *GormRecordRepository) ListRaw(ctx context.Context, filter certification.RecordFilter) ([]certification.RawRecord, error) {
	q := r.db.WithContext(ctx).Order("id DESC")
	if filter.SourceBlob != "" {
		q = q.Where("source_blob = ?", filter.SourceBlob)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []certification.RawRecord
	return out, q.Find(&out).Error
}

var _ certification.RecordWriter = (*GormRecordRepository)(nil)
var _ certification.RecordReader = (*GormRecordRepository)(nil)
