package certification

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessedRecord is the audited decision for one row of one source file.
// (SourceBlob, RowNumber) is unique.
type ProcessedRecord struct {
	ID                      uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	SourceBlob              string          `gorm:"column:source_blob;type:varchar(512);not null;uniqueIndex:uq_processed_source_row,priority:1"`
	RowNumber               int             `gorm:"column:row_number;not null;uniqueIndex:uq_processed_source_row,priority:2"`
	Project                 string          `gorm:"column:project;type:varchar(255);not null"`
	CostCategory            string          `gorm:"column:cost_category;type:varchar(64);not null"`
	PO                      string          `gorm:"column:po;type:varchar(64);not null"`
	CostAmount              decimal.Decimal `gorm:"column:cost_amount;type:decimal(18,2);not null"`
	Certification           Outcome         `gorm:"column:certification;type:varchar(32);not null;index"`
	CertifiedCost           decimal.Decimal `gorm:"column:certified_cost;type:decimal(18,2);not null"`
	PORemainingBefore       decimal.Decimal `gorm:"column:po_remaining_before;type:decimal(18,2);not null"`
	CategoryRemainingBefore decimal.Decimal `gorm:"column:category_remaining_before;type:decimal(18,2);not null"`
	ErrorMessage            *string         `gorm:"column:error_message;type:text"`
	RawPayload              string          `gorm:"column:raw_payload;type:text;not null"`
	ProcessedAt             time.Time       `gorm:"column:processed_at;not null"`
}

// TableName returns the table name for GORM
func (ProcessedRecord) TableName() string {
	return "application_payments_processed"
}

// RawRecord is the unfiltered ingestion trail for one row.
type RawRecord struct {
	ID           uint64              `gorm:"column:id;primaryKey;autoIncrement"`
	SourceBlob   string              `gorm:"column:source_blob;type:varchar(512);not null;uniqueIndex:uq_raw_source_row,priority:1"`
	RowNumber    int                 `gorm:"column:row_number;not null;uniqueIndex:uq_raw_source_row,priority:2"`
	Project      *string             `gorm:"column:project;type:varchar(255)"`
	CostCategory *string             `gorm:"column:cost_category;type:varchar(64)"`
	PO           *string             `gorm:"column:po;type:varchar(64)"`
	CostAmount   decimal.NullDecimal `gorm:"column:cost_amount;type:decimal(18,2)"`
	RawPayload   string              `gorm:"column:raw_payload;type:text;not null"`
	IngestedAt   time.Time           `gorm:"column:ingested_at;not null"`
}

// TableName returns the table name for GORM
func (RawRecord) TableName() string {
	return "application_payments_raw"
}

// NewProcessedRecord builds the processed record for a certified claim.
func NewProcessedRecord(source string, row int, claim Claim, d Decision, payload string, at time.Time) *ProcessedRecord {
	rec := &ProcessedRecord{
		SourceBlob:              source,
		RowNumber:               row,
		Project:                 claim.Project,
		CostCategory:            claim.CategoryID,
		PO:                      claim.POID,
		CostAmount:              claim.CostAmount,
		Certification:           d.Outcome,
		CertifiedCost:           d.Certified,
		PORemainingBefore:       d.PORemainingBefore,
		CategoryRemainingBefore: d.CategoryRemainingBefore,
		RawPayload:              payload,
		ProcessedAt:             at,
	}
	if d.ErrorMessage != "" {
		msg := d.ErrorMessage
		rec.ErrorMessage = &msg
	}
	return rec
}

// NewRejectedRecord builds the processed record for a row that failed
// validation. Identifiers are clipped to their column widths.
func NewRejectedRecord(source string, row int, f ValidationFailure, payload string, at time.Time) *ProcessedRecord {
	reason := f.Reason
	return &ProcessedRecord{
		SourceBlob:              source,
		RowNumber:               row,
		Project:                 clip(f.Project, MaxProjectLength),
		CostCategory:            clip(f.CategoryID, MaxIdentifierLength),
		PO:                      clip(f.POID, MaxIdentifierLength),
		CostAmount:              decimal.Zero,
		Certification:           OutcomeDeauthorized,
		CertifiedCost:           decimal.Zero,
		PORemainingBefore:       decimal.Zero,
		CategoryRemainingBefore: decimal.Zero,
		ErrorMessage:            &reason,
		RawPayload:              payload,
		ProcessedAt:             at,
	}
}

// NewRawRecord builds the raw record for a row.
func NewRawRecord(source string, row int, fields RawFields, payload string, at time.Time) *RawRecord {
	return &RawRecord{
		SourceBlob:   source,
		RowNumber:    row,
		Project:      fields.Project,
		CostCategory: fields.CostCategory,
		PO:           fields.PO,
		CostAmount:   fields.CostAmount,
		RawPayload:   payload,
		IngestedAt:   at,
	}
}
