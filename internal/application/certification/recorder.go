package certification

import (
	"context"
	"fmt"

	"github.com/afp/backend/internal/domain/certification"
	"github.com/shopspring/decimal"
)

// Recorder writes the audit trail for each row: the raw record always, and
// the processed record with the full decision context.
type Recorder struct{}

// NewRecorder creates a Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Recertification describes a processed record that overwrote an earlier
// one which had certified a positive amount. That earlier ledger delta stays
// applied.
type Recertification struct {
	RowNumber         int
	PreviousOutcome   certification.Outcome
	PreviousCertified decimal.Decimal
	Outcome           certification.Outcome
	Certified         decimal.Decimal
}

// RecordRaw upserts the raw record for a row regardless of its validity.
func (r *Recorder) RecordRaw(ctx context.Context, w certification.RecordWriter, rec *certification.RawRecord) error {
	if err := w.UpsertRaw(ctx, rec); err != nil {
		return fmt.Errorf("upsert raw record: %w", err)
	}
	return nil
}

// RecordProcessed upserts the processed record. It returns a non-nil
// Recertification when the upsert replaced a record with a positive certified
// cost; the caller reports it once the file commits.
func (r *Recorder) RecordProcessed(ctx context.Context, w certification.RecordWriter, rec *certification.ProcessedRecord) (*Recertification, error) {
	previous, err := w.UpsertProcessed(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("upsert processed record: %w", err)
	}
	if previous == nil || !previous.CertifiedCost.IsPositive() {
		return nil, nil
	}
	return &Recertification{
		RowNumber:         rec.RowNumber,
		PreviousOutcome:   previous.Certification,
		PreviousCertified: previous.CertifiedCost,
		Outcome:           rec.Certification,
		Certified:         rec.CertifiedCost,
	}, nil
}
