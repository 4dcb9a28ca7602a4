package certification

import (
	"context"
	"fmt"

	"github.com/afp/backend/internal/domain/certification"
	"github.com/afp/backend/internal/domain/shared"
)

const (
	DefaultRecordLimit = 100
	MaxRecordLimit     = 1000
)

// RecordQuery is the read-side filter as received from callers
type RecordQuery struct {
	Limit  int
	Status string
	Source string
}

// RecordService serves processed and raw records
type RecordService struct {
	reader certification.RecordReader
}

// NewRecordService creates a RecordService
func NewRecordService(reader certification.RecordReader) *RecordService {
	return &RecordService{reader: reader}
}

// ListProcessed returns processed records newest first
func (s *RecordService) ListProcessed(ctx context.Context, q RecordQuery) ([]certification.ProcessedRecord, error) {
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	records, err := s.reader.ListProcessed(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list processed records: %w", err)
	}
	return records, nil
}

// ListRaw returns raw records newest first. Status is ignored.
func (s *RecordService) ListRaw(ctx context.Context, q RecordQuery) ([]certification.RawRecord, error) {
	q.Status = ""
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	records, err := s.reader.ListRaw(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list raw records: %w", err)
	}
	return records, nil
}

func (q RecordQuery) filter() (certification.RecordFilter, error) {
	f := certification.RecordFilter{Limit: q.Limit, SourceBlob: q.Source}
	switch {
	case q.Limit == 0:
		f.Limit = DefaultRecordLimit
	case q.Limit < 1 || q.Limit > MaxRecordLimit:
		return f, shared.NewDomainError("INVALID_LIMIT", fmt.Sprintf("limit must be between 1 and %d", MaxRecordLimit))
	}
	if q.Status != "" {
		outcome, ok := certification.ParseOutcome(q.Status)
		if !ok {
			return f, shared.NewDomainError("INVALID_STATUS",
				"status must be one of authorized, partially_authorized, deauthorized")
		}
		f.Outcome = &outcome
	}
	return f, nil
}
