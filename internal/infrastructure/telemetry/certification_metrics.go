package telemetry

import (
	"context"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// CertificationMetrics records row outcomes, certified amounts and file
// results. Amounts are counted in cents.
type CertificationMetrics struct {
	rows            *Counter
	certifiedAmount *Counter
	files           *Counter
	fileDuration    *Histogram
	recertified     *Counter
}

// NewCertificationMetrics creates the certification instruments on meter
func NewCertificationMetrics(meter metric.Meter) (*CertificationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	rows, err := NewCounter(meter, "certification.rows", "Rows certified, by outcome", "{row}")
	if err != nil {
		return nil, err
	}
	amount, err := NewCounter(meter, "certification.certified_amount", "Certified cost, by outcome", "{cent}")
	if err != nil {
		return nil, err
	}
	files, err := NewCounter(meter, "certification.files", "Files reaching a terminal state", "{file}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "certification.file.duration",
		Description: "Time from receipt to terminal state per file",
		Unit:        "ms",
		Boundaries:  FileDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	recertified, err := NewCounter(meter, "certification.rows.recertified", "Rows overwritten by a redelivered file", "{row}")
	if err != nil {
		return nil, err
	}

	return &CertificationMetrics{
		rows:            rows,
		certifiedAmount: amount,
		files:           files,
		fileDuration:    duration,
		recertified:     recertified,
	}, nil
}

// RecordRows counts rows committed with one outcome
func (m *CertificationMetrics) RecordRows(ctx context.Context, outcome string, rows int, certified decimal.Decimal) {
	m.rows.Add(ctx, int64(rows), AttrOutcome.String(outcome))
	m.certifiedAmount.Add(ctx, toCents(certified), AttrOutcome.String(outcome))
}

// RecordFile counts a terminal file state and its duration
func (m *CertificationMetrics) RecordFile(ctx context.Context, state string, elapsed time.Duration) {
	m.files.Inc(ctx, AttrFileState.String(state))
	m.fileDuration.Record(ctx, float64(elapsed.Microseconds())/1000, AttrFileState.String(state))
}

// RecordRecertified counts one overwritten row
func (m *CertificationMetrics) RecordRecertified(ctx context.Context) {
	m.recertified.Inc(ctx)
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

var _ appcert.Metrics = (*CertificationMetrics)(nil)
