package certification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/afp/backend/internal/domain/certification"
	csvimport "github.com/afp/backend/internal/infrastructure/import"
	"github.com/afp/backend/internal/infrastructure/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// FileArrival is one delivery of a claim file.
type FileArrival struct {
	Name    string
	Content []byte
}

// BatchService processes claim files. Rows run in file order inside one
// transaction per file, and the file either commits as a whole or leaves no
// trace.
type BatchService struct {
	scope       TransactionScope
	recorder    *Recorder
	guard       InFlightGuard
	publisher   EventPublisher
	metrics     Metrics
	fileTimeout time.Duration
	now         func() time.Time
	tracer      trace.Tracer
	logger      *zap.Logger
}

// BatchOption configures a BatchService
type BatchOption func(*BatchService)

// WithInFlightGuard sets the guard used to reject concurrent duplicate deliveries
func WithInFlightGuard(g InFlightGuard) BatchOption {
	return func(s *BatchService) {
		s.guard = g
	}
}

// WithEventPublisher sets the publisher for file outcome events
func WithEventPublisher(p EventPublisher) BatchOption {
	return func(s *BatchService) {
		s.publisher = p
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) BatchOption {
	return func(s *BatchService) {
		s.metrics = m
	}
}

// WithFileTimeout bounds the lifetime of each file transaction
func WithFileTimeout(d time.Duration) BatchOption {
	return func(s *BatchService) {
		s.fileTimeout = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) BatchOption {
	return func(s *BatchService) {
		s.now = now
	}
}

// NewBatchService creates a BatchService
func NewBatchService(scope TransactionScope, log *zap.Logger, opts ...BatchOption) *BatchService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &BatchService{
		scope:     scope,
		guard:     nopGuard{},
		publisher: nopPublisher{},
		metrics:   nopMetrics{},
		now:       time.Now,
		tracer:    otel.Tracer("afp/certification"),
		logger:    log.Named("certification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = NewRecorder()
	return s
}

// ProcessFile runs one file through the certification state machine.
//
// A skipped or committed file returns a result and a nil error. An aborted
// file returns both the result and the cause. ErrFileInFlight is returned
// without a result when another worker holds the file.
func (s *BatchService) ProcessFile(ctx context.Context, file FileArrival) (*BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "certification.ProcessFile",
		trace.WithAttributes(attribute.String("source_file", file.Name)))
	defer span.End()

	base := s.logger
	if id := logger.GetRequestID(ctx); id != "" {
		base = base.With(zap.String("request_id", id))
	}
	ctx = logger.WithSourceFile(logger.WithContext(ctx, base), file.Name)
	log := logger.L(ctx)

	acquired, err := s.guard.TryAcquire(ctx, file.Name)
	if err != nil {
		span.SetStatus(codes.Error, "in-flight guard unavailable")
		return nil, fmt.Errorf("acquire in-flight claim for %s: %w", file.Name, err)
	}
	if !acquired {
		log.Info("file already in flight, leaving it for a later delivery")
		return nil, ErrFileInFlight
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), file.Name); err != nil {
			log.Warn("failed to release in-flight claim", zap.Error(err))
		}
	}()

	result := newBatchResult(file.Name, s.now())
	procErr := s.run(ctx, file, result)
	result.FinishedAt = s.now()

	span.SetAttributes(
		attribute.String("state", string(result.State)),
		attribute.Int("rows", result.Rows),
	)
	s.metrics.RecordFile(ctx, string(result.State), result.Duration())

	switch result.State {
	case StateSkipped:
		log.Warn("file skipped", zap.String("reason", result.Reason))
		return result, nil
	case StateCommitted:
		for _, outcome := range certification.AllOutcomes() {
			if n := result.Outcomes[outcome]; n > 0 {
				s.metrics.RecordRows(ctx, outcome.String(), n, result.CertifiedByOutcome[outcome])
			}
		}
		for _, rc := range result.recertified {
			log.Warn("row re-certified; earlier ledger delta remains applied",
				zap.Int("row_number", rc.RowNumber),
				zap.String("previous_outcome", rc.PreviousOutcome.String()),
				zap.String("previous_certified", rc.PreviousCertified.StringFixed(certification.AmountScale)),
				zap.String("outcome", rc.Outcome.String()),
				zap.String("certified", rc.Certified.StringFixed(certification.AmountScale)),
			)
			s.metrics.RecordRecertified(ctx)
		}
		log.Info("file committed",
			zap.Int("rows", result.Rows),
			zap.Int("authorized", result.Outcomes[certification.OutcomeAuthorized]),
			zap.Int("partially_authorized", result.Outcomes[certification.OutcomePartiallyAuthorized]),
			zap.Int("deauthorized", result.Outcomes[certification.OutcomeDeauthorized]),
			zap.String("total_certified", result.TotalCertified.StringFixed(certification.AmountScale)),
			zap.Int("recertified", result.Recertified),
			zap.Duration("elapsed", result.Duration()),
		)
		s.publish(ctx, EventFileCertified, result)
		return result, nil
	default:
		span.RecordError(procErr)
		span.SetStatus(codes.Error, "file aborted")
		log.Error("file aborted, no rows kept", zap.Error(procErr))
		s.publish(ctx, EventFileAborted, result)
		return result, procErr
	}
}

func (s *BatchService) run(ctx context.Context, file FileArrival, result *BatchResult) error {
	if utf8.RuneCountInString(file.Name) > certification.MaxSourceLength {
		return s.skip(result, fmt.Sprintf("file name exceeds %d characters", certification.MaxSourceLength))
	}
	sheet, err := csvimport.DecodeClaimFile(file.Name, file.Content)
	if err != nil {
		return s.skip(result, fmt.Sprintf("undecodable file: %v", err))
	}
	if missing := sheet.MissingColumns(certification.RequiredColumns()); len(missing) > 0 {
		return s.skip(result, "missing required columns: "+strings.Join(missing, ", "))
	}
	if err := result.transition(StateHeadersChecked); err != nil {
		return err
	}

	txCtx := ctx
	if s.fileTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.fileTimeout)
		defer cancel()
	}

	tally := newRowTally()
	err = s.scope.Execute(txCtx, func(repos TransactionalRepositories) error {
		if err := result.transition(StateRowsProcessing); err != nil {
			return err
		}
		for _, row := range sheet.Rows {
			rec, recert, err := s.processRow(txCtx, repos, file.Name, row)
			if err != nil {
				return fmt.Errorf("row %d: %w", row.Number, err)
			}
			tally.add(rec, recert)
		}
		return nil
	})
	if err != nil {
		if errors.Is(txCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, certification.ErrLockTimeout) {
			err = fmt.Errorf("%w: %w", ErrFileTimeout, err)
		}
		if terr := result.transition(StateAborted); terr != nil {
			return errors.Join(err, terr)
		}
		result.Reason = err.Error()
		return err
	}

	if err := result.transition(StateCommitted); err != nil {
		return err
	}
	result.Rows = tally.rows
	result.Outcomes = tally.outcomes
	result.TotalCertified = tally.total()
	result.CertifiedByOutcome = tally.certified
	result.Recertified = len(tally.recertified)
	result.recertified = tally.recertified
	return nil
}

// processRow runs one row through validation, certification and recording.
// The returned error is always an infrastructure failure.
func (s *BatchService) processRow(ctx context.Context, repos TransactionalRepositories, source string, row *csvimport.Row) (*certification.ProcessedRecord, *Recertification, error) {
	at := s.now()
	payload := row.Payload()

	raw := certification.NewRawRecord(source, row.Number, certification.ExtractRawFields(row.Fields), payload, at)
	if err := s.recorder.RecordRaw(ctx, repos.Records(), raw); err != nil {
		return nil, nil, err
	}

	var rec *certification.ProcessedRecord
	validated := certification.ValidateRow(row.Fields)
	if !validated.Valid() {
		rec = certification.NewRejectedRecord(source, row.Number, *validated.Failure, payload, at)
	} else {
		decision, err := certification.Certify(ctx, *validated.Claim, repos.Ledgers())
		if err != nil {
			return nil, nil, err
		}
		rec = certification.NewProcessedRecord(source, row.Number, *validated.Claim, decision, payload, at)
	}

	recert, err := s.recorder.RecordProcessed(ctx, repos.Records(), rec)
	if err != nil {
		return nil, nil, err
	}

	logger.L(ctx).Debug("row certified",
		zap.Int("row_number", row.Number),
		zap.String("outcome", rec.Certification.String()),
		zap.String("certified", rec.CertifiedCost.StringFixed(certification.AmountScale)),
	)
	return rec, recert, nil
}

func (s *BatchService) skip(result *BatchResult, reason string) error {
	if err := result.transition(StateSkipped); err != nil {
		return err
	}
	result.Reason = reason
	return nil
}

func (s *BatchService) publish(ctx context.Context, eventType string, result *BatchResult) {
	event := FileEvent{
		Type:           eventType,
		SourceFile:     result.SourceFile,
		State:          result.State,
		Reason:         result.Reason,
		Rows:           result.Rows,
		Outcomes:       result.Outcomes,
		TotalCertified: result.TotalCertified,
		OccurredAt:     result.FinishedAt,
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.L(ctx).Warn("failed to publish file event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
