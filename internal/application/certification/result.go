package certification

import (
	"errors"
	"fmt"
	"time"

	"github.com/afp/backend/internal/domain/certification"
	"github.com/shopspring/decimal"
)

// FileState is the lifecycle state of one arrived claim file.
type FileState string

const (
	StateReceived       FileState = "received"
	StateHeadersChecked FileState = "headers_checked"
	StateRowsProcessing FileState = "rows_processing"
	StateCommitted      FileState = "committed"
	StateAborted        FileState = "aborted"
	StateSkipped        FileState = "skipped"
)

var transitions = map[FileState][]FileState{
	StateReceived:       {StateHeadersChecked, StateSkipped},
	StateHeadersChecked: {StateRowsProcessing, StateAborted},
	StateRowsProcessing: {StateCommitted, StateAborted},
}

// IsTerminal reports whether no further transition is possible
func (s FileState) IsTerminal() bool {
	return s == StateCommitted || s == StateAborted || s == StateSkipped
}

// CanTransitionTo reports whether s -> to is a legal transition
func (s FileState) CanTransitionTo(to FileState) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

var (
	// ErrFileInFlight is returned when another worker currently holds the file.
	ErrFileInFlight = errors.New("file is already being processed")

	// ErrFileTimeout is returned when a file transaction outlives its deadline.
	ErrFileTimeout = errors.New("file processing deadline exceeded")

	// ErrIllegalTransition signals a bug in the orchestrator.
	ErrIllegalTransition = errors.New("illegal file state transition")
)

// BatchResult summarizes the processing of one file.
type BatchResult struct {
	SourceFile         string                                    `json:"source_file"`
	State              FileState                                 `json:"state"`
	Reason             string                                    `json:"reason,omitempty"`
	Rows               int                                       `json:"rows"`
	Outcomes           map[certification.Outcome]int             `json:"outcomes"`
	CertifiedByOutcome map[certification.Outcome]decimal.Decimal `json:"certified_by_outcome"`
	TotalCertified     decimal.Decimal                           `json:"total_certified"`
	Recertified        int                                       `json:"recertified"`
	StartedAt          time.Time                                 `json:"started_at"`
	FinishedAt         time.Time                                 `json:"finished_at"`

	recertified []Recertification
}

func newBatchResult(source string, startedAt time.Time) *BatchResult {
	return &BatchResult{
		SourceFile:         source,
		State:              StateReceived,
		Outcomes:           map[certification.Outcome]int{},
		CertifiedByOutcome: map[certification.Outcome]decimal.Decimal{},
		TotalCertified:     decimal.Zero,
		StartedAt:          startedAt,
	}
}

func (r *BatchResult) transition(to FileState) error {
	if !r.State.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.State, to)
	}
	r.State = to
	return nil
}

// Duration returns how long processing took
func (r *BatchResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// rowTally accumulates row outcomes inside a transaction. It is copied into
// the result only after commit.
type rowTally struct {
	rows        int
	outcomes    map[certification.Outcome]int
	certified   map[certification.Outcome]decimal.Decimal
	recertified []Recertification
}

func newRowTally() *rowTally {
	return &rowTally{
		outcomes:  map[certification.Outcome]int{},
		certified: map[certification.Outcome]decimal.Decimal{},
	}
}

func (t *rowTally) add(rec *certification.ProcessedRecord, recert *Recertification) {
	t.rows++
	if recert != nil {
		t.recertified = append(t.recertified, *recert)
	}
	t.outcomes[rec.Certification]++
	t.certified[rec.Certification] = t.certified[rec.Certification].Add(rec.CertifiedCost)
}

func (t *rowTally) total() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t.certified {
		sum = sum.Add(v)
	}
	return sum
}
