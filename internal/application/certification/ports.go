package certification

import (
	"context"
	"errors"
	"time"

	"github.com/afp/backend/internal/domain/certification"
	"github.com/shopspring/decimal"
)

// TransactionScope runs fn inside one database transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Ledger locks taken
// through the repositories are held until the transaction ends.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to an open transaction.
type TransactionalRepositories interface {
	Ledgers() certification.LedgerLocker
	Records() certification.RecordWriter
}

// InFlightGuard keeps two workers from processing the same file at once.
type InFlightGuard interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventPublisher announces terminal file outcomes to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event FileEvent) error
}

// Metrics receives certification measurements.
type Metrics interface {
	RecordRows(ctx context.Context, outcome string, rows int, certified decimal.Decimal)
	RecordFile(ctx context.Context, state string, elapsed time.Duration)
	RecordRecertified(ctx context.Context)
}

// FileEvent is published after a file is committed or aborted.
type FileEvent struct {
	Type           string                        `json:"type"`
	SourceFile     string                        `json:"source_file"`
	State          FileState                     `json:"state"`
	Reason         string                        `json:"reason,omitempty"`
	Rows           int                           `json:"rows"`
	Outcomes       map[certification.Outcome]int `json:"outcomes"`
	TotalCertified decimal.Decimal               `json:"total_certified"`
	OccurredAt     time.Time                     `json:"occurred_at"`
}

const (
	EventFileCertified = "claims.file.certified"
	EventFileAborted   = "claims.file.aborted"
)

type nopGuard struct{}

func (nopGuard) TryAcquire(context.Context, string) (bool, error) { return true, nil }
func (nopGuard) Release(context.Context, string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, FileEvent) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordRows(context.Context, string, int, decimal.Decimal) {}
func (nopMetrics) RecordFile(context.Context, string, time.Duration) {}
func (nopMetrics) RecordRecertified(context.Context) {}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ErrObjectNotFound is returned by ObjectStorage for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the claims bucket.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	// List returns the objects under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Move(ctx context.Context, from, to string) error
	Delete(ctx context.Context, key string) error
}
