package certification

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerLocker is the transaction-scoped view of both ledgers. Lock methods
// take an exclusive lock on one entry that is held until the enclosing
// transaction ends. Callers lock the PO before the category.
type LedgerLocker interface {
	// LockPO returns the locked snapshot, or found=false when the PO does not exist.
	LockPO(ctx context.Context, id string) (snap Balance, found bool, err error)
	// LockCategory returns the locked snapshot, or found=false when the category does not exist.
	LockCategory(ctx context.Context, id string) (snap Balance, found bool, err error)
	// ApplyPO adds delta to the claimed amount of a PO locked earlier in this transaction.
	ApplyPO(ctx context.Context, id string, delta decimal.Decimal) error
	// ApplyCategory adds delta to the claimed amount of a category locked earlier in this transaction.
	ApplyCategory(ctx context.Context, id string, delta decimal.Decimal) error
}

// RecordWriter persists audit records inside the file transaction.
type RecordWriter interface {
	UpsertRaw(ctx context.Context, record *RawRecord) error
	// UpsertProcessed inserts or overwrites the record for (source, row) and
	// returns the record it replaced, if any.
	UpsertProcessed(ctx context.Context, record *ProcessedRecord) (previous *ProcessedRecord, err error)
}

// LedgerFilter controls ledger listings.
type LedgerFilter struct {
	Limit  int
	Offset int
}

// LedgerRepository manages ledger entries outside of certification.
type LedgerRepository interface {
	UpsertPOs(ctx context.Context, entries []POLimit) error
	UpsertCategories(ctx context.Context, entries []CategoryLimit) error
	ListPOs(ctx context.Context, filter LedgerFilter) ([]POLimit, error)
	ListCategories(ctx context.Context, filter LedgerFilter) ([]CategoryLimit, error)
	FindPO(ctx context.Context, id string) (*POLimit, error)
	FindCategory(ctx context.Context, id string) (*CategoryLimit, error)
}

// RecordFilter controls record listings. Results are ordered newest first.
type RecordFilter struct {
	Limit      int
	Outcome    *Outcome
	SourceBlob string
}

// RecordReader serves the read side of the audit tables.
type RecordReader interface {
	ListProcessed(ctx context.Context, filter RecordFilter) ([]ProcessedRecord, error)
	ListRaw(ctx context.Context, filter RecordFilter) ([]RawRecord, error)
}
