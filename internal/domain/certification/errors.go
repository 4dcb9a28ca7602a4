package certification

import "errors"

var (
	// ErrLedgerNotLocked is returned when a ledger delta is applied to an
	// entry that was not locked earlier in the same transaction.
	ErrLedgerNotLocked = errors.New("ledger entry not locked in this transaction")

	// ErrLockTimeout is returned when a ledger lock could not be acquired
	// before the configured lock timeout expired.
	ErrLockTimeout = errors.New("ledger lock acquisition timed out")

	// ErrNegativeDelta guards the claimed-only-increases rule.
	ErrNegativeDelta = errors.New("ledger delta must not be negative")
)
