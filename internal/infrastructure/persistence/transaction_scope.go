package persistence

import (
	"context"
	"fmt"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/domain/certification"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// One file is processed inside one Execute call.
type GormTransactionScope struct {
	db          *gorm.DB
	lockTimeout time.Duration
	now         func() time.Time
}

// NewGormTransactionScope creates a new GormTransactionScope. A positive
// lockTimeout bounds every row lock wait inside the transaction on PostgreSQL.
func NewGormTransactionScope(db *gorm.DB, lockTimeout time.Duration) *GormTransactionScope {
	return &GormTransactionScope{db: db, lockTimeout: lockTimeout, now: time.Now}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcert.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		repos := &gormTransactionalRepositories{
			ledgers: newGormLedgerLocker(tx, s.now),
			records: NewGormRecordRepository(tx),
		}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	ledgers *gormLedgerLocker
	records *GormRecordRepository
}

// Ledgers returns the ledger locker scoped to the current transaction.
func (r *gormTransactionalRepositories) Ledgers() certification.LedgerLocker {
	return r.ledgers
}

// Records returns the record writer scoped to the current transaction.
func (r *gormTransactionalRepositories) Records() certification.RecordWriter {
	return r.records
}

// Ensure GormTransactionScope implements TransactionScope
var _ appcert.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appcert.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
