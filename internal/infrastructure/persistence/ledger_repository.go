package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/afp/backend/internal/domain/certification"
	"github.com/afp/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pgLockNotAvailable is raised when lock_timeout expires.
const pgLockNotAvailable = "55P03"

// GormLedgerRepository implements certification.LedgerRepository using GORM
type GormLedgerRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db, now: time.Now}
}

// UpsertPOs inserts PO entries or overwrites limit and claimed on existing ones
func (r *GormLedgerRepository) UpsertPOs(ctx context.Context, entries []certification.POLimit) error {
	if len(entries) == 0 {
		return nil
	}
	now := r.now()
	for i := range entries {
		entries[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "po"}},
			DoUpdates: clause.AssignmentColumns([]string{"po_value", "total_claimed", "updated_at"}),
		}).
		Create(&entries).Error
}

// UpsertCategories inserts category entries or overwrites limit and claimed on existing ones
func (r *GormLedgerRepository) UpsertCategories(ctx context.Context, entries []certification.CategoryLimit) error {
	if len(entries) == 0 {
		return nil
	}
	now := r.now()
	for i := range entries {
		entries[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"category_limit", "total_claimed", "updated_at"}),
		}).
		Create(&entries).Error
}

// ListPOs returns PO entries ordered by id
func (r *GormLedgerRepository) ListPOs(ctx context.Context, filter certification.LedgerFilter) ([]certification.POLimit, error) {
	var out []certification.POLimit
	err := paginate(r.db.WithContext(ctx).Order("po ASC"), filter).Find(&out).Error
	return out, err
}

// ListCategories returns category entries ordered by id
func (r *GormLedgerRepository) ListCategories(ctx context.Context, filter certification.LedgerFilter) ([]certification.CategoryLimit, error) {
	var out []certification.CategoryLimit
	err := paginate(r.db.WithContext(ctx).Order("category_id ASC"), filter).Find(&out).Error
	return out, err
}

// FindPO returns one PO entry, or shared.ErrNotFound
func (r *GormLedgerRepository) FindPO(ctx context.Context, id string) (*certification.POLimit, error) {
	var po certification.POLimit
	if err := r.db.WithContext(ctx).Where("po = ?", id).Take(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &po, nil
}

// FindCategory returns one category entry, or shared.ErrNotFound
func (r *GormLedgerRepository) FindCategory(ctx context.Context, id string) (*certification.CategoryLimit, error) {
	var c certification.CategoryLimit
	if err := r.db.WithContext(ctx).Where("category_id = ?", id).Take(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func paginate(q *gorm.DB, f certification.LedgerFilter) *gorm.DB {
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	return q
}

// gormLedgerLocker is the LedgerLocker bound to one transaction. It remembers
// which entries it locked so deltas can only be applied under a held lock.
type gormLedgerLocker struct {
	tx         *gorm.DB
	now        func() time.Time
	pos        map[string]struct{}
	categories map[string]struct{}
}

func newGormLedgerLocker(tx *gorm.DB, now func() time.Time) *gormLedgerLocker {
	return &gormLedgerLocker{
		tx:         tx,
		now:        now,
		pos:        make(map[string]struct{}),
		categories: make(map[string]struct{}),
	}
}

// LockPO selects the PO row FOR UPDATE
func (l *gormLedgerLocker) LockPO(ctx context.Context, id string) (certification.Balance, bool, error) {
	var po certification.POLimit
	err := l.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("po = ?", id).
		Take(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return certification.Balance{}, false, nil
	}
	if err != nil {
		return certification.Balance{}, false, mapLockError(err)
	}
	l.pos[id] = struct{}{}
	return po.Balance(), true, nil
}

// LockCategory selects the category row FOR UPDATE
func (l *gormLedgerLocker) LockCategory(ctx context.Context, id string) (certification.Balance, bool, error) {
	var c certification.CategoryLimit
	err := l.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("category_id = ?", id).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return certification.Balance{}, false, nil
	}
	if err != nil {
		return certification.Balance{}, false, mapLockError(err)
	}
	l.categories[id] = struct{}{}
	return c.Balance(), true, nil
}

// ApplyPO adds delta to total_claimed of a PO locked by this transaction
func (l *gormLedgerLocker) ApplyPO(ctx context.Context, id string, delta decimal.Decimal) error {
	if _, ok := l.pos[id]; !ok {
		return fmt.Errorf("PO %q: %w", id, certification.ErrLedgerNotLocked)
	}
	return l.apply(ctx, &certification.POLimit{}, "po", id, delta)
}

// ApplyCategory adds delta to total_claimed of a category locked by this transaction
func (l *gormLedgerLocker) ApplyCategory(ctx context.Context, id string, delta decimal.Decimal) error {
	if _, ok := l.categories[id]; !ok {
		return fmt.Errorf("category %q: %w", id, certification.ErrLedgerNotLocked)
	}
	return l.apply(ctx, &certification.CategoryLimit{}, "category_id", id, delta)
}

func (l *gormLedgerLocker) apply(ctx context.Context, model any, keyColumn, id string, delta decimal.Decimal) error {
	if delta.IsNegative() {
		return certification.ErrNegativeDelta
	}
	res := l.tx.WithContext(ctx).
		Model(model).
		Where(keyColumn+" = ?", id).
		Updates(map[string]any{
			"total_claimed": gorm.Expr("total_claimed + ?", delta),
			"updated_at":    l.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("apply delta to %s %q: %d rows affected", keyColumn, id, res.RowsAffected)
	}
	return nil
}

// mapLockError marks lock waits that gave up as certification.ErrLockTimeout
func mapLockError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%w: %w", certification.ErrLockTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", certification.ErrLockTimeout, err)
	}
	return err
}

var _ certification.LedgerRepository = (*GormLedgerRepository)(nil)
var _ certification.LedgerLocker = (*gormLedgerLocker)(nil)
