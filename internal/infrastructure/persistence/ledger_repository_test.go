package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/afp/backend/internal/domain/certification"
	"github.com/afp/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedLedgers(t *testing.T, db *gorm.DB) {
	t.Helper()
	repo := NewGormLedgerRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.UpsertPOs(ctx, []certification.POLimit{
		{PO: "PO2", POValue: decimal.NewFromInt(500), TotalClaimed: decimal.NewFromInt(100)},
		{PO: "PO1", POValue: decimal.NewFromInt(1000), TotalClaimed: decimal.Zero},
	}))
	require.NoError(t, repo.UpsertCategories(ctx, []certification.CategoryLimit{
		{CategoryID: "CAT1", CategoryLimit: decimal.NewFromInt(800), TotalClaimed: decimal.NewFromInt(200)},
	}))
}

func TestGormLedgerRepository_UpsertAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLedgerRepository(db)
	ctx := context.Background()
	seedLedgers(t, db)

	t.Run("lists POs ordered by id", func(t *testing.T) {
		pos, err := repo.ListPOs(ctx, certification.LedgerFilter{})
		require.NoError(t, err)
		require.Len(t, pos, 2)
		assert.Equal(t, "PO1", pos[0].PO)
		assert.Equal(t, "PO2", pos[1].PO)
		assert.True(t, pos[1].Remaining().Equal(decimal.NewFromInt(400)))
	})

	t.Run("applies limit and offset", func(t *testing.T) {
		pos, err := repo.ListPOs(ctx, certification.LedgerFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, pos, 1)
		assert.Equal(t, "PO2", pos[0].PO)
	})

	t.Run("upsert overwrites existing entry", func(t *testing.T) {
		require.NoError(t, repo.UpsertCategories(ctx, []certification.CategoryLimit{
			{CategoryID: "CAT1", CategoryLimit: decimal.NewFromInt(900), TotalClaimed: decimal.NewFromInt(50)},
		}))
		cat, err := repo.FindCategory(ctx, "CAT1")
		require.NoError(t, err)
		assert.True(t, cat.CategoryLimit.Equal(decimal.NewFromInt(900)))
		assert.True(t, cat.TotalClaimed.Equal(decimal.NewFromInt(50)))

		cats, err := repo.ListCategories(ctx, certification.LedgerFilter{})
		require.NoError(t, err)
		assert.Len(t, cats, 1)
	})

	t.Run("find missing returns ErrNotFound", func(t *testing.T) {
		_, err := repo.FindPO(ctx, "NOPE")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindCategory(ctx, "NOPE")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty upsert is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.UpsertPOs(ctx, nil))
		assert.NoError(t, repo.UpsertCategories(ctx, nil))
	})
}

func TestGormLedgerLocker_LockAndApply(t *testing.T) {
	db := setupTestDB(t)
	seedLedgers(t, db)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		locker := newGormLedgerLocker(tx, time.Now)

		bal, found, err := locker.LockPO(ctx, "PO2")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, bal.Remaining().Equal(decimal.NewFromInt(400)))

		_, found, err = locker.LockCategory(ctx, "MISSING")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, locker.ApplyPO(ctx, "PO2", decimal.NewFromInt(150)))
		return nil
	})
	require.NoError(t, err)

	po, err := NewGormLedgerRepository(db).FindPO(ctx, "PO2")
	require.NoError(t, err)
	assert.True(t, po.TotalClaimed.Equal(decimal.NewFromInt(250)))
}

func TestGormLedgerLocker_ApplyRequiresLock(t *testing.T) {
	db := setupTestDB(t)
	seedLedgers(t, db)
	ctx := context.Background()
	locker := newGormLedgerLocker(db, time.Now)

	err := locker.ApplyPO(ctx, "PO1", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, certification.ErrLedgerNotLocked)

	err = locker.ApplyCategory(ctx, "CAT1", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, certification.ErrLedgerNotLocked)

	_, _, err = locker.LockCategory(ctx, "CAT1")
	require.NoError(t, err)
	err = locker.ApplyCategory(ctx, "CAT1", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, certification.ErrNegativeDelta)
}

func TestGormLedgerLocker_SelectsForUpdate(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"po", "po_value", "total_claimed", "updated_at"}).
		AddRow("PO1", "1000.00", "250.00", time.Now())
	mock.ExpectQuery(`SELECT \* FROM "po_limits" WHERE po = \$1 .*FOR UPDATE`).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE "po_limits" SET .*total_claimed \+ \$`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	locker := newGormLedgerLocker(db, time.Now)
	bal, found, err := locker.LockPO(context.Background(), "PO1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, bal.Remaining().Equal(decimal.NewFromInt(750)))

	require.NoError(t, locker.ApplyPO(context.Background(), "PO1", decimal.NewFromInt(10)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLedgerLocker_ApplyDetectsMissingRow(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	mock.ExpectExec(`UPDATE "category_limits" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	locker := newGormLedgerLocker(db, time.Now)
	locker.categories["CAT9"] = struct{}{}
	err := locker.ApplyCategory(context.Background(), "CAT9", decimal.NewFromInt(10))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLedgerLocker_LockTimeout(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	mock.ExpectQuery(`FROM "category_limits"`).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})

	locker := newGormLedgerLocker(db, time.Now)
	_, _, err := locker.LockCategory(context.Background(), "CAT1")
	assert.ErrorIs(t, err, certification.ErrLockTimeout)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapLockError(t *testing.T) {
	assert.ErrorIs(t, mapLockError(context.DeadlineExceeded), certification.ErrLockTimeout)
	assert.ErrorIs(t, mapLockError(&pgconn.PgError{Code: pgLockNotAvailable}), certification.ErrLockTimeout)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapLockError(other))
	assert.NotErrorIs(t, mapLockError(&pgconn.PgError{Code: "40001"}), certification.ErrLockTimeout)
}
