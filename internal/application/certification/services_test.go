package certification_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/domain/certification"
	"github.com/afp/backend/internal/domain/shared"
	"github.com/afp/backend/internal/infrastructure/persistence/memory"
	"github.com/afp/backend/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_SeedAndList(t *testing.T) {
	store := memory.NewStore(0)
	svc := appcert.NewLedgerService(store)
	ctx := context.Background()

	err := svc.SeedPOs(ctx, []appcert.LedgerEntry{
		{ID: "PO2", Limit: dec("500"), TotalClaimed: dec("600")},
		{ID: "PO1", Limit: dec("1000.005"), TotalClaimed: decimal.Zero},
	})
	require.NoError(t, err)

	entries, err := svc.ListPOs(ctx, certification.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "PO1", entries[0].ID)
	assert.True(t, entries[0].Limit.Equal(dec("1000.01")), "limits are stored at cent precision")
	assert.True(t, entries[1].Remaining.IsZero(), "over-claimed entries report zero remaining")

	require.NoError(t, svc.SeedCategories(ctx, []appcert.LedgerEntry{{ID: "CAT1", Limit: dec("10")}}))
	cats, err := svc.ListCategories(ctx, certification.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.True(t, cats[0].Remaining.Equal(dec("10")))
}

func TestLedgerService_SeedValidation(t *testing.T) {
	svc := appcert.NewLedgerService(memory.NewStore(0))
	ctx := context.Background()

	tests := []struct {
		name    string
		entries []appcert.LedgerEntry
		want    string
	}{
		{"empty", nil, "at least one"},
		{"missing id", []appcert.LedgerEntry{{Limit: dec("1")}}, "id is required"},
		{"long id", []appcert.LedgerEntry{{ID: strings.Repeat("x", 65)}}, "exceeds 64"},
		{"negative limit", []appcert.LedgerEntry{{ID: "A", Limit: dec("-1")}}, "limit cannot be negative"},
		{"negative claimed", []appcert.LedgerEntry{{ID: "A", TotalClaimed: dec("-1")}}, "total_claimed cannot be negative"},
		{"duplicate", []appcert.LedgerEntry{{ID: "A"}, {ID: "A"}}, "duplicate id"},
		{"limit beyond storage precision", []appcert.LedgerEntry{{ID: "A", Limit: dec("1e30")}}, "limit must be below 10000000000000000"},
		{"claimed rounding up to the bound", []appcert.LedgerEntry{{ID: "A", Limit: dec("1"), TotalClaimed: dec("9999999999999999.995")}}, "total_claimed must be below"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SeedCategories(ctx, tt.entries)
			require.Error(t, err)
			var de *shared.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, "INVALID_INPUT", de.Code)
			assert.Contains(t, de.Message, tt.want)
		})
	}
}

func TestLedgerService_SeedAcceptsLargestStoredAmount(t *testing.T) {
	store := memory.NewStore(0)
	svc := appcert.NewLedgerService(store)

	err := svc.SeedPOs(context.Background(), []appcert.LedgerEntry{{ID: "PO1", Limit: dec("9999999999999999.99")}})
	require.NoError(t, err)
}

func TestRecordService_Query(t *testing.T) {
	store := seed(t, time.Second, "1000", "0", "1000", "0")
	batch := appcert.NewBatchService(store, nil)
	_, err := batch.ProcessFile(context.Background(), appcert.FileArrival{
		Name:    "raw/a.csv",
		Content: []byte(header + "Alpha,CAT1,PO1,100\n" + "Alpha,CAT1,PO9,100\n"),
	})
	require.NoError(t, err)

	svc := appcert.NewRecordService(store)
	ctx := context.Background()

	records, err := svc.ListProcessed(ctx, appcert.RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = svc.ListProcessed(ctx, appcert.RecordQuery{Status: "deauthorized"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PO9", records[0].PO)

	raw, err := svc.ListRaw(ctx, appcert.RecordQuery{Limit: 1, Status: "ignored"})
	require.NoError(t, err)
	assert.Len(t, raw, 1)

	for _, q := range []appcert.RecordQuery{{Limit: -1}, {Limit: 1001}, {Status: "approved"}} {
		_, err := svc.ListProcessed(ctx, q)
		var de *shared.DomainError
		assert.True(t, errors.As(err, &de), "query %+v", q)
	}
}

func TestUploadService_Upload(t *testing.T) {
	objects := storage.NewMemoryObjectStorage()
	svc := appcert.NewUploadService(objects, "raw/")
	ctx := context.Background()

	result, err := svc.Upload(ctx, `C:\Users\me\claims.csv`, []byte(header))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.BlobName, "raw/"))
	assert.True(t, strings.HasSuffix(result.BlobName, "-claims.csv"))
	assert.Equal(t, len(header), result.Size)

	stored, err := objects.Download(ctx, result.BlobName)
	require.NoError(t, err)
	assert.Equal(t, header, string(stored))

	rejected := []struct {
		name    string
		content []byte
		code    string
	}{
		{"claims.txt", []byte("x"), "UNSUPPORTED_FILE_TYPE"},
		{"claims.csv", nil, "EMPTY_FILE"},
		{"claims.csv", []byte{0xff, 0xfe}, "INVALID_ENCODING"},
		{"", []byte("x"), "INVALID_FILE"},
	}
	for _, r := range rejected {
		_, err := svc.Upload(ctx, r.name, r.content)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de), r.name)
		assert.Equal(t, r.code, de.Code)
	}
}
