package csvimport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var required = []string{"project", "cost_category", "cost_amount", "PO"}

func TestDecodeClaimFile_CSV(t *testing.T) {
	content := "project,cost_category,cost_amount,PO\nBridge,CAT-1,150.00,PO-1\n"

	sheet, err := DecodeClaimFile("raw/claims.CSV", []byte(content))
	require.NoError(t, err)

	assert.Empty(t, sheet.MissingColumns(required))
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "150.00", sheet.Rows[0].Fields["cost_amount"])
}

func TestDecodeClaimFile_MissingColumns(t *testing.T) {
	sheet, err := DecodeClaimFile("a.csv", []byte("project,amount\nx,1\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"cost_category", "cost_amount", "PO"}, sheet.MissingColumns(required))
}

func TestDecodeClaimFile_Unsupported(t *testing.T) {
	_, err := DecodeClaimFile("claims.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, IsSupported("claims.txt"))
	assert.True(t, IsSupported("claims.xlsx"))
}

func TestDecodeClaimFile_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{" project", "cost_category", "cost_amount", "PO"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Bridge", "CAT-1", 150.5, "PO-1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"Tunnel", "CAT-2", 20, "PO-2"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	decoded, err := DecodeClaimFile("claims.xlsx", buf.Bytes())
	require.NoError(t, err)

	assert.Empty(t, decoded.MissingColumns(required))
	require.Len(t, decoded.Rows, 2)
	assert.Equal(t, "150.5", decoded.Rows[0].Fields["cost_amount"])
	assert.Equal(t, 2, decoded.Rows[1].Number)
	assert.Equal(t, 4, decoded.Rows[1].Line)
	assert.Equal(t, "Tunnel", decoded.Rows[1].Fields["project"])
}

func TestDecodeClaimFile_XLSXNotAWorkbook(t *testing.T) {
	_, err := DecodeClaimFile("claims.xlsx", []byte("not a zip"))
	assert.Error(t, err)
}

func TestRow_Payload(t *testing.T) {
	row := &Row{Fields: map[string]string{"project": "Bridge", "PO": "PO-1"}}

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(row.Payload()), &decoded))
	assert.Equal(t, row.Fields, decoded)
}
