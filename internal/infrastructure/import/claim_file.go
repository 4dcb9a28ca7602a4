package csvimport

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// ClaimSheet is a decoded claim file.
type ClaimSheet struct {
	Headers []string
	Rows    []*Row
}

// MissingColumns returns the required columns absent from the header row
func (s *ClaimSheet) MissingColumns(required []string) []string {
	present := make(map[string]struct{}, len(s.Headers))
	for _, h := range s.Headers {
		present[h] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := present[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// Payload renders the row as a JSON object of header to value.
func (r *Row) Payload() string {
	b, err := json.Marshal(r.Fields)
	if err != nil {
		// map[string]string always marshals
		return "{}"
	}
	return string(b)
}

// IsSupported reports whether name has an extension DecodeClaimFile accepts
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// DecodeClaimFile decodes a .csv or .xlsx claim file by its extension.
// Every error it returns describes the content; retrying cannot change it.
func DecodeClaimFile(name string, content []byte) (*ClaimSheet, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return decodeCSV(content)
	case ".xlsx":
		headers, rows, err := readXLSX(content)
		if err != nil {
			return nil, err
		}
		return &ClaimSheet{Headers: headers, Rows: rows}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func decodeCSV(content []byte) (*ClaimSheet, error) {
	p, err := NewCSVParser(content)
	if err != nil {
		return nil, err
	}
	if err := p.ParseHeader(); err != nil {
		return nil, err
	}
	rows, err := p.ReadAllRows()
	if err != nil {
		return nil, err
	}
	return &ClaimSheet{Headers: p.Headers(), Rows: rows}, nil
}
