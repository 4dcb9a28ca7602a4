package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVParser reads a header row followed by data rows. Values are kept as
// written; only header cells are trimmed.
type CSVParser struct {
	delimiter   rune
	lazyQuotes  bool
	trimValues  bool
	headers     []string
	headerIndex map[string]int
	reader      *csv.Reader
	rowCount    int
}

// ParserOption configures a CSVParser
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes allows quotes to appear in unquoted fields
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// WithTrimValues trims whitespace around data values
func WithTrimValues(trim bool) ParserOption {
	return func(p *CSVParser) {
		p.trimValues = trim
	}
}

// NewCSVParser validates content as UTF-8, strips a leading BOM and prepares
// the reader.
func NewCSVParser(content []byte, opts ...ParserOption) (*CSVParser, error) {
	p := &CSVParser{
		delimiter:   ',',
		lazyQuotes:  true,
		headerIndex: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}

	if len(content) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidEncoding
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), content)
	if err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	if len(bytes.TrimSpace(decoded)) == 0 {
		return nil, ErrEmptyFile
	}

	p.reader = csv.NewReader(bytes.NewReader(decoded))
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = p.lazyQuotes
	p.reader.FieldsPerRecord = -1
	return p, nil
}

// ParseHeader reads the first record as the header row
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrMissingHeader
	}
	if err != nil {
		return p.parseError(err)
	}

	p.headers = make([]string, len(record))
	for i, h := range record {
		h = strings.TrimSpace(h)
		p.headers[i] = h
		if _, dup := p.headerIndex[h]; !dup {
			p.headerIndex[h] = i
		}
	}
	return nil
}

// Headers returns the parsed header names in file order
func (p *CSVParser) Headers() []string {
	return p.headers
}

// Row is one data row. Number is 1-based and excludes the header and blank
// lines; Line is the physical line the row starts on.
type Row struct {
	Number int
	Line   int
	Fields map[string]string
}

// ReadRow reads the next data row. It returns io.EOF after the last row.
func (p *CSVParser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, p.parseError(err)
	}
	line, _ := p.reader.FieldPos(0)
	p.rowCount++
	return &Row{
		Number: p.rowCount,
		Line:   line,
		Fields: p.mapRecord(record),
	}, nil
}

// ReadAllRows reads every remaining data row
func (p *CSVParser) ReadAllRows() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.ReadRow()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

func (p *CSVParser) mapRecord(record []string) map[string]string {
	fields := make(map[string]string, len(p.headers))
	for name, i := range p.headerIndex {
		var v string
		if i < len(record) {
			v = record[i]
		}
		if p.trimValues {
			v = strings.TrimSpace(v)
		}
		fields[name] = v
	}
	return fields
}

func (p *CSVParser) parseError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Err: csvErr.Err}
	}
	return err
}
