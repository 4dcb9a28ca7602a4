package csvimport

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFile is returned when the file has no content
	ErrEmptyFile = errors.New("file is empty")

	// ErrInvalidEncoding is returned when a CSV file is not valid UTF-8
	ErrInvalidEncoding = errors.New("file is not valid UTF-8")

	// ErrMissingHeader is returned when the file has no header row
	ErrMissingHeader = errors.New("file missing header row")

	// ErrUnsupportedFormat is returned for extensions other than .csv and .xlsx
	ErrUnsupportedFormat = errors.New("unsupported claim file format")
)

// ParseError reports a lexical error at a specific line of the input.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
