package spreadsheet

import "errors"

// Loader error codes surfaced to the API layer
const (
	ErrCodeUnsupportedFormat = "ERR_FILE_UNSUPPORTED_FORMAT"
	ErrCodeEmptyFile         = "ERR_FILE_EMPTY"
	ErrCodeFileTooLarge      = "ERR_FILE_TOO_LARGE"
	ErrCodeTooManyRows       = "ERR_FILE_TOO_MANY_ROWS"
	ErrCodeParse             = "ERR_FILE_PARSE"
)

// Common loader errors
var (
	// ErrUnsupportedFormat is returned when the file extension is not recognized
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx, .xls or .csv")

	// ErrEmptyFile is returned when the decoded content has no rows or columns
	ErrEmptyFile = errors.New("file contains no data")

	// ErrFileTooLarge is returned when the file exceeds the configured byte ceiling
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrTooManyRows is returned when the row count exceeds the configured ceiling
	ErrTooManyRows = errors.New("file exceeds maximum allowed row count")

	// ErrMissingHeader is returned when the file has no header row
	ErrMissingHeader = errors.New("file missing header row")
)

// FormatError wraps a parser failure with the offending filename
type FormatError struct {
	Filename string
	Code     string
	Err      error
}

// Error implements the error interface
func (e *FormatError) Error() string {
	return e.Filename + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *FormatError) Unwrap() error {
	return e.Err
}

// NewFormatError creates a FormatError for the given file
func NewFormatError(filename, code string, err error) *FormatError {
	return &FormatError{Filename: filename, Code: code, Err: err}
}
