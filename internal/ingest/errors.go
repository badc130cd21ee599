package ingest

import "errors"

// ValidationError is a user-facing rejection of an upload. Nothing is written
// when one is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

var (
	// ErrNoData is returned when the uploaded table has no data rows at all.
	ErrNoData = &ValidationError{Msg: "no data found in the uploaded file"}

	// ErrNoValidRows is returned when every row was dropped for an empty keyword.
	ErrNoValidRows = &ValidationError{Msg: `no valid keyword data found. Make sure your file has a "keyword" column with non-empty values`}
)

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
