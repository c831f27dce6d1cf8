package repository

import (
	"errors"
	"fmt"
)

// DecodeError marks a row whose stored values fall outside the domain vocabulary.
type DecodeError struct {
	ReportID string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode report %s: %v", e.ReportID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
