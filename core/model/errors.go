package model

import (
	"errors"
	"fmt"
)

var (
	// ErrData matches any *DataError with errors.Is.
	ErrData = errors.New("data error")
	// ErrConfiguration matches any *ConfigurationError with errors.Is.
	ErrConfiguration = errors.New("configuration error")
)

// DataError reports a malformed or missing input field. It is fatal and
// always names the offending record.
type DataError struct {
	Record string
	Field  string
	Err    error
}

func (e *DataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("data error: %s: %v", e.Record, e.Err)
	}
	return fmt.Sprintf("data error: %s: field %s: %v", e.Record, e.Field, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrData) true for every DataError.
func (e *DataError) Is(target error) bool { return target == ErrData }

// ConfigurationError reports structurally infeasible constraints, such as a
// route without any compatible bay. It is detected before solving.
type ConfigurationError struct {
	Subject string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Subject, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) true for every ConfigurationError.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func dataErr(record, field string, err error) error {
	return &DataError{Record: record, Field: field, Err: err}
}
