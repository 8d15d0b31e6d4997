package models

import "errors"

// Validation errors returned by the record Validate methods.
var (
	ErrMissingID       = errors.New("missing id")
	ErrMissingLease    = errors.New("missing lease reference")
	ErrInvalidAmount   = errors.New("amount must not be negative")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidPeriod   = errors.New("period month must be between 1 and 12")
	ErrInvalidBilling  = errors.New("billing day must be between 1 and 31")
	ErrInvalidStatus   = errors.New("unknown status")
	ErrMissingProperty = errors.New("missing property")
)
