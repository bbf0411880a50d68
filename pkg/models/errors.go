package models

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the engine wraps exactly one of these.
var (
	ErrGeneral                = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound       = errors.New("there is no")
	ErrConfiguration          = errors.New("invalid configuration")
	ErrValidation             = errors.New("validation failed")
	ErrConcurrentModification = errors.New("the resource was modified concurrently, please reload and retry")
	ErrConsistency            = errors.New("consistency check failed")
)

// Specific errors. Each of them wraps its class so that callers can match either.
var (
	ErrLedgerImmutable  = fmt.Errorf("%w: points entries cannot be changed or deleted", ErrValidation)
	ErrRecordArchived   = fmt.Errorf("%w: the allocation record is archived and cannot be changed", ErrValidation)
	ErrRoleMismatch     = fmt.Errorf("%w: the user does not have the expected role", ErrValidation)
	ErrUnknownCategory  = fmt.Errorf("%w: unknown points category", ErrValidation)
	ErrAmountOutOfRange = fmt.Errorf("%w: the amount is out of the range allowed for the category", ErrValidation)
	ErrInvalidRole      = fmt.Errorf("%w: unknown role", ErrValidation)
)
