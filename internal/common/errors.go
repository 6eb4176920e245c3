// Package common defines shared sentinel errors used across the client and
// server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrInvalidArgument marks calls with missing or empty required values,
	// such as a record without an id.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOperation marks calls that cannot be carried out on the given
	// inputs: comparing records of different types or ids, or a Modified
	// operation without a property name.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotFound marks lookups of records that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrConversion marks canonical string values that cannot be parsed into
	// the target field type.
	ErrConversion = errors.New("conversion error")

	// ErrUnknownTable marks table names that are not registered in the schema
	// registry.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownOperationSequence marks operation groups the merge engine
	// cannot classify as add, modify or delete.
	ErrUnknownOperationSequence = errors.New("unknown operation sequence")

	// ErrStoreOperationFailed marks failures of the underlying local storage.
	ErrStoreOperationFailed = errors.New("store operation failed")

	// ErrInvalidToken marks bearer tokens that fail signature or expiry
	// checks.
	ErrInvalidToken = errors.New("invalid token")
)
