package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the principal may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput indicates a malformed or missing required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates concurrent-write contention after retries.
	ErrConflict = errors.New("write conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAlreadyVerified indicates a sale that has already been verified.
	ErrAlreadyVerified = errors.New("sale already verified")
	// ErrAlreadyLocked indicates a canteen that is already locked.
	ErrAlreadyLocked = errors.New("canteen already locked")
	// ErrNotLocked indicates an unlock on a canteen that is not locked.
	ErrNotLocked = errors.New("canteen not locked")
	// ErrLockedSupply indicates a mutation on a locked supply.
	ErrLockedSupply = errors.New("supply locked")
)
