// Package errors provides the coded error type shared by the archive toolkit,
// the blob store drivers and the gateway.
//
// It is a leaf package: archive, blobstore and api all import it, so it must
// not import any of them. Callers usually import it as bitserrors to keep the
// standard library errors package available.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the kind of failure that occurred.
type ErrorCode int

const (
	// ErrInvalidArchive indicates an archive that is empty, corrupt, not a zip,
	// or that attempts to write outside its destination root.
	ErrInvalidArchive ErrorCode = iota + 1

	// ErrPackageInvalid indicates that appending to or deleting from an
	// archive failed.
	ErrPackageInvalid

	// ErrNotFound indicates no blob exists for the requested key.
	ErrNotFound

	// ErrStorageFailure indicates a backend I/O failure.
	ErrStorageFailure

	// ErrNoSpace indicates the backend ran out of space (ENOSPC).
	// It is a sub-kind of ErrStorageFailure.
	ErrNoSpace

	// ErrInvalidArgument indicates a caller error such as a missing file or
	// a malformed key.
	ErrInvalidArgument

	// ErrAlreadyExists indicates a container already exists. Drivers return it
	// from Create and IdempotentContainer absorbs it.
	ErrAlreadyExists

	// ErrSignatureInvalid indicates a signed URL whose signature does not
	// match or whose expiry has passed.
	ErrSignatureInvalid
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidArchive:
		return "InvalidArchive"
	case ErrPackageInvalid:
		return "PackageInvalid"
	case ErrNotFound:
		return "NotFound"
	case ErrStorageFailure:
		return "StorageFailure"
	case ErrNoSpace:
		return "NoSpace"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrSignatureInvalid:
		return "SignatureInvalid"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// Error is a coded error.
//
// Diagnostic holds tool output (for example the combined stdout/stderr of an
// external unzip). It is kept apart from Message so the HTTP layer can hide
// it in production.
type Error struct {
	Code       ErrorCode
	Message    string
	Path       string
	Diagnostic string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path: %s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDiagnostic returns a copy of e carrying the given diagnostic output.
func (e *Error) WithDiagnostic(diag string) *Error {
	cp := *e
	cp.Diagnostic = diag
	return &cp
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewInvalidArchiveError creates an InvalidArchive error.
func NewInvalidArchiveError(path, message string, cause error) *Error {
	return &Error{Code: ErrInvalidArchive, Message: message, Path: path, Err: cause}
}

// NewPackageInvalidError creates a PackageInvalid error.
func NewPackageInvalidError(path, message string, cause error) *Error {
	return &Error{Code: ErrPackageInvalid, Message: message, Path: path, Err: cause}
}

// NewNotFoundError creates a NotFound error for a blob key.
func NewNotFoundError(key string) *Error {
	return &Error{Code: ErrNotFound, Message: "blob not found", Path: key}
}

// NewStorageError creates a StorageFailure error.
func NewStorageError(path, message string, cause error) *Error {
	return &Error{Code: ErrStorageFailure, Message: message, Path: path, Err: cause}
}

// NewNoSpaceError creates a NoSpace error.
func NewNoSpaceError(path string, cause error) *Error {
	return &Error{Code: ErrNoSpace, Message: "no space left on device", Path: path, Err: cause}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(message string) *Error {
	return &Error{Code: ErrInvalidArgument, Message: message}
}

// NewAlreadyExistsError creates an AlreadyExists error for a container.
func NewAlreadyExistsError(name string, cause error) *Error {
	return &Error{Code: ErrAlreadyExists, Message: "container already exists", Path: name, Err: cause}
}

// NewSignatureInvalidError creates a SignatureInvalid error.
func NewSignatureInvalidError(message string) *Error {
	return &Error{Code: ErrSignatureInvalid, Message: message}
}

// ============================================================================
// Helpers
// ============================================================================

// CodeOf returns the code of the first *Error in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// DiagnosticOf returns the diagnostic of the first *Error in err's chain.
func DiagnosticOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Diagnostic
	}
	return ""
}

// IsInvalidArchive reports whether err is an InvalidArchive error.
func IsInvalidArchive(err error) bool { return CodeOf(err) == ErrInvalidArchive }

// IsPackageInvalid reports whether err is a PackageInvalid error.
func IsPackageInvalid(err error) bool { return CodeOf(err) == ErrPackageInvalid }

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrNotFound }

// IsNoSpace reports whether err is a NoSpace error.
func IsNoSpace(err error) bool { return CodeOf(err) == ErrNoSpace }

// IsStorageFailure reports whether err is a StorageFailure error, NoSpace included.
func IsStorageFailure(err error) bool {
	c := CodeOf(err)
	return c == ErrStorageFailure || c == ErrNoSpace
}

// IsInvalidArgument reports whether err is an InvalidArgument error.
func IsInvalidArgument(err error) bool { return CodeOf(err) == ErrInvalidArgument }

// IsAlreadyExists reports whether err is an AlreadyExists error.
func IsAlreadyExists(err error) bool { return CodeOf(err) == ErrAlreadyExists }

// IsSignatureInvalid reports whether err is a SignatureInvalid error.
func IsSignatureInvalid(err error) bool { return CodeOf(err) == ErrSignatureInvalid }
