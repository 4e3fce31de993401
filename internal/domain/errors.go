package domain

import (
	"errors"
)

// Resolution errors. Every failure inside the resolver pipeline wraps exactly
// one of these so the server boundary can map it to a status code.
var (
	ErrInputRejected   = errors.New("locator rejected")
	ErrAccessDenied    = errors.New("access denied")
	ErrResourceMissing = errors.New("resource missing")
	ErrSandboxEscape   = errors.New("path escapes sandbox root")
	ErrInternalFault   = errors.New("internal fault")
)

// Download errors
var (
	ErrRecordNotFound         = errors.New("download record not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNameSpaceExhausted     = errors.New("no free file name available")
	ErrManagerStopped         = errors.New("download manager stopped")
	ErrNilTransfer            = errors.New("transfer handle cannot be nil")
	ErrFolderRateLimited      = errors.New("open folder rate limited")
	ErrFolderMissing          = errors.New("folder missing or not a directory")
)

// ResolveError carries the pipeline stage context of a resolution failure.
type ResolveError struct {
	Kind error
	Path string
	Err  error
}

// Error returns the error message
func (e *ResolveError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *ResolveError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewResolveError creates a new resolve error of the given kind
func NewResolveError(kind error, path string, err error) *ResolveError {
	if kind == nil {
		kind = ErrInternalFault
	}
	return &ResolveError{Kind: kind, Path: path, Err: err}
}

// ResolveKind returns the taxonomy sentinel an error belongs to.
// Errors outside the taxonomy are classified as ErrInternalFault.
func ResolveKind(err error) error {
	for _, kind := range []error{
		ErrInputRejected,
		ErrAccessDenied,
		ErrSandboxEscape,
		ErrResourceMissing,
		ErrInternalFault,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternalFault
}

// IsSecurityRelevant reports whether the error must be surfaced to operators
// rather than treated as a routine miss.
func IsSecurityRelevant(err error) bool {
	return errors.Is(err, ErrSandboxEscape)
}
