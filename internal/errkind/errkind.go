// Package errkind defines the error codes shared by the bundler packages.
//
// Codes are jmgilman/go/errors ErrorCode values so callers can classify a
// failure with errors.GetCode regardless of how many times it was wrapped.
package errkind

import (
	"github.com/jmgilman/go/errors"
)

const (
	// PathTraversal marks a marker or patch path that would escape its root.
	PathTraversal errors.ErrorCode = "PATH_TRAVERSAL"

	// BinaryContent marks a file that could not be embedded as text. It is
	// informational: the file degrades to a placeholder record.
	BinaryContent errors.ErrorCode = "BINARY_CONTENT"

	// MalformedMarker marks a marker line that could not be used as-is.
	MalformedMarker errors.ErrorCode = "MALFORMED_MARKER"

	// DuplicateDestination marks a record whose destination was already
	// claimed. It is resolved by renaming and never returned to callers.
	DuplicateDestination errors.ErrorCode = "DUPLICATE_DESTINATION"

	// ExternalToolFailure marks a patch tool that is missing or crashed.
	ExternalToolFailure errors.ErrorCode = "EXTERNAL_TOOL_FAILURE"

	// IOFailure marks a read or write failure for a single file.
	IOFailure errors.ErrorCode = "IO_FAILURE"

	// CyclicSymlink marks a directory symlink that points back at one of
	// its ancestors.
	CyclicSymlink errors.ErrorCode = "CYCLIC_SYMLINK"
)

// Of returns the kind of err, or errors.CodeUnknown.
func Of(err error) errors.ErrorCode {
	return errors.GetCode(err)
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, code errors.ErrorCode) bool {
	return err != nil && errors.GetCode(err) == code
}
