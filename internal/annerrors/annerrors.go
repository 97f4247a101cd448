// Package annerrors defines the error categories surfaced at the CLI and
// service boundaries: malformed input, invalid configuration, shape
// mismatch, and I/O failure. Callers wrap a category with
// fmt.Errorf("...: %w", category) and detect it downstream with errors.Is.
package annerrors

import "errors"

var (
	// ErrMalformedInput marks a dataset file that failed to parse: bad
	// magic, unexpected EOF, or mixed record dimensions.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidConfig marks an out-of-range or inconsistent build
	// parameter: k <= 0, k > n, d not divisible by M, nbits out of range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrShapeMismatch marks a dimension or length disagreement between
	// base and query data, or between two numeric spans.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrIO marks a failure to open or read a file.
	ErrIO = errors.New("i/o error")
)
