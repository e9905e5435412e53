package mergetree

import "errors"

var (
	// ErrInvalidStream is returned by [Build] when a record is malformed:
	// wrong column count, a non-numeric field, or a merged size that does
	// not equal the sum of its two children. The stream cannot be trusted
	// past such a record, so building aborts with no partial result.
	ErrInvalidStream = errors.New("invalid merge stream")

	// ErrDanglingReference is returned by [Build] when an event names a
	// non-singleton cluster id that no earlier merge produced. This signals
	// a truncated or out-of-order stream.
	ErrDanglingReference = errors.New("dangling cluster reference")

	// ErrDuplicateRoot is returned by [Build] when both sides of a merge
	// resolve to the same node, i.e. an id is counted twice.
	ErrDuplicateRoot = errors.New("duplicate root in merge")

	// ErrConfig is returned by [Cut] and [NormalizeResolutions] when the
	// resolution list is empty or contains a non-positive value. It is
	// checked before any tree traversal begins.
	ErrConfig = errors.New("invalid resolution configuration")
)
