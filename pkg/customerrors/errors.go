// Package customerrors defines the sentinel errors shared by the pager, the
// tree and the command services.
package customerrors

import (
	"errors"
)

var (
	// ErrEmptyKey is returned when an operation is requested with an empty
	// key. The empty key is reserved for the sentinel entry of a node.
	ErrEmptyKey = errors.New("empty key")

	// ErrKeyTooLarge is returned when a key is larger than the tree limit.
	ErrKeyTooLarge = errors.New("key is too large")

	// ErrValueTooLarge is returned when a value is larger than the tree limit.
	ErrValueTooLarge = errors.New("value is too large")

	// ErrIndexOutOfRange is raised when a node entry is addressed past the
	// node's entry count.
	ErrIndexOutOfRange = errors.New("entry index out of range")

	// ErrCorruptNode is returned when a page does not decode into a valid
	// leaf or internal node.
	ErrCorruptNode = errors.New("corrupt node")

	// ErrPageNotFound is returned by page stores for unknown or freed
	// page references.
	ErrPageNotFound = errors.New("page not found")

	// ErrInvalidPageSize is returned when a page store receives a buffer
	// that is not exactly one page long.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrIncompatibleMeta is returned when stored tree metadata was written
	// with different limits or by another version.
	ErrIncompatibleMeta = errors.New("incompatible tree metadata")

	ErrNotFound = errors.New("not found")
)
