package bptree

import "errors"

// ErrKeyNotFound is returned when a key is not present in the tree.
var ErrKeyNotFound = errors.New("key not found")

// ErrDuplicateKey is returned when inserting a key that already exists.
// The tree is left unchanged.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrInvalidRange is returned when a range scan's start key orders after
// its end key.
var ErrInvalidRange = errors.New("invalid range: start key after end key")

// ErrValueTooLarge is returned before mutation when a single value cannot
// fit in a leaf page's payload.
var ErrValueTooLarge = errors.New("value too large for a leaf page")

// ErrCorrupted indicates a traversal invariant was violated: a node was
// missing from storage or a child/separator count did not line up. It
// means a bug in this engine or a corrupted node map, never a caller
// mistake, and is always surfaced as a hard error.
var ErrCorrupted = errors.New("corrupted tree structure")
