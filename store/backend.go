// Package store provides the physical storage abstraction the B+ tree is
// built on: a flat, context-aware key/value space. The tree core never
// touches a backend directly; it goes through bptree.NodeStorage, which
// maps page ids onto backend keys. Where pages physically live (memory,
// a bbolt file, a remote store) is the caller's choice.
package store

import "context"

// Entry is a single key/value pair in a backend.
type Entry struct {
	Key   string
	Value []byte
}

// Backend is the minimal storage surface a B+ tree needs. Get returns
// (nil, nil) for an absent key; Delete of an absent key is a no-op.
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
}
