package bptree

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nganlamforwork/my-mini-db-sub001/lru"
	"github.com/nganlamforwork/my-mini-db-sub001/store"
)

const (
	treePathPrefix = "bptree"
	nodesPath      = "nodes"
	metadataPath   = "metadata"
	metaEntryPath  = "meta"
)

// TreeMeta is the persistent root bookkeeping for one tree: the root page
// id ("" when the tree is empty) and the height (0 when empty, 1 for a
// lone leaf root). It lives in storage rather than on the tree struct so
// every handle over the same backend agrees on it.
type TreeMeta struct {
	RootID string `json:"root_id"`
	Height int    `json:"height"`
}

// Storage is the pager collaborator surface the tree core works against.
// The core never allocates raw storage itself; it loads and saves nodes
// by page id and registers fresh pages at split time through SaveNode.
type Storage interface {
	// LoadNode loads a node from storage; (nil, nil) if the id is unknown
	LoadNode(ctx context.Context, id string) (*Node, error)
	// SaveNode saves a node to storage
	SaveNode(ctx context.Context, node *Node) error
	// DeleteNode deletes a node from storage
	DeleteNode(ctx context.Context, id string) error
	// LoadMeta loads the tree metadata; a zero TreeMeta if none is stored
	LoadMeta(ctx context.Context) (*TreeMeta, error)
	// SaveMeta persists the tree metadata
	SaveMeta(ctx context.Context, meta *TreeMeta) error
}

var _ Storage = &NodeStorage{}

// NodeStorage adapts a flat store.Backend to the Storage interface. Nodes
// are serialized with a pluggable NodeSerializer and cached in a 2Q LRU
// keyed by storage path. The tree id resolved from the context (falling
// back to the configured default) prefixes every path, so several trees
// can share one backend.
type NodeStorage struct {
	defaultTreeID string
	serializer    NodeSerializer
	backend       store.Backend
	cache         *lru.LRU[string, *Node]
	nodesLock     sync.RWMutex
	metaLock      sync.RWMutex
}

// NewNodeStorage creates a NodeStorage over backend for the given tree id.
// A nil serializer defaults to JSON.
func NewNodeStorage(
	treeID string,
	backend store.Backend,
	serializer NodeSerializer,
	cacheSize int,
) (*NodeStorage, error) {
	if treeID == "" {
		treeID = DefaultTreeID
	}
	if serializer == nil {
		serializer = &JSONSerializer{}
	}

	cache, err := lru.NewLRU[string, *Node](cacheSize)
	if err != nil {
		return nil, err
	}

	return &NodeStorage{
		defaultTreeID: treeID,
		serializer:    serializer,
		backend:       backend,
		cache:         cache,
	}, nil
}

func (s *NodeStorage) nodePath(ctx context.Context, id string) string {
	treeID := GetTreeIDOrDefault(ctx, s.defaultTreeID)
	return treePathPrefix + "/" + treeID + "/" + nodesPath + "/" + id
}

func (s *NodeStorage) metaPath(ctx context.Context) string {
	treeID := GetTreeIDOrDefault(ctx, s.defaultTreeID)
	return treePathPrefix + "/" + treeID + "/" + metadataPath + "/" + metaEntryPath
}

// LoadNode loads a node from storage
func (s *NodeStorage) LoadNode(ctx context.Context, id string) (*Node, error) {
	s.nodesLock.RLock()
	defer s.nodesLock.RUnlock()

	path := s.nodePath(ctx, id)
	if node, ok := s.cache.Load(path); ok {
		return node, nil
	}

	entry, err := s.backend.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load node %s: %w", id, err)
	}
	if entry == nil {
		return nil, nil
	}

	node, err := s.serializer.Deserialize(entry.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize node %s: %w", id, err)
	}

	s.cache.Store(path, node)

	return node, nil
}

// SaveNode saves a node to storage
func (s *NodeStorage) SaveNode(ctx context.Context, node *Node) error {
	if node == nil {
		return fmt.Errorf("cannot save nil node")
	}

	s.nodesLock.Lock()
	defer s.nodesLock.Unlock()

	data, err := s.serializer.Serialize(node)
	if err != nil {
		return fmt.Errorf("failed to serialize node %s: %w", node.ID, err)
	}

	path := s.nodePath(ctx, node.ID)
	if err := s.backend.Put(ctx, &store.Entry{Key: path, Value: data}); err != nil {
		return fmt.Errorf("failed to save node %s: %w", node.ID, err)
	}

	s.cache.Store(path, node)

	return nil
}

// DeleteNode deletes a node from storage
func (s *NodeStorage) DeleteNode(ctx context.Context, id string) error {
	s.nodesLock.Lock()
	defer s.nodesLock.Unlock()

	path := s.nodePath(ctx, id)
	if err := s.backend.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete node %s: %w", id, err)
	}

	s.cache.Delete(path)

	return nil
}

// LoadMeta loads the tree metadata, returning a zero TreeMeta when the
// tree has never been written to.
func (s *NodeStorage) LoadMeta(ctx context.Context) (*TreeMeta, error) {
	s.metaLock.RLock()
	defer s.metaLock.RUnlock()

	entry, err := s.backend.Get(ctx, s.metaPath(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to load tree metadata: %w", err)
	}
	if entry == nil {
		return &TreeMeta{}, nil
	}

	var meta TreeMeta
	if err := json.Unmarshal(entry.Value, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode tree metadata: %w", err)
	}

	return &meta, nil
}

// SaveMeta persists the tree metadata
func (s *NodeStorage) SaveMeta(ctx context.Context, meta *TreeMeta) error {
	if meta == nil {
		return fmt.Errorf("cannot save nil metadata")
	}

	s.metaLock.Lock()
	defer s.metaLock.Unlock()

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode tree metadata: %w", err)
	}

	if err := s.backend.Put(ctx, &store.Entry{Key: s.metaPath(ctx), Value: data}); err != nil {
		return fmt.Errorf("failed to save tree metadata: %w", err)
	}

	return nil
}
