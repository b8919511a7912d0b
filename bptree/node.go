package bptree

import (
	"slices"
	"sort"
)

// Node represents one page of the B+ tree. Internal nodes hold separator
// keys and len(Keys)+1 child page ids; leaf nodes hold keys parallel to
// values plus the doubly linked sibling chain used by range scans.
// Parent links are not stored; traversals collect a path stack instead,
// so merges can never leave a dangling parent reference behind.
type Node struct {
	ID          string   `json:"id"`
	IsLeaf      bool     `json:"isLeaf"`
	Keys        []Key    `json:"keys"`
	Values      [][]byte `json:"values,omitempty"`
	ChildrenIDs []string `json:"childrenIDs,omitempty"`
	NextID      string   `json:"nextID,omitempty"`
	PrevID      string   `json:"prevID,omitempty"`
}

// NewLeafNode creates a new leaf node
func NewLeafNode(id string) *Node {
	return &Node{
		ID:     id,
		IsLeaf: true,
	}
}

// NewInternalNode creates a new internal node
func NewInternalNode(id string) *Node {
	return &Node{
		ID:     id,
		IsLeaf: false,
	}
}

// findKeyIndex returns the index of the first key that is >= key, and
// whether that key is an exact match. The index is also the insertion
// position that keeps the node sorted.
func (n *Node) findKeyIndex(key Key) (int, bool) {
	idx := sort.Search(len(n.Keys), func(i int) bool {
		return Compare(n.Keys[i], key) >= 0
	})
	if idx < len(n.Keys) && Compare(n.Keys[idx], key) == 0 {
		return idx, true
	}
	return idx, false
}

// findChildIndex returns the index of the child to descend into for key:
// the first i with key < Keys[i], or the rightmost child if none.
func (n *Node) findChildIndex(key Key) int {
	return sort.Search(len(n.Keys), func(i int) bool {
		return Compare(key, n.Keys[i]) < 0
	})
}

// insertKeyValue inserts a key-value pair at the specified index
func (n *Node) insertKeyValue(idx int, key Key, value []byte) {
	n.Keys = slices.Insert(n.Keys, idx, key)
	n.Values = slices.Insert(n.Values, idx, value)
}

// removeKeyValue removes a key-value pair at the specified index
func (n *Node) removeKeyValue(idx int) {
	n.Keys = slices.Delete(n.Keys, idx, idx+1)
	n.Values = slices.Delete(n.Values, idx, idx+1)
}

// insertKey inserts a separator key at the specified index
func (n *Node) insertKey(idx int, key Key) {
	n.Keys = slices.Insert(n.Keys, idx, key)
}

// removeKey removes a separator key at the specified index
func (n *Node) removeKey(idx int) {
	n.Keys = slices.Delete(n.Keys, idx, idx+1)
}

// insertChild inserts a child page id at the specified index
func (n *Node) insertChild(idx int, childID string) {
	n.ChildrenIDs = slices.Insert(n.ChildrenIDs, idx, childID)
}

// removeChild removes a child page id at the specified index
func (n *Node) removeChild(idx int) {
	n.ChildrenIDs = slices.Delete(n.ChildrenIDs, idx, idx+1)
}

// wellFormed reports whether the node's internal arities line up.
func (n *Node) wellFormed() bool {
	if n.IsLeaf {
		return len(n.Keys) == len(n.Values)
	}
	return len(n.ChildrenIDs) == len(n.Keys)+1
}
