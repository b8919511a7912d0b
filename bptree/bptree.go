package bptree

import (
	"context"
	"fmt"
	"log"

	"github.com/nganlamforwork/my-mini-db-sub001/page"
)

// BPlusTree represents a B+ tree data structure. The struct itself only
// carries the order; the root id and height live in storage (TreeMeta), so
// any number of handles over the same backend see one tree.
//
// The tree performs no locking. Callers sharing one tree across goroutines
// must serialize structural mutations themselves; that is the job of the
// owning pager or latch layer, not of this core.
type BPlusTree struct {
	order int
}

// Pair is one key/value result of a scan.
type Pair struct {
	Key   Key
	Value []byte
}

// NewBPlusTree creates a handle over the tree described by config. The
// root page is created lazily on the first insert; opening an existing
// tree just validates the config against what is stored.
func NewBPlusTree(ctx context.Context, storage Storage, config *BPlusTreeConfig) (*BPlusTree, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	// Touch the metadata so a broken backend fails here, not mid-insert.
	if _, err := storage.LoadMeta(ctx); err != nil {
		return nil, fmt.Errorf("failed to load tree metadata: %w", err)
	}

	return &BPlusTree{order: config.Order}, nil
}

// Order returns the tree's order (maximum children per internal node).
func (t *BPlusTree) Order() int {
	return t.order
}

// maxKeys returns the maximum number of keys a node can hold: order-1.
func (t *BPlusTree) maxKeys() int {
	return t.order - 1
}

// minKeys returns the minimum number of keys a non-root node must hold:
// ceil(order/2)-1.
func (t *BPlusTree) minKeys() int {
	return (t.order+1)/2 - 1
}

// isOverfull checks if a node has exceeded its maximum capacity
func (t *BPlusTree) isOverfull(node *Node) bool {
	return len(node.Keys) > t.maxKeys()
}

// isUnderfull checks if a node has fallen below its minimum capacity
func (t *BPlusTree) isUnderfull(node *Node) bool {
	return len(node.Keys) < t.minKeys()
}

// Height returns the current height of the tree (0 when empty).
func (t *BPlusTree) Height(ctx context.Context, storage Storage) (int, error) {
	meta, err := storage.LoadMeta(ctx)
	if err != nil {
		return 0, err
	}
	return meta.Height, nil
}

// pathEntry records one step of a root-to-leaf descent: the internal node
// visited and the child index taken out of it. The stack built this way
// replaces persistent parent pointers; after a merge nothing can dangle.
type pathEntry struct {
	node       *Node
	childIndex int
}

// findLeafPath descends from the root to the leaf that owns key, returning
// the leaf and the stack of internal nodes walked through.
func (t *BPlusTree) findLeafPath(ctx context.Context, storage Storage, rootID string, key Key) (*Node, []pathEntry, error) {
	node, err := storage.LoadNode(ctx, rootID)
	if err != nil {
		return nil, nil, err
	}
	if node == nil {
		return nil, nil, fmt.Errorf("root node %s missing: %w", rootID, ErrCorrupted)
	}

	var path []pathEntry
	for !node.IsLeaf {
		if !node.wellFormed() {
			return nil, nil, fmt.Errorf("internal node %s has %d keys but %d children: %w",
				node.ID, len(node.Keys), len(node.ChildrenIDs), ErrCorrupted)
		}
		idx := node.findChildIndex(key)
		child, err := storage.LoadNode(ctx, node.ChildrenIDs[idx])
		if err != nil {
			return nil, nil, err
		}
		if child == nil {
			return nil, nil, fmt.Errorf("child %s of node %s missing: %w", node.ChildrenIDs[idx], node.ID, ErrCorrupted)
		}
		path = append(path, pathEntry{node: node, childIndex: idx})
		node = child
	}
	return node, path, nil
}

func (t *BPlusTree) loadChild(ctx context.Context, storage Storage, parent *Node, idx int) (*Node, error) {
	child, err := storage.LoadNode(ctx, parent.ChildrenIDs[idx])
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, fmt.Errorf("child %s of node %s missing: %w", parent.ChildrenIDs[idx], parent.ID, ErrCorrupted)
	}
	return child, nil
}

// Search returns the value stored under key, or ErrKeyNotFound.
func (t *BPlusTree) Search(ctx context.Context, storage Storage, key Key) ([]byte, error) {
	meta, err := storage.LoadMeta(ctx)
	if err != nil {
		return nil, err
	}
	if meta.RootID == "" {
		return nil, ErrKeyNotFound
	}

	leaf, _, err := t.findLeafPath(ctx, storage, meta.RootID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to find leaf node: %w", err)
	}

	idx, found := leaf.findKeyIndex(key)
	if !found {
		return nil, ErrKeyNotFound
	}
	return leaf.Values[idx], nil
}

// Insert inserts a key-value pair. Keys are unique across the tree:
// inserting an existing key fails with ErrDuplicateKey and leaves the tree
// unchanged. A value that cannot fit a leaf page's payload fails with
// ErrValueTooLarge before any mutation.
func (t *BPlusTree) Insert(ctx context.Context, storage Storage, key Key, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("key must have at least one component")
	}
	if len(value)+page.ValueLenSize > page.PayloadCapacity {
		return fmt.Errorf("%d-byte value: %w", len(value), ErrValueTooLarge)
	}

	meta, err := storage.LoadMeta(ctx)
	if err != nil {
		return err
	}

	// Empty tree: the new leaf becomes the root.
	if meta.RootID == "" {
		root := NewLeafNode(genPageID())
		root.insertKeyValue(0, key.Clone(), value)
		if err := storage.SaveNode(ctx, root); err != nil {
			return fmt.Errorf("failed to save root node: %w", err)
		}
		meta.RootID = root.ID
		meta.Height = 1
		return storage.SaveMeta(ctx, meta)
	}

	leaf, path, err := t.findLeafPath(ctx, storage, meta.RootID, key)
	if err != nil {
		return fmt.Errorf("failed to find leaf node: %w", err)
	}

	idx, found := leaf.findKeyIndex(key)
	if found {
		return fmt.Errorf("key %s: %w", key, ErrDuplicateKey)
	}

	leaf.insertKeyValue(idx, key.Clone(), value)

	if !t.isOverfull(leaf) {
		return storage.SaveNode(ctx, leaf)
	}

	newLeaf, splitKey, err := t.splitLeafNode(ctx, storage, leaf)
	if err != nil {
		return err
	}
	return t.insertIntoParent(ctx, storage, meta, path, leaf, newLeaf, splitKey)
}

// splitLeafNode splits an overfull leaf. The left half keeps ceil(n/2)
// keys, the new right leaf gets the rest, and the sibling chain is
// repaired around the new node. The separator handed back for the parent
// is a copy of the right leaf's first key; the key itself stays in the
// leaf.
func (t *BPlusTree) splitLeafNode(ctx context.Context, storage Storage, leaf *Node) (*Node, Key, error) {
	newLeaf := NewLeafNode(genPageID())

	splitIndex := (len(leaf.Keys) + 1) / 2

	newLeaf.Keys = append(newLeaf.Keys, leaf.Keys[splitIndex:]...)
	newLeaf.Values = append(newLeaf.Values, leaf.Values[splitIndex:]...)
	leaf.Keys = leaf.Keys[:splitIndex]
	leaf.Values = leaf.Values[:splitIndex]

	// Chain repair: leaf <-> newLeaf <-> old next.
	newLeaf.PrevID = leaf.ID
	newLeaf.NextID = leaf.NextID
	if leaf.NextID != "" {
		oldNext, err := storage.LoadNode(ctx, leaf.NextID)
		if err != nil {
			return nil, nil, err
		}
		if oldNext == nil {
			return nil, nil, fmt.Errorf("next leaf %s of %s missing: %w", leaf.NextID, leaf.ID, ErrCorrupted)
		}
		oldNext.PrevID = newLeaf.ID
		if err := storage.SaveNode(ctx, oldNext); err != nil {
			return nil, nil, fmt.Errorf("failed to save next leaf: %w", err)
		}
	}
	leaf.NextID = newLeaf.ID

	if err := storage.SaveNode(ctx, leaf); err != nil {
		return nil, nil, fmt.Errorf("failed to save split leaf: %w", err)
	}
	if err := storage.SaveNode(ctx, newLeaf); err != nil {
		return nil, nil, fmt.Errorf("failed to save new leaf: %w", err)
	}

	return newLeaf, newLeaf.Keys[0].Clone(), nil
}

// insertIntoParent walks the path stack upward, inserting the separator
// and right sibling at each level and splitting internal nodes that
// overflow. Exhausting the stack means the root split: a new root with a
// single separator is created and the height grows by one.
func (t *BPlusTree) insertIntoParent(ctx context.Context, storage Storage, meta *TreeMeta, path []pathEntry, left, right *Node, splitKey Key) error {
	for {
		if len(path) == 0 {
			newRoot := NewInternalNode(genPageID())
			newRoot.Keys = []Key{splitKey}
			newRoot.ChildrenIDs = []string{left.ID, right.ID}
			if err := storage.SaveNode(ctx, newRoot); err != nil {
				return fmt.Errorf("failed to save new root: %w", err)
			}
			meta.RootID = newRoot.ID
			meta.Height++
			return storage.SaveMeta(ctx, meta)
		}

		entry := path[len(path)-1]
		path = path[:len(path)-1]
		parent := entry.node

		// We descended into child entry.childIndex, so the separator goes
		// at that index and the right sibling just after it.
		parent.insertKey(entry.childIndex, splitKey)
		parent.insertChild(entry.childIndex+1, right.ID)

		if !t.isOverfull(parent) {
			return storage.SaveNode(ctx, parent)
		}

		newInternal, promoted, err := t.splitInternalNode(ctx, storage, parent)
		if err != nil {
			return err
		}
		left, right, splitKey = parent, newInternal, promoted
	}
}

// splitInternalNode splits an overfull internal node. Unlike a leaf split
// the middle key moves up: it is promoted to the parent and kept by
// neither half.
func (t *BPlusTree) splitInternalNode(ctx context.Context, storage Storage, node *Node) (*Node, Key, error) {
	newInternal := NewInternalNode(genPageID())

	mid := len(node.Keys) / 2
	promoted := node.Keys[mid]

	newInternal.Keys = append(newInternal.Keys, node.Keys[mid+1:]...)
	newInternal.ChildrenIDs = append(newInternal.ChildrenIDs, node.ChildrenIDs[mid+1:]...)
	node.Keys = node.Keys[:mid]
	node.ChildrenIDs = node.ChildrenIDs[:mid+1]

	if err := storage.SaveNode(ctx, node); err != nil {
		return nil, nil, fmt.Errorf("failed to save split internal node: %w", err)
	}
	if err := storage.SaveNode(ctx, newInternal); err != nil {
		return nil, nil, fmt.Errorf("failed to save new internal node: %w", err)
	}

	return newInternal, promoted, nil
}

// Delete removes a key and its value, rebalancing on the way back up when
// a node falls below its minimum occupancy.
func (t *BPlusTree) Delete(ctx context.Context, storage Storage, key Key) error {
	meta, err := storage.LoadMeta(ctx)
	if err != nil {
		return err
	}
	if meta.RootID == "" {
		return ErrKeyNotFound
	}

	leaf, path, err := t.findLeafPath(ctx, storage, meta.RootID, key)
	if err != nil {
		return fmt.Errorf("failed to find leaf node: %w", err)
	}

	idx, found := leaf.findKeyIndex(key)
	if !found {
		return ErrKeyNotFound
	}

	leaf.removeKeyValue(idx)

	// The root never underflows. A leaf root emptied out collapses the
	// tree to nothing.
	if len(path) == 0 {
		if len(leaf.Keys) == 0 {
			if err := storage.DeleteNode(ctx, leaf.ID); err != nil {
				return err
			}
			meta.RootID = ""
			meta.Height = 0
			return storage.SaveMeta(ctx, meta)
		}
		return storage.SaveNode(ctx, leaf)
	}

	if err := storage.SaveNode(ctx, leaf); err != nil {
		return fmt.Errorf("failed to save leaf node: %w", err)
	}

	if !t.isUnderfull(leaf) {
		return nil
	}
	return t.rebalance(ctx, storage, meta, path, leaf)
}

// rebalance restores minimum occupancy for node, walking the path stack
// upward as merges cascade. Borrowing from a surplus sibling is preferred;
// only when neither sibling can spare a key are nodes merged.
func (t *BPlusTree) rebalance(ctx context.Context, storage Storage, meta *TreeMeta, path []pathEntry, node *Node) error {
	for {
		entry := path[len(path)-1]
		path = path[:len(path)-1]
		parent, idx := entry.node, entry.childIndex

		var left, right *Node
		var err error

		if idx > 0 {
			if left, err = t.loadChild(ctx, storage, parent, idx-1); err != nil {
				return err
			}
			if len(left.Keys) > t.minKeys() {
				t.borrowFromLeft(parent, idx, left, node)
				return saveNodes(ctx, storage, left, node, parent)
			}
		}
		if idx < len(parent.ChildrenIDs)-1 {
			if right, err = t.loadChild(ctx, storage, parent, idx+1); err != nil {
				return err
			}
			if len(right.Keys) > t.minKeys() {
				t.borrowFromRight(parent, idx, node, right)
				return saveNodes(ctx, storage, node, right, parent)
			}
		}

		// No sibling has surplus: merge, preferring the left sibling.
		switch {
		case left != nil:
			err = t.mergeNodes(ctx, storage, parent, idx-1, left, node)
		case right != nil:
			err = t.mergeNodes(ctx, storage, parent, idx, node, right)
		default:
			return fmt.Errorf("node %s has no siblings under %s: %w", node.ID, parent.ID, ErrCorrupted)
		}
		if err != nil {
			return err
		}

		if len(path) == 0 {
			// parent is the root. It collapses when the merge consumed its
			// last separator, leaving exactly one child.
			if len(parent.Keys) == 0 {
				newRootID := parent.ChildrenIDs[0]
				if err := storage.DeleteNode(ctx, parent.ID); err != nil {
					return err
				}
				meta.RootID = newRootID
				meta.Height--
				return storage.SaveMeta(ctx, meta)
			}
			return nil
		}

		if !t.isUnderfull(parent) {
			return nil
		}
		node = parent
	}
}

// borrowFromLeft moves the left sibling's last key into node. For leaves
// the key/value pair shifts over and the separator left of node becomes
// node's new first key. For internal nodes it is a rotation: the separator
// comes down into node, the sibling's last key goes up to replace it, and
// the sibling's last child migrates along.
func (t *BPlusTree) borrowFromLeft(parent *Node, idx int, left, node *Node) {
	if node.IsLeaf {
		last := len(left.Keys) - 1
		k, v := left.Keys[last], left.Values[last]
		left.removeKeyValue(last)
		node.insertKeyValue(0, k, v)
		parent.Keys[idx-1] = node.Keys[0].Clone()
		return
	}

	lastKey := len(left.Keys) - 1
	lastChild := len(left.ChildrenIDs) - 1
	node.insertKey(0, parent.Keys[idx-1])
	node.insertChild(0, left.ChildrenIDs[lastChild])
	parent.Keys[idx-1] = left.Keys[lastKey]
	left.removeKey(lastKey)
	left.removeChild(lastChild)
}

// borrowFromRight mirrors borrowFromLeft with the right sibling's first
// key; the separator at idx tracks the right sibling's new first key.
func (t *BPlusTree) borrowFromRight(parent *Node, idx int, node, right *Node) {
	if node.IsLeaf {
		k, v := right.Keys[0], right.Values[0]
		right.removeKeyValue(0)
		node.insertKeyValue(len(node.Keys), k, v)
		parent.Keys[idx] = right.Keys[0].Clone()
		return
	}

	node.insertKey(len(node.Keys), parent.Keys[idx])
	node.insertChild(len(node.ChildrenIDs), right.ChildrenIDs[0])
	parent.Keys[idx] = right.Keys[0]
	right.removeKey(0)
	right.removeChild(0)
}

// mergeNodes folds rightNode into leftNode and drops the separator at
// sepIdx (between the two) along with rightNode's child slot from the
// parent. Leaves concatenate and splice the sibling chain around the dead
// node; internal nodes additionally pull the separator down between the
// two key runs.
func (t *BPlusTree) mergeNodes(ctx context.Context, storage Storage, parent *Node, sepIdx int, leftNode, rightNode *Node) error {
	if leftNode.IsLeaf {
		leftNode.Keys = append(leftNode.Keys, rightNode.Keys...)
		leftNode.Values = append(leftNode.Values, rightNode.Values...)
		leftNode.NextID = rightNode.NextID
		if rightNode.NextID != "" {
			next, err := storage.LoadNode(ctx, rightNode.NextID)
			if err != nil {
				return err
			}
			if next == nil {
				return fmt.Errorf("next leaf %s of %s missing: %w", rightNode.NextID, rightNode.ID, ErrCorrupted)
			}
			next.PrevID = leftNode.ID
			if err := storage.SaveNode(ctx, next); err != nil {
				return fmt.Errorf("failed to save next leaf: %w", err)
			}
		}
	} else {
		leftNode.Keys = append(leftNode.Keys, parent.Keys[sepIdx])
		leftNode.Keys = append(leftNode.Keys, rightNode.Keys...)
		leftNode.ChildrenIDs = append(leftNode.ChildrenIDs, rightNode.ChildrenIDs...)
	}

	parent.removeKey(sepIdx)
	parent.removeChild(sepIdx + 1)

	if err := storage.DeleteNode(ctx, rightNode.ID); err != nil {
		return err
	}
	return saveNodes(ctx, storage, leftNode, parent)
}

// RangeScan returns all pairs with start <= key <= end in ascending key
// order, walking the leaf chain sideways instead of re-descending per
// leaf.
func (t *BPlusTree) RangeScan(ctx context.Context, storage Storage, start, end Key) ([]Pair, error) {
	if Compare(start, end) > 0 {
		return nil, ErrInvalidRange
	}

	meta, err := storage.LoadMeta(ctx)
	if err != nil {
		return nil, err
	}
	if meta.RootID == "" {
		return nil, nil
	}

	current, _, err := t.findLeafPath(ctx, storage, meta.RootID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to find start leaf: %w", err)
	}

	var results []Pair
	for current != nil {
		for i, k := range current.Keys {
			if Compare(k, end) > 0 {
				return results, nil
			}
			if Compare(k, start) >= 0 {
				results = append(results, Pair{Key: k, Value: current.Values[i]})
			}
		}
		if current.NextID == "" {
			break
		}
		next, err := storage.LoadNode(ctx, current.NextID)
		if err != nil {
			return nil, fmt.Errorf("failed to load next leaf: %w", err)
		}
		if next == nil {
			return nil, fmt.Errorf("next leaf %s of %s missing: %w", current.NextID, current.ID, ErrCorrupted)
		}
		current = next
	}
	return results, nil
}

// All returns every pair in the tree in ascending key order by walking
// the whole leaf chain from the leftmost leaf.
func (t *BPlusTree) All(ctx context.Context, storage Storage) ([]Pair, error) {
	meta, err := storage.LoadMeta(ctx)
	if err != nil {
		return nil, err
	}
	if meta.RootID == "" {
		return nil, nil
	}

	current, err := t.findLeftmostLeaf(ctx, storage, meta.RootID)
	if err != nil {
		return nil, err
	}

	var results []Pair
	for current != nil {
		for i, k := range current.Keys {
			results = append(results, Pair{Key: k, Value: current.Values[i]})
		}
		if current.NextID == "" {
			break
		}
		next, err := storage.LoadNode(ctx, current.NextID)
		if err != nil {
			return nil, fmt.Errorf("failed to load next leaf: %w", err)
		}
		if next == nil {
			return nil, fmt.Errorf("next leaf %s of %s missing: %w", current.NextID, current.ID, ErrCorrupted)
		}
		current = next
	}
	return results, nil
}

// findLeftmostLeaf descends along the leftmost children to the head of
// the leaf chain.
func (t *BPlusTree) findLeftmostLeaf(ctx context.Context, storage Storage, rootID string) (*Node, error) {
	current, err := storage.LoadNode(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("root node %s missing: %w", rootID, ErrCorrupted)
	}

	for !current.IsLeaf {
		if len(current.ChildrenIDs) == 0 {
			return nil, fmt.Errorf("internal node %s has no children: %w", current.ID, ErrCorrupted)
		}
		current, err = t.loadChild(ctx, storage, current, 0)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

func saveNodes(ctx context.Context, storage Storage, nodes ...*Node) error {
	for _, n := range nodes {
		if err := storage.SaveNode(ctx, n); err != nil {
			return fmt.Errorf("failed to save node %s: %w", n.ID, err)
		}
	}
	return nil
}

// Print prints a visual representation of the B+ tree
func (t *BPlusTree) Print(storage Storage) error {
	ctx := context.Background()
	meta, err := storage.LoadMeta(ctx)
	if err != nil {
		return err
	}
	if meta.RootID == "" {
		log.Printf("(empty tree)")
		return nil
	}

	root, err := storage.LoadNode(ctx, meta.RootID)
	if err != nil {
		return err
	}
	if root == nil {
		return fmt.Errorf("root node %s missing: %w", meta.RootID, ErrCorrupted)
	}

	return t.printNode(storage, root, "", true)
}

// printNode recursively prints a node and its children
func (t *BPlusTree) printNode(storage Storage, node *Node, prefix string, isLast bool) error {
	getPrefix := func(isLast bool) string {
		if isLast {
			return "└── "
		}
		return "├── "
	}

	if node.IsLeaf {
		log.Printf("%s%s Leaf Node (ID: %s)\n", prefix, getPrefix(isLast), node.ID)
		log.Printf("%s%s Keys: %v\n", prefix, getPrefix(isLast), node.Keys)
	} else {
		log.Printf("%s%s Internal Node (ID: %s)\n", prefix, getPrefix(isLast), node.ID)
		log.Printf("%s%s Keys: %v\n", prefix, getPrefix(isLast), node.Keys)
	}

	if !node.IsLeaf {
		for i, childID := range node.ChildrenIDs {
			child, err := storage.LoadNode(context.Background(), childID)
			if err != nil {
				return fmt.Errorf("failed to load child node %s: %w", childID, err)
			}

			isLastChild := i == len(node.ChildrenIDs)-1

			nextPrefix := prefix
			if isLast {
				nextPrefix += "    "
			} else {
				nextPrefix += "│   "
			}

			if err := t.printNode(storage, child, nextPrefix, isLastChild); err != nil {
				return err
			}
		}
	}

	return nil
}
