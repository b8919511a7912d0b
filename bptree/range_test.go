package bptree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeScanInvalidRange(t *testing.T) {
	tree, storage, ctx := newTestTree(t, 4)

	_, err := tree.RangeScan(ctx, storage, IntKey(10), IntKey(5))
	require.ErrorIs(t, err, ErrInvalidRange, "Start after end must be rejected")
}

func TestRangeScanEmptyTree(t *testing.T) {
	tree, storage, ctx := newTestTree(t, 4)

	pairs, err := tree.RangeScan(ctx, storage, IntKey(0), IntKey(100))
	require.NoError(t, err, "Range scan over an empty tree is not an error")
	require.Empty(t, pairs)
}

func TestRangeScanSingleLeaf(t *testing.T) {
	tree, storage, ctx := newTestTree(t, 8)

	for _, k := range []int64{10, 20, 30, 40, 50} {
		require.NoError(t, tree.Insert(ctx, storage, IntKey(k), []byte(fmt.Sprintf("v%d", k))))
	}

	t.Run("InclusiveBounds", func(t *testing.T) {
		pairs, err := tree.RangeScan(ctx, storage, IntKey(20), IntKey(40))
		require.NoError(t, err)
		require.Len(t, pairs, 3, "Both endpoints are inclusive")
		require.Zero(t, Compare(IntKey(20), pairs[0].Key))
		require.Zero(t, Compare(IntKey(40), pairs[2].Key))
	})

	t.Run("BoundsBetweenKeys", func(t *testing.T) {
		pairs, err := tree.RangeScan(ctx, storage, IntKey(15), IntKey(45))
		require.NoError(t, err)
		require.Len(t, pairs, 3)
	})

	t.Run("EqualBounds", func(t *testing.T) {
		pairs, err := tree.RangeScan(ctx, storage, IntKey(30), IntKey(30))
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		require.Equal(t, []byte("v30"), pairs[0].Value)
	})

	t.Run("DisjointBelow", func(t *testing.T) {
		pairs, err := tree.RangeScan(ctx, storage, IntKey(-10), IntKey(5))
		require.NoError(t, err)
		require.Empty(t, pairs)
	})

	t.Run("DisjointAbove", func(t *testing.T) {
		pairs, err := tree.RangeScan(ctx, storage, IntKey(60), IntKey(100))
		require.NoError(t, err)
		require.Empty(t, pairs)
	})
}

// TestRangeScanAcrossLeaves builds a multi-level tree and cross-checks
// every scan against a brute-force filter of the full leaf chain.
func TestRangeScanAcrossLeaves(t *testing.T) {
	tree, storage, ctx := newTestTree(t, 4)

	const n = 100
	for k := int64(0); k < n; k++ {
		require.NoError(t, tree.Insert(ctx, storage, IntKey(k*2), []byte(fmt.Sprintf("v%d", k*2))))
	}
	validateTree(t, ctx, tree, storage)

	all, err := tree.All(ctx, storage)
	require.NoError(t, err)
	require.Len(t, all, n)

	ranges := []struct{ start, end int64 }{
		{0, 198},   // everything
		{-5, 500},  // beyond both extremes
		{10, 11},   // one even key, one miss
		{13, 27},   // both bounds between keys
		{50, 150},  // spans several leaves
		{197, 300}, // tail only
	}
	for _, r := range ranges {
		t.Run(fmt.Sprintf("Range%dTo%d", r.start, r.end), func(t *testing.T) {
			pairs, err := tree.RangeScan(ctx, storage, IntKey(r.start), IntKey(r.end))
			require.NoError(t, err)

			var want []Pair
			for _, p := range all {
				if Compare(p.Key, IntKey(r.start)) >= 0 && Compare(p.Key, IntKey(r.end)) <= 0 {
					want = append(want, p)
				}
			}
			require.Equal(t, len(want), len(pairs), "Scan [%d,%d] wrong size", r.start, r.end)
			for i := range want {
				require.Zero(t, Compare(want[i].Key, pairs[i].Key), "Scan [%d,%d] diverges at %d", r.start, r.end, i)
				require.Equal(t, want[i].Value, pairs[i].Value)
			}
		})
	}
}

// TestRangeScanAfterDeletes makes sure scans follow the repaired chain
// once merges have removed leaves.
func TestRangeScanAfterDeletes(t *testing.T) {
	tree, storage, ctx := newTestTree(t, 4)

	for k := int64(0); k < 60; k++ {
		require.NoError(t, tree.Insert(ctx, storage, IntKey(k), []byte("v")))
	}
	for k := int64(20); k < 40; k++ {
		require.NoError(t, tree.Delete(ctx, storage, IntKey(k)))
	}
	validateTree(t, ctx, tree, storage)

	pairs, err := tree.RangeScan(ctx, storage, IntKey(10), IntKey(49))
	require.NoError(t, err)
	require.Len(t, pairs, 20, "10..19 and 40..49 should remain in range")
	require.Zero(t, Compare(IntKey(10), pairs[0].Key))
	require.Zero(t, Compare(IntKey(19), pairs[9].Key))
	require.Zero(t, Compare(IntKey(40), pairs[10].Key), "Scan must hop the merged-out region")
	require.Zero(t, Compare(IntKey(49), pairs[19].Key))
}

func TestRangeScanCompositeKeys(t *testing.T) {
	tree, storage, ctx := newTestTree(t, 4)

	users := []string{"alice", "bob", "carol", "dave"}
	for _, u := range users {
		for i := int64(0); i < 5; i++ {
			key := NewKey(String(u), Int(i))
			require.NoError(t, tree.Insert(ctx, storage, key, []byte(u)))
		}
	}

	// A prefix range over one user: [("bob"), ("bob", MaxInt)] style scan.
	pairs, err := tree.RangeScan(ctx, storage, NewKey(String("bob")), NewKey(String("bob"), Int(1<<62)))
	require.NoError(t, err)
	require.Len(t, pairs, 5, "All of bob's entries fall inside the prefix range")
	for _, p := range pairs {
		require.Equal(t, []byte("bob"), p.Value)
	}
}
