package page

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	leaf := &Leaf{
		Prev:   7,
		Next:   9,
		Keys:   []uint64{10, 20, 30},
		Values: [][]byte{[]byte("ten"), []byte("twenty"), []byte("thirty")},
	}

	buf, err := EncodeLeaf(leaf)
	require.NoError(t, err, "Failed to encode leaf")
	require.Len(t, buf, PageSize, "Encoded page must be exactly one page")

	decoded, err := DecodeLeaf(buf)
	require.NoError(t, err, "Failed to decode leaf")
	require.Equal(t, leaf.Prev, decoded.Prev)
	require.Equal(t, leaf.Next, decoded.Next)
	require.Equal(t, leaf.Keys, decoded.Keys)
	require.Equal(t, leaf.Values, decoded.Values)
	require.Equal(t, leaf.Used(), decoded.Used())
	require.Equal(t, leaf.FreeSpace(), decoded.FreeSpace())
}

func TestEncodeDecodeEmptyLeaf(t *testing.T) {
	leaf := &Leaf{Prev: NoPage, Next: NoPage}

	buf, err := EncodeLeaf(leaf)
	require.NoError(t, err)

	decoded, err := DecodeLeaf(buf)
	require.NoError(t, err)
	require.Empty(t, decoded.Keys)
	require.Empty(t, decoded.Values)
	require.Equal(t, NoPage, decoded.Prev)
	require.Equal(t, NoPage, decoded.Next)
	require.Equal(t, PayloadCapacity, decoded.FreeSpace())
}

func TestEmptyAndZeroLengthValues(t *testing.T) {
	leaf := &Leaf{
		Keys:   []uint64{1, 2},
		Values: [][]byte{{}, []byte("x")},
	}

	buf, err := EncodeLeaf(leaf)
	require.NoError(t, err)

	decoded, err := DecodeLeaf(buf)
	require.NoError(t, err)
	require.Len(t, decoded.Values, 2)
	require.Empty(t, decoded.Values[0])
	require.Equal(t, []byte("x"), decoded.Values[1])
}

func TestUsedAndFreeSpace(t *testing.T) {
	leaf := &Leaf{
		Keys:   []uint64{1, 2},
		Values: [][]byte{make([]byte, 100), make([]byte, 50)},
	}

	// 2 keys * 8 + 2 prefixes * 4 + 150 value bytes.
	require.Equal(t, 2*KeySize+2*ValueLenSize+150, leaf.Used())
	require.Equal(t, PayloadCapacity-leaf.Used(), leaf.FreeSpace())

	// An over-capacity leaf clamps free space at zero.
	leaf.Values = append(leaf.Values, make([]byte, PayloadCapacity))
	leaf.Keys = append(leaf.Keys, 3)
	require.Zero(t, leaf.FreeSpace(), "Free space never goes negative")
}

func TestFreeSpaceExhaustionSignalsSplit(t *testing.T) {
	// Fill a leaf to exactly its capacity: FreeSpace hits zero but the
	// page still encodes.
	valueLen := PayloadCapacity - KeySize - ValueLenSize
	leaf := &Leaf{
		Keys:   []uint64{1},
		Values: [][]byte{make([]byte, valueLen)},
	}
	require.Zero(t, leaf.FreeSpace())

	buf, err := EncodeLeaf(leaf)
	require.NoError(t, err, "A page at exactly full capacity still fits")

	decoded, err := DecodeLeaf(buf)
	require.NoError(t, err)
	require.Zero(t, decoded.FreeSpace())
}

func TestEncodeOverflow(t *testing.T) {
	leaf := &Leaf{
		Keys:   []uint64{1},
		Values: [][]byte{make([]byte, PayloadCapacity)},
	}

	_, err := EncodeLeaf(leaf)
	require.ErrorIs(t, err, ErrPageOverflow)
}

func TestEncodeMismatchedArities(t *testing.T) {
	leaf := &Leaf{
		Keys:   []uint64{1, 2},
		Values: [][]byte{[]byte("only one")},
	}

	_, err := EncodeLeaf(leaf)
	require.ErrorIs(t, err, ErrCorruptPage)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("WrongSize", func(t *testing.T) {
		_, err := DecodeLeaf(make([]byte, PageSize-1))
		require.ErrorIs(t, err, ErrCorruptPage)
	})

	t.Run("WrongType", func(t *testing.T) {
		buf := make([]byte, PageSize)
		buf[0] = TypeInternal
		_, err := DecodeLeaf(buf)
		require.ErrorIs(t, err, ErrCorruptPage)
	})

	t.Run("KeyCountOverrunsPage", func(t *testing.T) {
		leaf := &Leaf{Keys: []uint64{1}, Values: [][]byte{[]byte("v")}}
		buf, err := EncodeLeaf(leaf)
		require.NoError(t, err)

		// Forge an absurd key count.
		buf[2] = 0xFF
		buf[3] = 0xFF
		_, err = DecodeLeaf(buf)
		require.ErrorIs(t, err, ErrCorruptPage)
	})

	t.Run("ValueLengthOverrunsPage", func(t *testing.T) {
		leaf := &Leaf{Keys: []uint64{1}, Values: [][]byte{[]byte("v")}}
		buf, err := EncodeLeaf(leaf)
		require.NoError(t, err)

		// Forge a value length larger than the page.
		off := HeaderSize + KeySize
		copy(buf[off:], []byte{0xFF, 0xFF, 0xFF, 0xFF})
		_, err = DecodeLeaf(buf)
		require.ErrorIs(t, err, ErrCorruptPage)
	})
}

func TestDecodeDoesNotAliasBuffer(t *testing.T) {
	leaf := &Leaf{Keys: []uint64{1}, Values: [][]byte{[]byte("value")}}
	buf, err := EncodeLeaf(leaf)
	require.NoError(t, err)

	decoded, err := DecodeLeaf(buf)
	require.NoError(t, err)

	// Scribbling over the page buffer must not change the decoded value.
	for i := range buf {
		buf[i] = 0xAA
	}
	require.True(t, bytes.Equal([]byte("value"), decoded.Values[0]),
		"Decoded values must be independent of the source buffer")
}
