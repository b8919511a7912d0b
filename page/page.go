// Package page implements the fixed-size on-disk leaf page format.
//
// Page layout (big-endian):
//
//	[0]      1 byte   page type (TypeInternal / TypeLeaf)
//	[1]      1 byte   flags (reserved, zero)
//	[2:4]    2 bytes  key count
//	[4:8]    4 bytes  reserved (zero)
//	[8:16]   8 bytes  prev leaf page id (NoPage if none)
//	[16:24]  8 bytes  next leaf page id (NoPage if none)
//	[24:]    payload: keyCount 8-byte keys, then keyCount values,
//	         each a 4-byte length prefix followed by raw bytes
//
// Keys are 8-byte unsigned integers in this minimal on-disk form; composite
// keys are layered on top via their tagged binary encoding (see the bptree
// package). The codec is driven by an external pager; the tree algorithms
// only consume the capacity constants.
package page

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// PageSize is the fixed size of every on-disk page.
	PageSize = 4096
	// HeaderSize is the fixed prefix before the payload.
	HeaderSize = 24
	// PayloadCapacity is the number of payload bytes a page can hold.
	PayloadCapacity = PageSize - HeaderSize

	// KeySize is the width of a key in the minimal on-disk form.
	KeySize = 8
	// ValueLenSize is the width of a value's length prefix.
	ValueLenSize = 4

	// NoPage marks an absent page reference (no sibling, empty root).
	NoPage = uint64(0)

	// TypeInternal and TypeLeaf are the page type tags.
	TypeInternal = byte(0)
	TypeLeaf     = byte(1)

	offType     = 0
	offFlags    = 1
	offKeyCount = 2
	offReserved = 4
	offPrevLeaf = 8
	offNextLeaf = 16
)

// ErrPageOverflow is returned when a leaf's payload does not fit in a page.
var ErrPageOverflow = errors.New("page payload exceeds capacity")

// ErrCorruptPage is returned when a buffer cannot be decoded as a leaf page.
var ErrCorruptPage = errors.New("corrupt page")

// Leaf is the decoded form of an on-disk leaf page.
type Leaf struct {
	Prev   uint64
	Next   uint64
	Keys   []uint64
	Values [][]byte
}

// Used returns the number of payload bytes the leaf occupies.
func (l *Leaf) Used() int {
	used := len(l.Keys) * KeySize
	for _, v := range l.Values {
		used += ValueLenSize + len(v)
	}
	return used
}

// FreeSpace returns the remaining payload bytes, clamped at zero. A result
// of zero after an insertion tells the caller to split the leaf.
func (l *Leaf) FreeSpace() int {
	free := PayloadCapacity - l.Used()
	if free < 0 {
		return 0
	}
	return free
}

// EncodeLeaf serializes the leaf into a fresh PageSize buffer.
func EncodeLeaf(l *Leaf) ([]byte, error) {
	if len(l.Keys) != len(l.Values) {
		return nil, fmt.Errorf("%w: %d keys but %d values", ErrCorruptPage, len(l.Keys), len(l.Values))
	}
	if l.Used() > PayloadCapacity {
		return nil, fmt.Errorf("%w: %d bytes used, capacity %d", ErrPageOverflow, l.Used(), PayloadCapacity)
	}

	buf := make([]byte, PageSize)
	buf[offType] = TypeLeaf
	binary.BigEndian.PutUint16(buf[offKeyCount:], uint16(len(l.Keys)))
	binary.BigEndian.PutUint64(buf[offPrevLeaf:], l.Prev)
	binary.BigEndian.PutUint64(buf[offNextLeaf:], l.Next)

	off := HeaderSize
	for _, k := range l.Keys {
		binary.BigEndian.PutUint64(buf[off:], k)
		off += KeySize
	}
	for _, v := range l.Values {
		binary.BigEndian.PutUint32(buf[off:], uint32(len(v)))
		off += ValueLenSize
		copy(buf[off:], v)
		off += len(v)
	}

	return buf, nil
}

// DecodeLeaf parses a PageSize buffer produced by EncodeLeaf.
func DecodeLeaf(buf []byte) (*Leaf, error) {
	if len(buf) != PageSize {
		return nil, fmt.Errorf("%w: buffer is %d bytes, want %d", ErrCorruptPage, len(buf), PageSize)
	}
	if buf[offType] != TypeLeaf {
		return nil, fmt.Errorf("%w: not a leaf page (type %d)", ErrCorruptPage, buf[offType])
	}

	keyCount := int(binary.BigEndian.Uint16(buf[offKeyCount:]))
	l := &Leaf{
		Prev:   binary.BigEndian.Uint64(buf[offPrevLeaf:]),
		Next:   binary.BigEndian.Uint64(buf[offNextLeaf:]),
		Keys:   make([]uint64, 0, keyCount),
		Values: make([][]byte, 0, keyCount),
	}

	off := HeaderSize
	if off+keyCount*KeySize > PageSize {
		return nil, fmt.Errorf("%w: key count %d overruns page", ErrCorruptPage, keyCount)
	}
	for i := 0; i < keyCount; i++ {
		l.Keys = append(l.Keys, binary.BigEndian.Uint64(buf[off:]))
		off += KeySize
	}
	for i := 0; i < keyCount; i++ {
		if off+ValueLenSize > PageSize {
			return nil, fmt.Errorf("%w: value %d length prefix overruns page", ErrCorruptPage, i)
		}
		vlen := int(binary.BigEndian.Uint32(buf[off:]))
		off += ValueLenSize
		if off+vlen > PageSize {
			return nil, fmt.Errorf("%w: value %d (%d bytes) overruns page", ErrCorruptPage, i, vlen)
		}
		value := make([]byte, vlen)
		copy(value, buf[off:off+vlen])
		l.Values = append(l.Values, value)
		off += vlen
	}

	return l, nil
}
