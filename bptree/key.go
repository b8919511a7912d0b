package bptree

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the scalar type of a key element.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Elem is one typed scalar component of a composite key.
type Elem struct {
	Kind Kind
	Bool bool
	Int  int64
	Flt  float64
	Str  string
}

// Bool, Int, Float and String build key elements of the respective kind.
func Bool(v bool) Elem     { return Elem{Kind: KindBool, Bool: v} }
func Int(v int64) Elem     { return Elem{Kind: KindInt, Int: v} }
func Float(v float64) Elem { return Elem{Kind: KindFloat, Flt: v} }
func String(v string) Elem { return Elem{Kind: KindString, Str: v} }

// compare orders two elements. Elements of the same kind use native
// ordering (false < true for bools); differing kinds order by kind tag so
// that mixed-type trees still have a total order.
func (e Elem) compare(other Elem) int {
	if e.Kind != other.Kind {
		if e.Kind < other.Kind {
			return -1
		}
		return 1
	}
	switch e.Kind {
	case KindBool:
		if e.Bool == other.Bool {
			return 0
		}
		if !e.Bool {
			return -1
		}
		return 1
	case KindInt:
		switch {
		case e.Int < other.Int:
			return -1
		case e.Int > other.Int:
			return 1
		}
		return 0
	case KindFloat:
		switch {
		case e.Flt < other.Flt:
			return -1
		case e.Flt > other.Flt:
			return 1
		}
		return 0
	case KindString:
		return strings.Compare(e.Str, other.Str)
	}
	return 0
}

// Key is a composite key: an ordered sequence of typed scalar components.
type Key []Elem

// NewKey builds a key from its components.
func NewKey(elems ...Elem) Key {
	return Key(elems)
}

// IntKey is shorthand for a single-component integer key.
func IntKey(v int64) Key {
	return Key{Int(v)}
}

// StringKey is shorthand for a single-component string key.
func StringKey(v string) Key {
	return Key{String(v)}
}

// Compare orders two keys lexicographically component by component. The
// first differing component decides; if one key is a strict prefix of the
// other, the shorter key sorts first.
func Compare(a, b Key) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := a[i].compare(b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Clone returns an independent copy of the key. Separator keys promoted
// into internal nodes are always clones so later leaf mutations cannot
// alias them.
func (k Key) Clone() Key {
	out := make(Key, len(k))
	copy(out, k)
	return out
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, e := range k {
		if i > 0 {
			b.WriteString(", ")
		}
		switch e.Kind {
		case KindBool:
			b.WriteString(strconv.FormatBool(e.Bool))
		case KindInt:
			b.WriteString(strconv.FormatInt(e.Int, 10))
		case KindFloat:
			b.WriteString(strconv.FormatFloat(e.Flt, 'g', -1, 64))
		case KindString:
			b.WriteString(strconv.Quote(e.Str))
		default:
			b.WriteString(e.Kind.String())
		}
	}
	b.WriteByte(')')
	return b.String()
}

// jsonElem is the wire form of an element; the kind tag keeps ints and
// floats apart, which plain JSON numbers would not.
type jsonElem struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v"`
}

func (e Elem) MarshalJSON() ([]byte, error) {
	var v any
	switch e.Kind {
	case KindBool:
		v = e.Bool
	case KindInt:
		v = e.Int
	case KindFloat:
		v = e.Flt
	case KindString:
		v = e.Str
	default:
		return nil, fmt.Errorf("cannot marshal key element of %s", e.Kind)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonElem{T: e.Kind.String(), V: raw})
}

func (e *Elem) UnmarshalJSON(data []byte) error {
	var wire jsonElem
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.T {
	case "bool":
		e.Kind = KindBool
		return json.Unmarshal(wire.V, &e.Bool)
	case "int":
		e.Kind = KindInt
		return json.Unmarshal(wire.V, &e.Int)
	case "float":
		e.Kind = KindFloat
		return json.Unmarshal(wire.V, &e.Flt)
	case "string":
		e.Kind = KindString
		return json.Unmarshal(wire.V, &e.Str)
	}
	return fmt.Errorf("unknown key element type %q", wire.T)
}

// AppendBinary appends the tagged big-endian encoding of the key to dst:
// a 2-byte component count, then per component a 1-byte kind tag followed
// by its payload (bool: 1 byte; int/float: 8 bytes; string: 2-byte length
// prefix plus bytes). This is the composite layer over the minimal
// fixed-width on-disk key form.
func (k Key) AppendBinary(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(k)))
	for _, e := range k {
		dst = append(dst, byte(e.Kind))
		switch e.Kind {
		case KindBool:
			if e.Bool {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		case KindInt:
			dst = binary.BigEndian.AppendUint64(dst, uint64(e.Int))
		case KindFloat:
			dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(e.Flt))
		case KindString:
			dst = binary.BigEndian.AppendUint16(dst, uint16(len(e.Str)))
			dst = append(dst, e.Str...)
		}
	}
	return dst
}

// DecodeKey parses a key produced by AppendBinary from the front of buf
// and returns it along with the number of bytes consumed.
func DecodeKey(buf []byte) (Key, int, error) {
	if len(buf) < 2 {
		return nil, 0, fmt.Errorf("key encoding truncated")
	}
	count := int(binary.BigEndian.Uint16(buf))
	off := 2
	key := make(Key, 0, count)
	for i := 0; i < count; i++ {
		if off >= len(buf) {
			return nil, 0, fmt.Errorf("key encoding truncated at element %d", i)
		}
		kind := Kind(buf[off])
		off++
		var e Elem
		switch kind {
		case KindBool:
			if off+1 > len(buf) {
				return nil, 0, fmt.Errorf("key encoding truncated at element %d", i)
			}
			e = Bool(buf[off] != 0)
			off++
		case KindInt:
			if off+8 > len(buf) {
				return nil, 0, fmt.Errorf("key encoding truncated at element %d", i)
			}
			e = Int(int64(binary.BigEndian.Uint64(buf[off:])))
			off += 8
		case KindFloat:
			if off+8 > len(buf) {
				return nil, 0, fmt.Errorf("key encoding truncated at element %d", i)
			}
			e = Float(math.Float64frombits(binary.BigEndian.Uint64(buf[off:])))
			off += 8
		case KindString:
			if off+2 > len(buf) {
				return nil, 0, fmt.Errorf("key encoding truncated at element %d", i)
			}
			slen := int(binary.BigEndian.Uint16(buf[off:]))
			off += 2
			if off+slen > len(buf) {
				return nil, 0, fmt.Errorf("key encoding truncated at element %d", i)
			}
			e = String(string(buf[off : off+slen]))
			off += slen
		default:
			return nil, 0, fmt.Errorf("unknown key element kind %d", kind)
		}
		key = append(key, e)
	}
	return key, off, nil
}
