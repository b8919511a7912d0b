package bptree

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// NodeSerializer defines how to serialize and deserialize nodes
type NodeSerializer interface {
	Serialize(node *Node) ([]byte, error)
	Deserialize(data []byte) (*Node, error)
}

// JSONSerializer is a simple JSON-based serializer for nodes
type JSONSerializer struct{}

// Serialize converts a node to JSON
func (s *JSONSerializer) Serialize(node *Node) ([]byte, error) {
	return json.Marshal(node)
}

// Deserialize converts JSON to a node
func (s *JSONSerializer) Deserialize(data []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// BinarySerializer encodes nodes in a compact big-endian form: keys use
// their tagged composite encoding, values and page ids are length-prefixed.
// It is a drop-in alternative to JSONSerializer for size-sensitive backends.
type BinarySerializer struct{}

const (
	nodeTagInternal = byte(0)
	nodeTagLeaf     = byte(1)
)

// Serialize converts a node to its binary form.
func (s *BinarySerializer) Serialize(node *Node) ([]byte, error) {
	var buf []byte
	if node.IsLeaf {
		buf = append(buf, nodeTagLeaf)
	} else {
		buf = append(buf, nodeTagInternal)
	}
	buf = appendString(buf, node.ID)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(node.Keys)))
	for _, k := range node.Keys {
		buf = k.AppendBinary(buf)
	}

	if node.IsLeaf {
		if len(node.Values) != len(node.Keys) {
			return nil, fmt.Errorf("leaf %s has %d keys but %d values", node.ID, len(node.Keys), len(node.Values))
		}
		for _, v := range node.Values {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
			buf = append(buf, v...)
		}
		buf = appendString(buf, node.NextID)
		buf = appendString(buf, node.PrevID)
		return buf, nil
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(node.ChildrenIDs)))
	for _, id := range node.ChildrenIDs {
		buf = appendString(buf, id)
	}
	return buf, nil
}

// Deserialize parses a node from its binary form.
func (s *BinarySerializer) Deserialize(data []byte) (*Node, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("node encoding truncated")
	}
	node := &Node{IsLeaf: data[0] == nodeTagLeaf}
	off := 1

	id, n, err := readString(data[off:])
	if err != nil {
		return nil, err
	}
	node.ID = id
	off += n

	if off+2 > len(data) {
		return nil, fmt.Errorf("node encoding truncated")
	}
	keyCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	for i := 0; i < keyCount; i++ {
		key, n, err := DecodeKey(data[off:])
		if err != nil {
			return nil, fmt.Errorf("failed to decode key %d: %w", i, err)
		}
		node.Keys = append(node.Keys, key)
		off += n
	}

	if node.IsLeaf {
		for i := 0; i < keyCount; i++ {
			if off+4 > len(data) {
				return nil, fmt.Errorf("node encoding truncated at value %d", i)
			}
			vlen := int(binary.BigEndian.Uint32(data[off:]))
			off += 4
			if off+vlen > len(data) {
				return nil, fmt.Errorf("node encoding truncated at value %d", i)
			}
			value := make([]byte, vlen)
			copy(value, data[off:off+vlen])
			node.Values = append(node.Values, value)
			off += vlen
		}
		if node.NextID, n, err = readString(data[off:]); err != nil {
			return nil, err
		}
		off += n
		if node.PrevID, _, err = readString(data[off:]); err != nil {
			return nil, err
		}
		return node, nil
	}

	if off+2 > len(data) {
		return nil, fmt.Errorf("node encoding truncated")
	}
	childCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	for i := 0; i < childCount; i++ {
		id, n, err := readString(data[off:])
		if err != nil {
			return nil, err
		}
		node.ChildrenIDs = append(node.ChildrenIDs, id)
		off += n
	}
	return node, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

func readString(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, fmt.Errorf("node encoding truncated")
	}
	slen := int(binary.BigEndian.Uint16(buf))
	if 2+slen > len(buf) {
		return "", 0, fmt.Errorf("node encoding truncated")
	}
	return string(buf[2 : 2+slen]), 2 + slen, nil
}
