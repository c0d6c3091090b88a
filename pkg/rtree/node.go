package rtree

import (
	"encoding/binary"
	"math"

	"github.com/nitrited/nitrite/pkg/nitriteerr"
)

// NodeType discriminates the two node shapes of spec.md §3.
type NodeType uint8

const (
	nodeTypeLeaf     NodeType = 1
	nodeTypeInternal NodeType = 2
)

// MaxLeafEntries and MaxInternalChildren bound node fanout. They are sized
// for the default 4 KiB page: a leaf entry is 40 bytes (bbox + id) and an
// internal entry is 40 bytes (bbox + child page id), leaving room for the
// tag, length prefix, and trailing CRC within one page.
const (
	MaxLeafEntries      = 100
	MaxInternalChildren = 100
)

const entryEncodedSize = 40 // 4 float64 (32 bytes) + 1 uint64 (8 bytes)

// LeafEntry is one (bbox, id) pair in a leaf node.
type LeafEntry struct {
	Bbox Bbox
	ID   uint64
}

// ChildEntry is one (child-bbox, child-page-id) pair in an internal node.
type ChildEntry struct {
	Bbox  Bbox
	Child uint64
}

// Node is a decoded R-tree page payload: exactly one of Leaves or
// Children is populated, per its Type.
type Node struct {
	Type     NodeType
	Level    uint32
	Leaves   []LeafEntry
	Children []ChildEntry
}

// IsLeaf reports whether n is a leaf node.
func (n *Node) IsLeaf() bool { return n.Type == nodeTypeLeaf }

// IsEmpty reports whether n carries no entries.
func (n *Node) IsEmpty() bool {
	return len(n.Leaves) == 0 && len(n.Children) == 0
}

// ComputeBbox returns the bbox covering all of n's entries. It returns the
// zero Bbox for an empty node; callers check IsEmpty first when that
// distinction matters.
func (n *Node) ComputeBbox() Bbox {
	if n.IsLeaf() {
		if len(n.Leaves) == 0 {
			return Bbox{}
		}
		bs := make([]Bbox, len(n.Leaves))
		for i, e := range n.Leaves {
			bs[i] = e.Bbox
		}
		return unionBbox(bs)
	}
	if len(n.Children) == 0 {
		return Bbox{}
	}
	bs := make([]Bbox, len(n.Children))
	for i, c := range n.Children {
		bs[i] = c.Bbox
	}
	return unionBbox(bs)
}

func newLeaf(entries []LeafEntry) *Node {
	return &Node{Type: nodeTypeLeaf, Leaves: entries}
}

func newInternal(level uint32, children []ChildEntry) *Node {
	return &Node{Type: nodeTypeInternal, Level: level, Children: children}
}

// encodeNode renders n's payload (everything after the page's type tag).
func encodeNode(n *Node) []byte {
	var out []byte
	if n.IsLeaf() {
		out = make([]byte, 0, 10+len(n.Leaves)*entryEncodedSize)
		out = appendUvarint(out, uint64(len(n.Leaves)))
		for _, e := range n.Leaves {
			out = appendBbox(out, e.Bbox)
			out = appendUint64(out, e.ID)
		}
		return out
	}
	out = make([]byte, 0, 14+len(n.Children)*entryEncodedSize)
	out = appendUint32(out, n.Level)
	out = appendUvarint(out, uint64(len(n.Children)))
	for _, c := range n.Children {
		out = appendBbox(out, c.Bbox)
		out = appendUint64(out, c.Child)
	}
	return out
}

// decodeNode parses a payload produced by encodeNode for the given tag.
func decodeNode(tag NodeType, payload []byte) (*Node, error) {
	switch tag {
	case nodeTypeLeaf:
		pos := 0
		count, n := binary.Uvarint(payload[pos:])
		pos += n
		entries := make([]LeafEntry, 0, count)
		for i := uint64(0); i < count; i++ {
			var bb Bbox
			bb, pos = readBbox(payload, pos)
			id, np := readUint64(payload, pos)
			pos = np
			entries = append(entries, LeafEntry{Bbox: bb, ID: id})
		}
		return newLeaf(entries), nil
	case nodeTypeInternal:
		pos := 0
		level, np := readUint32(payload, pos)
		pos = np
		count, n := binary.Uvarint(payload[pos:])
		pos += n
		children := make([]ChildEntry, 0, count)
		for i := uint64(0); i < count; i++ {
			var bb Bbox
			bb, pos = readBbox(payload, pos)
			child, np2 := readUint64(payload, pos)
			pos = np2
			children = append(children, ChildEntry{Bbox: bb, Child: child})
		}
		return newInternal(level, children), nil
	default:
		return nil, nitriteerr.Corruption("unknown node type tag")
	}
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendFloat64(b []byte, v float64) []byte {
	return appendUint64(b, math.Float64bits(v))
}

func appendBbox(b []byte, bb Bbox) []byte {
	b = appendFloat64(b, bb.MinX)
	b = appendFloat64(b, bb.MinY)
	b = appendFloat64(b, bb.MaxX)
	b = appendFloat64(b, bb.MaxY)
	return b
}

func appendUvarint(b []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(b, tmp[:n]...)
}

func readUint32(b []byte, pos int) (uint32, int) {
	return binary.LittleEndian.Uint32(b[pos : pos+4]), pos + 4
}

func readUint64(b []byte, pos int) (uint64, int) {
	return binary.LittleEndian.Uint64(b[pos : pos+8]), pos + 8
}

func readFloat64(b []byte, pos int) (float64, int) {
	v, np := readUint64(b, pos)
	return math.Float64frombits(v), np
}

func readBbox(b []byte, pos int) (Bbox, int) {
	var bb Bbox
	bb.MinX, pos = readFloat64(b, pos)
	bb.MinY, pos = readFloat64(b, pos)
	bb.MaxX, pos = readFloat64(b, pos)
	bb.MaxY, pos = readFloat64(b, pos)
	return bb, pos
}
