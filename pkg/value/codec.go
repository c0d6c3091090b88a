package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

// KeyBytes renders v as a byte slice whose byte-lexicographic order agrees
// with Compare for scalar Values. This is what BoltMap uses as a bbolt key,
// since bbolt's own cursor (First/Last/Seek/Next/Prev) compares keys
// byte-lexicographically.
//
// Numeric kinds (int32/int64/float32/float64) collapse to the same encoding
// when equal in value, which matches Compare's cross-width numeric equality.
// Array keys length-prefix each element, so when elements differ in encoded
// length their byte order can differ from Compare; Document keys do not
// reproduce compareDocs's order either. Compound index keys are arrays:
// equal keys encode to equal bytes, but a BoltMap iterates them in byte
// order, not Compare order.
func KeyBytes(v Value) []byte {
	switch v.kind {
	case KindNull:
		return []byte{0}
	case KindBool:
		if v.b {
			return []byte{1, 1}
		}
		return []byte{1, 0}
	case KindInt32, KindInt64, KindFloat32, KindFloat64:
		return append([]byte{2}, orderedFloatBytes(v.numeric())...)
	case KindString:
		return append([]byte{3}, []byte(v.s)...)
	case KindBytes:
		return append([]byte{4}, v.by...)
	case KindArray:
		out := []byte{5}
		for _, e := range v.arr {
			kb := KeyBytes(e)
			out = appendUvarint(out, uint64(len(kb)))
			out = append(out, kb...)
		}
		return out
	case KindDocument:
		out := []byte{6}
		if v.doc != nil {
			for el := v.doc.Front(); el != nil; el = el.Next() {
				out = appendUvarint(out, uint64(len(el.Key)))
				out = append(out, el.Key...)
				kb := KeyBytes(el.Value)
				out = appendUvarint(out, uint64(len(kb)))
				out = append(out, kb...)
			}
		}
		return out
	case KindID:
		b := make([]byte, 9)
		b[0] = 7
		binary.BigEndian.PutUint64(b[1:], v.id)
		return b
	default:
		return []byte{8}
	}
}

func appendUvarint(b []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(b, tmp[:n]...)
}

// orderedFloatBytes encodes f as 8 big-endian bytes such that unsigned
// byte-lexicographic order of the result matches float64 numeric order,
// including across the sign boundary (the standard IEEE-754 key trick).
func orderedFloatBytes(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, bits)
	return b
}

// Encode renders v as a self-describing, round-trippable byte slice
// preserving exact kind and bit width, for use as a bbolt *value* (not a
// key) or anywhere exact Decode(Encode(v)) == v is required.
func Encode(v Value) []byte {
	switch v.kind {
	case KindNull:
		return []byte{0}
	case KindBool:
		if v.b {
			return []byte{1, 1}
		}
		return []byte{1, 0}
	case KindInt32:
		b := make([]byte, 5)
		b[0] = 2
		binary.BigEndian.PutUint32(b[1:], uint32(int32(v.i)))
		return b
	case KindInt64:
		b := make([]byte, 9)
		b[0] = 3
		binary.BigEndian.PutUint64(b[1:], uint64(v.i))
		return b
	case KindFloat32:
		b := make([]byte, 5)
		b[0] = 4
		binary.BigEndian.PutUint32(b[1:], math.Float32bits(float32(v.f)))
		return b
	case KindFloat64:
		b := make([]byte, 9)
		b[0] = 5
		binary.BigEndian.PutUint64(b[1:], math.Float64bits(v.f))
		return b
	case KindString:
		out := []byte{6}
		return append(out, []byte(v.s)...)
	case KindBytes:
		out := []byte{7}
		return append(out, v.by...)
	case KindArray:
		out := []byte{8}
		out = appendUvarint(out, uint64(len(v.arr)))
		for _, e := range v.arr {
			eb := Encode(e)
			out = appendUvarint(out, uint64(len(eb)))
			out = append(out, eb...)
		}
		return out
	case KindDocument:
		out := []byte{9}
		n := 0
		if v.doc != nil {
			n = v.doc.Len()
		}
		out = appendUvarint(out, uint64(n))
		if v.doc != nil {
			for el := v.doc.Front(); el != nil; el = el.Next() {
				out = appendUvarint(out, uint64(len(el.Key)))
				out = append(out, el.Key...)
				eb := Encode(el.Value)
				out = appendUvarint(out, uint64(len(eb)))
				out = append(out, eb...)
			}
		}
		return out
	case KindID:
		b := make([]byte, 9)
		b[0] = 10
		binary.BigEndian.PutUint64(b[1:], v.id)
		return b
	default:
		return []byte{0}
	}
}

// Decode parses a slice produced by Encode, returning the number of bytes
// consumed.
func Decode(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return Null(), 0, fmt.Errorf("value: empty encoding")
	}
	switch data[0] {
	case 0:
		return Null(), 1, nil
	case 1:
		if len(data) < 2 {
			return Null(), 0, fmt.Errorf("value: truncated bool")
		}
		return Bool(data[1] != 0), 2, nil
	case 2:
		if len(data) < 5 {
			return Null(), 0, fmt.Errorf("value: truncated int32")
		}
		return Int32(int32(binary.BigEndian.Uint32(data[1:5]))), 5, nil
	case 3:
		if len(data) < 9 {
			return Null(), 0, fmt.Errorf("value: truncated int64")
		}
		return Int64(int64(binary.BigEndian.Uint64(data[1:9]))), 9, nil
	case 4:
		if len(data) < 5 {
			return Null(), 0, fmt.Errorf("value: truncated float32")
		}
		return Float32(math.Float32frombits(binary.BigEndian.Uint32(data[1:5]))), 5, nil
	case 5:
		if len(data) < 9 {
			return Null(), 0, fmt.Errorf("value: truncated float64")
		}
		return Float64(math.Float64frombits(binary.BigEndian.Uint64(data[1:9]))), 9, nil
	case 6:
		return String(string(data[1:])), len(data), nil
	case 7:
		by := make([]byte, len(data)-1)
		copy(by, data[1:])
		return Bytes(by), len(data), nil
	case 8:
		pos := 1
		n, m := binary.Uvarint(data[pos:])
		pos += m
		arr := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			elen, m2 := binary.Uvarint(data[pos:])
			pos += m2
			ev, consumed, err := Decode(data[pos : pos+int(elen)])
			if err != nil {
				return Null(), 0, err
			}
			_ = consumed
			arr = append(arr, ev)
			pos += int(elen)
		}
		return Array(arr), pos, nil
	case 9:
		pos := 1
		n, m := binary.Uvarint(data[pos:])
		pos += m
		d := NewDoc()
		for i := uint64(0); i < n; i++ {
			klen, m2 := binary.Uvarint(data[pos:])
			pos += m2
			key := string(data[pos : pos+int(klen)])
			pos += int(klen)
			vlen, m3 := binary.Uvarint(data[pos:])
			pos += m3
			fv, _, err := Decode(data[pos : pos+int(vlen)])
			if err != nil {
				return Null(), 0, err
			}
			pos += int(vlen)
			d.Set(key, fv)
		}
		return DocumentValue(d), pos, nil
	case 10:
		if len(data) < 9 {
			return Null(), 0, fmt.Errorf("value: truncated id")
		}
		return ID(binary.BigEndian.Uint64(data[1:9])), 9, nil
	default:
		return Null(), 0, fmt.Errorf("value: unknown tag %d", data[0])
	}
}
