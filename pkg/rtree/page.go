package rtree

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/nitrited/nitrite/pkg/nitriteerr"
)

// headerMagic identifies a nitrite R-tree file (spec.md §4.6).
var headerMagic = [4]byte{'N', 'T', 'R', 'T'}

// CurrentVersion is the on-disk format version this build writes.
const CurrentVersion = 1

// DefaultPageSize is the fixed page size used when Options doesn't
// override it.
const DefaultPageSize = 4096

// NonePage is the reserved "no page" id (spec.md §3).
const NonePage uint64 = 0

// headerEncodedSize is the number of meaningful header bytes before
// zero-padding to the page size: magic(4) + version(4) + pageSize(4) +
// root(8) + height(4) + entryCount(8) + nextPageID(8) + freeListHead(8) +
// crc(4).
const headerEncodedSize = 4 + 4 + 4 + 8 + 4 + 8 + 8 + 8 + 4

// fileHeader is the header page of spec.md §4.6.
type fileHeader struct {
	Version      uint32
	PageSize     uint32
	RootPage     uint64
	Height       uint32
	EntryCount   uint64
	NextPageID   uint64
	FreeListHead uint64
}

func newFileHeader(pageSize uint32) fileHeader {
	return fileHeader{
		Version:    CurrentVersion,
		PageSize:   pageSize,
		NextPageID: 1, // page id 0 is reserved for "none"
	}
}

func encodeHeader(h fileHeader, pageSize uint32) []byte {
	buf := make([]byte, pageSize)
	pos := 0
	copy(buf[pos:], headerMagic[:])
	pos += 4
	binary.LittleEndian.PutUint32(buf[pos:], h.Version)
	pos += 4
	binary.LittleEndian.PutUint32(buf[pos:], h.PageSize)
	pos += 4
	binary.LittleEndian.PutUint64(buf[pos:], h.RootPage)
	pos += 8
	binary.LittleEndian.PutUint32(buf[pos:], h.Height)
	pos += 4
	binary.LittleEndian.PutUint64(buf[pos:], h.EntryCount)
	pos += 8
	binary.LittleEndian.PutUint64(buf[pos:], h.NextPageID)
	pos += 8
	binary.LittleEndian.PutUint64(buf[pos:], h.FreeListHead)
	pos += 8
	crc := crc32.ChecksumIEEE(buf[:pos])
	binary.LittleEndian.PutUint32(buf[pos:], crc)
	return buf
}

func decodeHeader(buf []byte) (fileHeader, error) {
	if len(buf) < headerEncodedSize {
		return fileHeader{}, nitriteerr.Corruption("header page truncated")
	}
	if string(buf[0:4]) != string(headerMagic[:]) {
		return fileHeader{}, nitriteerr.Corruption("bad header magic")
	}
	pos := 4
	var h fileHeader
	h.Version = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	h.PageSize = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	h.RootPage = binary.LittleEndian.Uint64(buf[pos:])
	pos += 8
	h.Height = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	h.EntryCount = binary.LittleEndian.Uint64(buf[pos:])
	pos += 8
	h.NextPageID = binary.LittleEndian.Uint64(buf[pos:])
	pos += 8
	h.FreeListHead = binary.LittleEndian.Uint64(buf[pos:])
	pos += 8
	wantCRC := binary.LittleEndian.Uint32(buf[pos:])
	gotCRC := crc32.ChecksumIEEE(buf[:pos])
	if wantCRC != gotCRC {
		return fileHeader{}, nitriteerr.Corruption("header checksum mismatch")
	}
	return h, nil
}

// encodePage renders a full, fixed-size page: tag, length-prefixed
// payload, zero padding, and a trailing CRC over tag+payload
// (spec.md §4.6).
func encodePage(tag NodeType, payload []byte, pageSize uint32) ([]byte, error) {
	buf := make([]byte, pageSize)
	buf[0] = byte(tag)
	lenBuf := appendUvarint(nil, uint64(len(payload)))
	pos := 1
	if pos+len(lenBuf)+len(payload)+4 > int(pageSize) {
		return nil, nitriteerr.InvalidOperation("node payload exceeds page size")
	}
	copy(buf[pos:], lenBuf)
	pos += len(lenBuf)
	copy(buf[pos:], payload)

	crcInput := make([]byte, 0, 1+len(payload))
	crcInput = append(crcInput, byte(tag))
	crcInput = append(crcInput, payload...)
	crc := crc32.ChecksumIEEE(crcInput)
	binary.LittleEndian.PutUint32(buf[pageSize-4:], crc)
	return buf, nil
}

// decodePage parses a page written by encodePage, returning its tag and
// payload after verifying the trailing CRC.
func decodePage(buf []byte) (NodeType, []byte, error) {
	if len(buf) < 5 {
		return 0, nil, nitriteerr.Corruption("page too short")
	}
	tag := NodeType(buf[0])
	plen, n := binary.Uvarint(buf[1:])
	start := 1 + n
	end := start + int(plen)
	if end+4 > len(buf) {
		return 0, nil, nitriteerr.Corruption("page payload length out of range")
	}
	payload := buf[start:end]

	crcInput := make([]byte, 0, 1+len(payload))
	crcInput = append(crcInput, buf[0])
	crcInput = append(crcInput, payload...)
	wantCRC := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	gotCRC := crc32.ChecksumIEEE(crcInput)
	if wantCRC != gotCRC {
		return 0, nil, nitriteerr.Corruption("page checksum mismatch")
	}
	return tag, payload, nil
}
