package valuetable

import "encoding/binary"

const (
	// KeyLen is the full key length; only KeyLen-2 bytes of it are ever
	// stored inside an entry (the leading 2 bytes are assumed redundant
	// with the caller's own partitioning).
	KeyLen = 32
	// KeySuffixLen is the number of key bytes stored in an entry.
	KeySuffixLen = 30

	// MinEntrySize and MaxEntrySize bound the entry_size a table may be
	// opened with.
	MinEntrySize = 64
	MaxEntrySize = 65534

	// DefaultMultipartEntrySize is the fixed entry size used when a table
	// is opened in multipart mode.
	DefaultMultipartEntrySize = 4096
)

// Key is a fixed-length fingerprint. Only key[2:] is ever persisted.
type Key [KeyLen]byte

var tombstoneTag = [2]byte{0xff, 0xff}
var multipartTag = [2]byte{0xff, 0xfe}

func isTombstoneTag(buf []byte) bool {
	return buf[0] == tombstoneTag[0] && buf[1] == tombstoneTag[1]
}

func isMultipartTag(buf []byte) bool {
	return buf[0] == multipartTag[0] && buf[1] == multipartTag[1]
}

// decodeEntry inspects the tag bytes of buf and reports where this
// entry's content begins, how long it is, and the slot index it chains to
// (0 if terminal). buf must be at least as long as the content it
// describes; the caller picks that length based on whether it came from
// the WAL overlay (the used prefix) or the file (a full entrySize slot).
func decodeEntry(buf []byte, entrySize int) (tombstone bool, contentOffset, contentLen int, next uint64) {
	switch {
	case isTombstoneTag(buf):
		return true, 0, 0, 0
	case isMultipartTag(buf):
		next = binary.LittleEndian.Uint64(buf[2:10])
		return false, 10, entrySize - 10, next
	default:
		size := binary.LittleEndian.Uint16(buf[0:2])
		return false, 2, int(size), 0
	}
}

// encodeTombstoneInto writes a 10-byte tombstone entry (tag + next_free)
// into buf, which must have length >= 10, and returns the used prefix.
func encodeTombstoneInto(buf []byte, nextFree uint64) []byte {
	buf[0], buf[1] = tombstoneTag[0], tombstoneTag[1]
	binary.LittleEndian.PutUint64(buf[2:10], nextFree)
	return buf[:10]
}

// encodeMultipartHeader writes the multipart tag and next-slot pointer
// into the first 10 bytes of buf; the caller fills the payload after.
func encodeMultipartHeader(buf []byte, next uint64) {
	buf[0], buf[1] = multipartTag[0], multipartTag[1]
	binary.LittleEndian.PutUint64(buf[2:10], next)
}

// encodeSingleHeader writes the 2-byte size header of a live single entry;
// the caller fills the payload after.
func encodeSingleHeader(buf []byte, size uint16) {
	binary.LittleEndian.PutUint16(buf[0:2], size)
}

func leUint64(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) }
func leUint16(buf []byte) uint16 { return binary.LittleEndian.Uint16(buf) }

func putLEUint64(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }

