package valuetable

import (
	"bytes"
	"encoding/binary"
)

// fetchEntry returns the bytes describing the slot at index, consulting
// the WAL overlay snapshot first and the backing file second. The
// returned slice is at least as long as a full entry when it came from
// the file, or exactly the staged used-prefix when it came from the
// overlay.
func (t *ValueTable) fetchEntry(index uint64, ov Overlays) ([]byte, error) {
	if buf, ok := ov.Value(t.id, index); ok {
		return buf, nil
	}
	buf := make([]byte, t.entrySize)
	if err := t.readAt(buf, int64(index)*int64(t.entrySize)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Get follows the chain of slots starting at index, verifying the stored
// key suffix against key, and returns the concatenated value. It returns
// (nil, false, nil) on a tombstoned slot or a key mismatch — both are
// treated as "not found" rather than errors, since the external index is
// authoritative and a spurious miss here just causes it to repair itself.
func (t *ValueTable) Get(key Key, index uint64, ov Overlays) ([]byte, bool, error) {
	var out []byte
	part := 0
	for {
		buf, err := t.fetchEntry(index, ov)
		if err != nil {
			return nil, false, err
		}
		tombstone, off, length, next := decodeEntry(buf, int(t.entrySize))
		if tombstone {
			return nil, false, nil
		}
		if part == 0 {
			if !bytes.Equal(buf[off:off+KeySuffixLen], key[2:KeyLen]) {
				t.logf("%s: key mismatch at slot %d", t.id, index)
				return nil, false, nil
			}
			out = append(out, buf[off+KeySuffixLen:off+length]...)
		} else {
			out = append(out, buf[off:off+length]...)
		}
		if next == 0 {
			break
		}
		index = next
		part++
	}
	return out, true, nil
}

// partialKeyBuf returns just enough bytes of the slot at index to decode
// its stored key suffix (or detect a tombstone), from the WAL overlay if
// staged there, else 40 bytes from the file — enough to cover both the
// live-single (offset 2) and live-multipart (offset 10) key-suffix
// locations since entrySize is always >= 64.
func (t *ValueTable) partialKeyBuf(index uint64, w Writer) ([]byte, error) {
	return t.rawEntryBytes(index, func(i uint64) ([]byte, bool) { return w.ValueOverlayAt(t.id, i) }, 40)
}

// PartialKeyAt returns the 30-byte key suffix stored at the head of the
// slot at index (with the redundant leading 2 bytes left zero), or nil if
// the slot is a tombstone.
func (t *ValueTable) PartialKeyAt(index uint64, w Writer) (*Key, error) {
	buf, err := t.partialKeyBuf(index, w)
	if err != nil {
		return nil, err
	}
	if isTombstoneTag(buf) {
		return nil, nil
	}
	var key Key
	if isMultipartTag(buf) {
		copy(key[2:KeyLen], buf[10:10+KeySuffixLen])
	} else {
		copy(key[2:KeyLen], buf[2:2+KeySuffixLen])
	}
	return &key, nil
}

// HasKeyAt reports whether the slot at index is a live head whose stored
// key suffix matches key's.
func (t *ValueTable) HasKeyAt(index uint64, key Key, w Writer) (bool, error) {
	existing, err := t.PartialKeyAt(index, w)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	return bytes.Equal(existing[2:KeyLen], key[2:KeyLen]), nil
}

// readNextPart reports the next-slot pointer of the slot at index if it is
// a live-multipart entry, or (0, false) otherwise (including tombstones
// and terminal single entries).
func (t *ValueTable) readNextPart(index uint64, w Writer) (uint64, bool, error) {
	buf, err := t.rawEntryBytes(index, func(i uint64) ([]byte, bool) { return w.ValueOverlayAt(t.id, i) }, 10)
	if err != nil {
		return 0, false, err
	}
	if isMultipartTag(buf) {
		return binary.LittleEndian.Uint64(buf[2:10]), true, nil
	}
	return 0, false, nil
}

// slotWrite records that n bytes (the entry's used prefix: 2+size for a
// single entry, entrySize for a multipart one, 10 for a tombstone) were
// staged for slot index, in
// the order WriteInsertPlan/WriteReplacePlan/WriteRemovePlan staged them.
// EnactPlan replays a Plan's writes in this same order against the
// backing file, since the WAL's Reader yields payload bytes in staging
// order but carries no per-record table/slot framing of its own.
type slotWrite struct {
	index uint64
	n     int
}

// overwriteChain encodes key[2:]+value as a chain of entries, either
// starting a fresh chain (at == nil) or reusing/extending the chain
// starting at *at. It returns the head slot index and the ordered list of
// slot writes staged along the way.
func (t *ValueTable) overwriteChain(key Key, value []byte, w Writer, at *uint64) (uint64, []slotWrite, error) {
	if !t.multipart && len(value) > int(t.valueSize()) {
		panic("valuetable: value exceeds entry_size for a single-entry (non-multipart) table")
	}

	remainder := len(value) + KeySuffixLen
	offset := 0
	var start uint64
	var index uint64
	var writes []slotWrite
	follow := false
	if at != nil {
		index = *at
		follow = true
	} else {
		idx, err := t.nextFree(w)
		if err != nil {
			return 0, nil, err
		}
		index = idx
	}

	for {
		if start == 0 {
			start = index
		}

		var nextIndex uint64
		if follow {
			next, ok, err := t.readNextPart(index, w)
			if err != nil {
				return 0, nil, err
			}
			if ok {
				nextIndex = next
			} else {
				follow = false
			}
		}

		buf := make([]byte, t.entrySize)
		freeSpace := int(t.entrySize) - 2
		var targetOffset, valueLen int
		if remainder > freeSpace {
			if !follow {
				idx, err := t.nextFree(w)
				if err != nil {
					return 0, nil, err
				}
				nextIndex = idx
			}
			encodeMultipartHeader(buf, nextIndex)
			targetOffset = 10
			valueLen = freeSpace - 8
		} else {
			encodeSingleHeader(buf, uint16(remainder))
			targetOffset = 2
			valueLen = remainder
		}

		if offset == 0 {
			copy(buf[targetOffset:targetOffset+KeySuffixLen], key[2:KeyLen])
			copy(buf[targetOffset+KeySuffixLen:targetOffset+valueLen], value[offset:offset+valueLen-KeySuffixLen])
			offset += valueLen - KeySuffixLen
		} else {
			copy(buf[targetOffset:targetOffset+valueLen], value[offset:offset+valueLen])
			offset += valueLen
		}

		n := targetOffset + valueLen
		if err := w.InsertValue(t.id, index, buf[:n]); err != nil {
			return 0, nil, err
		}
		writes = append(writes, slotWrite{index: index, n: n})
		remainder -= valueLen
		index = nextIndex
		if remainder == 0 {
			if index != 0 {
				// The new value ended before the old chain did; free the
				// now-unused tail.
				tail, err := t.clearChain(index, w)
				if err != nil {
					return 0, nil, err
				}
				writes = append(writes, tail...)
			}
			break
		}
	}

	return start, writes, nil
}

// clearChain walks the chain starting at index via readNextPart, freeing
// every slot it visits, and returns the ordered list of slot writes
// staged along the way.
func (t *ValueTable) clearChain(index uint64, w Writer) ([]slotWrite, error) {
	var writes []slotWrite
	for {
		next, ok, err := t.readNextPart(index, w)
		if err != nil {
			return nil, err
		}
		if err := t.clearSlot(index, w); err != nil {
			return nil, err
		}
		writes = append(writes, slotWrite{index: index, n: 10})
		if !ok {
			return writes, nil
		}
		index = next
	}
}
