package valuetable

// rawEntryBytes returns the bytes describing the slot at index: the WAL
// overlay's staged bytes if lookup finds any, otherwise minLen bytes read
// positionally from the backing file. minLen must be small enough that
// every entry kind's relevant header fields fall within it.
func (t *ValueTable) rawEntryBytes(index uint64, lookup func(uint64) ([]byte, bool), minLen int) ([]byte, error) {
	if buf, ok := lookup(index); ok {
		return buf, nil
	}
	buf := make([]byte, minLen)
	if err := t.readAt(buf, int64(index)*int64(t.entrySize)); err != nil {
		return nil, err
	}
	return buf, nil
}

// nextFree is the sole allocation primitive: it returns a slot index that
// is either popped from the LIFO free-list headed by last_removed, or the
// next never-used slot past the current filled watermark. It never
// returns 0.
func (t *ValueTable) nextFree(w Writer) (uint64, error) {
	lastRemoved := t.lastRemoved.Load()
	if lastRemoved == 0 {
		filled := t.filled.Load()
		index := filled + 1
		t.filled.Store(index)
		return index, nil
	}
	next, err := t.readNextFree(lastRemoved, w)
	if err != nil {
		return 0, err
	}
	t.lastRemoved.Store(next)
	return lastRemoved, nil
}

// readNextFree reads the next_free field of the tombstone at index,
// consulting the WAL overlay first.
func (t *ValueTable) readNextFree(index uint64, w Writer) (uint64, error) {
	buf, err := t.rawEntryBytes(index, func(i uint64) ([]byte, bool) { return w.ValueOverlayAt(t.id, i) }, 10)
	if err != nil {
		return 0, err
	}
	return leUint64(buf[2:10]), nil
}

// clearSlot pushes index onto the free-list: it stages a tombstone
// pointing at the current last_removed, then makes index the new head.
func (t *ValueTable) clearSlot(index uint64, w Writer) error {
	lastRemoved := t.lastRemoved.Load()
	buf := make([]byte, 10)
	encodeTombstoneInto(buf, lastRemoved)
	if err := w.InsertValue(t.id, index, buf); err != nil {
		return err
	}
	t.lastRemoved.Store(index)
	return nil
}
