package wal

// Overlays is a read-only view across a Writer's in-progress batch and
// every batch still pending checkpoint, implementing LogOverlays::value:
// a reader consults this before falling back to the value table's file.
type Overlays struct {
	w *Writer
}

// Value looks up the most recent staged entry for (tableID, index) across
// the current batch and all pending batches, most recent first.
func (o *Overlays) Value(tableID uint16, index uint64) ([]byte, bool) {
	o.w.mu.Lock()
	defer o.w.mu.Unlock()

	key := overlayKey{TableID: tableID, Index: index}
	if v, ok := o.w.current.values[key]; ok {
		return v, true
	}
	for i := len(o.w.pending) - 1; i >= 0; i-- {
		if v, ok := o.w.pending[i].values[key]; ok {
			return v, true
		}
	}
	return nil, false
}
