package wal

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Writer methods once the writer has been closed,
// mirroring the teacher's reuse of os.ErrClosed for the same situation.
var ErrClosed = errors.New("wal: writer closed")

type overlayKey struct {
	TableID uint16
	Index   uint64
}

// location is where a staged record's bytes ended up on disk, so a sealed
// batch can be replayed later without holding the payload in memory twice.
type location struct {
	key       overlayKey
	segmentID int
	offset    int64
}

type batch struct {
	values map[overlayKey][]byte
	order  []location
}

func newBatch() *batch {
	return &batch{values: make(map[overlayKey][]byte)}
}

// Writer stages InsertValue calls from a single committer goroutine,
// appending each as a CRC-framed Record to the active segment. Seal closes
// off the current batch so it can be replayed by a Reader while still
// remaining visible to Overlays; Checkpoint retires batches once their
// plans have been fully enacted.
type Writer struct {
	mu      sync.Mutex
	segs    *segmentManager
	current *batch
	pending []*batch
	closed  atomic.Bool
}

// NewWriter opens (or creates) a WAL rooted at dir.
func NewWriter(dir string, opts ...Option) (*Writer, error) {
	segs, err := newSegmentManager(dir, opts...)
	if err != nil {
		return nil, err
	}
	return &Writer{segs: segs, current: newBatch()}, nil
}

// InsertValue stages a mutation: it is immediately appended to the active
// segment file (not fsynced until Seal or Checkpoint) and visible to
// ValueOverlayAt/Overlays.Value, but not yet replayed into the value
// table's backing file.
func (w *Writer) InsertValue(tableID uint16, index uint64, data []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}
	payload := append([]byte(nil), data...)
	rec := &Record{TableID: tableID, Index: index, Payload: payload}

	w.mu.Lock()
	defer w.mu.Unlock()

	segID, offset, err := w.segs.appendRecord(rec)
	if err != nil {
		return err
	}
	key := overlayKey{TableID: tableID, Index: index}
	w.current.values[key] = payload
	w.current.order = append(w.current.order, location{key: key, segmentID: segID, offset: offset})
	return nil
}

// ValueOverlayAt looks up the most recent staged value for (tableID,
// index) within the in-progress batch only, matching
// LogWriter::value_overlay_at.
func (w *Writer) ValueOverlayAt(tableID uint16, index uint64) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.current.values[overlayKey{TableID: tableID, Index: index}]
	return v, ok
}

// Seal fsyncs the active segment, closes off the current batch, and
// returns a Reader over it for EnactPlan to replay in commit order. The
// sealed batch moves to pending, where it remains visible through
// Overlays until Checkpoint retires it.
func (w *Writer) Seal() (*Reader, error) {
	if w.closed.Load() {
		return nil, ErrClosed
	}
	if err := w.segs.sync(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	sealed := w.current
	w.current = newBatch()
	w.pending = append(w.pending, sealed)
	w.mu.Unlock()

	return newReader(w.segs, sealed), nil
}

// Checkpoint retires the n oldest pending batches (the caller's
// responsibility to have fully enacted and completed-plan'd them first)
// and rotates the WAL to a fresh segment, deleting prior segment files.
func (w *Writer) Checkpoint(n int) error {
	w.mu.Lock()
	if n > len(w.pending) {
		n = len(w.pending)
	}
	w.pending = w.pending[n:]
	w.mu.Unlock()
	return w.segs.checkpoint()
}

// Overlays returns a read-only view across the current batch and all
// still-pending sealed batches, for valuetable.Get to consult. The view is
// live: later InsertValue, Seal and Checkpoint calls show through it.
func (w *Writer) Overlays() *Overlays {
	return &Overlays{w: w}
}

// Close closes the active segment file without an fsync of its own. It is
// idempotent.
func (w *Writer) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	return w.segs.close()
}
