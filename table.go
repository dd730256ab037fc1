package valuetable

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// ValueTable is one fixed-entry-size backing file and the counters needed
// to allocate and chain slots within it. The zero value is not usable;
// construct one with Open.
type ValueTable struct {
	id        TableId
	entrySize uint16
	multipart bool

	mu       sync.Mutex
	file     *os.File
	capacity uint64 // file size in bytes; always a whole number of entries, guarded by mu

	filled      atomic.Uint64
	lastRemoved atomic.Uint64

	logger *log.Logger
}

// growIncrementBytes is the fixed-size chunk grow extends the backing
// file by, rounded up to a whole number of entries: ⌈256KiB/entry_size⌉
// entries, matching spec.md's "File growth" step and Invariant 7.
const growIncrementBytes = 256 * 1024

// Option configures a ValueTable at Open time, in the teacher's
// functional-options style (see Option in package wal).
type Option func(*ValueTable)

// WithLogger overrides the default logger (log.Default()) used for
// non-fatal anomalies such as key mismatches on Get.
func WithLogger(l *log.Logger) Option {
	return func(t *ValueTable) { t.logger = l }
}

// Open opens or creates the backing file for id at path, sized for
// entrySize-byte entries. Non-multipart tables reject values longer than
// entrySize-KeySuffixLen-2 at WriteInsertPlan/WriteReplacePlan time;
// multipart tables chain as many entries as needed instead. The column
// configuration layer conventionally sizes its multipart table at
// DefaultMultipartEntrySize, but this package does not enforce that.
func Open(path string, id TableId, entrySize uint16, multipart bool, opts ...Option) (*ValueTable, error) {
	if entrySize < MinEntrySize || entrySize > MaxEntrySize {
		panic(fmt.Sprintf("valuetable: entry_size %d out of range [%d, %d]", entrySize, MinEntrySize, MaxEntrySize))
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("valuetable: open %s: %w", path, err)
	}

	t := &ValueTable{
		id:        id,
		entrySize: entrySize,
		multipart: multipart,
		file:      f,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := t.loadHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// header occupies slot 0: last_removed (8 bytes) then filled (8 bytes),
// matching spec.md's header layout. filled is floored at 1 (slot 0 itself
// counts as filled, matching table.rs's open: "if filled == 0 { filled =
// 1 }") so Invariant 1 ("filled >= 1 at all times") holds from the very
// first Open of a brand-new table, before any insert has happened.
func (t *ValueTable) loadHeader() error {
	info, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("valuetable: stat: %w", err)
	}
	if info.Size() < int64(t.entrySize) {
		if err := t.file.Truncate(int64(t.entrySize)); err != nil {
			return fmt.Errorf("valuetable: truncate: %w", err)
		}
		t.capacity = uint64(t.entrySize)
		t.filled.Store(1)
		return nil
	}
	buf := make([]byte, 16)
	if _, err := t.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("valuetable: read header: %w", err)
	}
	t.lastRemoved.Store(leUint64(buf[0:8]))
	filled := leUint64(buf[8:16])
	if filled == 0 {
		filled = 1
	}
	t.filled.Store(filled)
	t.capacity = uint64(info.Size())
	return nil
}

// saveHeader persists the counters into slot 0. It is called by
// CompletePlan after enactment so the header reflects only durable state.
func (t *ValueTable) saveHeader() error {
	buf := make([]byte, 16)
	putLEUint64(buf[0:8], t.lastRemoved.Load())
	putLEUint64(buf[8:16], t.filled.Load())
	if _, err := t.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("valuetable: write header: %w", err)
	}
	return nil
}

// valueSize is the maximum payload a single (non-chained) entry can hold:
// entrySize minus the 2-byte size tag and the 30-byte key suffix.
func (t *ValueTable) valueSize() uint16 {
	return t.entrySize - 2 - KeySuffixLen
}

// readAt reads len(buf) bytes at the given file offset. A read past the
// current capacity is indistinguishable from a freshly grown,
// never-written slot, so it returns zeros rather than growing the file.
func (t *ValueTable) readAt(buf []byte, offset int64) error {
	t.mu.Lock()
	capacity := int64(t.capacity)
	t.mu.Unlock()
	if offset+int64(len(buf)) > capacity {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	if _, err := t.file.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("valuetable: read at %d: %w", offset, err)
	}
	return nil
}

// writeAt writes buf at the given file offset, first growing the file
// (see grow) if the write would extend past the current capacity.
func (t *ValueTable) writeAt(buf []byte, offset int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	needed := offset + int64(len(buf))
	if needed > int64(t.capacity) {
		if err := t.grow(needed); err != nil {
			return err
		}
	}
	if _, err := t.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("valuetable: write at %d: %w", offset, err)
	}
	return nil
}

// grow extends the backing file in fixed-size increments of
// growIncrementBytes (rounded up to a whole number of entries), looping
// until capacity covers needed, then truncating once to the result (a
// sparse extension on every filesystem this module targets — see
// SPEC_FULL.md §9 on zeroing). Must be called with mu held.
func (t *ValueTable) grow(needed int64) error {
	entriesPerIncrement := (int64(growIncrementBytes) + int64(t.entrySize) - 1) / int64(t.entrySize)
	incrementSize := entriesPerIncrement * int64(t.entrySize)

	capacity := int64(t.capacity)
	for capacity < needed {
		capacity += incrementSize
	}

	if err := t.file.Truncate(capacity); err != nil {
		return fmt.Errorf("valuetable: grow: %w", err)
	}
	t.capacity = uint64(capacity)
	return nil
}

// Close flushes the header and closes the backing file.
func (t *ValueTable) Close() error {
	if err := t.saveHeader(); err != nil {
		return err
	}
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("valuetable: close: %w", err)
	}
	return nil
}

func (t *ValueTable) logf(format string, args ...any) {
	t.logger.Printf(format, args...)
}
