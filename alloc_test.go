package valuetable

import (
	"path/filepath"
	"testing"
)

func openTestTable(t *testing.T) *ValueTable {
	t.Helper()
	dir := t.TempDir()
	id := NewTableId(1, 0)
	table, err := Open(filepath.Join(dir, id.FileName()), id, 64, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { table.Close() })
	return table
}

// fakeWriter is a minimal in-memory Writer for unit-testing alloc.go in
// isolation from the wal package.
type fakeWriter struct {
	staged map[uint64][]byte
}

func newFakeWriter() *fakeWriter { return &fakeWriter{staged: make(map[uint64][]byte)} }

func (w *fakeWriter) ValueOverlayAt(id TableId, index uint64) ([]byte, bool) {
	v, ok := w.staged[index]
	return v, ok
}

func (w *fakeWriter) InsertValue(id TableId, index uint64, data []byte) error {
	w.staged[index] = append([]byte(nil), data...)
	return nil
}

func TestNextFreeAdvancesWatermarkWhenFreeListEmpty(t *testing.T) {
	table := openTestTable(t)
	w := newFakeWriter()

	first, err := table.nextFree(w)
	if err != nil {
		t.Fatalf("nextFree: %v", err)
	}
	second, err := table.nextFree(w)
	if err != nil {
		t.Fatalf("nextFree: %v", err)
	}
	// Slot 0 is the header and counts as filled from Open, so the first
	// allocated data slot is 2, not 1.
	if first != 2 || second != 3 {
		t.Fatalf("got %d, %d; want 2, 3", first, second)
	}
}

func TestClearSlotThenNextFreeReusesLIFO(t *testing.T) {
	table := openTestTable(t)
	w := newFakeWriter()

	a, _ := table.nextFree(w)
	b, _ := table.nextFree(w)

	if err := table.clearSlot(a, w); err != nil {
		t.Fatalf("clearSlot: %v", err)
	}
	if err := table.clearSlot(b, w); err != nil {
		t.Fatalf("clearSlot: %v", err)
	}

	// LIFO: b was freed last, so it comes back first.
	first, err := table.nextFree(w)
	if err != nil {
		t.Fatalf("nextFree: %v", err)
	}
	if first != b {
		t.Fatalf("nextFree = %d, want %d (LIFO order)", first, b)
	}

	second, err := table.nextFree(w)
	if err != nil {
		t.Fatalf("nextFree: %v", err)
	}
	if second != a {
		t.Fatalf("nextFree = %d, want %d", second, a)
	}
}
