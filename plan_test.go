package valuetable

import (
	"bytes"
	"io"
	"testing"
)

// fakeReader streams a fixed byte slice, mimicking wal.Reader's contract:
// io.EOF only once every byte has been consumed.
type fakeReader struct {
	buf []byte
}

func (r *fakeReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func TestWriteInsertPlanThenEnactPersistsToFile(t *testing.T) {
	table := openTestTable(t)
	w := newFakeWriter()
	key := keyFor(1)
	value := []byte("enacted value")

	plan, err := table.WriteInsertPlan(key, value, w)
	if err != nil {
		t.Fatalf("WriteInsertPlan: %v", err)
	}

	var staged []byte
	for _, sw := range plan.writes {
		staged = append(staged, w.staged[sw.index]...)
	}

	if err := table.EnactPlan(plan, &fakeReader{buf: staged}); err != nil {
		t.Fatalf("EnactPlan: %v", err)
	}
	if err := table.CompletePlan(plan); err != nil {
		t.Fatalf("CompletePlan: %v", err)
	}

	// Now that the table's file has the bytes, Get must find them without
	// any overlay at all (an Overlays that never has anything staged).
	got, ok, err := table.Get(key, plan.Index(), fakeOverlays{newFakeWriter()})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || !bytes.Equal(got, value) {
		t.Fatalf("Get = %q, %v; want %q, true", got, ok, value)
	}
}

func TestWriteRemovePlanIndexIsRemovedHead(t *testing.T) {
	table := openTestTable(t)
	w := newFakeWriter()
	key := keyFor(2)

	insertPlan, err := table.WriteInsertPlan(key, []byte("x"), w)
	if err != nil {
		t.Fatalf("WriteInsertPlan: %v", err)
	}

	removePlan, err := table.WriteRemovePlan(insertPlan.Index(), w)
	if err != nil {
		t.Fatalf("WriteRemovePlan: %v", err)
	}
	if removePlan.Index() != insertPlan.Index() {
		t.Fatalf("Plan.Index() = %d, want %d", removePlan.Index(), insertPlan.Index())
	}
}
