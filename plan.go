package valuetable

import (
	"fmt"
	"io"
)

// Plan describes a staged mutation against one table: its head slot and
// the ordered list of slot writes it produced (already staged into the
// WAL's current batch by the time WriteInsertPlan/WriteReplacePlan/
// WriteRemovePlan return). It carries no allocator counters of its own;
// those live in the ValueTable and CompletePlan persists them.
//
// The split mirrors spec.md §4.4's plan/enact pipeline: staging a Plan
// never touches the table's own file; EnactPlan later replays the same
// bytes from the sealed WAL reader onto disk, and CompletePlan persists
// the in-memory allocator counters only after that replay succeeds.
type Plan struct {
	head   uint64
	writes []slotWrite
}

// WriteInsertPlan stages a brand-new chain for key/value and returns a
// Plan identifying the slot the chain now starts at (Plan.Index()).
func (t *ValueTable) WriteInsertPlan(key Key, value []byte, w Writer) (*Plan, error) {
	head, writes, err := t.overwriteChain(key, value, w, nil)
	if err != nil {
		return nil, err
	}
	return &Plan{head: head, writes: writes}, nil
}

// WriteReplacePlan stages value over the chain currently starting at
// index, reusing as many of its existing slots as fit and freeing any
// excess tail. The head slot index never changes.
func (t *ValueTable) WriteReplacePlan(key Key, value []byte, index uint64, w Writer) (*Plan, error) {
	at := index
	head, writes, err := t.overwriteChain(key, value, w, &at)
	if err != nil {
		return nil, err
	}
	return &Plan{head: head, writes: writes}, nil
}

// WriteRemovePlan stages the removal of the chain starting at index,
// pushing every slot it visits onto the free-list.
func (t *ValueTable) WriteRemovePlan(index uint64, w Writer) (*Plan, error) {
	writes, err := t.clearChain(index, w)
	if err != nil {
		return nil, err
	}
	return &Plan{head: index, writes: writes}, nil
}

// Index is the slot index the caller's external index entry should now
// point at: the (possibly new) chain head for an insert or replace, or
// the removed chain's former head for a remove (callers drop their index
// entry in that case; there is nothing left to point at).
func (p *Plan) Index() uint64 {
	return p.head
}

// EnactPlan copies the bytes a Plan staged from a sealed WAL reader onto
// the table's own backing file, slot by slot, in the exact order they
// were staged. It is safe to call once per Plan, after the WAL segment
// backing it has been made durable (fsynced) by the writer.
func (t *ValueTable) EnactPlan(p *Plan, r Reader) error {
	for _, sw := range p.writes {
		buf := make([]byte, sw.n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("valuetable: enact slot %d: %w", sw.index, err)
		}
		if err := t.writeAt(buf, int64(sw.index)*int64(t.entrySize)); err != nil {
			return err
		}
	}
	return nil
}

// CompletePlan writes the table's current in-memory allocator counters
// (last_removed, filled) into the header. p itself is not consulted: the
// counters already reflect every plan staged so far, including any staged
// after p. It must run with the same external serialization EnactPlan
// requires (a single committer, per SPEC_FULL.md §5).
func (t *ValueTable) CompletePlan(p *Plan) error {
	return t.saveHeader()
}
