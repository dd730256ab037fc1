package valuetable

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// AllocStats summarizes one Verify pass over a table's allocator state.
type AllocStats struct {
	FilledWatermark uint64
	TotalSlots      uint64
	LiveSlots       uint64
	FreeSlots       uint64
}

// Verify walks every slot in [1, filled] plus the free-list rooted at
// last_removed and checks the two invariants the allocator depends on but
// cannot check cheaply on its own: that the free-list visits no slot
// twice, and that it never points outside [1, filled]. It reports
// whichever it finds first as an error; AllocStats is still populated up
// to the point of failure.
func (t *ValueTable) Verify(ov Overlays) (AllocStats, error) {
	filled := t.filled.Load()
	stats := AllocStats{FilledWatermark: filled, TotalSlots: filled}

	free := bitset.New(uint(filled) + 1)
	lastRemoved := t.lastRemoved.Load()
	for index := lastRemoved; index != 0; {
		if index > filled {
			return stats, fmt.Errorf("valuetable: %s: free-list entry %d exceeds filled watermark %d", t.id, index, filled)
		}
		if free.Test(uint(index)) {
			return stats, fmt.Errorf("valuetable: %s: free-list cycle at slot %d", t.id, index)
		}
		free.Set(uint(index))
		stats.FreeSlots++

		buf, err := t.rawEntryBytes(index, func(i uint64) ([]byte, bool) { return ov.Value(t.id, i) }, 10)
		if err != nil {
			return stats, err
		}
		if !isTombstoneTag(buf) {
			return stats, fmt.Errorf("valuetable: %s: free-list entry %d is not a tombstone", t.id, index)
		}
		index = leUint64(buf[2:10])
	}

	for index := uint64(1); index <= filled; index++ {
		if !free.Test(uint(index)) {
			stats.LiveSlots++
		}
	}
	return stats, nil
}
