package valuetable

import "github.com/flashvt/valuetable/wal"

// WALWriter adapts a *wal.Writer, whose methods are typed over the raw
// uint16 table identifiers the wal package knows about, to this package's
// Writer interface, which is typed over TableId. wal deliberately has no
// dependency on this package (it is a standalone, reusable WAL), so the
// conversion lives here instead.
type WALWriter struct {
	W *wal.Writer
}

func (a WALWriter) ValueOverlayAt(id TableId, index uint64) ([]byte, bool) {
	return a.W.ValueOverlayAt(id.Uint16(), index)
}

func (a WALWriter) InsertValue(id TableId, index uint64, data []byte) error {
	return a.W.InsertValue(id.Uint16(), index, data)
}

// WALOverlays adapts a *wal.Overlays the same way WALWriter adapts a
// *wal.Writer.
type WALOverlays struct {
	O *wal.Overlays
}

func (a WALOverlays) Value(id TableId, index uint64) ([]byte, bool) {
	return a.O.Value(id.Uint16(), index)
}
