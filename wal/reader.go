package wal

import "io"

// Reader replays a sealed batch's records in the order they were staged,
// streaming each record's raw payload bytes for EnactPlan to consume.
type Reader struct {
	segs      *segmentManager
	locations []location
	pos       int
	remaining []byte
}

func newReader(segs *segmentManager, b *batch) *Reader {
	return &Reader{segs: segs, locations: b.order}
}

// Read fills buf with the next bytes of the replay stream, advancing
// across record boundaries transparently. It returns io.EOF only once all
// staged records have been fully consumed.
func (r *Reader) Read(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		if len(r.remaining) == 0 {
			if r.pos >= len(r.locations) {
				if total > 0 {
					return total, nil
				}
				return 0, io.EOF
			}
			loc := r.locations[r.pos]
			r.pos++

			f, err := r.segs.openReaderAt(loc.segmentID, loc.offset)
			if err != nil {
				return total, err
			}
			rec, err := Decode(f)
			f.Close()
			if err != nil {
				return total, err
			}
			r.remaining = rec.Payload
		}
		n := copy(buf[total:], r.remaining)
		r.remaining = r.remaining[n:]
		total += n
	}
	return total, nil
}
