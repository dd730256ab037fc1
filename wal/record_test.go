package wal

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func withTempFile(t *testing.T, fn func(f *os.File)) {
	t.Helper()
	f, err := os.CreateTemp("", "wal-record-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	defer f.Close()
	fn(f)
}

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
	}{
		{"small", &Record{TableID: 1, Index: 2, Payload: []byte("abc")}},
		{"empty payload", &Record{TableID: 0, Index: 0, Payload: []byte{}}},
		{"binary", &Record{TableID: 7, Index: 999, Payload: []byte{0, 1, 2, 0xff, 0xfe}}},
		{"large", &Record{TableID: 3, Index: 1 << 40, Payload: bytes.Repeat([]byte{0xaa}, 4096)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTempFile(t, func(f *os.File) {
				if err := tt.rec.Encode(f); err != nil {
					t.Fatal(err)
				}
				if _, err := f.Seek(0, 0); err != nil {
					t.Fatal(err)
				}
				got, err := Decode(f)
				if err != nil {
					t.Fatalf("decode error: %v", err)
				}
				if got.TableID != tt.rec.TableID || got.Index != tt.rec.Index || !bytes.Equal(got.Payload, tt.rec.Payload) {
					t.Fatalf("mismatch: got %+v, want %+v", got, tt.rec)
				}
			})
		})
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	withTempFile(t, func(f *os.File) {
		rec := &Record{TableID: 1, Index: 1, Payload: []byte("hello")}
		if err := rec.Encode(f); err != nil {
			t.Fatal(err)
		}

		// Flip a payload byte without touching the CRC.
		// Frame layout: CRC(4) TotalLen(4) TableID(2) Index(8) PayloadLen(4) Payload...
		if _, err := f.WriteAt([]byte{'H'}, 22); err != nil {
			t.Fatal(err)
		}
		if _, err := f.Seek(0, 0); err != nil {
			t.Fatal(err)
		}

		if _, err := Decode(f); err != ErrCorruptRecord {
			t.Fatalf("expected ErrCorruptRecord, got %v", err)
		}
	})
}

func TestDecodeEmptyStreamIsEOF(t *testing.T) {
	withTempFile(t, func(f *os.File) {
		if _, err := Decode(f); err != io.EOF {
			t.Fatalf("expected io.EOF on empty stream, got %v", err)
		}
	})
}
