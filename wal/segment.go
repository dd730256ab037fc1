package wal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
)

const (
	defaultMaxSegmentSize = 16 * 1024 * 1024
	segmentFileExt        = ".wal"
)

var segmentFileNamePattern = regexp.MustCompile(`^segment-(\d+)\.wal$`)

type segmentEntry struct {
	id   int
	name string
}

type segmentEntries []segmentEntry

func (a segmentEntries) Len() int           { return len(a) }
func (a segmentEntries) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a segmentEntries) Less(i, j int) bool { return a[i].id < a[j].id }

// segmentManager owns the rotating on-disk segment files that back the
// WAL. A segment only ever grows until Rotate is called; Checkpoint
// removes segments older than the one currently being written to.
type segmentManager struct {
	mu             sync.Mutex
	active         *os.File
	activeID       int
	activeSize     int64
	dir            string
	maxSegmentSize int64
}

// Option configures a segmentManager at construction time.
type Option func(*segmentManager)

// WithMaxSegmentSize overrides the default 16MiB segment rotation
// threshold.
func WithMaxSegmentSize(n int64) Option {
	return func(sm *segmentManager) { sm.maxSegmentSize = n }
}

func isDirectoryValid(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("wal: path exists but is not a directory: %s", path)
	}
	return err
}

func newSegmentManager(dir string, opts ...Option) (*segmentManager, error) {
	sm := &segmentManager{
		dir:            dir,
		maxSegmentSize: defaultMaxSegmentSize,
	}
	for _, opt := range opts {
		opt(sm)
	}

	if err := isDirectoryValid(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
			return sm, sm.rotate()
		}
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var found segmentEntries
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if filepath.Ext(entry.Name()) != segmentFileExt {
			continue
		}
		matches := segmentFileNamePattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}
		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		found = append(found, segmentEntry{id: id, name: entry.Name()})
	}

	if len(found) == 0 {
		return sm, sm.rotate()
	}

	sort.Sort(found)
	sm.activeID = found[len(found)-1].id
	f, err := os.OpenFile(sm.pathFor(sm.activeID), os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: failed to open active segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	sm.active = f
	sm.activeSize = info.Size()
	return sm, nil
}

func (sm *segmentManager) pathFor(id int) string {
	return filepath.Join(sm.dir, fmt.Sprintf("segment-%04d%s", id, segmentFileExt))
}

func (sm *segmentManager) rotate() error {
	if sm.active != nil {
		if err := sm.active.Close(); err != nil {
			return err
		}
	}
	sm.activeID++
	f, err := os.Create(sm.pathFor(sm.activeID))
	if err != nil {
		return err
	}
	sm.active = f
	sm.activeSize = 0
	return nil
}

// appendRecord encodes rec to the active segment, rotating to a fresh
// segment first if the estimated frame size would exceed maxSegmentSize.
// It returns the active segment's id and the byte offset the record was
// written at, so a reader can later be positioned to replay it.
func (sm *segmentManager) appendRecord(rec *Record) (segmentID int, offset int64, err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	frameSize := int64(4 + 4 + 2 + 8 + 4 + len(rec.Payload))
	if sm.activeSize > 0 && sm.activeSize+frameSize > sm.maxSegmentSize {
		if err := sm.rotate(); err != nil {
			return 0, 0, err
		}
	}

	offset = sm.activeSize
	if err := rec.Encode(sm.active); err != nil {
		return 0, 0, err
	}
	sm.activeSize += frameSize
	return sm.activeID, offset, nil
}

func (sm *segmentManager) openReaderAt(segmentID int, offset int64) (io.ReadCloser, error) {
	f, err := os.Open(sm.pathFor(segmentID))
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (sm *segmentManager) sync() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.active.Sync()
}

// checkpoint fsyncs the active segment and rotates to a fresh one,
// removing every prior segment file. This is the WAL's only truncation
// boundary; sync (called by Writer.Seal) also fsyncs the active segment.
func (sm *segmentManager) checkpoint() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := sm.active.Sync(); err != nil {
		return err
	}
	staleID := sm.activeID
	if err := sm.rotate(); err != nil {
		return err
	}
	for id := 1; id <= staleID; id++ {
		_ = os.Remove(sm.pathFor(id))
	}
	return nil
}

func (sm *segmentManager) close() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.active.Close()
}
