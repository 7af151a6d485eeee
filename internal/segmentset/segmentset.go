// Package segmentset manages the ordered collection of on-disk segments
// that back a single key range: loading them at startup (including the
// crash-recovery protocol for an interrupted compaction), serving point
// lookups and range scans against a consistent snapshot, and running the
// flush and compact operations that create and retire segments.
//
// Exactly one mutex serializes flush and compact against each other; point
// lookups and range scans never take it, and run concurrently with each
// other and with at most one in-flight writer. Readers pin an immutable
// snapshot of the segment list for the duration of their call so that a
// concurrent compaction can never invalidate a view they are still using.
package segmentset

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"iamnilotpal.dev/ignitecore/internal/entry"
	"iamnilotpal.dev/ignitecore/internal/iterate"
	"iamnilotpal.dev/ignitecore/internal/segment"
	"iamnilotpal.dev/ignitecore/pkg/errors"
	"iamnilotpal.dev/ignitecore/pkg/filesys"
	"iamnilotpal.dev/ignitecore/pkg/options"
)

const (
	compactedIndexName = "compacted_.idx"
	compactedDataName  = "compacted_.dat"
)

// Memtable is the external, in-memory collaborator a range scan merges
// against: an ordered, deduplicated snapshot of currently buffered writes.
// It is consumed through an Iterator the same way an on-disk segment is.
type Memtable interface {
	// Iterator returns the memtable's entries in strictly ascending,
	// unique-key order.
	Iterator() iterate.Iterator
}

// refSegment pairs a loaded segment with a reference count: the SegmentSet
// itself holds one reference for as long as the segment is part of the
// current list, and every in-flight reader that pinned a snapshot holds an
// additional one. The backing mmap is only unmapped once every holder has
// released its reference, so a concurrent compaction can safely drop the
// set's own reference without yanking an mmap out from under a reader.
type refSegment struct {
	seg  *segment.Segment
	refs int32
}

func newRefSegment(seg *segment.Segment) *refSegment {
	return &refSegment{seg: seg, refs: 1}
}

// acquire tries to add a reference, failing if the count has already
// reached zero (meaning the set has released its own reference and the
// segment is being or has been closed). A plain AddInt32 would instead
// resurrect a dead refcount and hand the caller a segment whose mmap may
// already be unmapped, racing a concurrent release to zero; the CAS loop
// below refuses to do that.
func (r *refSegment) acquire() bool {
	for {
		old := atomic.LoadInt32(&r.refs)
		if old <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&r.refs, old, old+1) {
			return true
		}
	}
}

func (r *refSegment) release(log *zap.SugaredLogger) {
	if atomic.AddInt32(&r.refs, -1) == 0 {
		if err := r.seg.Close(); err != nil {
			log.Warnw("failed to close unreferenced segment", "ordinal", r.seg.Ordinal(), "error", err)
		}
	}
}

// SegmentSet manages the on-disk segments for a single store directory.
type SegmentSet struct {
	dir  string
	opts options.Options
	log  *zap.SugaredLogger

	flushCompactMu sync.Mutex

	// generation holds the current, freshest-first []*refSegment list. It is
	// swapped atomically by Flush and Compact; readers load it once per call
	// to pin a consistent view.
	generation atomic.Pointer[[]*refSegment]

	closed atomic.Bool
}

// Config holds the parameters needed to load or create a SegmentSet.
type Config struct {
	Dir     string
	Options options.Options
	Logger  *zap.SugaredLogger
}

// Load opens the SegmentSet rooted at cfg.Dir, running the crash-recovery
// protocol first if a prior compaction was interrupted after writing its
// sentinel files but before the final rename.
func Load(cfg Config) (*SegmentSet, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	if err := filesys.CreateDir(cfg.Dir, 0755, true); err != nil {
		return nil, errors.NewSegmentSetError(err, errors.ErrorCodeIO, "failed to create segment set directory").
			WithDir(cfg.Dir).WithPhase("load")
	}

	compIdx := filepath.Join(cfg.Dir, compactedIndexName)
	compData := filepath.Join(cfg.Dir, compactedDataName)

	idxExists, err := filesys.Exists(compIdx)
	if err != nil {
		return nil, errors.NewSegmentSetError(err, errors.ErrorCodeIO, "failed to stat compaction sentinel").WithDir(cfg.Dir).WithPhase("load")
	}
	dataExists, err := filesys.Exists(compData)
	if err != nil {
		return nil, errors.NewSegmentSetError(err, errors.ErrorCodeIO, "failed to stat compaction sentinel").WithDir(cfg.Dir).WithPhase("load")
	}

	if idxExists || dataExists {
		log.Infow("found compaction sentinel on load, resuming crash recovery", "dir", cfg.Dir)
		if err := finishCompact(cfg.Dir, compIdx, compData, log); err != nil {
			return nil, err
		}
	}

	files, err := filesys.ListOrdinalFiles(cfg.Dir)
	if err != nil {
		return nil, errors.NewSegmentSetError(err, errors.ErrorCodeIO, "failed to list segment files").WithDir(cfg.Dir).WithPhase("load")
	}

	segments := make([]*refSegment, 0, len(files))
	for i, f := range files {
		if f.Ordinal != int64(i) {
			return nil, errors.NewSegmentSetError(nil, errors.ErrorCodeSegmentCorrupted, "segment ordinals are not contiguous from zero").
				WithDir(cfg.Dir).WithPhase("load").WithSegmentCount(len(files))
		}

		seg, err := segment.Load(f.IndexPath, f.DataPath, f.Ordinal, log)
		if err != nil {
			return nil, err
		}
		segments = append(segments, newRefSegment(seg))
	}

	// Reverse so index 0 is the freshest (highest ordinal) segment.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	set := &SegmentSet{dir: cfg.Dir, opts: cfg.Options, log: log}
	set.generation.Store(&segments)

	log.Infow("segment set loaded", "dir", cfg.Dir, "segments", len(segments))
	return set, nil
}

// pin loads the current generation and acquires a reference on every
// segment in it, returning a snapshot that is safe to read from even if a
// concurrent Flush or Compact swaps the live generation out from under it.
//
// Loading the generation pointer and acquiring each of its segments are two
// separate steps, so a Compact can run entirely in between: it stores the
// new generation and releases the set's own reference on every segment in
// the old one, which can drop a segment's refcount to zero and close it
// before this call reaches it. acquire reports that race instead of
// resurrecting a dead refcount, and pin responds by releasing whatever it
// had already acquired and retrying against whatever generation is current
// now — which, since the writer stores the new generation before releasing
// the old one, is the generation that made the old segment go away.
func (s *SegmentSet) pin() []*refSegment {
	for {
		gen := s.generation.Load()
		if gen == nil {
			return nil
		}
		snapshot := append([]*refSegment(nil), (*gen)...)

		acquired := make([]*refSegment, 0, len(snapshot))
		raced := false
		for _, rs := range snapshot {
			if !rs.acquire() {
				raced = true
				break
			}
			acquired = append(acquired, rs)
		}
		if !raced {
			return snapshot
		}

		for _, rs := range acquired {
			rs.release(s.log)
		}
	}
}

func (s *SegmentSet) unpin(snapshot []*refSegment) {
	for _, rs := range snapshot {
		rs.release(s.log)
	}
}

// FindEntry scans segments freshest-first and returns the first entry
// matching key, whether a tombstone or a present value. Callers interpret
// tombstones; the returned bool is false only when no segment holds key at
// all.
func (s *SegmentSet) FindEntry(key []byte) (entry.Entry, bool, error) {
	if s.closed.Load() {
		return entry.Entry{}, false, errors.NewSegmentSetError(nil, errors.ErrorCodeSetClosed, "segment set is closed").WithDir(s.dir)
	}

	snapshot := s.pin()
	defer s.unpin(snapshot)

	for _, rs := range snapshot {
		e, ok, err := rs.seg.Get(key)
		if err != nil {
			return entry.Entry{}, false, err
		}
		if ok {
			return e, true, nil
		}
	}
	return entry.Entry{}, false, nil
}

// IsCompacted reports whether the set currently holds at most one segment.
func (s *SegmentSet) IsCompacted() bool {
	gen := s.generation.Load()
	return gen == nil || len(*gen) <= 1
}

// Close releases every segment currently held by the set. It is an error to
// use the set afterward.
func (s *SegmentSet) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	gen := s.generation.Load()
	if gen == nil {
		return nil
	}

	var firstErr error
	for _, rs := range *gen {
		rs.release(s.log)
	}
	empty := []*refSegment{}
	s.generation.Store(&empty)
	return firstErr
}

func segmentPaths(dir string, ordinal int64) (idxPath, dataPath string) {
	return filepath.Join(dir, fmt.Sprintf("%d.idx", ordinal)), filepath.Join(dir, fmt.Sprintf("%d.dat", ordinal))
}

func tempSegmentPaths(dir string, ordinal int64) (idxPath, dataPath string) {
	return filepath.Join(dir, fmt.Sprintf("tmp_%d.idx", ordinal)), filepath.Join(dir, fmt.Sprintf("tmp_%d.dat", ordinal))
}
