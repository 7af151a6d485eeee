package segmentset

import (
	"iamnilotpal.dev/ignitecore/internal/entry"
	"iamnilotpal.dev/ignitecore/internal/iterate"
	"iamnilotpal.dev/ignitecore/internal/segment"
	"iamnilotpal.dev/ignitecore/pkg/filesys"
)

// Flush writes entries as a brand-new, freshest segment. entries must
// already be in strictly ascending, unique-key order (the shape a memtable
// snapshot naturally takes). An empty snapshot is a silent no-op.
//
// Flush serializes against Compact via the set's single flush/compact lock;
// it never blocks FindEntry or RangeScan, and it never invalidates a
// snapshot a concurrent reader has already pinned.
func (s *SegmentSet) Flush(entries []entry.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.flushCompactMu.Lock()
	defer s.flushCompactMu.Unlock()

	gen := s.generation.Load()
	current := []*refSegment{}
	if gen != nil {
		current = *gen
	}

	ordinal := int64(len(current))
	idxPath, dataPath := segmentPaths(s.dir, ordinal)
	tmpIdx, tmpData := tempSegmentPaths(s.dir, ordinal)

	// Clear out any stale temporaries left by a prior crash before writing.
	if err := filesys.DeleteFile(tmpIdx); err != nil {
		return err
	}
	if err := filesys.DeleteFile(tmpData); err != nil {
		return err
	}

	if err := segment.Save(tmpIdx, tmpData, iterate.NewSliceIterator(entries), s.opts.SyncOnWrite, s.log); err != nil {
		return err
	}

	if err := filesys.AtomicRename(tmpIdx, idxPath); err != nil {
		return err
	}
	if err := filesys.AtomicRename(tmpData, dataPath); err != nil {
		return err
	}

	seg, err := segment.Load(idxPath, dataPath, ordinal, s.log)
	if err != nil {
		return err
	}

	newGen := make([]*refSegment, 0, len(current)+1)
	newGen = append(newGen, newRefSegment(seg))
	newGen = append(newGen, current...)

	s.generation.Store(&newGen)
	s.log.Infow("flush complete", "dir", s.dir, "ordinal", ordinal, "entries", len(entries))
	return nil
}
