package segmentset

import (
	"path/filepath"

	"iamnilotpal.dev/ignitecore/internal/iterate"
	"iamnilotpal.dev/ignitecore/internal/segment"
	"iamnilotpal.dev/ignitecore/pkg/errors"
	"iamnilotpal.dev/ignitecore/pkg/filesys"
)

// Compact rewrites every on-disk segment into a single, tombstone-free
// segment at ordinal 0, replacing the current list. It runs even when the
// set already holds a single segment, since that segment may still carry
// tombstones that a prior compaction pass hasn't had a chance to drop.
//
// Compact serializes against Flush via the set's single lock. The rewrite
// is crash-safe: it writes its output to the compacted_.idx/compacted_.dat
// sentinel files first, and only then swaps them into place as 0.idx/0.dat,
// so a crash at any point leaves finishCompact able to pick up cleanly on
// the next Load.
func (s *SegmentSet) Compact() error {
	s.flushCompactMu.Lock()
	defer s.flushCompactMu.Unlock()

	gen := s.generation.Load()
	current := []*refSegment{}
	if gen != nil {
		current = *gen
	}

	sources := make([]*iterate.PeekingIterator, 0, len(current))
	for _, rs := range current {
		it, err := rs.seg.RangeIter(nil, nil)
		if err != nil {
			return err
		}
		p, err := iterate.NewPeekingIterator(it, rs.seg.Ordinal())
		if err != nil {
			return err
		}
		sources = append(sources, p)
	}
	merged := iterate.NewMergingIterator(sources)

	compIdx := filepath.Join(s.dir, compactedIndexName)
	compData := filepath.Join(s.dir, compactedDataName)
	tmpCompIdx := filepath.Join(s.dir, "tmp_"+compactedIndexName)
	tmpCompData := filepath.Join(s.dir, "tmp_"+compactedDataName)

	if err := filesys.DeleteFile(tmpCompIdx); err != nil {
		return err
	}
	if err := filesys.DeleteFile(tmpCompData); err != nil {
		return err
	}

	if err := segment.Save(tmpCompIdx, tmpCompData, merged, s.opts.SyncOnWrite, s.log); err != nil {
		return err
	}

	if err := filesys.AtomicRename(tmpCompIdx, compIdx); err != nil {
		return err
	}
	if err := filesys.AtomicRename(tmpCompData, compData); err != nil {
		return err
	}

	if err := finishCompact(s.dir, compIdx, compData, s.log); err != nil {
		return err
	}

	idxPath, dataPath := segmentPaths(s.dir, 0)
	seg, err := segment.Load(idxPath, dataPath, 0, s.log)
	if err != nil {
		return errors.NewSegmentSetError(err, errors.ErrorCodeCompactionIncomplete, "failed to load post-compaction segment").WithDir(s.dir).WithPhase("compact")
	}

	newGen := []*refSegment{newRefSegment(seg)}
	s.generation.Store(&newGen)

	for _, rs := range current {
		rs.release(s.log)
	}

	s.log.Infow("compaction complete", "dir", s.dir, "inputSegments", len(current))
	return nil
}
