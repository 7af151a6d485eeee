package segmentset

import (
	"go.uber.org/zap"

	"iamnilotpal.dev/ignitecore/pkg/errors"
	"iamnilotpal.dev/ignitecore/pkg/filesys"
)

// finishCompact completes (or re-completes) the compaction sentinel swap: it
// deletes every stale N.idx/N.dat left over from before the compaction and
// then atomically renames compIdx/compData into place as 0.idx/0.dat.
//
// Before doing any of that, it checks whether both sentinel files are
// already gone; if so there is nothing left to finish, which makes the
// function idempotent when Load calls it again after a previous run already
// completed (or after a fresh directory that never had a compaction at
// all).
//
// A crash can also land between the two renames: compIdx has already been
// renamed to 0.idx (so idxExists is now false) while compData is still
// sitting under its sentinel name (dataExists is true), or vice versa. On
// that prefix, the side whose sentinel is gone has already delivered its
// half of the compacted segment to 0.idx/0.dat, and that file must survive
// the cleanup pass below — deleting it because "every N.idx/N.dat looked
// stale" would discard the only copy of that half. So the target path for
// an already-completed side is excluded from deletion, and its rename is
// skipped (there is nothing left to rename).
//
// The deletion step scans the directory for every N.idx/N.dat pair rather
// than probing ordinals 0, 1, 2, ... until the first miss. Probing assumes
// the surviving ordinals are gapless, which a crash mid-deletion-loop on a
// prior run could violate (deleting 0 and 1 but crashing before 2), leaving
// a hole that a contiguous probe would stop short of. A directory scan has
// no such blind spot.
func finishCompact(dir, compIdx, compData string, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	idxExists, err := filesys.Exists(compIdx)
	if err != nil {
		return errors.NewSegmentSetError(err, errors.ErrorCodeIO, "failed to stat compaction sentinel").WithDir(dir).WithPhase("finishCompact")
	}
	dataExists, err := filesys.Exists(compData)
	if err != nil {
		return errors.NewSegmentSetError(err, errors.ErrorCodeIO, "failed to stat compaction sentinel").WithDir(dir).WithPhase("finishCompact")
	}

	if !idxExists && !dataExists {
		log.Infow("finishCompact has nothing to do, sentinels already absent", "dir", dir)
		return nil
	}

	targetIdx, targetData := segmentPaths(dir, 0)

	paths, err := filesys.AllOrdinalPaths(dir)
	if err != nil {
		return errors.NewSegmentSetError(err, errors.ErrorCodeIO, "failed to list segment files for compaction cleanup").WithDir(dir).WithPhase("finishCompact")
	}

	deleted := 0
	for _, path := range paths {
		if !idxExists && path == targetIdx {
			// Already swapped into place on a prior, interrupted run; this
			// file IS the compacted index now, not a stale leftover.
			continue
		}
		if !dataExists && path == targetData {
			continue
		}
		if err := filesys.DeleteFile(path); err != nil {
			return errors.NewSegmentSetError(err, errors.ErrorCodeIO, "failed to delete stale segment file").
				WithDir(dir).WithPhase("finishCompact").WithDetail("path", path)
		}
		deleted++
	}

	if idxExists {
		if err := filesys.AtomicRename(compIdx, targetIdx); err != nil {
			return errors.NewSegmentSetError(err, errors.ErrorCodeCompactionIncomplete, "failed to rename compacted index into place").WithDir(dir).WithPhase("finishCompact")
		}
	}
	if dataExists {
		if err := filesys.AtomicRename(compData, targetData); err != nil {
			return errors.NewSegmentSetError(err, errors.ErrorCodeCompactionIncomplete, "failed to rename compacted data into place").WithDir(dir).WithPhase("finishCompact")
		}
	}

	log.Infow("finishCompact complete", "dir", dir, "cleanedFiles", deleted)
	return nil
}
