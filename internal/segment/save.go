package segment

import (
	"bufio"
	"encoding/binary"
	"os"

	"go.uber.org/zap"

	"iamnilotpal.dev/ignitecore/internal/entry"
	"iamnilotpal.dev/ignitecore/internal/iterate"
	"iamnilotpal.dev/ignitecore/pkg/errors"
)

// Save streams every entry from it, in order, into a brand-new index/data
// file pair at indexPath/dataPath, failing if either path already exists.
// sync controls whether both files are fsynced before Save returns.
//
// Every offset is buffered in memory as it is produced, and the index file
// is written only after the data file is complete: all offsets in order,
// then the trailing count, so the count is never written while some offsets
// are still pending. The index file itself is written through a buffered
// writer and can be partially on disk while Save runs; callers write to
// temporary paths and rename the pair into place afterward.
func Save(indexPath, dataPath string, it iterate.Iterator, sync bool, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	dataFile, err := os.OpenFile(dataPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return errors.NewSegmentError(err, errors.ErrorCodeSegmentAlreadyExists, "data file already exists").
				WithFileName("data").WithPath(dataPath)
		}
		return errors.WrapSegmentIOError(err, 0, "data", dataPath).WithMessage("failed to create data file")
	}
	defer dataFile.Close()

	indexFile, err := os.OpenFile(indexPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return errors.NewSegmentError(err, errors.ErrorCodeSegmentAlreadyExists, "index file already exists").
				WithFileName("index").WithPath(indexPath)
		}
		return errors.WrapSegmentIOError(err, 0, "index", indexPath).WithMessage("failed to create index file")
	}
	defer indexFile.Close()

	dataWriter := bufio.NewWriter(dataFile)

	var offsets []int64
	var pos int64
	var lastKey []byte

	for {
		e, err := it.Next()
		if err == iterate.ErrIteratorDone {
			break
		}
		if err != nil {
			return errors.NewSegmentError(err, errors.ErrorCodeInternal, "iterator failed while saving segment").
				WithFileName("data").WithPath(dataPath)
		}

		if lastKey != nil && entry.Compare(e.Key, lastKey) <= 0 {
			return errors.NewSegmentError(nil, errors.ErrorCodeInvalidInput, "entries out of order while saving segment").
				WithFileName("data").WithPath(dataPath).WithDetail("previousKey", lastKey).WithDetail("key", e.Key)
		}
		lastKey = e.Key

		offsets = append(offsets, pos)
		n, err := entry.Encode(dataWriter, e)
		if err != nil {
			return errors.WrapSegmentIOError(err, 0, "data", dataPath).WithMessage("failed to write entry")
		}
		pos += n
	}

	if err := dataWriter.Flush(); err != nil {
		return errors.WrapSegmentIOError(err, 0, "data", dataPath).WithMessage("failed to flush data file")
	}
	if sync {
		if err := dataFile.Sync(); err != nil {
			return errors.WrapSegmentIOError(err, 0, "data", dataPath).WithMessage("failed to sync data file")
		}
	}

	indexWriter := bufio.NewWriter(indexFile)
	for _, off := range offsets {
		if err := binary.Write(indexWriter, binary.BigEndian, int32(off)); err != nil {
			return errors.WrapSegmentIOError(err, 0, "index", indexPath).WithMessage("failed to write offset")
		}
	}
	if err := binary.Write(indexWriter, binary.BigEndian, int32(len(offsets))); err != nil {
		return errors.WrapSegmentIOError(err, 0, "index", indexPath).WithMessage("failed to write trailing count")
	}
	if err := indexWriter.Flush(); err != nil {
		return errors.WrapSegmentIOError(err, 0, "index", indexPath).WithMessage("failed to flush index file")
	}
	if sync {
		if err := indexFile.Sync(); err != nil {
			return errors.WrapSegmentIOError(err, 0, "index", indexPath).WithMessage("failed to sync index file")
		}
	}

	log.Infow("segment saved", "indexPath", indexPath, "dataPath", dataPath, "entries", len(offsets))
	return nil
}
