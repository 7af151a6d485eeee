// Package segment implements a single sorted, immutable segment: a pair of
// memory-mapped files holding an ascending run of unique-keyed entries (the
// data file) and a fixed-width offset index into that run (the index file).
//
// A segment never changes once written. Freshness between segments in a set
// is tracked by an ordinal assigned at creation time: higher ordinals are
// fresher. Loading and saving a segment take an optional *zap.SugaredLogger
// and log with structured fields, as the rest of this module does.
package segment

import (
	"encoding/binary"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"go.uber.org/zap"

	"iamnilotpal.dev/ignitecore/internal/entry"
	"iamnilotpal.dev/ignitecore/internal/iterate"
	"iamnilotpal.dev/ignitecore/pkg/errors"
)

// indexEntrySize is the width, in bytes, of a single offset in the index
// file. The index file is a sequence of these fixed-width offsets, one per
// data-file entry in the same order, followed by a trailing count of the
// same width.
const indexEntrySize = 4

// Segment is a single immutable, memory-mapped sorted run of entries.
type Segment struct {
	ordinal int64

	indexPath string
	dataPath  string

	indexMap mmap.MMap
	dataMap  mmap.MMap

	indexFile *os.File
	dataFile  *os.File

	count int64

	log *zap.SugaredLogger
}

// Ordinal returns the segment's freshness ordinal; higher is fresher.
func (s *Segment) Ordinal() int64 {
	return s.ordinal
}

// Count returns the number of entries in the segment.
func (s *Segment) Count() int64 {
	return s.count
}

// Load memory-maps indexPath and dataPath read-only and reads the trailing
// entry count from the index file. It fails if either file is missing or
// unreadable, if the index file is non-empty but shorter than the trailing
// count field, or if the trailing count disagrees with the index file's size.
func Load(indexPath, dataPath string, ordinal int64, log *zap.SugaredLogger) (*Segment, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	indexFile, err := os.Open(indexPath)
	if err != nil {
		return nil, errors.WrapSegmentIOError(err, ordinal, "index", indexPath).WithMessage("failed to open index file")
	}

	dataFile, err := os.Open(dataPath)
	if err != nil {
		indexFile.Close()
		return nil, errors.WrapSegmentIOError(err, ordinal, "data", dataPath).WithMessage("failed to open data file")
	}

	indexStat, err := indexFile.Stat()
	if err != nil {
		indexFile.Close()
		dataFile.Close()
		return nil, errors.WrapSegmentIOError(err, ordinal, "index", indexPath).WithMessage("failed to stat index file")
	}

	if indexStat.Size() != 0 && indexStat.Size() < indexEntrySize {
		indexFile.Close()
		dataFile.Close()
		return nil, errors.NewSegmentError(nil, errors.ErrorCodeSegmentCorrupted, "index file shorter than trailing count field").
			WithOrdinal(ordinal).WithFileName("index").WithPath(indexPath).WithDetail("size", indexStat.Size())
	}

	var indexMap, dataMap mmap.MMap
	var count int64

	if indexStat.Size() > 0 {
		indexMap, err = mmap.Map(indexFile, mmap.RDONLY, 0)
		if err != nil {
			indexFile.Close()
			dataFile.Close()
			return nil, errors.WrapSegmentIOError(err, ordinal, "index", indexPath).WithMessage("failed to mmap index file")
		}

		countOff := len(indexMap) - indexEntrySize
		count = int64(int32(binary.BigEndian.Uint32(indexMap[countOff : countOff+indexEntrySize])))
		if count < 0 {
			indexMap.Unmap()
			indexFile.Close()
			dataFile.Close()
			return nil, errors.NewSegmentError(nil, errors.ErrorCodeSegmentCorrupted, "negative trailing count").
				WithOrdinal(ordinal).WithFileName("index").WithPath(indexPath).WithDetail("count", count)
		}
		if count*indexEntrySize+indexEntrySize != int64(len(indexMap)) {
			indexMap.Unmap()
			indexFile.Close()
			dataFile.Close()
			return nil, errors.NewSegmentError(nil, errors.ErrorCodeSegmentCorrupted, "trailing count disagrees with index file size").
				WithOrdinal(ordinal).WithFileName("index").WithPath(indexPath).WithDetail("count", count).WithDetail("size", indexStat.Size())
		}
	}

	if dataStat, err := dataFile.Stat(); err == nil && dataStat.Size() > 0 {
		dataMap, err = mmap.Map(dataFile, mmap.RDONLY, 0)
		if err != nil {
			if indexMap != nil {
				indexMap.Unmap()
			}
			indexFile.Close()
			dataFile.Close()
			return nil, errors.WrapSegmentIOError(err, ordinal, "data", dataPath).WithMessage("failed to mmap data file")
		}
	}

	log.Infow("segment loaded", "ordinal", ordinal, "count", count, "indexPath", indexPath, "dataPath", dataPath)

	return &Segment{
		ordinal:   ordinal,
		indexPath: indexPath,
		dataPath:  dataPath,
		indexMap:  indexMap,
		dataMap:   dataMap,
		indexFile: indexFile,
		dataFile:  dataFile,
		count:     count,
		log:       log,
	}, nil
}

// Close releases the segment's memory maps and file descriptors.
func (s *Segment) Close() error {
	var firstErr error
	if s.indexMap != nil {
		if err := s.indexMap.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.dataMap != nil {
		if err := s.dataMap.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.indexFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.dataFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// offsetAt returns the data-file byte offset recorded at index position p.
func (s *Segment) offsetAt(p int64) int64 {
	o := p * indexEntrySize
	return int64(int32(binary.BigEndian.Uint32(s.indexMap[o : o+indexEntrySize])))
}

// entryAt decodes the entry stored at index position p.
func (s *Segment) entryAt(p int64) (entry.Entry, error) {
	off := s.offsetAt(p)
	e, _, err := entry.DecodeAt(s.dataMap, off)
	if err != nil {
		return entry.Entry{}, errors.NewSegmentError(err, errors.ErrorCodeSegmentCorrupted, fmt.Sprintf("corrupt entry at position %d", p)).
			WithOrdinal(s.ordinal).WithFileName("data").WithPath(s.dataPath).WithOffset(off)
	}
	return e, nil
}

// greaterOrEqual returns the smallest index position p in [0, count] such
// that key(p) >= key, or count if no such position exists. A nil key is
// treated as unbounded below and always returns 0.
//
// This is a standard lower-bound binary search. An earlier, subtly
// different version of this search could land on a position whose key was
// strictly less than the target and then read that position unconditionally,
// risking an out-of-bounds access at the -1/count boundary; the loop below
// always converges to a valid bound without ever dereferencing outside
// [0, count).
func (s *Segment) greaterOrEqual(key []byte) (int64, error) {
	if key == nil {
		return 0, nil
	}

	lo, hi := int64(0), s.count
	for lo < hi {
		mid := lo + (hi-lo)/2
		e, err := s.entryAt(mid)
		if err != nil {
			return 0, err
		}
		if entry.Compare(e.Key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// Get returns the entry with exactly this key, or (Entry{}, false, nil) if
// no such entry exists. A tombstone is returned as an entry with a nil
// Value; the segment itself does not interpret tombstones.
func (s *Segment) Get(key []byte) (entry.Entry, bool, error) {
	if len(key) == 0 {
		return entry.Entry{}, false, nil
	}

	p, err := s.greaterOrEqual(key)
	if err != nil {
		return entry.Entry{}, false, err
	}
	if p >= s.count {
		return entry.Entry{}, false, nil
	}

	e, err := s.entryAt(p)
	if err != nil {
		return entry.Entry{}, false, err
	}
	if entry.Compare(e.Key, key) != 0 {
		return entry.Entry{}, false, nil
	}
	return e, true, nil
}

// RangeIter returns an iterator over entries with from <= key < to. A nil
// from is unbounded below; a nil to is unbounded above. The returned
// iterator produces no duplicates and skips nothing in range.
func (s *Segment) RangeIter(from, to []byte) (iterate.Iterator, error) {
	start, err := s.greaterOrEqual(from)
	if err != nil {
		return nil, err
	}
	return &rangeIterator{seg: s, pos: start, to: to}, nil
}

// rangeIterator walks a segment's entries in position order, stopping
// before the first key >= to (if to is non-nil).
type rangeIterator struct {
	seg *Segment
	pos int64
	to  []byte
}

func (it *rangeIterator) Next() (entry.Entry, error) {
	if it.pos >= it.seg.count {
		return entry.Entry{}, iterate.ErrIteratorDone
	}

	e, err := it.seg.entryAt(it.pos)
	if err != nil {
		return entry.Entry{}, err
	}
	if it.to != nil && entry.Compare(e.Key, it.to) >= 0 {
		it.pos = it.seg.count
		return entry.Entry{}, iterate.ErrIteratorDone
	}

	it.pos++
	return e, nil
}
