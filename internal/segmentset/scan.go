package segmentset

import (
	"iamnilotpal.dev/ignitecore/internal/entry"
	"iamnilotpal.dev/ignitecore/internal/iterate"
	"iamnilotpal.dev/ignitecore/pkg/errors"
)

// pinnedIterator wraps a MergingIterator together with the pinned segment
// snapshot it reads from, releasing the snapshot's references the first
// time the merge is exhausted or the caller explicitly closes it.
type pinnedIterator struct {
	merged   iterate.Iterator
	set      *SegmentSet
	snapshot []*refSegment
	released bool
}

func (p *pinnedIterator) Next() (entry.Entry, error) {
	e, err := p.merged.Next()
	if err == iterate.ErrIteratorDone {
		p.Close()
	}
	return e, err
}

// Close releases the pinned snapshot early. It is safe to call multiple
// times and safe to skip once the iterator has been fully drained.
func (p *pinnedIterator) Close() error {
	if p.released {
		return nil
	}
	p.released = true
	p.set.unpin(p.snapshot)
	return nil
}

// RangeScan returns a merged, tombstone-suppressed iterator over from <= key
// < to across every on-disk segment and every supplied memtable. memtables
// must be given freshest-first: the first argument's entries outrank every
// later memtable's and every on-disk segment's for the same key.
//
// The returned iterator pins the segment list at call time; a concurrent
// Flush or Compact cannot invalidate it. Callers that stop draining the
// iterator before reaching ErrIteratorDone must call Close to release the
// pinned segments promptly.
func (s *SegmentSet) RangeScan(from, to []byte, memtables ...Memtable) (*pinnedIterator, error) {
	if s.closed.Load() {
		return nil, errors.NewSegmentSetError(nil, errors.ErrorCodeSetClosed, "segment set is closed").WithDir(s.dir)
	}

	snapshot := s.pin()

	sources := make([]*iterate.PeekingIterator, 0, len(snapshot)+len(memtables))
	for _, rs := range snapshot {
		it, err := rs.seg.RangeIter(from, to)
		if err != nil {
			s.unpin(snapshot)
			return nil, err
		}
		p, err := iterate.NewPeekingIterator(it, rs.seg.Ordinal())
		if err != nil {
			s.unpin(snapshot)
			return nil, err
		}
		sources = append(sources, p)
	}

	ceiling := s.opts.MemtablePriorityCeiling
	for k, mt := range memtables {
		p, err := iterate.NewPeekingIterator(boundedMemtableIterator(mt.Iterator(), from, to), ceiling-int64(k))
		if err != nil {
			s.unpin(snapshot)
			return nil, err
		}
		sources = append(sources, p)
	}

	return &pinnedIterator{
		merged:   iterate.NewMergingIterator(sources),
		set:      s,
		snapshot: snapshot,
	}, nil
}

// boundedMemtableIterator filters a memtable's full iterator down to
// from <= key < to, since unlike a segment a Memtable only knows how to
// hand back its entire ordered sequence.
func boundedMemtableIterator(src iterate.Iterator, from, to []byte) iterate.Iterator {
	return &memtableRangeIterator{src: src, from: from, to: to}
}

type memtableRangeIterator struct {
	src  iterate.Iterator
	from []byte
	to   []byte
}

func (it *memtableRangeIterator) Next() (entry.Entry, error) {
	for {
		e, err := it.src.Next()
		if err != nil {
			return entry.Entry{}, err
		}
		if it.from != nil && entry.Compare(e.Key, it.from) < 0 {
			continue
		}
		if it.to != nil && entry.Compare(e.Key, it.to) >= 0 {
			return entry.Entry{}, iterate.ErrIteratorDone
		}
		return e, nil
	}
}
