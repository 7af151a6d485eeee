package iterate

import (
	"io"

	"iamnilotpal.dev/ignitecore/internal/entry"
)

// PeekingIterator wraps an ordered Iterator with a priority and an eagerly
// cached next entry, so its current position can be inspected without
// consuming it.
//
// Priority determines which of several iterators holding the same key wins:
// larger priority is fresher and wins ties. On-disk segments use their
// ordinal as priority (freshest segment has the highest ordinal). In-memory
// memtables are assigned priorities strictly greater than any possible
// segment ordinal, so a memtable entry always shadows a segment entry for
// the same key; see options.Options.MemtablePriorityCeiling for the MAX a
// k-th memtable's priority is computed as MAX - k from.
type PeekingIterator struct {
	src      Iterator
	priority int64
	current  *entry.Entry
	done     bool
}

// NewPeekingIterator wraps src, eagerly pulling its first entry so Peek can
// be answered without advancing src.
func NewPeekingIterator(src Iterator, priority int64) (*PeekingIterator, error) {
	p := &PeekingIterator{src: src, priority: priority}
	if err := p.pull(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PeekingIterator) pull() error {
	e, err := p.src.Next()
	if err != nil {
		if err == ErrIteratorDone || err == io.EOF {
			p.done = true
			p.current = nil
			return nil
		}
		return err
	}
	p.current = &e
	return nil
}

// Priority returns this iterator's freshness priority.
func (p *PeekingIterator) Priority() int64 {
	return p.priority
}

// Empty reports whether the iterator has been exhausted.
func (p *PeekingIterator) Empty() bool {
	return p.done
}

// Peek returns the current entry without consuming it, and false once the
// iterator is exhausted.
func (p *PeekingIterator) Peek() (entry.Entry, bool) {
	if p.done {
		return entry.Entry{}, false
	}
	return *p.current, true
}

// Advance consumes and returns the current entry, pulling the next one from
// the underlying source. It returns false once the iterator is exhausted.
func (p *PeekingIterator) Advance() (entry.Entry, bool, error) {
	if p.done {
		return entry.Entry{}, false, nil
	}
	cur := *p.current
	if err := p.pull(); err != nil {
		return entry.Entry{}, false, err
	}
	return cur, true, nil
}
