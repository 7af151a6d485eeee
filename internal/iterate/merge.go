package iterate

import (
	"container/heap"

	"iamnilotpal.dev/ignitecore/internal/entry"
)

// iteratorHeap orders PeekingIterators by current key ascending, breaking
// ties by priority descending: the freshest iterator holding the smallest
// key always sits at the top.
type iteratorHeap []*PeekingIterator

func (h iteratorHeap) Len() int { return len(h) }

func (h iteratorHeap) Less(i, j int) bool {
	ki, _ := h[i].Peek()
	kj, _ := h[j].Peek()
	if c := entry.Compare(ki.Key, kj.Key); c != 0 {
		return c < 0
	}
	return h[i].Priority() > h[j].Priority()
}

func (h iteratorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *iteratorHeap) Push(x any) { *h = append(*h, x.(*PeekingIterator)) }

func (h *iteratorHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// MergingIterator performs a k-way merge over a set of prioritized,
// ascending iterators, producing a single ascending stream with unique keys:
// for each key, the entry from the highest-priority source wins, and
// tombstones are suppressed from the merged output entirely.
type MergingIterator struct {
	heap iteratorHeap
}

// NewMergingIterator builds a merging iterator over sources. Empty sources
// are dropped up front; the rest are heapified by current key and priority.
func NewMergingIterator(sources []*PeekingIterator) *MergingIterator {
	h := make(iteratorHeap, 0, len(sources))
	for _, s := range sources {
		if s != nil && !s.Empty() {
			h = append(h, s)
		}
	}
	heap.Init(&h)
	return &MergingIterator{heap: h}
}

// Next returns the next entry in the merged, tombstone-suppressed stream, or
// ErrIteratorDone once every source is exhausted.
func (m *MergingIterator) Next() (entry.Entry, error) {
	for {
		if m.heap.Len() == 0 {
			return entry.Entry{}, ErrIteratorDone
		}

		top := m.heap[0]
		peeked, ok := top.Peek()
		if !ok {
			heap.Pop(&m.heap)
			continue
		}
		key := peeked.Key

		candidate, ok, err := top.Advance()
		if err != nil {
			return entry.Entry{}, err
		}
		if !ok {
			heap.Pop(&m.heap)
			continue
		}
		if top.Empty() {
			heap.Pop(&m.heap)
		} else {
			heap.Fix(&m.heap, 0)
		}

		// Shadow every other source still holding the same key: their
		// versions are older (lower priority) than the one just taken,
		// since the heap would have surfaced a higher-priority holder of
		// this key first.
		for m.heap.Len() > 0 {
			next, ok := m.heap[0].Peek()
			if !ok || entry.Compare(next.Key, key) != 0 {
				break
			}
			_, _, err := m.heap[0].Advance()
			if err != nil {
				return entry.Entry{}, err
			}
			if m.heap[0].Empty() {
				heap.Pop(&m.heap)
			} else {
				heap.Fix(&m.heap, 0)
			}
		}

		if candidate.IsTombstone() {
			continue
		}
		return candidate, nil
	}
}
