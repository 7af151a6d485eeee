package segment

import (
	"path/filepath"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"iamnilotpal.dev/ignitecore/internal/entry"
	"iamnilotpal.dev/ignitecore/internal/iterate"
)

// TestSaveLoadRangeIterRoundTripProperty checks that for any list of
// entries in ascending, unique-key order, saving them to a segment and then
// scanning the full range reproduces the input list exactly.
func TestSaveLoadRangeIterRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")

		seen := map[string]bool{}
		var entries []entry.Entry
		for i := 0; i < n; i++ {
			key := rapid.StringN(1, 8, -1).Draw(t, "key")
			if seen[key] {
				continue
			}
			seen[key] = true

			value := []byte(nil)
			if !rapid.Bool().Draw(t, "tombstone") {
				value = []byte(rapid.StringN(0, 8, -1).Draw(t, "value"))
			}
			entries = append(entries, entry.Entry{Key: []byte(key), Value: value})
		}

		sort.Slice(entries, func(i, j int) bool { return entry.Less(entries[i], entries[j]) })

		dir := t.TempDir()
		idxPath := filepath.Join(dir, "0.idx")
		datPath := filepath.Join(dir, "0.dat")

		if err := Save(idxPath, datPath, iterate.NewSliceIterator(entries), false, nil); err != nil {
			t.Fatalf("Save: %v", err)
		}

		seg, err := Load(idxPath, datPath, 0, nil)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		defer seg.Close()

		if seg.Count() != int64(len(entries)) {
			t.Fatalf("Count() = %d, want %d", seg.Count(), len(entries))
		}

		it, err := seg.RangeIter(nil, nil)
		if err != nil {
			t.Fatalf("RangeIter: %v", err)
		}

		var got []entry.Entry
		for {
			e, err := it.Next()
			if err == iterate.ErrIteratorDone {
				break
			}
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			got = append(got, e)
		}

		if len(got) != len(entries) {
			t.Fatalf("got %d entries, want %d", len(got), len(entries))
		}
		for i := range entries {
			if string(got[i].Key) != string(entries[i].Key) {
				t.Fatalf("entry %d key mismatch: got %q want %q", i, got[i].Key, entries[i].Key)
			}
			if got[i].IsTombstone() != entries[i].IsTombstone() {
				t.Fatalf("entry %d tombstone mismatch", i)
			}
		}
	})
}
