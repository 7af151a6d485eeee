package segment

import (
	"path/filepath"
	"testing"

	"iamnilotpal.dev/ignitecore/internal/entry"
	"iamnilotpal.dev/ignitecore/internal/iterate"
)

func mustSave(t *testing.T, dir string, ordinal int64, entries []entry.Entry) *Segment {
	t.Helper()
	idxPath := filepath.Join(dir, "0.idx")
	datPath := filepath.Join(dir, "0.dat")

	if err := Save(idxPath, datPath, iterate.NewSliceIterator(entries), false, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	seg, err := Load(idxPath, datPath, ordinal, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return seg
}

func e(key, value string) entry.Entry {
	return entry.Entry{Key: []byte(key), Value: []byte(value)}
}

func tomb(key string) entry.Entry {
	return entry.Entry{Key: []byte(key), Value: nil}
}

func TestSegmentGetPresentAndAbsent(t *testing.T) {
	dir := t.TempDir()
	seg := mustSave(t, dir, 0, []entry.Entry{e("a", "1"), e("b", "2"), e("d", "4")})
	defer seg.Close()

	got, ok, err := seg.Get([]byte("b"))
	if err != nil || !ok || string(got.Value) != "2" {
		t.Fatalf("Get(b) = %+v, %v, %v", got, ok, err)
	}

	_, ok, err = seg.Get([]byte("c"))
	if err != nil || ok {
		t.Fatalf("Get(c) should be absent, got ok=%v err=%v", ok, err)
	}
}

func TestSegmentGetReturnsTombstone(t *testing.T) {
	dir := t.TempDir()
	seg := mustSave(t, dir, 0, []entry.Entry{tomb("a")})
	defer seg.Close()

	got, ok, err := seg.Get([]byte("a"))
	if err != nil || !ok {
		t.Fatalf("Get(a): ok=%v err=%v", ok, err)
	}
	if !got.IsTombstone() {
		t.Fatal("expected a tombstone entry")
	}
}

func TestSegmentRangeIterBounds(t *testing.T) {
	dir := t.TempDir()
	seg := mustSave(t, dir, 0, []entry.Entry{e("a", "1"), e("b", "2"), e("c", "3"), e("d", "4")})
	defer seg.Close()

	it, err := seg.RangeIter([]byte("b"), []byte("d"))
	if err != nil {
		t.Fatalf("RangeIter: %v", err)
	}

	var got []string
	for {
		ent, err := it.Next()
		if err == iterate.ErrIteratorDone {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, string(ent.Key))
	}

	want := []string{"b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSegmentRangeIterUnbounded(t *testing.T) {
	dir := t.TempDir()
	seg := mustSave(t, dir, 0, []entry.Entry{e("a", "1"), e("b", "2"), e("c", "3")})
	defer seg.Close()

	it, err := seg.RangeIter(nil, nil)
	if err != nil {
		t.Fatalf("RangeIter: %v", err)
	}

	count := 0
	for {
		_, err := it.Next()
		if err == iterate.ErrIteratorDone {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Fatalf("got %d entries, want 3", count)
	}
}

func TestSaveRejectsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "0.idx")
	datPath := filepath.Join(dir, "0.dat")

	if err := Save(idxPath, datPath, iterate.NewSliceIterator([]entry.Entry{e("a", "1")}), false, nil); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := Save(idxPath, datPath, iterate.NewSliceIterator([]entry.Entry{e("a", "1")}), false, nil); err == nil {
		t.Fatal("expected second Save over existing files to fail")
	}
}

func TestSaveRejectsOutOfOrderEntries(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "0.idx")
	datPath := filepath.Join(dir, "0.dat")

	err := Save(idxPath, datPath, iterate.NewSliceIterator([]entry.Entry{e("b", "1"), e("a", "2")}), false, nil)
	if err == nil {
		t.Fatal("expected out-of-order entries to be rejected")
	}
}

func TestLoadEmptySegment(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "0.idx")
	datPath := filepath.Join(dir, "0.dat")

	if err := Save(idxPath, datPath, iterate.NewSliceIterator(nil), false, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	seg, err := Load(idxPath, datPath, 0, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer seg.Close()

	if seg.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", seg.Count())
	}

	_, ok, err := seg.Get([]byte("anything"))
	if err != nil || ok {
		t.Fatalf("Get on empty segment: ok=%v err=%v", ok, err)
	}
}

func TestLoadFailsOnMissingFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.idx"), filepath.Join(dir, "missing.dat"), 0, nil); err == nil {
		t.Fatal("expected Load to fail on missing files")
	}
}
