package segmentset

import (
	"os"
	"path/filepath"
	"testing"

	"iamnilotpal.dev/ignitecore/internal/entry"
	"iamnilotpal.dev/ignitecore/internal/iterate"
	"iamnilotpal.dev/ignitecore/internal/segment"
	"iamnilotpal.dev/ignitecore/pkg/options"
)

// sliceMemtable is a minimal Memtable backed by an in-memory, already
// ordered and deduplicated slice, the shape the real in-memory collaborator
// hands a SegmentSet.
type sliceMemtable struct {
	entries []entry.Entry
}

func (m *sliceMemtable) Iterator() iterate.Iterator {
	return iterate.NewSliceIterator(m.entries)
}

func e(key, value string) entry.Entry {
	return entry.Entry{Key: []byte(key), Value: []byte(value)}
}

func tomb(key string) entry.Entry {
	return entry.Entry{Key: []byte(key), Value: nil}
}

func TestLoadRejectsInvalidOptions(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(Config{Dir: dir, Options: options.Options{DataDir: "", SyncOnWrite: true, MemtablePriorityCeiling: 1}})
	if err == nil {
		t.Fatal("Load() with an empty Options.DataDir should fail validation before touching disk")
	}
}

func openSet(t *testing.T, dir string) *SegmentSet {
	t.Helper()
	set, err := Load(Config{Dir: dir, Options: options.NewDefaultOptions()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return set
}

func drain(t *testing.T, it *pinnedIterator) []entry.Entry {
	t.Helper()
	var got []entry.Entry
	for {
		ent, err := it.Next()
		if err == iterate.ErrIteratorDone {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, ent)
	}
	return got
}

// Scenario: flushing S1 then S2 with an overlapping key, the fresher flush
// (S2) must win both point lookups and range scans.
func TestFlushFreshnessWins(t *testing.T) {
	dir := t.TempDir()
	set := openSet(t, dir)
	defer set.Close()

	if err := set.Flush([]entry.Entry{e("a", "s1-a"), e("b", "s1-b")}); err != nil {
		t.Fatalf("flush S1: %v", err)
	}
	if err := set.Flush([]entry.Entry{e("b", "s2-b"), e("c", "s2-c")}); err != nil {
		t.Fatalf("flush S2: %v", err)
	}

	got, ok, err := set.FindEntry([]byte("b"))
	if err != nil || !ok || string(got.Value) != "s2-b" {
		t.Fatalf("FindEntry(b) = %+v, %v, %v, want s2-b", got, ok, err)
	}

	it, err := set.RangeScan(nil, nil)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	entries := drain(t, it)

	want := map[string]string{"a": "s1-a", "b": "s2-b", "c": "s2-c"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for _, got := range entries {
		if want[string(got.Key)] != string(got.Value) {
			t.Fatalf("key %s: got %s, want %s", got.Key, got.Value, want[string(got.Key)])
		}
	}
}

// Tombstones suppress their key from range scans entirely.
func TestTombstoneSuppressedInScan(t *testing.T) {
	dir := t.TempDir()
	set := openSet(t, dir)
	defer set.Close()

	if err := set.Flush([]entry.Entry{e("a", "1"), e("b", "2")}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := set.Flush([]entry.Entry{tomb("b")}); err != nil {
		t.Fatalf("flush tombstone: %v", err)
	}

	it, err := set.RangeScan(nil, nil)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	entries := drain(t, it)

	for _, got := range entries {
		if string(got.Key) == "b" {
			t.Fatal("tombstoned key b leaked into range scan")
		}
	}
	if len(entries) != 1 || string(entries[0].Key) != "a" {
		t.Fatalf("got %v, want only key a", entries)
	}
}

// A tombstone is still visible, as a tombstone, to a direct point lookup.
func TestTombstoneVisibleInFindEntry(t *testing.T) {
	dir := t.TempDir()
	set := openSet(t, dir)
	defer set.Close()

	if err := set.Flush([]entry.Entry{e("a", "1")}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := set.Flush([]entry.Entry{tomb("a")}); err != nil {
		t.Fatalf("flush tombstone: %v", err)
	}

	got, ok, err := set.FindEntry([]byte("a"))
	if err != nil || !ok {
		t.Fatalf("FindEntry(a): ok=%v err=%v", ok, err)
	}
	if !got.IsTombstone() {
		t.Fatal("expected tombstone to be visible to a direct lookup")
	}
}

func TestFlushEmptySnapshotIsNoOp(t *testing.T) {
	dir := t.TempDir()
	set := openSet(t, dir)
	defer set.Close()

	if err := set.Flush(nil); err != nil {
		t.Fatalf("Flush(nil): %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files written for an empty flush, found %d", len(entries))
	}
}

// Compaction must not change what a range scan returns, and it must
// converge to a single segment.
func TestCompactionIdempotence(t *testing.T) {
	dir := t.TempDir()
	set := openSet(t, dir)
	defer set.Close()

	if err := set.Flush([]entry.Entry{e("a", "1"), e("c", "3")}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := set.Flush([]entry.Entry{tomb("a"), e("b", "2")}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	before, err := set.RangeScan(nil, nil)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	beforeEntries := drain(t, before)

	if err := set.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !set.IsCompacted() {
		t.Fatal("expected IsCompacted() to be true after Compact")
	}

	after, err := set.RangeScan(nil, nil)
	if err != nil {
		t.Fatalf("RangeScan after compact: %v", err)
	}
	afterEntries := drain(t, after)

	if len(beforeEntries) != len(afterEntries) {
		t.Fatalf("got %d entries after compaction, want %d", len(afterEntries), len(beforeEntries))
	}
	for i := range beforeEntries {
		if string(beforeEntries[i].Key) != string(afterEntries[i].Key) ||
			string(beforeEntries[i].Value) != string(afterEntries[i].Value) {
			t.Fatalf("entry %d changed across compaction: %+v -> %+v", i, beforeEntries[i], afterEntries[i])
		}
	}

	// Second compaction, with only one (now tombstone-free) segment present,
	// still runs and must not change the visible data.
	if err := set.Compact(); err != nil {
		t.Fatalf("second Compact: %v", err)
	}
	again, err := set.RangeScan(nil, nil)
	if err != nil {
		t.Fatalf("RangeScan after second compact: %v", err)
	}
	if got := drain(t, again); len(got) != len(afterEntries) {
		t.Fatalf("second compaction changed entry count: got %d want %d", len(got), len(afterEntries))
	}
}

// Reopening a directory whose compaction sentinels exist but were never
// swapped into place must finish the swap, exactly as if the compaction
// had completed normally.
func TestCrashRecoveryResumesFinishCompact(t *testing.T) {
	dir := t.TempDir()
	set := openSet(t, dir)

	if err := set.Flush([]entry.Entry{e("a", "1")}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := set.Flush([]entry.Entry{e("b", "2")}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := set.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	set.Close()

	// Simulate a crash that happened after compact wrote its sentinel files
	// but before finishCompact renamed them into place: recreate the
	// sentinel pair alongside the already-finished 0.idx/0.dat.
	idxPath, dataPath := segmentPaths(dir, 0)
	idxBytes, err := os.ReadFile(idxPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	dataBytes, err := os.ReadFile(dataPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, compactedIndexName), idxBytes, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, compactedDataName), dataBytes, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reopened := openSet(t, dir)
	defer reopened.Close()

	if !reopened.IsCompacted() {
		t.Fatal("expected a single segment after crash recovery")
	}

	it, err := reopened.RangeScan(nil, nil)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	got := drain(t, it)
	if len(got) != 2 {
		t.Fatalf("got %d entries after recovery, want 2", len(got))
	}
}

// A crash can also land between the two renames finishCompact performs: one
// sentinel has already been swapped into place as 0.idx or 0.dat (so it no
// longer exists under its sentinel name) while the other is still waiting.
// The already-swapped half must survive the cleanup pass on the next Load;
// deleting it as "just another stale ordinal file" would lose half the
// compacted segment permanently.
func TestCrashRecoveryPreservesAlreadySwappedHalf(t *testing.T) {
	dir := t.TempDir()
	set := openSet(t, dir)

	if err := set.Flush([]entry.Entry{e("a", "1")}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := set.Flush([]entry.Entry{e("b", "2")}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	set.Close()

	// Build the sentinel pair a real Compact would have produced, without
	// going through Compact itself, so the test controls exactly when each
	// rename step below lands.
	compIdx := filepath.Join(dir, compactedIndexName)
	compData := filepath.Join(dir, compactedDataName)
	merged := []entry.Entry{e("a", "1"), e("b", "2")}
	if err := segment.Save(compIdx, compData, iterate.NewSliceIterator(merged), true, nil); err != nil {
		t.Fatalf("segment.Save: %v", err)
	}

	targetIdx, targetData := segmentPaths(dir, 0)

	// Simulate finishCompact having completed only its index rename before
	// crashing: 0.idx now holds the compacted index and compIdx is gone,
	// but 0.dat still holds the stale pre-compaction data and compData is
	// still sitting under its sentinel name.
	if err := os.Remove(targetIdx); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := os.Rename(compIdx, targetIdx); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	reopened := openSet(t, dir)
	defer reopened.Close()

	if !reopened.IsCompacted() {
		t.Fatal("expected a single segment after resuming a partial compaction swap")
	}

	if _, err := os.Stat(targetData); err != nil {
		t.Fatalf("expected %s to exist after recovery: %v", targetData, err)
	}

	it, err := reopened.RangeScan(nil, nil)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	got := drain(t, it)
	if len(got) != 2 {
		t.Fatalf("got %d entries after recovery, want 2 (data loss if the already-swapped index had been deleted): %+v", len(got), got)
	}
}

func TestRangeScanMergesMemtableAboveSegments(t *testing.T) {
	dir := t.TempDir()
	set := openSet(t, dir)
	defer set.Close()

	if err := set.Flush([]entry.Entry{e("a", "disk")}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	mt := &sliceMemtable{entries: []entry.Entry{e("a", "memtable"), e("z", "fresh")}}

	it, err := set.RangeScan(nil, nil, mt)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	got := drain(t, it)

	values := map[string]string{}
	for _, ent := range got {
		values[string(ent.Key)] = string(ent.Value)
	}
	if values["a"] != "memtable" {
		t.Fatalf("expected memtable entry to shadow segment entry for key a, got %q", values["a"])
	}
	if values["z"] != "fresh" {
		t.Fatalf("expected memtable-only key z, got %q", values["z"])
	}
}
