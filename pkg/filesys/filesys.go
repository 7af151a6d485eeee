// Package filesys provides a small collection of file system utilities used
// by the segment storage layer: directory creation, existence checks,
// atomic rename, and the ordinal-file discovery used during crash recovery.
package filesys

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrIsNotDir = errors.New("path isn't a directory")
)

// CreateDir creates a directory at the specified path with the given permissions.
//
// If the directory already exists:
//   - If 'force' is true, it proceeds without error.
//   - If 'force' is false, it returns an error.
//
// It also returns an error if the existing path is a file (not a directory).
func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	stat, err := os.Stat(dirPath)
	if !force {
		if err == nil {
			return os.ErrExist
		}
		if !os.IsNotExist(err) {
			return err
		}
	}

	if stat != nil && !stat.IsDir() {
		return ErrIsNotDir
	}

	if err := os.MkdirAll(dirPath, permission); err != nil {
		return err
	}

	return os.Chmod(dirPath, permission)
}

// Exists checks if a file or directory at the given path exists.
// It returns true if the file/directory exists, false if it does not,
// and an error if there's any other issue checking its status.
func Exists(file string) (bool, error) {
	_, err := os.Stat(file)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// DeleteFile deletes the file at the specified filePath. A missing file is
// not an error: callers in the crash-recovery path treat "already gone" and
// "just deleted" the same way.
func DeleteFile(filePath string) error {
	err := os.Remove(filePath)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// AtomicRename renames oldPath to newPath using the platform's atomic
// rename syscall (os.Rename, which is atomic on POSIX filesystems and on
// NTFS for same-volume renames). Segment writes and the compaction sentinel
// swap both depend on this being atomic: a crash must never observe a
// partially-renamed file.
func AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// Sync opens path and calls Sync on the resulting file descriptor, forcing
// its contents to stable storage.
func Sync(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// OrdinalFile pairs a segment ordinal with the paths of its index and data
// files, as discovered by ListOrdinalFiles.
type OrdinalFile struct {
	Ordinal   int64
	IndexPath string
	DataPath  string
}

// ListOrdinalFiles scans dir for every N.idx/N.dat pair, for any ordinal N,
// without assuming the ordinals present are contiguous starting at 0. This
// is the directory-scan recovery strategy: probing 0, 1, 2, ... and
// stopping at the first gap is fragile if a prior crash left a hole in the
// middle of the sequence, so recovery instead enumerates every ordinal file
// actually on disk and lets the caller decide what to do with gaps.
//
// A N.idx with no matching N.dat (or vice versa) is omitted: segments are
// written under temporary names and renamed into place one file at a time,
// so such a file is left by a crash between the two renames.
func ListOrdinalFiles(dir string) ([]OrdinalFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	idx := make(map[int64]string)
	dat := make(map[int64]string)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)

		ordinal, err := strconv.ParseInt(stem, 10, 64)
		if err != nil {
			continue
		}

		switch ext {
		case ".idx":
			idx[ordinal] = filepath.Join(dir, name)
		case ".dat":
			dat[ordinal] = filepath.Join(dir, name)
		}
	}

	files := make([]OrdinalFile, 0, len(idx))
	for ordinal, indexPath := range idx {
		dataPath, ok := dat[ordinal]
		if !ok {
			continue
		}
		files = append(files, OrdinalFile{Ordinal: ordinal, IndexPath: indexPath, DataPath: dataPath})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Ordinal < files[j].Ordinal })
	return files, nil
}

// AllOrdinalPaths scans dir for every file named N.idx or N.dat, for any
// ordinal N, without requiring the sibling of a given ordinal to also be
// present. Unlike ListOrdinalFiles this deliberately surfaces orphaned
// halves of a pair (e.g. a N.idx left behind by a write that crashed before
// its N.dat was created), since recovery needs to delete those too rather
// than silently skip them.
func AllOrdinalPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)

		if _, err := strconv.ParseInt(stem, 10, 64); err != nil {
			continue
		}
		if ext != ".idx" && ext != ".dat" {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}

	sort.Strings(paths)
	return paths, nil
}
