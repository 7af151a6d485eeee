// Package entry defines the wire-level key/value record shared by every
// layer of the segment store: the Entry type itself, the ordering used to
// keep segments sorted, and the binary encode/decode helpers that read and
// write it from a segment's data file.
//
// Keys and values are opaque byte strings. Keys are ordered by unsigned
// lexicographic comparison, which is exactly what bytes.Compare already
// does for []byte. An Entry whose Value is nil is a tombstone: it records
// that the key was deleted, and is distinct from an Entry present with a
// zero-length value.
package entry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// tombstoneLen is the on-disk sentinel written in place of a value length to
// mark an entry as deleted rather than present-with-empty-value.
const tombstoneLen int32 = -1

// headerSize is the number of bytes occupied by the klen and vlen fields
// that bracket every encoded entry's key and value.
const headerSize = 8

// Entry is a single key/value record. A nil Value marks the key as deleted
// (a tombstone); a non-nil, possibly zero-length Value marks it present.
type Entry struct {
	Key   []byte
	Value []byte
}

// IsTombstone reports whether this entry represents a deletion rather than
// a present value.
func (e Entry) IsTombstone() bool {
	return e.Value == nil
}

// Compare orders two keys using unsigned lexicographic comparison, the
// ordering every segment's on-disk entries are required to follow.
func Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Less reports whether a's key sorts strictly before b's key.
func Less(a, b Entry) bool {
	return Compare(a.Key, b.Key) < 0
}

// EncodedSize returns the number of bytes e occupies once encoded: an
// 8-byte header (klen, vlen) plus the key bytes plus, for a present value,
// the value bytes.
func EncodedSize(e Entry) int64 {
	size := int64(headerSize) + int64(len(e.Key))
	if !e.IsTombstone() {
		size += int64(len(e.Value))
	}
	return size
}

// Encode writes e to w in the wire format: klen:int32 key vlen:int32 value,
// with vlen = -1 signaling a tombstone. It returns the number of bytes
// written. All multi-byte fields are big-endian, matching every reader of
// these files.
func Encode(w io.Writer, e Entry) (int64, error) {
	var written int64

	if len(e.Key) == 0 {
		return 0, fmt.Errorf("entry: key must not be empty")
	}

	if err := binary.Write(w, binary.BigEndian, int32(len(e.Key))); err != nil {
		return written, err
	}
	written += 4

	if n, err := w.Write(e.Key); err != nil {
		return written, err
	} else {
		written += int64(n)
	}

	if e.IsTombstone() {
		if err := binary.Write(w, binary.BigEndian, tombstoneLen); err != nil {
			return written, err
		}
		written += 4
		return written, nil
	}

	if err := binary.Write(w, binary.BigEndian, int32(len(e.Value))); err != nil {
		return written, err
	}
	written += 4

	if len(e.Value) > 0 {
		n, err := w.Write(e.Value)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// DecodeAt decodes a single entry from data starting at byte offset off. It
// returns the entry and the offset immediately following it, for callers
// that want to validate consecutive entries fit within the buffer. Negative
// lengths, a read that runs past the end of data, or a truncated header are
// all reported as errors: these all indicate the segment is corrupt.
func DecodeAt(data []byte, off int64) (Entry, int64, error) {
	if off < 0 || off+4 > int64(len(data)) {
		return Entry{}, off, fmt.Errorf("entry: truncated key length at offset %d", off)
	}

	klen := int64(int32(binary.BigEndian.Uint32(data[off : off+4])))
	if klen < 0 {
		return Entry{}, off, fmt.Errorf("entry: negative key length %d at offset %d", klen, off)
	}
	off += 4

	if off+klen > int64(len(data)) {
		return Entry{}, off, fmt.Errorf("entry: truncated key at offset %d (want %d bytes)", off, klen)
	}
	key := make([]byte, klen)
	copy(key, data[off:off+klen])
	off += klen

	if off+4 > int64(len(data)) {
		return Entry{}, off, fmt.Errorf("entry: truncated value length at offset %d", off)
	}
	vlen := int64(int32(binary.BigEndian.Uint32(data[off : off+4])))
	off += 4

	if vlen == int64(tombstoneLen) {
		return Entry{Key: key, Value: nil}, off, nil
	}
	if vlen < 0 {
		return Entry{}, off, fmt.Errorf("entry: invalid value length %d at offset %d", vlen, off)
	}

	if off+vlen > int64(len(data)) {
		return Entry{}, off, fmt.Errorf("entry: truncated value at offset %d (want %d bytes)", off, vlen)
	}
	value := make([]byte, vlen)
	copy(value, data[off:off+vlen])
	off += vlen

	return Entry{Key: key, Value: value}, off, nil
}
