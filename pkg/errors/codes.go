package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary: reading or writing segment files, renaming them into
	// place, or memory-mapping them.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents client-side errors where the provided
	// data doesn't meet the system's requirements or constraints.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected system failures that don't fit
	// into other categories.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Segment-specific error codes extend the base taxonomy with the failure
// modes unique to a single sorted segment file.
const (
	// ErrorCodeSegmentNotFound indicates that an expected segment file is
	// absent. ClassifyIOError assigns it to any not-exist error, and
	// segment.Load reports it as a load failure.
	ErrorCodeSegmentNotFound ErrorCode = "SEGMENT_NOT_FOUND"

	// ErrorCodeSegmentCorrupted indicates that a segment's index or data
	// file is structurally invalid: a negative length, a truncated read, an
	// offset past the end of the data file, or a trailing count that
	// disagrees with the index file's size.
	ErrorCodeSegmentCorrupted ErrorCode = "SEGMENT_CORRUPTED"

	// ErrorCodeSegmentAlreadyExists indicates that a create-new file
	// operation (used for all segment writes, which must never silently
	// overwrite an existing file) found a file already present.
	ErrorCodeSegmentAlreadyExists ErrorCode = "SEGMENT_ALREADY_EXISTS"

	// ErrorCodePermissionDenied indicates insufficient permissions to
	// access a segment file or its directory.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates that the storage device has run out of
	// space while writing a segment.
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates that the filesystem is mounted
	// read-only, so a segment write or rename cannot proceed.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"
)

// SegmentSet-specific error codes cover the crash-recovery protocol and the
// flush/compact lifecycle.
const (
	// ErrorCodeCompactionIncomplete indicates that finishCompact could not
	// complete the sentinel swap, e.g. the rename to 0.idx/0.dat failed
	// partway through.
	ErrorCodeCompactionIncomplete ErrorCode = "COMPACTION_INCOMPLETE"

	// ErrorCodeSetClosed indicates an operation was attempted against a
	// SegmentSet whose Close has already run.
	ErrorCodeSetClosed ErrorCode = "SEGMENT_SET_CLOSED"
)
