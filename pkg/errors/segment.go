package errors

// SegmentError is a specialized error type for failures while loading, reading,
// or writing a single segment's index/data file pair. It embeds baseError to
// inherit chaining and structured details, then adds the location context
// needed to pinpoint exactly which file and byte offset were involved.
type SegmentError struct {
	*baseError
	ordinal  int64  // Which segment ordinal was being accessed when the error occurred.
	offset   int64  // Byte offset within the data or index file where the problem happened.
	fileName string // Name of the file (index or data) that caused the issue.
	path     string // Full path of the file that caused the issue.
}

// NewSegmentError creates a new segment-specific error.
func NewSegmentError(err error, code ErrorCode, msg string) *SegmentError {
	return &SegmentError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the SegmentError type.
func (se *SegmentError) WithMessage(msg string) *SegmentError {
	se.baseError.WithMessage(msg)
	return se
}

// WithCode sets the error code while preserving the SegmentError type.
func (se *SegmentError) WithCode(code ErrorCode) *SegmentError {
	se.baseError.WithCode(code)
	return se
}

// WithOrdinal records which segment ordinal was involved in the error.
func (se *SegmentError) WithOrdinal(ordinal int64) *SegmentError {
	se.ordinal = ordinal
	return se
}

// WithOffset records the byte position where the error occurred.
func (se *SegmentError) WithOffset(offset int64) *SegmentError {
	se.offset = offset
	return se
}

// WithFileName captures which file was being processed when the error occurred.
func (se *SegmentError) WithFileName(fileName string) *SegmentError {
	se.fileName = fileName
	return se
}

// WithPath captures which path was being processed when the error occurred.
func (se *SegmentError) WithPath(path string) *SegmentError {
	se.path = path
	return se
}

// WithDetail adds contextual information while preserving the SegmentError type.
func (se *SegmentError) WithDetail(key string, value any) *SegmentError {
	se.baseError.WithDetail(key, value)
	return se
}

// Ordinal returns the segment ordinal where the error occurred.
func (se *SegmentError) Ordinal() int64 {
	return se.ordinal
}

// Offset returns the byte offset within the segment where the error happened.
func (se *SegmentError) Offset() int64 {
	return se.offset
}

// FileName returns the name of the file that was being processed.
func (se *SegmentError) FileName() string {
	return se.fileName
}

// Path returns the path of the file that was being processed.
func (se *SegmentError) Path() string {
	return se.path
}
