package errors

// SegmentSetError provides specialized error handling for SegmentSet-level
// operations: load/recovery, flush, and compaction. It extends baseError
// with the context needed to diagnose which phase of the crash-recovery
// protocol or flush/compact lifecycle failed.
type SegmentSetError struct {
	*baseError

	// dir is the storage directory the SegmentSet was operating against.
	dir string

	// phase names the operation in progress when the error occurred, e.g.
	// "load", "flush", "compact", "finishCompact".
	phase string

	// segmentCount captures how many segments were present at the time of
	// the error, useful for diagnosing recovery and compaction issues.
	segmentCount int
}

// NewSegmentSetError creates a new SegmentSet-specific error with the
// provided context.
func NewSegmentSetError(err error, code ErrorCode, msg string) *SegmentSetError {
	return &SegmentSetError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the SegmentSetError type.
func (se *SegmentSetError) WithMessage(msg string) *SegmentSetError {
	se.baseError.WithMessage(msg)
	return se
}

// WithCode sets the error code while preserving the SegmentSetError type.
func (se *SegmentSetError) WithCode(code ErrorCode) *SegmentSetError {
	se.baseError.WithCode(code)
	return se
}

// WithDetail adds contextual information while maintaining the SegmentSetError type.
func (se *SegmentSetError) WithDetail(key string, value any) *SegmentSetError {
	se.baseError.WithDetail(key, value)
	return se
}

// WithDir records which storage directory was involved in the error.
func (se *SegmentSetError) WithDir(dir string) *SegmentSetError {
	se.dir = dir
	return se
}

// WithPhase records which operation phase was in progress.
func (se *SegmentSetError) WithPhase(phase string) *SegmentSetError {
	se.phase = phase
	return se
}

// WithSegmentCount records how many segments were present at the time of the error.
func (se *SegmentSetError) WithSegmentCount(count int) *SegmentSetError {
	se.segmentCount = count
	return se
}

// Dir returns the storage directory involved in the error.
func (se *SegmentSetError) Dir() string {
	return se.dir
}

// Phase returns the operation phase that was in progress.
func (se *SegmentSetError) Phase() string {
	return se.phase
}

// SegmentCount returns how many segments were present when the error occurred.
func (se *SegmentSetError) SegmentCount() int {
	return se.segmentCount
}
