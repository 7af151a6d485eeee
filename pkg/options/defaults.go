package options

import "math"

const (
	// DefaultDataDir specifies the default base directory where segment
	// files will be stored if no other directory is given.
	DefaultDataDir = "/var/lib/ignitecore/segments"

	// DefaultSyncOnWrite specifies whether segment writes are fsynced
	// before the atomic rename into place.
	DefaultSyncOnWrite = true

	// DefaultMemtablePriorityCeiling is the MAX used in the memtable
	// priority assignment MAX - k (§4.2). math.MaxInt64 guarantees no
	// realistic segment ordinal count ever collides with a memtable
	// priority.
	DefaultMemtablePriorityCeiling int64 = math.MaxInt64
)

// Holds the default configuration settings for a SegmentSet.
var defaultOptions = Options{
	DataDir:                 DefaultDataDir,
	SyncOnWrite:             DefaultSyncOnWrite,
	MemtablePriorityCeiling: DefaultMemtablePriorityCeiling,
}

// NewDefaultOptions returns a copy of the package's default options.
func NewDefaultOptions() Options {
	return defaultOptions
}
