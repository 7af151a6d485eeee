// Package options provides data structures and functions for configuring
// a segment store. It defines the small set of parameters that control
// where segment files live, whether writes are fsynced, and how fresh
// in-memory memtables are prioritized against on-disk segments during a
// merged scan.
package options

import (
	"strings"

	"iamnilotpal.dev/ignitecore/pkg/errors"
)

// Options defines the configuration parameters for a SegmentSet.
type Options struct {
	// DataDir is the directory segment files (N.idx, N.dat, and the
	// compaction sentinels) are read from and written to.
	//
	// Default: "/var/lib/ignitecore/segments"
	DataDir string `json:"dataDir"`

	// SyncOnWrite controls whether newly written segment files are
	// fsynced before the atomic rename into place. Disabling this trades
	// durability on crash for write throughput.
	//
	// Default: true
	SyncOnWrite bool `json:"syncOnWrite"`

	// MemtablePriorityCeiling is the MAX used to assign priorities to
	// in-memory memtables passed into a range scan (§4.2): the k-th
	// memtable, counting from freshest, is assigned priority
	// MemtablePriorityCeiling - k, so that any memtable outranks any
	// on-disk segment ordinal on a tied key.
	//
	// Default: math.MaxInt64
	MemtablePriorityCeiling int64 `json:"memtablePriorityCeiling"`
}

// OptionFunc is a function type that modifies a segment store's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies the full set of default configuration values.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		o.DataDir = opts.DataDir
		o.SyncOnWrite = opts.SyncOnWrite
		o.MemtablePriorityCeiling = opts.MemtablePriorityCeiling
	}
}

// WithDataDir sets the directory segment files are stored under.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithSyncOnWrite controls whether segment writes are fsynced before rename.
func WithSyncOnWrite(sync bool) OptionFunc {
	return func(o *Options) {
		o.SyncOnWrite = sync
	}
}

// WithMemtablePriorityCeiling overrides the MAX used to assign memtable
// priorities above every possible segment ordinal. Values at or below zero
// are ignored since they could collide with real segment ordinals.
func WithMemtablePriorityCeiling(ceiling int64) OptionFunc {
	return func(o *Options) {
		if ceiling > 0 {
			o.MemtablePriorityCeiling = ceiling
		}
	}
}

// Validate reports whether o is usable: DataDir must be non-empty and
// MemtablePriorityCeiling must be positive. A zero or negative ceiling
// would sort at or below real segment ordinals in a merged scan instead of
// above every one of them, defeating §4.2's "memtables always outrank
// on-disk segments" requirement.
//
// WithDataDir and WithMemtablePriorityCeiling already ignore an
// out-of-range argument rather than letting one bad override corrupt an
// otherwise-valid Options. Any other OptionFunc can still set a field
// directly, so Apply runs Validate on its result; Validate also checks an
// Options value assembled some other way — decoded from a config file,
// built directly as a struct literal — that never went through Apply.
func (o Options) Validate() error {
	if strings.TrimSpace(o.DataDir) == "" {
		return errors.NewRequiredFieldError("dataDir").WithProvided(o.DataDir)
	}
	if o.MemtablePriorityCeiling <= 0 {
		return errors.NewFieldRangeError("memtablePriorityCeiling", o.MemtablePriorityCeiling, 1, nil)
	}
	return nil
}

// Apply builds an Options value from defaults overridden by the given
// funcs, validating the result before returning it.
func Apply(opts ...OptionFunc) (Options, error) {
	o := NewDefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}
