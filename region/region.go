package region

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/worktree/internal/logging"
	"github.com/arloliu/worktree/internal/metrics"
	"github.com/arloliu/worktree/types"
)

// Mode selects a region's concurrency discipline. It is fixed at creation.
type Mode int

const (
	// ModeReadOnly rejects all writes with types.ErrReadOnlyWrite.
	ModeReadOnly Mode = iota

	// ModeCopyOnWrite serves readers from the last published generation
	// without blocking; writers mutate a private copy published on release.
	ModeCopyOnWrite

	// ModeLockedWrite shares one buffer behind a writer-preference gate
	// with bounded write acquisition.
	ModeLockedWrite
)

// String returns the human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeCopyOnWrite:
		return "copy-on-write"
	case ModeLockedWrite:
		return "locked-write"
	default:
		return "unknown"
	}
}

// DefaultLockWait bounds locked-write acquisition when no wait is configured.
const DefaultLockWait = 1 * time.Second

// Region is a fixed-size shared-memory buffer exchanged between worker nodes.
//
// All methods are safe for concurrent use. Access follows an acquire/release
// pairing: every successful Read must be matched by ReleaseRead and every
// successful Write by ReleaseWrite, on the same goroutine that acquired.
type Region struct {
	mode     Mode
	size     int
	lockWait time.Duration
	logger   types.Logger
	metrics  types.RegionMetrics

	// published is the generation visible to new readers. In copy-on-write
	// mode it is swapped atomically on write release; in the other modes
	// it is set once at creation. Bundling data and version in one pointer
	// keeps snapshots consistent without a lock.
	published atomic.Pointer[generation]

	gate    *rwGate    // locked-write mode only
	writeMu sync.Mutex // serializes copy-on-write writers
	pending []byte     // private copy between Write and ReleaseWrite

	version   atomic.Uint64
	destroyed atomic.Bool

	reads         atomic.Uint64
	writes        atomic.Uint64
	copies        atomic.Uint64
	activeReaders atomic.Int64
	activeWriters atomic.Int64
}

// generation is one immutable published buffer and the version it was
// published at.
type generation struct {
	data    []byte
	version uint64
}

// Compile-time assertion that Region implements types.Region.
var _ types.Region = (*Region)(nil)

// Stats is a point-in-time view of a region's activity counters.
type Stats struct {
	Mode          Mode   `json:"mode"`
	Size          int    `json:"size"`
	Version       uint64 `json:"version"`
	Reads         uint64 `json:"reads"`
	Writes        uint64 `json:"writes"`
	Copies        uint64 `json:"copies"`
	ActiveReaders int64  `json:"active_readers"`
	ActiveWriters int64  `json:"active_writers"`
}

// Option configures a Region.
type Option func(*Region)

// WithLockWait bounds locked-write acquisition.
//
// Parameters:
//   - wait: Maximum time to wait for the gate (<= 0 waits indefinitely)
//
// Returns:
//   - Option: Functional option for New
func WithLockWait(wait time.Duration) Option {
	return func(r *Region) {
		r.lockWait = wait
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger types.Logger) Option {
	return func(r *Region) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector for copy, lock-wait and snapshot
// observations.
func WithMetrics(collector types.RegionMetrics) Option {
	return func(r *Region) {
		if collector != nil {
			r.metrics = collector
		}
	}
}

// WithInitialData seeds the region's first generation.
//
// The data is copied; at most Size bytes are used.
func WithInitialData(data []byte) Option {
	return func(r *Region) {
		copy(r.published.Load().data, data)
	}
}

// New creates a region of the given size operating in the given mode.
//
// Parameters:
//   - size: Buffer size in bytes (must be >= 1)
//   - mode: Concurrency mode, fixed for the region's lifetime
//   - opts: Optional configuration
//
// Returns:
//   - *Region: Initialized region with version 0
//   - error: types.ErrInvalidRegionSize or types.ErrInvalidConfig
//
// Example:
//
//	r, err := region.New(4096, region.ModeCopyOnWrite)
//	buf, err := r.Write()
//	copy(buf, payload)
//	r.ReleaseWrite() // publishes, version becomes 1
func New(size int, mode Mode, opts ...Option) (*Region, error) {
	if size < 1 {
		return nil, types.ErrInvalidRegionSize
	}
	if mode < ModeReadOnly || mode > ModeLockedWrite {
		return nil, fmt.Errorf("%w: unknown region mode %d", types.ErrInvalidConfig, mode)
	}

	r := &Region{
		mode:     mode,
		size:     size,
		lockWait: DefaultLockWait,
		logger:   logging.NewNop(),
		metrics:  metrics.NewNop(),
	}
	r.published.Store(&generation{data: alignedBytes(size)})

	if mode == ModeLockedWrite {
		r.gate = newRWGate()
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Mode returns the region's concurrency mode.
func (r *Region) Mode() Mode {
	return r.mode
}

// Size returns the region's buffer size in bytes.
func (r *Region) Size() int {
	return r.size
}

// Version returns the number of published writes.
//
// The counter starts at 0 and increments exactly once per released write.
func (r *Region) Version() uint64 {
	return r.version.Load()
}

// Read acquires the region for reading.
//
// In read-only and copy-on-write modes this never blocks; the returned
// buffer is the generation published at acquisition time and stays stable
// for the duration of the read even if writers publish newer generations.
// In locked-write mode the call waits for any active or waiting writer,
// bounded by the configured lock wait.
//
// Returns:
//   - []byte: The readable buffer; callers must not write through it
//   - error: types.ErrRegionDestroyed or types.ErrLockTimeout
func (r *Region) Read() ([]byte, error) {
	if r.destroyed.Load() {
		return nil, types.ErrRegionDestroyed
	}

	if r.mode == ModeLockedWrite {
		if err := r.gate.rlock(r.lockWait); err != nil {
			return nil, err
		}
		if r.destroyed.Load() {
			r.gate.runlock()
			return nil, types.ErrRegionDestroyed
		}
	}

	r.reads.Add(1)
	r.activeReaders.Add(1)

	return r.published.Load().data, nil
}

// ReleaseRead releases a read acquired with Read.
//
// Calling it without a matching successful Read is a programming error.
func (r *Region) ReleaseRead() {
	r.activeReaders.Add(-1)
	if r.mode == ModeLockedWrite {
		r.gate.runlock()
	}
}

// Write acquires the region for writing.
//
// In copy-on-write mode the returned buffer is a private copy of the latest
// published generation; concurrent readers are unaffected until the write is
// released. In locked-write mode the returned buffer is the shared one and
// the call excludes all readers and writers, failing with
// types.ErrLockTimeout when the gate cannot be acquired within the
// configured wait. In read-only mode the call always fails.
//
// Returns:
//   - []byte: The writable buffer
//   - error: types.ErrReadOnlyWrite, types.ErrRegionDestroyed or types.ErrLockTimeout
func (r *Region) Write() ([]byte, error) {
	if r.destroyed.Load() {
		return nil, types.ErrRegionDestroyed
	}

	switch r.mode {
	case ModeReadOnly:
		return nil, types.ErrReadOnlyWrite

	case ModeCopyOnWrite:
		r.writeMu.Lock()
		if r.destroyed.Load() {
			r.writeMu.Unlock()
			return nil, types.ErrRegionDestroyed
		}

		cp := alignedBytes(r.size)
		copy(cp, r.published.Load().data)
		r.pending = cp

		r.copies.Add(1)
		r.metrics.RecordRegionCopy(r.size)
		r.writes.Add(1)
		r.activeWriters.Add(1)

		return cp, nil

	case ModeLockedWrite:
		start := time.Now()
		err := r.gate.lock(r.lockWait)
		r.metrics.RecordLockWait(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		if r.destroyed.Load() {
			r.gate.unlock()
			return nil, types.ErrRegionDestroyed
		}

		r.writes.Add(1)
		r.activeWriters.Add(1)

		return r.published.Load().data, nil
	}

	return nil, fmt.Errorf("%w: unknown region mode %d", types.ErrInvalidConfig, r.mode)
}

// ReleaseWrite publishes a write acquired with Write and increments the
// version counter.
//
// In copy-on-write mode the private copy becomes the generation served to
// all subsequent readers. Calling ReleaseWrite without a matching successful
// Write is a programming error.
func (r *Region) ReleaseWrite() {
	switch r.mode {
	case ModeCopyOnWrite:
		pending := r.pending
		r.pending = nil
		r.published.Store(&generation{data: pending, version: r.version.Add(1)})
		r.activeWriters.Add(-1)
		r.writeMu.Unlock()

	case ModeLockedWrite:
		r.version.Add(1)
		r.activeWriters.Add(-1)
		r.gate.unlock()

	case ModeReadOnly:
		// Write never succeeds in read-only mode; nothing to release.
	}
}

// WithRead runs fn with read access, handling acquire and release.
//
// Parameters:
//   - fn: Callback receiving the readable buffer
//
// Returns:
//   - error: Acquisition error or the error returned by fn
func (r *Region) WithRead(fn func(data []byte) error) error {
	data, err := r.Read()
	if err != nil {
		return err
	}
	defer r.ReleaseRead()

	return fn(data)
}

// WithWrite runs fn with write access, handling acquire and release.
//
// The write is published even when fn returns an error; callers that need
// all-or-nothing semantics should stage into their own buffer first.
//
// Parameters:
//   - fn: Callback receiving the writable buffer
//
// Returns:
//   - error: Acquisition error or the error returned by fn
func (r *Region) WithWrite(fn func(data []byte) error) error {
	data, err := r.Write()
	if err != nil {
		return err
	}
	defer r.ReleaseWrite()

	return fn(data)
}

// Destroy marks the region destroyed. Idempotent.
//
// Subsequent Read, Write and Snapshot calls fail with
// types.ErrRegionDestroyed. Readers holding a generation acquired before
// Destroy keep a valid buffer until they release it.
func (r *Region) Destroy() {
	if r.destroyed.Swap(true) {
		return
	}

	r.logger.Debug("region destroyed",
		"mode", r.mode.String(),
		"size", r.size,
		"version", r.version.Load(),
	)
}

// Destroyed reports whether Destroy has been called.
func (r *Region) Destroyed() bool {
	return r.destroyed.Load()
}

// Validate checks the region's structural invariants.
//
// Returns:
//   - error: types.ErrRegionDestroyed, or a description of the violation
func (r *Region) Validate() error {
	if r.destroyed.Load() {
		return types.ErrRegionDestroyed
	}

	gen := r.published.Load()
	if gen == nil {
		return fmt.Errorf("region has no published generation")
	}
	if len(gen.data) != r.size {
		return fmt.Errorf("published generation is %d bytes, want %d", len(gen.data), r.size)
	}
	if w := r.activeWriters.Load(); w > 1 {
		return fmt.Errorf("%d concurrent writers active, want at most 1", w)
	}
	if rd := r.activeReaders.Load(); rd < 0 {
		return fmt.Errorf("reader count underflow: %d", rd)
	}

	return nil
}

// Stats returns a point-in-time view of the region's counters.
func (r *Region) Stats() Stats {
	return Stats{
		Mode:          r.mode,
		Size:          r.size,
		Version:       r.version.Load(),
		Reads:         r.reads.Load(),
		Writes:        r.writes.Load(),
		Copies:        r.copies.Load(),
		ActiveReaders: r.activeReaders.Load(),
		ActiveWriters: r.activeWriters.Load(),
	}
}
