// Package region implements the shared-memory regions worker nodes exchange
// data through.
//
// A region operates in one of three concurrency modes fixed at creation:
//
//   - ModeReadOnly: writes are rejected outright.
//   - ModeCopyOnWrite: readers never block and always see a complete published
//     generation. A writer mutates a private copy that becomes visible to new
//     readers only when the write is released.
//   - ModeLockedWrite: a single shared buffer guarded by a writer-preference
//     gate. Write acquisition is bounded by a configurable wait and fails with
//     types.ErrLockTimeout rather than blocking forever.
//
// Buffers are cache-line aligned. Every published write increments the
// region's version counter, and Snapshot captures a point-in-time copy with
// an integrity checksum.
package region
