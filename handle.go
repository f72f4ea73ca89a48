package worktree

import (
	"context"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/worktree/types"
)

// Handle is a registered submission endpoint into a running scheduler.
//
// Handles give producers an identity the scheduler can revoke as a unit:
// closing a handle (or stopping the scheduler) invalidates all further
// submissions through it without affecting other producers. A Handle is
// safe for concurrent use.
type Handle struct {
	id    uuid.UUID
	sched *Scheduler
}

// handleRegistry tracks live handles by id.
type handleRegistry struct {
	handles *xsync.Map[uuid.UUID, *Handle]
}

func newHandleRegistry() *handleRegistry {
	return &handleRegistry{handles: xsync.NewMap[uuid.UUID, *Handle]()}
}

func (r *handleRegistry) register(h *Handle) {
	r.handles.Store(h.id, h)
}

func (r *handleRegistry) release(id uuid.UUID) bool {
	_, ok := r.handles.LoadAndDelete(id)
	return ok
}

func (r *handleRegistry) live(id uuid.UUID) bool {
	_, ok := r.handles.Load(id)
	return ok
}

func (r *handleRegistry) closeAll() {
	r.handles.Range(func(id uuid.UUID, _ *Handle) bool {
		r.handles.Delete(id)
		return true
	})
}

// Acquire registers a new submission handle.
//
// Returns:
//   - *Handle: Live handle bound to this scheduler
//   - error: ErrNotStarted unless the scheduler is running
//
// Example:
//
//	h, err := sched.Acquire()
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//	if err := h.Submit(ctx, keys...); err != nil {
//	    return err
//	}
func (s *Scheduler) Acquire() (*Handle, error) {
	if s.State() != types.StateRunning {
		return nil, types.ErrNotStarted
	}

	h := &Handle{id: uuid.New(), sched: s}
	s.handles.register(h)

	s.opts.logger.Debug("handle acquired", "handle", h.id.String())

	return h, nil
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Submit routes keys into the scheduler through this handle.
//
// Parameters:
//   - ctx: Context bounding the enqueue
//   - keys: Partition keys to process
//
// Returns:
//   - error: ErrUnknownHandle after Close or scheduler stop, otherwise the
//     scheduler's Submit error
func (h *Handle) Submit(ctx context.Context, keys ...types.PartitionKey) error {
	if !h.sched.handles.live(h.id) {
		return types.ErrUnknownHandle
	}

	return h.sched.Submit(ctx, keys...)
}

// Close releases the handle. Idempotent; submissions after Close fail with
// ErrUnknownHandle.
func (h *Handle) Close() {
	if h.sched.handles.release(h.id) {
		h.sched.opts.logger.Debug("handle released", "handle", h.id.String())
	}
}
