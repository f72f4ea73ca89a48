package hierarchy

import (
	"context"

	"github.com/arloliu/worktree/types"
)

// workQueue is a bounded FIFO of partition keys.
//
// The channel is never closed; shutdown is signaled out of band so that
// concurrent pushers can never panic.
type workQueue struct {
	ch chan types.PartitionKey
}

func newWorkQueue(capacity int) *workQueue {
	return &workQueue{ch: make(chan types.PartitionKey, capacity)}
}

// push enqueues a key, blocking while the queue is full.
func (q *workQueue) push(ctx context.Context, key types.PartitionKey) error {
	select {
	case q.ch <- key:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryPush enqueues a key without blocking.
func (q *workQueue) tryPush(key types.PartitionKey) bool {
	select {
	case q.ch <- key:
		return true
	default:
		return false
	}
}

// tryPop dequeues a key without blocking.
func (q *workQueue) tryPop() (types.PartitionKey, bool) {
	select {
	case key := <-q.ch:
		return key, true
	default:
		return 0, false
	}
}

// len returns the current queue depth.
func (q *workQueue) len() int {
	return len(q.ch)
}

// drain removes and returns everything currently queued.
func (q *workQueue) drain() []types.PartitionKey {
	var keys []types.PartitionKey
	for {
		key, ok := q.tryPop()
		if !ok {
			return keys
		}
		keys = append(keys, key)
	}
}
