package region

import (
	"sync"
	"time"

	"github.com/arloliu/worktree/types"
)

// rwGate is a reader/writer gate with writer preference and bounded
// write acquisition.
//
// sync.RWMutex cannot time out, so the gate tracks state under a plain
// mutex and parks waiters on a broadcast channel that is swapped on every
// release. Writer preference: once a writer is waiting, new readers queue
// behind it so a steady read stream cannot starve writes.
type rwGate struct {
	mu             sync.Mutex
	readers        int
	writerActive   bool
	writersWaiting int
	turn           chan struct{}
}

func newRWGate() *rwGate {
	return &rwGate{turn: make(chan struct{})}
}

// wakeAll releases every parked waiter. Callers must hold g.mu.
func (g *rwGate) wakeAll() {
	close(g.turn)
	g.turn = make(chan struct{})
}

// rlock acquires the gate for reading, waiting at most wait when a writer
// holds or awaits the gate. A non-positive wait blocks indefinitely.
func (g *rwGate) rlock(wait time.Duration) error {
	var deadline time.Time
	if wait > 0 {
		deadline = time.Now().Add(wait)
	}

	g.mu.Lock()
	for g.writerActive || g.writersWaiting > 0 {
		if err := g.park(deadline); err != nil {
			g.mu.Unlock()
			return err
		}
	}
	g.readers++
	g.mu.Unlock()

	return nil
}

func (g *rwGate) runlock() {
	g.mu.Lock()
	g.readers--
	if g.readers == 0 {
		g.wakeAll()
	}
	g.mu.Unlock()
}

// lock acquires the gate exclusively, waiting at most wait for readers and
// the current writer to drain. A non-positive wait blocks indefinitely.
func (g *rwGate) lock(wait time.Duration) error {
	var deadline time.Time
	if wait > 0 {
		deadline = time.Now().Add(wait)
	}

	g.mu.Lock()
	g.writersWaiting++
	for g.writerActive || g.readers > 0 {
		if err := g.park(deadline); err != nil {
			g.writersWaiting--
			// A timed-out writer may have been the only thing holding
			// readers back.
			g.wakeAll()
			g.mu.Unlock()
			return err
		}
	}
	g.writersWaiting--
	g.writerActive = true
	g.mu.Unlock()

	return nil
}

func (g *rwGate) unlock() {
	g.mu.Lock()
	g.writerActive = false
	g.wakeAll()
	g.mu.Unlock()
}

// park blocks until the gate state changes or the deadline passes.
// Callers must hold g.mu; it is reacquired before returning.
func (g *rwGate) park(deadline time.Time) error {
	turn := g.turn
	g.mu.Unlock()

	if deadline.IsZero() {
		<-turn
		g.mu.Lock()
		return nil
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		g.mu.Lock()
		return types.ErrLockTimeout
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-turn:
		g.mu.Lock()
		return nil
	case <-timer.C:
		g.mu.Lock()
		return types.ErrLockTimeout
	}
}
