package region

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/worktree/types"
)

func TestNew(t *testing.T) {
	t.Run("rejects invalid size", func(t *testing.T) {
		_, err := New(0, ModeCopyOnWrite)
		require.ErrorIs(t, err, types.ErrInvalidRegionSize)

		_, err = New(-1, ModeCopyOnWrite)
		require.ErrorIs(t, err, types.ErrInvalidRegionSize)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		_, err := New(64, Mode(99))
		require.ErrorIs(t, err, types.ErrInvalidConfig)
	})

	t.Run("starts at version zero", func(t *testing.T) {
		r, err := New(64, ModeLockedWrite)
		require.NoError(t, err)
		require.Equal(t, uint64(0), r.Version())
		require.Equal(t, 64, r.Size())
		require.Equal(t, ModeLockedWrite, r.Mode())
	})

	t.Run("buffers are cache line aligned", func(t *testing.T) {
		for i := 0; i < 32; i++ {
			buf := alignedBytes(100)
			require.Len(t, buf, 100)
			require.Zero(t, sliceAddr(buf)%CacheLineSize)
		}
	})

	t.Run("initial data is copied in", func(t *testing.T) {
		r, err := New(8, ModeReadOnly, WithInitialData([]byte("abcdefgh")))
		require.NoError(t, err)

		data, err := r.Read()
		require.NoError(t, err)
		defer r.ReleaseRead()
		require.Equal(t, []byte("abcdefgh"), data)
	})
}

func TestReadOnlyMode(t *testing.T) {
	r, err := New(32, ModeReadOnly)
	require.NoError(t, err)

	t.Run("write always fails", func(t *testing.T) {
		_, err := r.Write()
		require.ErrorIs(t, err, types.ErrReadOnlyWrite)
		require.Equal(t, uint64(0), r.Version())
	})

	t.Run("reads never block", func(t *testing.T) {
		a, err := r.Read()
		require.NoError(t, err)
		b, err := r.Read()
		require.NoError(t, err)
		require.Equal(t, sliceAddr(a), sliceAddr(b))
		r.ReleaseRead()
		r.ReleaseRead()
	})
}

func TestCopyOnWriteMode(t *testing.T) {
	t.Run("reader keeps its generation across a publish", func(t *testing.T) {
		r, err := New(4, ModeCopyOnWrite, WithInitialData([]byte{1, 1, 1, 1}))
		require.NoError(t, err)

		old, err := r.Read()
		require.NoError(t, err)

		buf, err := r.Write()
		require.NoError(t, err)
		require.NotEqual(t, sliceAddr(old), sliceAddr(buf))
		copy(buf, []byte{2, 2, 2, 2})
		r.ReleaseWrite()

		// The in-flight reader still sees the old generation.
		require.Equal(t, []byte{1, 1, 1, 1}, old)
		r.ReleaseRead()

		// New readers see the published write.
		fresh, err := r.Read()
		require.NoError(t, err)
		defer r.ReleaseRead()
		require.Equal(t, []byte{2, 2, 2, 2}, fresh)
		require.Equal(t, uint64(1), r.Version())
	})

	t.Run("unreleased write stays invisible", func(t *testing.T) {
		r, err := New(4, ModeCopyOnWrite)
		require.NoError(t, err)

		buf, err := r.Write()
		require.NoError(t, err)
		copy(buf, []byte{9, 9, 9, 9})

		data, err := r.Read()
		require.NoError(t, err)
		require.Equal(t, []byte{0, 0, 0, 0}, data)
		require.Equal(t, uint64(0), r.Version())
		r.ReleaseRead()

		r.ReleaseWrite()
		require.Equal(t, uint64(1), r.Version())
	})

	t.Run("version is monotonic under concurrent writers", func(t *testing.T) {
		r, err := New(8, ModeCopyOnWrite)
		require.NoError(t, err)

		const writers = 8
		const rounds = 25

		var wg sync.WaitGroup
		wg.Add(writers)
		for i := 0; i < writers; i++ {
			go func() {
				defer wg.Done()
				for j := 0; j < rounds; j++ {
					buf, err := r.Write()
					if err != nil {
						return
					}
					buf[0]++
					r.ReleaseWrite()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, uint64(writers*rounds), r.Version())
		require.Equal(t, uint64(writers*rounds), r.Stats().Copies)
	})

	t.Run("readers never observe a torn generation", func(t *testing.T) {
		r, err := New(64, ModeCopyOnWrite)
		require.NoError(t, err)

		stop := make(chan struct{})
		var torn atomic.Bool

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					data, err := r.Read()
					if err != nil {
						return
					}
					first := data[0]
					for _, b := range data {
						if b != first {
							torn.Store(true)
						}
					}
					r.ReleaseRead()
				}
			}()
		}

		for v := byte(1); v <= 50; v++ {
			buf, err := r.Write()
			require.NoError(t, err)
			for i := range buf {
				buf[i] = v
			}
			r.ReleaseWrite()
		}

		close(stop)
		wg.Wait()
		require.False(t, torn.Load(), "reader observed a partially written generation")
	})
}

func TestLockedWriteMode(t *testing.T) {
	t.Run("writer excludes all other access", func(t *testing.T) {
		r, err := New(32, ModeLockedWrite)
		require.NoError(t, err)

		var active atomic.Int64
		var maxActive atomic.Int64

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 30; j++ {
					buf, err := r.Write()
					if err != nil {
						return
					}
					cur := active.Add(1)
					for {
						prev := maxActive.Load()
						if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
							break
						}
					}
					buf[0]++
					active.Add(-1)
					r.ReleaseWrite()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int64(1), maxActive.Load())
		require.Equal(t, uint64(180), r.Version())
	})

	t.Run("write acquisition times out", func(t *testing.T) {
		r, err := New(32, ModeLockedWrite, WithLockWait(20*time.Millisecond))
		require.NoError(t, err)

		_, err = r.Write()
		require.NoError(t, err)

		start := time.Now()
		_, err = r.Write()
		require.ErrorIs(t, err, types.ErrLockTimeout)
		require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

		r.ReleaseWrite()

		// The gate recovers after the timeout.
		_, err = r.Write()
		require.NoError(t, err)
		r.ReleaseWrite()
	})

	t.Run("waiting writer blocks new readers", func(t *testing.T) {
		r, err := New(32, ModeLockedWrite, WithLockWait(30*time.Millisecond))
		require.NoError(t, err)

		_, err = r.Read()
		require.NoError(t, err)

		writerErr := make(chan error, 1)
		go func() {
			_, err := r.Write()
			if err == nil {
				r.ReleaseWrite()
			}
			writerErr <- err
		}()

		// Give the writer time to start waiting, then try to read past it.
		time.Sleep(5 * time.Millisecond)
		_, err = r.Read()
		require.ErrorIs(t, err, types.ErrLockTimeout)

		r.ReleaseRead()
		require.NoError(t, <-writerErr)
	})
}

func TestScopedHelpers(t *testing.T) {
	r, err := New(16, ModeLockedWrite)
	require.NoError(t, err)

	require.NoError(t, r.WithWrite(func(data []byte) error {
		data[0] = 42
		return nil
	}))

	require.NoError(t, r.WithRead(func(data []byte) error {
		require.Equal(t, byte(42), data[0])
		return nil
	}))

	require.Equal(t, uint64(1), r.Version())
	require.Equal(t, int64(0), r.Stats().ActiveReaders)
	require.Equal(t, int64(0), r.Stats().ActiveWriters)
}

func TestDestroy(t *testing.T) {
	t.Run("operations fail after destroy", func(t *testing.T) {
		r, err := New(16, ModeCopyOnWrite)
		require.NoError(t, err)

		r.Destroy()
		require.True(t, r.Destroyed())

		_, err = r.Read()
		require.ErrorIs(t, err, types.ErrRegionDestroyed)
		_, err = r.Write()
		require.ErrorIs(t, err, types.ErrRegionDestroyed)
		_, err = r.Snapshot()
		require.ErrorIs(t, err, types.ErrRegionDestroyed)
		require.ErrorIs(t, r.Validate(), types.ErrRegionDestroyed)
	})

	t.Run("idempotent", func(t *testing.T) {
		r, err := New(16, ModeReadOnly)
		require.NoError(t, err)
		r.Destroy()
		r.Destroy()
		require.True(t, r.Destroyed())
	})

	t.Run("in-flight reader keeps its buffer", func(t *testing.T) {
		r, err := New(4, ModeCopyOnWrite, WithInitialData([]byte{7, 7, 7, 7}))
		require.NoError(t, err)

		data, err := r.Read()
		require.NoError(t, err)
		r.Destroy()
		require.Equal(t, []byte{7, 7, 7, 7}, data)
		r.ReleaseRead()
	})
}

func TestValidate(t *testing.T) {
	r, err := New(16, ModeLockedWrite)
	require.NoError(t, err)
	require.NoError(t, r.Validate())
}

func TestSnapshot(t *testing.T) {
	t.Run("captures version and verifies", func(t *testing.T) {
		r, err := New(8, ModeCopyOnWrite)
		require.NoError(t, err)

		require.NoError(t, r.WithWrite(func(data []byte) error {
			copy(data, []byte{1, 2, 3, 4, 5, 6, 7, 8})
			return nil
		}))

		snap, err := r.Snapshot()
		require.NoError(t, err)
		require.Equal(t, uint64(1), snap.Version)
		require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, snap.Data)
		require.True(t, snap.Verify())
		require.False(t, snap.TakenAt.IsZero())
	})

	t.Run("copy is private", func(t *testing.T) {
		r, err := New(4, ModeLockedWrite)
		require.NoError(t, err)

		snap, err := r.Snapshot()
		require.NoError(t, err)
		snap.Data[0] = 99
		require.False(t, snap.Verify())

		data, err := r.Read()
		require.NoError(t, err)
		defer r.ReleaseRead()
		require.Equal(t, byte(0), data[0])
	})
}

func TestStats(t *testing.T) {
	r, err := New(8, ModeCopyOnWrite)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.WithWrite(func(data []byte) error { return nil }))
	}
	require.NoError(t, r.WithRead(func(data []byte) error { return nil }))

	stats := r.Stats()
	require.Equal(t, uint64(3), stats.Writes)
	require.Equal(t, uint64(3), stats.Copies)
	require.Equal(t, uint64(1), stats.Reads)
	require.Equal(t, uint64(3), stats.Version)
}

func sliceAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
