package fiber

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silkedit/silkedit-helper/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

func TestSpawnRunsTask(t *testing.T) {
	s := NewScheduler()
	var ran atomic.Bool
	var inFiber atomic.Bool

	s.Spawn(context.Background(), "task", func(ctx context.Context) error {
		ran.Store(true)
		_, err := Current(ctx)
		inFiber.Store(err == nil)
		return nil
	}, func(error) { t.Error("fallback must not run on success") })

	s.Wait()
	assert.True(t, ran.Load())
	assert.True(t, inFiber.Load())
	assert.Equal(t, 0, s.Live())
}

func TestFailuresReachFallback(t *testing.T) {
	tests := []struct {
		name    string
		task    func(context.Context) error
		checkFn func(t *testing.T, err error)
	}{
		{
			name: "returned error",
			task: func(context.Context) error { return errors.New("boom") },
			checkFn: func(t *testing.T, err error) {
				assert.EqualError(t, err, "boom")
			},
		},
		{
			name: "panic",
			task: func(context.Context) error { panic("kaboom") },
			checkFn: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "kaboom")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler()
			got := make(chan error, 1)
			s.Spawn(context.Background(), tt.name, tt.task, func(err error) { got <- err })
			s.Wait()
			select {
			case err := <-got:
				tt.checkFn(t, err)
			default:
				t.Fatal("fallback not called")
			}
		})
	}
}

func TestPanicReleasesTurn(t *testing.T) {
	s := NewScheduler()
	s.Spawn(context.Background(), "bad", func(context.Context) error { panic("x") }, nil)
	s.Wait()

	done := make(chan struct{})
	s.Spawn(context.Background(), "next", func(context.Context) error {
		close(done)
		return nil
	}, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("turn was not released after panic")
	}
}

func TestOnlyOneFiberRunsAtATime(t *testing.T) {
	s := NewScheduler()
	var running, maxRunning atomic.Int32

	for i := 0; i < 10; i++ {
		s.Spawn(context.Background(), "worker", func(context.Context) error {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			return nil
		}, nil)
	}
	s.Wait()
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestParkedFiberDoesNotBlockOthers(t *testing.T) {
	s := NewScheduler()
	release := make(chan struct{})
	var order []string
	var mu sync.Mutex
	record := func(step string) {
		mu.Lock()
		order = append(order, step)
		mu.Unlock()
	}

	s.Spawn(context.Background(), "dialog", func(ctx context.Context) error {
		record("dialog:start")
		if err := Park(ctx, release); err != nil {
			return err
		}
		record("dialog:resumed")
		return nil
	}, nil)

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return len(snap) == 1 && snap[0].State == StateParked
	}, 2*time.Second, time.Millisecond)

	other := make(chan struct{})
	s.Spawn(context.Background(), "key", func(context.Context) error {
		record("key")
		close(other)
		return nil
	}, nil)

	select {
	case <-other:
	case <-time.After(2 * time.Second):
		t.Fatal("parked fiber blocked another fiber")
	}

	close(release)
	s.Wait()
	assert.Equal(t, []string{"dialog:start", "key", "dialog:resumed"}, order)
}

func TestParkIsReentrant(t *testing.T) {
	s := NewScheduler()
	signals := []chan struct{}{make(chan struct{}), make(chan struct{}), make(chan struct{})}
	var resumed atomic.Int32

	s.Spawn(context.Background(), "sequential", func(ctx context.Context) error {
		for _, ch := range signals {
			if err := Park(ctx, ch); err != nil {
				return err
			}
			resumed.Add(1)
		}
		return nil
	}, nil)

	for i, ch := range signals {
		require.Eventually(t, func() bool { return resumed.Load() == int32(i) }, 2*time.Second, time.Millisecond)
		close(ch)
	}
	s.Wait()
	assert.Equal(t, int32(3), resumed.Load())
}

func TestParkOutsideFiberBlocks(t *testing.T) {
	done := make(chan struct{})
	close(done)
	assert.NoError(t, Park(context.Background(), done))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Park(ctx, make(chan struct{})), context.Canceled)

	_, err := Current(context.Background())
	assert.ErrorIs(t, err, ErrNotInFiber)
}

func TestParkCancelledReacquiresTurn(t *testing.T) {
	s := NewScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan error, 1)

	s.Spawn(ctx, "cancelled", func(ctx context.Context) error {
		err := Park(ctx, make(chan struct{}))
		got <- err
		return nil
	}, nil)
	cancel()
	s.Wait()

	assert.ErrorIs(t, <-got, context.Canceled)
	assert.Equal(t, 0, s.Live())
}

func TestSnapshotOrdersByID(t *testing.T) {
	s := NewScheduler()
	block := make(chan struct{})
	for _, name := range []string{"a", "b", "c"} {
		s.Spawn(context.Background(), name, func(ctx context.Context) error {
			return Park(ctx, block)
		}, nil)
	}

	require.Eventually(t, func() bool { return s.Live() == 3 }, 2*time.Second, time.Millisecond)
	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Less(t, snap[0].ID, snap[1].ID)
	assert.Less(t, snap[1].ID, snap[2].ID)

	close(block)
	s.Wait()
}
