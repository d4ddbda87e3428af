// Package fiber runs units of plugin work one at a time on a shared turn.
//
// Each fiber is backed by a goroutine, but only the fiber holding the
// scheduler's turn executes plugin code. A fiber gives the turn up while it is
// parked on an RPC reply, so other fibers and inbound dispatch keep running.
package fiber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/silkedit/silkedit-helper/internal/log"
)

// ErrNotInFiber is returned by Current when ctx carries no fiber.
var ErrNotInFiber = errors.New("fiber: not running inside a fiber")

// State is the lifecycle state of a fiber.
type State string

const (
	StateWaiting State = "waiting" // spawned, waiting for the turn
	StateRunning State = "running"
	StateParked  State = "parked"
)

// Info is a point-in-time view of a live fiber.
type Info struct {
	ID      uint64    `json:"id"`
	Name    string    `json:"name"`
	State   State     `json:"state"`
	Parks   int       `json:"parks"`
	Started time.Time `json:"started"`
}

// Fiber is one scheduled unit of work.
type Fiber struct {
	id      uint64
	name    string
	started time.Time
	sched   *Scheduler
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	parks int
}

// ID returns the fiber's process-unique id.
func (f *Fiber) ID() uint64 { return f.id }

// Name returns the label given at spawn time.
func (f *Fiber) Name() string { return f.name }

func (f *Fiber) setState(s State) {
	f.mu.Lock()
	f.state = s
	if s == StateParked {
		f.parks++
	}
	f.mu.Unlock()
}

func (f *Fiber) info() Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Info{ID: f.id, Name: f.name, State: f.state, Parks: f.parks, Started: f.started}
}

type ctxKey struct{}

// FromContext returns the fiber carried by ctx, or nil.
func FromContext(ctx context.Context) *Fiber {
	f, _ := ctx.Value(ctxKey{}).(*Fiber)
	return f
}

// Current is FromContext with an error for callers that require a fiber.
func Current(ctx context.Context) (*Fiber, error) {
	if f := FromContext(ctx); f != nil {
		return f, nil
	}
	return nil, ErrNotInFiber
}

// Scheduler owns the turn and the set of live fibers.
type Scheduler struct {
	turn   sync.Mutex
	nextID atomic.Uint64
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	fibers map[uint64]*Fiber
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		logger: log.WithComponent("fiber"),
		fibers: make(map[uint64]*Fiber),
	}
}

// Spawn starts task in a new fiber and returns immediately.
// An error returned by task, or a panic inside it, is logged and handed to
// fallback (if non-nil) once the fiber has given up the turn.
func (s *Scheduler) Spawn(ctx context.Context, name string, task func(ctx context.Context) error, fallback func(error)) *Fiber {
	f := &Fiber{
		id:      s.nextID.Add(1),
		name:    name,
		started: time.Now(),
		sched:   s,
		state:   StateWaiting,
	}
	f.logger = log.WithFiber(f.id, name)

	s.mu.Lock()
	s.fibers[f.id] = f
	s.mu.Unlock()

	fctx := context.WithValue(ctx, ctxKey{}, f)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(f)

		s.turn.Lock()
		f.setState(StateRunning)
		err := run(fctx, task)
		s.turn.Unlock()

		if err != nil {
			f.logger.Error("fiber failed", "error", err)
			if fallback != nil {
				fallback(err)
			}
			return
		}
		f.logger.Debug("fiber finished", "duration", time.Since(f.started))
	}()
	return f
}

// run calls task, converting a panic into an error.
func run(ctx context.Context, task func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return task(ctx)
}

func (s *Scheduler) forget(f *Fiber) {
	s.mu.Lock()
	delete(s.fibers, f.id)
	s.mu.Unlock()
}

// Park suspends the calling fiber until done is closed or ctx is cancelled.
// The turn is released while parked and reacquired before Park returns.
// Called outside a fiber, Park simply blocks the calling goroutine.
// Park must be called from the goroutine running the fiber's task.
func Park(ctx context.Context, done <-chan struct{}) error {
	f := FromContext(ctx)
	if f == nil {
		return wait(ctx, done)
	}

	f.setState(StateParked)
	f.sched.turn.Unlock()
	err := wait(ctx, done)
	f.sched.turn.Lock()
	f.setState(StateRunning)
	return err
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Live returns the number of fibers that have not finished.
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fibers)
}

// Snapshot lists live fibers ordered by id.
func (s *Scheduler) Snapshot() []Info {
	s.mu.Lock()
	out := make([]Info, 0, len(s.fibers))
	for _, f := range s.fibers {
		out = append(out, f.info())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Wait blocks until every spawned fiber has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
