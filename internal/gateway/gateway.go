// Package gateway is the only writer of proxy traffic to the transport.
//
// Notify is fire-and-forget. Invoke registers a PendingCall, parks the calling
// fiber until the transport delivers the matching reply and then returns the
// decoded value or a *RemoteError. There is deliberately no timeout: a host
// call that never answers stalls only the fiber waiting on it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/silkedit/silkedit-helper/internal/fiber"
	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/remote"
	"github.com/silkedit/silkedit-helper/internal/rpc"
)

//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks github.com/silkedit/silkedit-helper/internal/gateway Transport

// Transport is the outbound half of the RPC connection.
type Transport interface {
	Notify(method string, params ...any) error
	Invoke(method string, params []any, done func(any, error)) error
}

// RemoteError carries the message the host reported for a failed invoke.
type RemoteError struct {
	Method  string
	Target  remote.ID
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s on %s: %s", e.Method, e.Target, e.Message)
}

// PendingCall is one invoke awaiting its reply.
type PendingCall struct {
	ID     uint64
	Method string
	Target remote.ID

	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newPendingCall(id uint64, method string, target remote.ID) *PendingCall {
	return &PendingCall{ID: id, Method: method, Target: target, done: make(chan struct{})}
}

// resolve fills the result slot. Only the first call has an effect.
func (p *PendingCall) resolve(v any, err error) bool {
	resolved := false
	p.once.Do(func() {
		p.value, p.err = v, err
		close(p.done)
		resolved = true
	})
	return resolved
}

// Stats counts gateway traffic.
type Stats struct {
	Notifies int64 `json:"notifies"`
	Invokes  int64 `json:"invokes"`
	InFlight int   `json:"in_flight"`
}

// Gateway issues notify and invoke calls against a Transport.
type Gateway struct {
	transport Transport
	logger    *slog.Logger

	nextID   atomic.Uint64
	notifies atomic.Int64
	invokes  atomic.Int64

	mu      sync.Mutex
	pending map[uint64]*PendingCall
}

// New creates a Gateway writing to t.
func New(t Transport) *Gateway {
	return &Gateway{
		transport: t,
		logger:    log.WithComponent("gateway"),
		pending:   make(map[uint64]*PendingCall),
	}
}

func params(target remote.ID, args []any) []any {
	out := make([]any, 0, len(args)+1)
	out = append(out, target.Wire())
	return append(out, args...)
}

// Notify sends a fire-and-forget call. Transport failures are logged, not returned.
func (g *Gateway) Notify(method string, target remote.ID, args ...any) {
	g.notifies.Add(1)
	if err := g.transport.Notify(method, params(target, args)...); err != nil {
		g.logger.Warn("notify failed", "method", method, "target", target.String(), "error", err)
	}
}

// Invoke sends a request and parks the calling fiber until the reply arrives.
// Outside a fiber it blocks the calling goroutine instead.
func (g *Gateway) Invoke(ctx context.Context, method string, target remote.ID, args ...any) (any, error) {
	g.invokes.Add(1)
	pc := newPendingCall(g.nextID.Add(1), method, target)

	if _, err := fiber.Current(ctx); err != nil {
		g.logger.Debug("invoke outside a fiber blocks the caller", "method", method)
	}

	g.mu.Lock()
	g.pending[pc.ID] = pc
	g.mu.Unlock()
	defer g.forget(pc)

	err := g.transport.Invoke(method, params(target, args), func(v any, err error) {
		if !pc.resolve(v, err) {
			g.logger.Warn("duplicate reply ignored", "method", method, "call_id", pc.ID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}

	if err := fiber.Park(ctx, pc.done); err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}

	if pc.err != nil {
		var re *rpc.ResponseError
		if errors.As(pc.err, &re) {
			return nil, &RemoteError{Method: method, Target: target, Message: re.Error()}
		}
		return nil, fmt.Errorf("invoke %s: %w", method, pc.err)
	}
	return pc.value, nil
}

func (g *Gateway) forget(pc *PendingCall) {
	g.mu.Lock()
	delete(g.pending, pc.ID)
	g.mu.Unlock()
}

// Stats returns traffic counters and the number of in-flight invokes.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	inFlight := len(g.pending)
	g.mu.Unlock()
	return Stats{
		Notifies: g.notifies.Load(),
		Invokes:  g.invokes.Load(),
		InFlight: inFlight,
	}
}
