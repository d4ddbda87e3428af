// Package proxy builds handles for host-owned objects.
//
// A handle forwards any method name through one generic call path. Whether a
// name is a notify or an invoke is fixed by the handle's Type when the type is
// declared, never by the call site.
package proxy

import (
	"context"
	"sort"

	"github.com/silkedit/silkedit-helper/internal/remote"
)

// Caller is the gateway surface a handle forwards to.
type Caller interface {
	Notify(method string, target remote.ID, args ...any)
	Invoke(ctx context.Context, method string, target remote.ID, args ...any) (any, error)
}

// Type describes a kind of remote object and its notify-only methods.
type Type struct {
	name   string
	notify map[string]struct{}
}

// NewType declares a handle type. The notify set cannot change afterwards.
func NewType(name string, notify ...string) *Type {
	set := make(map[string]struct{}, len(notify))
	for _, m := range notify {
		set[m] = struct{}{}
	}
	return &Type{name: name, notify: set}
}

// Name returns the type name.
func (t *Type) Name() string { return t.name }

// IsNotify reports whether method is fire-and-forget for this type.
func (t *Type) IsNotify(method string) bool {
	_, ok := t.notify[method]
	return ok
}

// NotifyMethods returns the notify set in sorted order.
func (t *Type) NotifyMethods() []string {
	out := make([]string, 0, len(t.notify))
	for m := range t.notify {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Func is a resolved remote method. Notify methods always return (nil, nil).
type Func func(ctx context.Context, args ...any) (any, error)

// Handle is the local stand-in for one remote object.
type Handle struct {
	id     remote.ID
	typ    *Type
	caller Caller
}

// New creates a handle. Callers normally go through the object store instead.
func New(id remote.ID, typ *Type, caller Caller) *Handle {
	return &Handle{id: id, typ: typ, caller: caller}
}

// ID returns the remote id.
func (h *Handle) ID() remote.ID { return h.id }

// Type returns the declared type.
func (h *Handle) Type() *Type { return h.typ }

// Method resolves name into a callable.
func (h *Handle) Method(name string) Func {
	if h.typ.IsNotify(name) {
		return func(_ context.Context, args ...any) (any, error) {
			h.caller.Notify(name, h.id, args...)
			return nil, nil
		}
	}
	return func(ctx context.Context, args ...any) (any, error) {
		return h.caller.Invoke(ctx, name, h.id, args...)
	}
}

// Call is shorthand for h.Method(name)(ctx, args...).
func (h *Handle) Call(ctx context.Context, name string, args ...any) (any, error) {
	return h.Method(name)(ctx, args...)
}

func (h *Handle) String() string {
	return h.typ.name + h.id.String()
}
