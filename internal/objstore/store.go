// Package objstore keeps at most one live local object per remote id.
package objstore

import (
	"log/slog"
	"sync"

	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/proxy"
	"github.com/silkedit/silkedit-helper/internal/remote"
)

// Object is anything built around a proxy handle.
type Object interface {
	Handle() *proxy.Handle
}

// Kind tells the store how to build objects of one handle type.
type Kind struct {
	Type   *proxy.Type
	IDKind remote.Kind
	// Wrap builds the typed object around a fresh handle. Nil stores the bare handle.
	Wrap func(*proxy.Handle) Object
}

// bare lets a *proxy.Handle be stored when a Kind has no Wrap.
type bare struct{ h *proxy.Handle }

func (b bare) Handle() *proxy.Handle { return b.h }

// Store caches objects by remote id.
type Store struct {
	caller proxy.Caller
	logger *slog.Logger

	mu      sync.Mutex
	objects map[remote.ID]Object
}

// New creates an empty store whose handles forward to caller.
func New(caller proxy.Caller) *Store {
	return &Store{
		caller:  caller,
		logger:  log.WithComponent("objstore"),
		objects: make(map[remote.ID]Object),
	}
}

// GetOrCreate returns the cached object for raw, building it on first use.
// It returns (nil, false) when raw is not a valid id of the kind's variant.
func (s *Store) GetOrCreate(raw any, kind Kind) (Object, bool) {
	id := remote.Parse(raw, kind.IDKind)
	if !id.Valid() {
		return nil, false
	}
	return s.Get(id, kind), true
}

// Get returns the cached object for a parsed id, building it on first use.
func (s *Store) Get(id remote.ID, kind Kind) Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj, ok := s.objects[id]; ok {
		if obj.Handle().Type() == kind.Type {
			return obj
		}
		s.logger.Warn("replacing cached object of another type",
			"id", id.String(),
			"cached_type", obj.Handle().Type().Name(),
			"type", kind.Type.Name())
	}

	h := proxy.New(id, kind.Type, s.caller)
	var obj Object = bare{h}
	if kind.Wrap != nil {
		obj = kind.Wrap(h)
	}
	s.objects[id] = obj
	return obj
}

// Release drops a transient object. Singleton ids are never released.
func (s *Store) Release(id remote.ID) bool {
	if id.Kind() == remote.KindSingleton {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return false
	}
	delete(s.objects, id)
	return true
}

// Len returns the number of cached objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
