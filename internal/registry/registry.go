// Package registry holds the commands, conditions and event filters that
// packages register. All tables are safe for concurrent use; a handler that
// was looked up before it was removed still runs to completion.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/silkedit/silkedit-helper/internal/log"
)

// CommandFunc runs a command. args is never nil.
type CommandFunc func(ctx context.Context, args map[string]any) error

// ConditionFunc answers whether a condition holds for operator and value.
type ConditionFunc func(ctx context.Context, operator, value string) (bool, error)

// EventFilterFunc returns true when it handled the event.
type EventFilterFunc func(ctx context.Context, ev Event) (bool, error)

// FilterID identifies an installed event filter for later removal.
type FilterID uint64

type filterEntry struct {
	id FilterID
	fn EventFilterFunc
}

// Registry is the set of registration tables.
type Registry struct {
	logger *slog.Logger

	mu         sync.RWMutex
	commands   map[string]CommandFunc
	conditions map[string]ConditionFunc
	filters    map[string][]filterEntry
	nextFilter FilterID
}

// New creates empty tables.
func New() *Registry {
	return &Registry{
		logger:     log.WithComponent("registry"),
		commands:   make(map[string]CommandFunc),
		conditions: make(map[string]ConditionFunc),
		filters:    make(map[string][]filterEntry),
	}
}

// SetCommand registers fn under name, replacing any previous handler.
func (r *Registry) SetCommand(name string, fn CommandFunc) {
	r.mu.Lock()
	_, exists := r.commands[name]
	r.commands[name] = fn
	r.mu.Unlock()
	if exists {
		r.logger.Warn("command re-registered", "command", name)
	}
}

// Command looks up a command handler.
func (r *Registry) Command(name string) (CommandFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.commands[name]
	return fn, ok
}

// RemoveCommand unregisters name and reports whether it existed.
func (r *Registry) RemoveCommand(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.commands[name]
	delete(r.commands, name)
	return ok
}

// SetCondition registers fn under name, replacing any previous predicate.
func (r *Registry) SetCondition(name string, fn ConditionFunc) {
	r.mu.Lock()
	_, exists := r.conditions[name]
	r.conditions[name] = fn
	r.mu.Unlock()
	if exists {
		r.logger.Warn("condition re-registered", "condition", name)
	}
}

// Condition looks up a condition predicate.
func (r *Registry) Condition(name string) (ConditionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.conditions[name]
	return fn, ok
}

// RemoveCondition unregisters name and reports whether it existed.
func (r *Registry) RemoveCondition(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conditions[name]
	delete(r.conditions, name)
	return ok
}

// InstallEventFilter appends fn to the filters of eventType.
func (r *Registry) InstallEventFilter(eventType string, fn EventFilterFunc) FilterID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextFilter++
	id := r.nextFilter
	r.filters[eventType] = append(r.filters[eventType], filterEntry{id: id, fn: fn})
	return id
}

// RemoveEventFilter removes the filter installed as id.
func (r *Registry) RemoveEventFilter(eventType string, id FilterID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.filters[eventType]
	for i, e := range entries {
		if e.id != id {
			continue
		}
		next := make([]filterEntry, 0, len(entries)-1)
		next = append(next, entries[:i]...)
		next = append(next, entries[i+1:]...)
		if len(next) == 0 {
			delete(r.filters, eventType)
		} else {
			r.filters[eventType] = next
		}
		return true
	}
	return false
}

// EventFilters returns a copy of the filters for eventType in registration order.
func (r *Registry) EventFilters(eventType string) []EventFilterFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.filters[eventType]
	if len(entries) == 0 {
		return nil
	}
	out := make([]EventFilterFunc, len(entries))
	for i, e := range entries {
		out[i] = e.fn
	}
	return out
}

// RunFilters calls filters in order and stops at the first one that handled ev.
func RunFilters(ctx context.Context, filters []EventFilterFunc, ev Event) (bool, error) {
	for i, fn := range filters {
		handled, err := fn(ctx, ev)
		if err != nil {
			return false, fmt.Errorf("%s filter %d: %w", ev.EventType(), i, err)
		}
		if handled {
			return true, nil
		}
	}
	return false, nil
}

// Snapshot is a read-only view of the tables.
type Snapshot struct {
	Commands     []string       `json:"commands"`
	Conditions   []string       `json:"conditions"`
	EventFilters map[string]int `json:"event_filters"`
}

// Snapshot lists registered names, sorted, and filter counts per type.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Commands:     make([]string, 0, len(r.commands)),
		Conditions:   make([]string, 0, len(r.conditions)),
		EventFilters: make(map[string]int, len(r.filters)),
	}
	for name := range r.commands {
		snap.Commands = append(snap.Commands, name)
	}
	for name := range r.conditions {
		snap.Conditions = append(snap.Conditions, name)
	}
	for typ, entries := range r.filters {
		snap.EventFilters[typ] = len(entries)
	}
	sort.Strings(snap.Commands)
	sort.Strings(snap.Conditions)
	return snap
}

// IsSatisfied compares key against value with operator (==, !=, >, >=, <, <=).
// Operands are compared numerically when both parse as numbers.
// Unknown operators are never satisfied.
func IsSatisfied(key, operator, value string) bool {
	kn, kerr := strconv.ParseFloat(key, 64)
	vn, verr := strconv.ParseFloat(value, 64)
	if kerr == nil && verr == nil {
		switch operator {
		case "==":
			return kn == vn
		case "!=":
			return kn != vn
		case ">":
			return kn > vn
		case ">=":
			return kn >= vn
		case "<":
			return kn < vn
		case "<=":
			return kn <= vn
		}
		return false
	}

	switch operator {
	case "==":
		return key == value
	case "!=":
		return key != value
	case ">":
		return key > value
	case ">=":
		return key >= value
	case "<":
		return key < value
	case "<=":
		return key <= value
	}
	return false
}
