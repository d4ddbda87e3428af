// Package state persists small per-package JSON documents.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

const DefaultMaxStateBytes = 1 << 20 // 1 MiB

// Backend stores one JSON object per package.
type Backend interface {
	Get(ctx context.Context, pkg string) (json.RawMessage, error)
	ShallowMerge(ctx context.Context, pkg string, updates json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, pkg string) error
}

// Store is the SQLite Backend.
type Store struct {
	db       *sql.DB
	maxBytes int
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		maxBytes: DefaultMaxStateBytes,
	}
}

// Get returns the full state blob for a package, or {} if missing.
func (s *Store) Get(ctx context.Context, pkg string) (json.RawMessage, error) {
	if pkg == "" {
		return nil, fmt.Errorf("package name is empty")
	}

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT state FROM package_state WHERE package_name = ?;", pkg).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return json.RawMessage(`{}`), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read package state: %w", err)
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("stored state is invalid JSON for package=%q", pkg)
	}
	return json.RawMessage(raw), nil
}

// ShallowMerge replaces top-level keys of the stored object with those in updates.
// The merged state is persisted and returned.
func (s *Store) ShallowMerge(ctx context.Context, pkg string, updates json.RawMessage) (json.RawMessage, error) {
	if pkg == "" {
		return nil, fmt.Errorf("package name is empty")
	}

	upd, err := decodeObjectOrEmpty(updates)
	if err != nil {
		return nil, fmt.Errorf("decode state updates: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var curRaw string
	err = tx.QueryRowContext(ctx, "SELECT state FROM package_state WHERE package_name = ?;", pkg).Scan(&curRaw)
	if errors.Is(err, sql.ErrNoRows) {
		curRaw = "{}"
	} else if err != nil {
		return nil, fmt.Errorf("read package state: %w", err)
	}

	cur, err := decodeObjectOrEmpty(json.RawMessage(curRaw))
	if err != nil {
		return nil, fmt.Errorf("decode stored state: %w", err)
	}

	merged, err := mergeLimited(cur, upd, s.maxBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
INSERT INTO package_state(package_name, state, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(package_name) DO UPDATE SET
  state = excluded.state,
  updated_at = excluded.updated_at;
`, pkg, string(merged), now)
	if err != nil {
		return nil, fmt.Errorf("upsert package state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return merged, nil
}

// Delete removes the state of pkg.
func (s *Store) Delete(ctx context.Context, pkg string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM package_state WHERE package_name = ?;", pkg); err != nil {
		return fmt.Errorf("delete package state: %w", err)
	}
	return nil
}

// Memory is an in-process Backend used when persistence is disabled.
type Memory struct {
	mu       sync.Mutex
	states   map[string]json.RawMessage
	maxBytes int
}

func NewMemory() *Memory {
	return &Memory{states: make(map[string]json.RawMessage), maxBytes: DefaultMaxStateBytes}
}

func (m *Memory) Get(_ context.Context, pkg string) (json.RawMessage, error) {
	if pkg == "" {
		return nil, fmt.Errorf("package name is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if raw, ok := m.states[pkg]; ok {
		return raw, nil
	}
	return json.RawMessage(`{}`), nil
}

func (m *Memory) ShallowMerge(_ context.Context, pkg string, updates json.RawMessage) (json.RawMessage, error) {
	if pkg == "" {
		return nil, fmt.Errorf("package name is empty")
	}
	upd, err := decodeObjectOrEmpty(updates)
	if err != nil {
		return nil, fmt.Errorf("decode state updates: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := decodeObjectOrEmpty(m.states[pkg])
	if err != nil {
		return nil, err
	}
	merged, err := mergeLimited(cur, upd, m.maxBytes)
	if err != nil {
		return nil, err
	}
	m.states[pkg] = merged
	return merged, nil
}

func (m *Memory) Delete(_ context.Context, pkg string) error {
	m.mu.Lock()
	delete(m.states, pkg)
	m.mu.Unlock()
	return nil
}

func mergeLimited(cur, upd map[string]json.RawMessage, limit int) (json.RawMessage, error) {
	maps.Copy(cur, upd)
	merged, err := json.Marshal(cur)
	if err != nil {
		return nil, fmt.Errorf("marshal merged state: %w", err)
	}
	if len(merged) > limit {
		return nil, fmt.Errorf("package state exceeds max size (%d bytes)", limit)
	}
	return merged, nil
}

func decodeObjectOrEmpty(b json.RawMessage) (map[string]json.RawMessage, error) {
	if len(b) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("invalid JSON")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	return m, nil
}
