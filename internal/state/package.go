package state

import (
	"context"
	"encoding/json"
	"fmt"
)

// Package is the state of one package, as handed to plugin code.
type Package struct {
	backend Backend
	name    string
}

// For scopes backend to pkg.
func For(backend Backend, pkg string) *Package {
	return &Package{backend: backend, name: pkg}
}

// Load returns the whole state document.
func (p *Package) Load(ctx context.Context) (map[string]any, error) {
	raw, err := p.backend.Get(ctx, p.name)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode state of %s: %w", p.name, err)
	}
	return out, nil
}

// Value decodes key into dst. It reports false when the key is absent.
func (p *Package) Value(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := p.backend.Get(ctx, p.name)
	if err != nil {
		return false, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("decode state of %s: %w", p.name, err)
	}
	v, ok := doc[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return false, fmt.Errorf("decode %s.%s: %w", p.name, key, err)
	}
	return true, nil
}

// Set stores value under key.
func (p *Package) Set(ctx context.Context, key string, value any) error {
	return p.Merge(ctx, map[string]any{key: value})
}

// Merge replaces the given top-level keys.
func (p *Package) Merge(ctx context.Context, updates map[string]any) error {
	raw, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("encode state of %s: %w", p.name, err)
	}
	_, err = p.backend.ShallowMerge(ctx, p.name, raw)
	return err
}

// Clear removes all state of the package.
func (p *Package) Clear(ctx context.Context) error {
	return p.backend.Delete(ctx, p.name)
}
