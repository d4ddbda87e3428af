package packages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/silkedit/silkedit-helper/internal/registry"
	"github.com/silkedit/silkedit-helper/internal/silk"
)

// ModuleSymbol is the exported variable a package plugin (.so) must define.
const ModuleSymbol = "Module"

// Module is the code side of a package.
type Module struct {
	Name       string
	Commands   map[string]registry.CommandFunc
	Activate   func(ctx context.Context, s *silk.Silk) error
	Deactivate func(ctx context.Context, s *silk.Silk) error
}

// Catalog holds modules compiled into the helper, keyed by package name.
type Catalog struct {
	mu   sync.RWMutex
	mods map[string]*Module
}

func NewCatalog(mods ...*Module) *Catalog {
	c := &Catalog{mods: make(map[string]*Module)}
	for _, m := range mods {
		c.Register(m)
	}
	return c
}

// Register adds m, replacing any module of the same name.
func (c *Catalog) Register(m *Module) {
	c.mu.Lock()
	c.mods[m.Name] = m
	c.mu.Unlock()
}

func (c *Catalog) Lookup(name string) (*Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.mods[name]
	return m, ok
}

// openPlugin loads a Go plugin and returns its exported Module.
func openPlugin(path string) (*Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}
	sym, err := p.Lookup(ModuleSymbol)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", path, err)
	}
	switch m := sym.(type) {
	case *Module:
		return m, nil
	case **Module:
		if *m != nil {
			return *m, nil
		}
	}
	return nil, fmt.Errorf("plugin %s: %s has type %T, want *packages.Module", path, ModuleSymbol, sym)
}

// checkTrust rejects plugin files outside the package directory and
// package directories writable by anyone.
func checkTrust(entry, dir string) error {
	resolvedEntry, err := filepath.EvalSymlinks(entry)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", entry, err)
	}
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	if !strings.HasPrefix(resolvedEntry, resolvedDir+string(os.PathSeparator)) {
		return fmt.Errorf("%s is not under package directory %s", resolvedEntry, resolvedDir)
	}
	info, err := os.Stat(resolvedDir)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0o002 != 0 {
		return errors.New("package directory is world-writable: " + resolvedDir)
	}
	return nil
}
