// Package packages discovers silkedit packages on disk and wires them into the helper.
package packages

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/zeebo/blake3"

	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/silk"
)

// ErrNotLoaded is returned by Remove for a directory with no loaded package.
var ErrNotLoaded = errors.New("package not loaded")

// Package describes a loaded package.
type Package struct {
	Name        string   `json:"name"`
	Version     string   `json:"version,omitempty"`
	Dir         string   `json:"dir"`
	Fingerprint string   `json:"fingerprint"`
	Commands    []string `json:"commands,omitempty"`
	HasModule   bool     `json:"has_module"`

	module *Module
}

// Loader loads and removes packages.
type Loader struct {
	silk    *silk.Silk
	catalog *Catalog
	engine  *semver.Version
	logger  *slog.Logger

	// open is swapped in tests; Go plugins need a cgo build of the same toolchain.
	open func(path string) (*Module, error)

	mu      sync.Mutex
	byDir   map[string]*Package
	loading map[string]struct{}
}

// NewLoader returns a Loader that checks engines.silkedit against engineVersion.
// An empty engineVersion disables the check.
func NewLoader(s *silk.Silk, catalog *Catalog, engineVersion string) (*Loader, error) {
	var engine *semver.Version
	if engineVersion != "" {
		v, err := semver.NewVersion(engineVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid engine version %q: %w", engineVersion, err)
		}
		engine = v
	}
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Loader{
		silk:    s,
		catalog: catalog,
		engine:  engine,
		logger:  log.WithComponent("packages"),
		open:    openPlugin,
		byDir:   make(map[string]*Package),
		loading: make(map[string]struct{}),
	}, nil
}

// Load reads the package in dir and registers everything it provides.
// Loading an unchanged package again does nothing; a changed one is removed first.
func (l *Loader) Load(ctx context.Context, dir string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	// Activate and the host calls before it may park this fiber; a second
	// Load of the same dir in that window must not register it twice.
	if !l.begin(dir) {
		l.logger.Debug("package already loading", "dir", dir)
		return nil
	}
	defer l.end(dir)

	m, raw, err := readManifest(dir)
	if err != nil {
		return fmt.Errorf("load %s: %w", dir, err)
	}
	if m.Name == "" {
		l.logger.Warn("missing package name", "dir", dir)
		return nil
	}
	logger := log.WithPackage(m.Name)

	if err := m.checkEngine(l.engine); err != nil {
		return fmt.Errorf("load %s: %w", m.Name, err)
	}

	configPath := filepath.Join(dir, configFilename)
	defs, configRaw, cfgErr := readConfigFile(configPath)
	if cfgErr != nil && !errors.Is(cfgErr, fs.ErrNotExist) {
		logger.Warn("config.yml ignored", "error", cfgErr)
		defs = nil
	}
	fp := fingerprint(raw, configRaw)

	l.mu.Lock()
	prev := l.byDir[dir]
	l.mu.Unlock()
	if prev != nil {
		if prev.Fingerprint == fp {
			logger.Debug("package unchanged", "dir", dir)
			return nil
		}
		if err := l.Remove(ctx, dir); err != nil {
			logger.Warn("remove before reload failed", "error", err)
		}
	}

	tr := l.silk.Translator()
	tr.SetPackageDir(m.Name, dir)
	if err := tr.Preload(m.Name); err != nil {
		logger.Warn("translations not preloaded", "error", err)
	}

	l.sendLayout(ctx, m.Name, dir)

	if configRaw != nil {
		if m.Name != silk.DefaultPackage {
			l.silk.Editor().API().LoadConfig(ctx, m.Name, configPath)
		}
		for key, def := range defs {
			l.silk.Config().Define(m.Name, key, def)
		}
	}

	pkg := &Package{
		Name:        m.Name,
		Version:     m.Version,
		Dir:         dir,
		Fingerprint: fp,
	}

	mod, err := l.resolveModule(m, dir)
	if err != nil {
		l.forget(pkg)
		return fmt.Errorf("load %s: %w", m.Name, err)
	}
	if mod != nil {
		pkg.module = mod
		pkg.HasModule = true
		if len(mod.Commands) > 0 {
			pkg.Commands = l.silk.RegisterCommands(ctx, m.Name, mod.Commands)
		} else {
			logger.Debug("no commands")
		}
		if mod.Activate != nil {
			if err := mod.Activate(ctx, l.silk); err != nil {
				l.silk.UnregisterCommands(ctx, pkg.Commands)
				l.forget(pkg)
				return fmt.Errorf("activate %s: %w", m.Name, err)
			}
		}
	}

	l.mu.Lock()
	l.byDir[dir] = pkg
	l.mu.Unlock()
	logger.Info("package loaded", "dir", dir, "version", m.Version, "commands", len(pkg.Commands))
	return nil
}

func (l *Loader) begin(dir string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.loading[dir]; busy {
		return false
	}
	l.loading[dir] = struct{}{}
	return true
}

func (l *Loader) end(dir string) {
	l.mu.Lock()
	delete(l.loading, dir)
	l.mu.Unlock()
}

func (l *Loader) sendLayout(ctx context.Context, name, dir string) {
	api := l.silk.Editor().API()
	if p := filepath.Join(dir, keymapFilename); exists(p) {
		api.LoadKeymap(ctx, name, p)
	}
	if p := filepath.Join(dir, menuFilename); exists(p) {
		api.LoadMenu(ctx, name, p)
	}
	if p := filepath.Join(dir, toolbarFilename); exists(p) {
		api.LoadToolbar(ctx, name, p)
	}
}

// resolveModule returns the package's code, or nil for a package without any.
func (l *Loader) resolveModule(m *Manifest, dir string) (*Module, error) {
	if strings.HasSuffix(m.Main, ".so") {
		entry := filepath.Join(dir, m.Main)
		if err := checkTrust(entry, dir); err != nil {
			return nil, err
		}
		return l.open(entry)
	}
	if mod, ok := l.catalog.Lookup(m.Name); ok {
		return mod, nil
	}
	if m.Main != "" {
		return nil, fmt.Errorf("no module named %q is available", m.Name)
	}
	return nil, nil
}

// forget undoes the package-wide side effects that precede module activation.
func (l *Loader) forget(pkg *Package) {
	l.silk.Config().Undefine(pkg.Name)
	l.silk.Translator().RemovePackage(pkg.Name)
}

// Remove unregisters the package loaded from dir and runs its Deactivate hook.
func (l *Loader) Remove(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	l.mu.Lock()
	pkg, ok := l.byDir[abs]
	delete(l.byDir, abs)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, dir)
	}

	l.silk.UnregisterCommands(ctx, pkg.Commands)
	l.forget(pkg)

	if pkg.module != nil && pkg.module.Deactivate != nil {
		if err := pkg.module.Deactivate(ctx, l.silk); err != nil {
			return fmt.Errorf("deactivate %s: %w", pkg.Name, err)
		}
	}
	log.WithPackage(pkg.Name).Info("package removed", "dir", abs)
	return nil
}

// LoadAll loads every sub-directory of every root. Failures are collected
// and do not stop the remaining packages.
func (l *Loader) LoadAll(ctx context.Context, roots []string) error {
	var errs []error
	for _, dir := range packageDirs(roots, l.logger) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Load(ctx, dir); err != nil {
			l.logger.Warn("package not loaded", "dir", dir, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReloadKeymaps sends the keymap of every package under roots again.
func (l *Loader) ReloadKeymaps(ctx context.Context, roots []string) {
	api := l.silk.Editor().API()
	for _, dir := range packageDirs(roots, l.logger) {
		m, _, err := readManifest(dir)
		if err != nil {
			continue
		}
		if m.Name == "" {
			l.logger.Warn("missing package name", "dir", dir)
			continue
		}
		if p := filepath.Join(dir, keymapFilename); exists(p) {
			api.LoadKeymap(ctx, m.Name, p)
		}
	}
}

// Packages lists loaded packages sorted by name.
func (l *Loader) Packages() []Package {
	l.mu.Lock()
	out := make([]Package, 0, len(l.byDir))
	for _, p := range l.byDir {
		out = append(out, *p)
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// packageDirs lists the directories directly under roots that hold a package.json.
func packageDirs(roots []string, logger *slog.Logger) []string {
	var dirs []string
	seen := make(map[string]struct{})
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			logger.Warn("package root unreadable", "root", root, "error", err)
			continue
		}
		for _, e := range entries {
			dir := filepath.Join(root, e.Name())
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() {
				continue
			}
			if !exists(filepath.Join(dir, manifestFilename)) {
				continue
			}
			if abs, err := filepath.Abs(dir); err == nil {
				dir = abs
			}
			if _, dup := seen[dir]; dup {
				continue
			}
			seen[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func fingerprint(parts ...[]byte) string {
	h := blake3.New()
	for _, p := range parts {
		_, _ = h.Write(p)
		_, _ = h.Write([]byte{0})
	}
	return "blake3:" + hex.EncodeToString(h.Sum(nil))
}
