// Package translate looks up localized strings in package translation files.
//
// Keys have the form "[<package>:]a.b.c"; the package defaults to silkedit.
// For locale ja_JP the lookup order is locales/ja_JP/translation.yml and then
// locales/ja/translation.yml inside the package directory.
package translate

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/silkedit/silkedit-helper/internal/log"
)

// DefaultPackage owns keys without a package prefix.
const DefaultPackage = "silkedit"

// Translator resolves translation keys. It is safe for concurrent use.
type Translator struct {
	locale string
	logger *slog.Logger

	mu    sync.RWMutex
	dirs  map[string]string
	cache map[string]map[string]any // translation file path -> document, nil when absent
}

// New creates a Translator for locale.
func New(locale string) *Translator {
	return &Translator{
		locale: locale,
		logger: log.WithComponent("translate"),
		dirs:   make(map[string]string),
		cache:  make(map[string]map[string]any),
	}
}

// Locale returns the configured locale.
func (t *Translator) Locale() string { return t.locale }

// SetPackageDir records where pkg lives and drops its cached documents.
func (t *Translator) SetPackageDir(pkg, dir string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.dirs[pkg]; ok {
		t.evictLocked(old)
	}
	t.dirs[pkg] = dir
}

// RemovePackage forgets pkg.
func (t *Translator) RemovePackage(pkg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if dir, ok := t.dirs[pkg]; ok {
		t.evictLocked(dir)
		delete(t.dirs, pkg)
	}
}

func (t *Translator) evictLocked(dir string) {
	for _, p := range t.paths(dir) {
		delete(t.cache, p)
	}
}

// PackageDir returns the directory recorded for pkg.
func (t *Translator) PackageDir(pkg string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	dir, ok := t.dirs[pkg]
	return dir, ok
}

func (t *Translator) paths(dir string) []string {
	paths := []string{filepath.Join(dir, "locales", t.locale, "translation.yml")}
	if i := strings.Index(t.locale, "_"); i > 0 {
		paths = append(paths, filepath.Join(dir, "locales", t.locale[:i], "translation.yml"))
	}
	return paths
}

// Preload parses the translation files of pkg so later lookups are served from memory.
func (t *Translator) Preload(pkg string) error {
	dir, ok := t.PackageDir(pkg)
	if !ok {
		return fmt.Errorf("unknown package %q", pkg)
	}
	var errs []error
	for _, p := range t.paths(dir) {
		if _, err := t.document(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// document returns the parsed file at path, reading it at most once.
func (t *Translator) document(path string) (map[string]any, error) {
	t.mu.RLock()
	doc, ok := t.cache[path]
	t.mu.RUnlock()
	if ok {
		return doc, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		doc = nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		doc = map[string]any{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	t.mu.Lock()
	t.cache[path] = doc
	t.mu.Unlock()
	return doc, nil
}

// T returns the translation of key, or def when there is none.
func (t *Translator) T(key, def string) string {
	pkg, sub := DefaultPackage, key
	if i := strings.Index(key, ":"); i > 0 {
		pkg, sub = key[:i], key[i+1:]
	}

	dir, ok := t.PackageDir(pkg)
	if !ok {
		return def
	}

	for _, p := range t.paths(dir) {
		doc, err := t.document(p)
		if err != nil {
			t.logger.Warn("translation file unreadable", "path", p, "error", err)
			continue
		}
		if v, ok := lookup(doc, strings.Split(sub, ".")); ok {
			return v
		}
	}
	return def
}

func lookup(doc map[string]any, keys []string) (string, bool) {
	var cur any = doc
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = m[k]; !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case nil, map[string]any, []any:
		return "", false
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}
