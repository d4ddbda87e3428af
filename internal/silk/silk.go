// Package silk is the API that package code programs against.
package silk

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/silkedit/silkedit-helper/internal/config"
	"github.com/silkedit/silkedit-helper/internal/editor"
	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/registry"
	"github.com/silkedit/silkedit-helper/internal/state"
	"github.com/silkedit/silkedit-helper/internal/translate"
)

// DefaultPackage is the built-in package whose names are not prefixed.
const DefaultPackage = translate.DefaultPackage

// Silk bundles the editor handles with the registration tables.
type Silk struct {
	editor     *editor.Editor
	registry   *registry.Registry
	translator *translate.Translator
	state      state.Backend
	configs    *Configs
	logger     *slog.Logger
}

// New wires the facade. A nil backend keeps package state in memory.
func New(ed *editor.Editor, reg *registry.Registry, tr *translate.Translator, backend state.Backend) *Silk {
	if backend == nil {
		backend = state.NewMemory()
	}
	return &Silk{
		editor:     ed,
		registry:   reg,
		translator: tr,
		state:      backend,
		configs:    newConfigs(ed.API()),
		logger:     log.WithComponent("silk"),
	}
}

func (s *Silk) Editor() *editor.Editor            { return s.editor }
func (s *Silk) Registry() *registry.Registry      { return s.registry }
func (s *Silk) Translator() *translate.Translator { return s.translator }
func (s *Silk) Config() *Configs                  { return s.configs }
func (s *Silk) State(pkg string) *state.Package   { return state.For(s.state, pkg) }
func (s *Silk) T(key, def string) string          { return s.translator.T(key, def) }
func (s *Silk) IsSatisfied(key, operator, value string) bool {
	return registry.IsSatisfied(key, operator, value)
}

// PackageDir returns the user package directory ($HOME/.silk/packages).
func (s *Silk) PackageDir() string {
	return filepath.Join(config.SilkHome(), "packages")
}

// QualifiedName prefixes name with pkg unless pkg is the default package.
func QualifiedName(pkg, name string) string {
	if pkg == DefaultPackage || pkg == "" {
		return name
	}
	return pkg + "." + name
}

func descriptionKey(pkg, cmd string) string {
	key := "command." + cmd + ".description"
	if pkg == DefaultPackage || pkg == "" {
		return key
	}
	return pkg + ":" + key
}

// RegisterCommands adds pkg's commands to the table and announces them to the
// host with their translated descriptions. It returns the qualified names.
func (s *Silk) RegisterCommands(ctx context.Context, pkg string, cmds map[string]registry.CommandFunc) []string {
	local := make([]string, 0, len(cmds))
	for name := range cmds {
		local = append(local, name)
	}
	sort.Strings(local)

	names := make([]string, 0, len(local))
	descs := make([]editor.CommandDescription, 0, len(local))
	for _, name := range local {
		full := QualifiedName(pkg, name)
		s.registry.SetCommand(full, cmds[name])
		names = append(names, full)
		descs = append(descs, editor.CommandDescription{
			Name:        full,
			Description: s.translator.T(descriptionKey(pkg, name), ""),
		})
	}
	if len(descs) > 0 {
		s.editor.API().RegisterCommands(ctx, descs)
		s.logger.Debug("commands registered", "package", pkg, "count", len(descs))
	}
	return names
}

// UnregisterCommands removes qualified command names from the table and the host.
func (s *Silk) UnregisterCommands(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	for _, name := range names {
		s.registry.RemoveCommand(name)
	}
	s.editor.API().UnregisterCommands(ctx, names)
}

// RegisterCondition installs a predicate and tells the host it exists.
func (s *Silk) RegisterCondition(ctx context.Context, name string, fn registry.ConditionFunc) {
	s.registry.SetCondition(name, fn)
	s.editor.API().RegisterCondition(ctx, name)
}

// UnregisterCondition removes a predicate.
func (s *Silk) UnregisterCondition(ctx context.Context, name string) {
	s.registry.RemoveCondition(name)
	s.editor.API().UnregisterCondition(ctx, name)
}

// InstallEventFilter appends fn to the filters for eventType.
func (s *Silk) InstallEventFilter(eventType string, fn registry.EventFilterFunc) registry.FilterID {
	return s.registry.InstallEventFilter(eventType, fn)
}

// RemoveEventFilter removes a filter installed earlier.
func (s *Silk) RemoveEventFilter(eventType string, id registry.FilterID) bool {
	return s.registry.RemoveEventFilter(eventType, id)
}

func (s *Silk) Alert(ctx context.Context, msg string) { s.editor.API().Alert(ctx, msg) }

// Open asks the host to open path. Empty paths are ignored.
func (s *Silk) Open(ctx context.Context, path string) {
	if path == "" {
		return
	}
	s.editor.API().Open(ctx, path)
}

func (s *Silk) DispatchCommand(ctx context.Context, ev registry.KeyEvent) {
	s.editor.API().DispatchCommand(ctx, ev)
}

func (s *Silk) SetFont(ctx context.Context, family string, size int) {
	s.editor.API().SetFont(ctx, family, size)
}

func (s *Silk) LoadKeymap(ctx context.Context, pkg, path string) {
	s.editor.API().LoadKeymap(ctx, pkg, path)
}

func (s *Silk) LoadMenu(ctx context.Context, pkg, path string) {
	s.editor.API().LoadMenu(ctx, pkg, path)
}

func (s *Silk) LoadToolbar(ctx context.Context, pkg, path string) {
	s.editor.API().LoadToolbar(ctx, pkg, path)
}
