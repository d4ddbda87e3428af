package silk

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silkedit/silkedit-helper/internal/editor"
	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/objstore"
	"github.com/silkedit/silkedit-helper/internal/registry"
	"github.com/silkedit/silkedit-helper/internal/remote"
	"github.com/silkedit/silkedit-helper/internal/translate"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

type sent struct {
	method string
	args   []any
}

type recorder struct {
	mu      sync.Mutex
	sent    []sent
	configs map[string]any
	err     error
}

func (r *recorder) Notify(method string, _ remote.ID, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{method, args})
}

func (r *recorder) Invoke(_ context.Context, method string, _ remote.ID, args ...any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{method, args})
	if method == "getConfig" && len(args) == 1 {
		return r.configs[args[0].(string)], r.err
	}
	return nil, r.err
}

func (r *recorder) last(t *testing.T) sent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

func newSilk(t *testing.T) (*Silk, *recorder) {
	t.Helper()
	rec := &recorder{configs: map[string]any{}}
	ed := editor.New(objstore.New(rec))

	tr := translate.New("ja_JP")
	dir := t.TempDir()
	writeTranslation(t, dir, "ja", "command:\n  hello:\n    description: こんにちは\n")
	tr.SetPackageDir(translate.DefaultPackage, dir)
	pkgDir := t.TempDir()
	writeTranslation(t, pkgDir, "ja_JP", "command:\n  run:\n    description: 実行\n")
	tr.SetPackageDir("vim", pkgDir)

	return New(ed, registry.New(), tr, nil), rec
}

func writeTranslation(t *testing.T, dir, locale, body string) {
	t.Helper()
	p := filepath.Join(dir, "locales", locale, "translation.yml")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func noop(context.Context, map[string]any) error { return nil }

func TestRegisterCommands(t *testing.T) {
	tests := []struct {
		name      string
		pkg       string
		cmds      map[string]registry.CommandFunc
		wantNames []string
		wantPairs []any
	}{
		{
			name:      "default package is not prefixed",
			pkg:       DefaultPackage,
			cmds:      map[string]registry.CommandFunc{"hello": noop, "bye": noop},
			wantNames: []string{"bye", "hello"},
			wantPairs: []any{[]any{"bye", ""}, []any{"hello", "こんにちは"}},
		},
		{
			name:      "other packages are prefixed",
			pkg:       "vim",
			cmds:      map[string]registry.CommandFunc{"run": noop},
			wantNames: []string{"vim.run"},
			wantPairs: []any{[]any{"vim.run", "実行"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newSilk(t)
			names := s.RegisterCommands(context.Background(), tt.pkg, tt.cmds)
			assert.Equal(t, tt.wantNames, names)
			for _, n := range names {
				_, ok := s.Registry().Command(n)
				assert.True(t, ok, n)
			}
			got := rec.last(t)
			assert.Equal(t, "registerCommands", got.method)
			assert.Equal(t, []any{tt.wantPairs}, got.args)
		})
	}
}

func TestUnregisterCommands(t *testing.T) {
	s, rec := newSilk(t)
	ctx := context.Background()
	names := s.RegisterCommands(ctx, "vim", map[string]registry.CommandFunc{"run": noop})

	s.UnregisterCommands(ctx, names)
	_, ok := s.Registry().Command("vim.run")
	assert.False(t, ok)
	assert.Equal(t, sent{"unregisterCommands", []any{[]any{"vim.run"}}}, rec.last(t))
}

func TestConditionsAndFilters(t *testing.T) {
	s, rec := newSilk(t)
	ctx := context.Background()

	s.RegisterCondition(ctx, "vim_mode", func(context.Context, string, string) (bool, error) { return true, nil })
	_, ok := s.Registry().Condition("vim_mode")
	assert.True(t, ok)
	assert.Equal(t, sent{"registerCondition", []any{"vim_mode"}}, rec.last(t))

	s.UnregisterCondition(ctx, "vim_mode")
	_, ok = s.Registry().Condition("vim_mode")
	assert.False(t, ok)
	assert.Equal(t, "unregisterCondition", rec.last(t).method)

	id := s.InstallEventFilter(registry.TypeKeyPress, func(context.Context, registry.Event) (bool, error) { return true, nil })
	assert.Len(t, s.Registry().EventFilters(registry.TypeKeyPress), 1)
	assert.True(t, s.RemoveEventFilter(registry.TypeKeyPress, id))
	assert.False(t, s.RemoveEventFilter(registry.TypeKeyPress, id))
}

func TestOpenIgnoresEmptyPath(t *testing.T) {
	s, rec := newSilk(t)
	s.Open(context.Background(), "")
	assert.Empty(t, rec.sent)

	s.Open(context.Background(), "/tmp/a.txt")
	assert.Equal(t, sent{"open", []any{"/tmp/a.txt"}}, rec.last(t))
}

func TestConfigGet(t *testing.T) {
	tests := []struct {
		name string
		def  ConfigDefinition
		host any
		want any
	}{
		{name: "bool true string", def: ConfigDefinition{Type: "bool"}, host: "true", want: true},
		{name: "boolean other string", def: ConfigDefinition{Type: "boolean"}, host: "yes", want: false},
		{name: "bool missing uses default", def: ConfigDefinition{Type: "bool", Default: true}, want: true},
		{name: "bool missing no default", def: ConfigDefinition{Type: "bool"}, want: false},
		{name: "string", def: ConfigDefinition{Type: "string"}, host: "dark", want: "dark"},
		{name: "string missing", def: ConfigDefinition{Type: "string"}, want: nil},
		{name: "int from string", def: ConfigDefinition{Type: "int"}, host: "42", want: 42},
		{name: "integer native", def: ConfigDefinition{Type: "integer"}, host: uint64(7), want: 7},
		{name: "int unparsable uses default", def: ConfigDefinition{Type: "int", Default: 3}, host: "x", want: 3},
		{name: "float", def: ConfigDefinition{Type: "float"}, host: "1.5", want: 1.5},
		{name: "float missing", def: ConfigDefinition{Type: "float"}, want: 0.0},
		{name: "unknown type", def: ConfigDefinition{Type: "color"}, host: "red", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newSilk(t)
			s.Config().Define("vim", "opt", tt.def)
			if tt.host != nil {
				rec.configs["vim.opt"] = tt.host
			}
			got, err := s.Config().Get(context.Background(), "vim.opt")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigUndefinedSkipsHost(t *testing.T) {
	s, rec := newSilk(t)
	got, err := s.Config().Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, rec.sent)
}

func TestConfigUndefineOnlyOwnPackage(t *testing.T) {
	s, _ := newSilk(t)
	c := s.Config()
	assert.Equal(t, "foo.a", c.Define("foo", "a", ConfigDefinition{Type: "bool"}))
	c.Define("foo", "b", ConfigDefinition{Type: "bool"})
	c.Define("foo.bar", "a", ConfigDefinition{Type: "bool"})
	c.Define(DefaultPackage, "tabWidth", ConfigDefinition{Type: "int"})

	c.Undefine("foo")
	assert.Equal(t, []string{"foo.bar.a", "tabWidth"}, c.Names())

	c.Undefine(DefaultPackage)
	assert.Equal(t, []string{"foo.bar.a"}, c.Names())
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "open", QualifiedName(DefaultPackage, "open"))
	assert.Equal(t, "open", QualifiedName("", "open"))
	assert.Equal(t, "vim.open", QualifiedName("vim", "open"))
}

func TestStateDefaultsToMemory(t *testing.T) {
	s, _ := newSilk(t)
	ctx := context.Background()
	require.NoError(t, s.State("vim").Set(ctx, "mode", "normal"))

	var mode string
	ok, err := s.State("vim").Value(ctx, "mode", &mode)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "normal", mode)
}
