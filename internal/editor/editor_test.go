package editor

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/objstore"
	"github.com/silkedit/silkedit-helper/internal/registry"
	"github.com/silkedit/silkedit-helper/internal/remote"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

type call struct {
	kind   string // notify | invoke
	method string
	target remote.ID
	args   []any
}

// fakeHost records traffic and answers invokes from replies.
type fakeHost struct {
	mu      sync.Mutex
	calls   []call
	replies map[string]func(target remote.ID, args []any) (any, error)
}

func newFakeHost() *fakeHost {
	return &fakeHost{replies: map[string]func(remote.ID, []any) (any, error){}}
}

func (f *fakeHost) reply(method string, v any) {
	f.replies[method] = func(remote.ID, []any) (any, error) { return v, nil }
}

func (f *fakeHost) Notify(method string, target remote.ID, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{"notify", method, target, args})
}

func (f *fakeHost) Invoke(_ context.Context, method string, target remote.ID, args ...any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{"invoke", method, target, args})
	fn := f.replies[method]
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(target, args)
}

func (f *fakeHost) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.kind + ":" + c.method
	}
	return out
}

func (f *fakeHost) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newEditor(host *fakeHost) *Editor {
	return New(objstore.New(host))
}

func TestSingletonsAreCached(t *testing.T) {
	host := newFakeHost()
	e := newEditor(host)

	assert.Equal(t, APIID, e.API().Handle().ID())
	assert.Equal(t, ConstantsID, e.Constants().Handle().ID())
	assert.Equal(t, 2, e.Store().Len())
	assert.False(t, e.Store().Release(APIID))
}

func TestAccessors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *fakeHost)
		checkFn func(t *testing.T, e *Editor)
	}{
		{
			name:  "active window",
			setup: func(h *fakeHost) { h.reply("activeWindow", uint64(1)) },
			checkFn: func(t *testing.T, e *Editor) {
				w1, err := e.ActiveWindow(context.Background())
				require.NoError(t, err)
				require.NotNil(t, w1)
				w2, _ := e.ActiveWindow(context.Background())
				assert.Same(t, w1, w2)
				assert.Equal(t, remote.Indexed(1), w1.Handle().ID())
			},
		},
		{
			name:  "no active window",
			setup: func(h *fakeHost) { h.reply("activeWindow", nil) },
			checkFn: func(t *testing.T, e *Editor) {
				w, err := e.ActiveWindow(context.Background())
				assert.NoError(t, err)
				assert.Nil(t, w)
			},
		},
		{
			name:  "active text edit view",
			setup: func(h *fakeHost) { h.reply("activeTextEditView", int64(3)) },
			checkFn: func(t *testing.T, e *Editor) {
				v, err := e.ActiveTextEditView(context.Background())
				require.NoError(t, err)
				assert.Equal(t, "TextEditView", v.Handle().Type().Name())
			},
		},
		{
			name:  "active tab view and group",
			setup: func(h *fakeHost) { h.reply("activeTabView", uint64(5)); h.reply("activeTabViewGroup", uint64(6)) },
			checkFn: func(t *testing.T, e *Editor) {
				tv, err := e.ActiveTabView(context.Background())
				require.NoError(t, err)
				assert.Equal(t, remote.Indexed(5), tv.Handle().ID())
				g, err := e.ActiveTabViewGroup(context.Background())
				require.NoError(t, err)
				assert.Equal(t, remote.Indexed(6), g.Handle().ID())
			},
		},
		{
			name:  "windows skips invalid ids",
			setup: func(h *fakeHost) { h.reply("windows", []any{uint64(1), nil, uint64(2)}) },
			checkFn: func(t *testing.T, e *Editor) {
				ws, err := e.Windows(context.Background())
				require.NoError(t, err)
				require.Len(t, ws, 2)
				assert.Equal(t, remote.Indexed(2), ws[1].Handle().ID())
			},
		},
		{
			name: "host error propagates",
			setup: func(h *fakeHost) {
				h.replies["activeWindow"] = func(remote.ID, []any) (any, error) { return nil, errors.New("gone") }
			},
			checkFn: func(t *testing.T, e *Editor) {
				w, err := e.ActiveWindow(context.Background())
				assert.Error(t, err)
				assert.Nil(t, w)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost()
			tt.setup(host)
			tt.checkFn(t, newEditor(host))
		})
	}
}

func TestWindowStatusBar(t *testing.T) {
	host := newFakeHost()
	host.reply("activeWindow", uint64(1))
	host.reply("statusBar", uint64(8))
	e := newEditor(host)

	w, err := e.ActiveWindow(context.Background())
	require.NoError(t, err)
	sb, err := w.StatusBar(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sb)

	sb.ShowMessage(context.Background(), "saved", 2*time.Second)
	last := host.last()
	assert.Equal(t, "notify", last.kind)
	assert.Equal(t, "showMessageWithTimeout", last.method)
	assert.Equal(t, []any{"saved", 2000}, last.args)
	assert.Equal(t, remote.Indexed(8), last.target)
}

func TestTypedMethodsClassify(t *testing.T) {
	host := newFakeHost()
	host.reply("count", uint64(4))
	host.reply("text", "hello")
	e := newEditor(host)
	ctx := context.Background()

	view := e.Store().Get(remote.Indexed(2), textEditViewKind).(*TextEditView)
	view.Save(ctx)
	view.MoveCursor(ctx, "down", 0)
	view.MoveCursor(ctx, "", 3)
	view.Delete(ctx, 2)
	text, err := view.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	tabs := e.Store().Get(remote.Indexed(3), tabViewKind).(*TabView)
	tabs.SetCurrentIndex(ctx, 1)
	n, err := tabs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	e.API().DispatchCommand(ctx, registry.KeyEvent{Type: "keypress", Key: "j", ShiftKey: true})

	assert.Equal(t, []string{
		"notify:save",
		"notify:moveCursor",
		"notify:doDelete",
		"invoke:text",
		"notify:setCurrentIndex",
		"invoke:count",
		"notify:dispatchCommand",
	}, host.methods())
	assert.Equal(t, []any{"keypress", "j", false, false, false, false, true}, host.last().args)
}

func TestRegisterCommandsSendsPairs(t *testing.T) {
	host := newFakeHost()
	e := newEditor(host)

	e.API().RegisterCommands(context.Background(), []CommandDescription{
		{Name: "vim.toggle", Description: "Toggle vim mode"},
	})
	last := host.last()
	assert.Equal(t, "registerCommands", last.method)
	assert.Equal(t, []any{[]any{[]any{"vim.toggle", "Toggle vim mode"}}}, last.args)
	assert.Equal(t, APIID, last.target)
}

func TestShowInputDialog(t *testing.T) {
	host := newFakeHost()
	e := newEditor(host)
	host.reply("newInputDialog", uint64(4))
	host.replies["show"] = func(remote.ID, []any) (any, error) {
		// the host reports edits while the dialog is open
		if err := e.InputDialogTextChanged(context.Background(), uint64(4), "ok"); err != nil {
			return nil, err
		}
		if err := e.InputDialogTextChanged(context.Background(), uint64(4), ""); err != nil {
			return nil, err
		}
		assert.Equal(t, 1, e.OpenDialogs())
		return "ok", nil
	}

	validate := func(_ context.Context, text string) (bool, error) { return text != "", nil }
	text, ok, err := e.ShowInputDialog(context.Background(), "Name:", "draft", validate)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ok", text)

	assert.Equal(t, []string{
		"invoke:newInputDialog",
		"notify:setLabelText",
		"notify:setTextValue",
		"invoke:show",
		"notify:enableOK",
		"notify:disableOK",
		"notify:deleteLater",
	}, host.methods())
	assert.Equal(t, 0, e.OpenDialogs())
	assert.Equal(t, 2, e.Store().Len(), "dialog handle released")
}

func TestShowInputDialogCancelled(t *testing.T) {
	host := newFakeHost()
	host.reply("newInputDialog", uint64(4))
	host.reply("show", nil)
	e := newEditor(host)

	text, ok, err := e.ShowInputDialog(context.Background(), "", "", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, text)
	assert.Equal(t, []string{"invoke:newInputDialog", "invoke:show", "notify:deleteLater"}, host.methods())

	create := host.calls[0]
	assert.Equal(t, APIID, create.target)
	assert.Empty(t, create.args, "newInputDialog takes no arguments")
}

func TestShowInputDialogInvalidID(t *testing.T) {
	host := newFakeHost()
	host.reply("newInputDialog", nil)
	e := newEditor(host)

	_, _, err := e.ShowInputDialog(context.Background(), "x", "", nil)
	assert.Error(t, err)
}

func TestTextChangedForUnknownDialog(t *testing.T) {
	e := newEditor(newFakeHost())
	assert.NoError(t, e.InputDialogTextChanged(context.Background(), uint64(99), "x"))
}

func TestFileDialogs(t *testing.T) {
	host := newFakeHost()
	captions := map[string]any{}
	for _, m := range []string{"showFileAndFolderDialog", "showFilesDialog", "showFolderDialog"} {
		m := m
		host.replies[m] = func(_ remote.ID, args []any) (any, error) {
			captions[m] = args[0]
			if m == "showFolderDialog" {
				return "/tmp", nil
			}
			return []any{"/a", []byte("/b")}, nil
		}
	}
	e := newEditor(host)
	ctx := context.Background()

	paths, err := e.ShowFileAndFolderDialog(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, paths)

	_, err = e.ShowFilesDialog(ctx, "Pick")
	require.NoError(t, err)

	dir, err := e.ShowFolderDialog(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp", dir)

	assert.Equal(t, map[string]any{
		"showFileAndFolderDialog": CaptionFileAndFolder,
		"showFilesDialog":         "Pick",
		"showFolderDialog":        CaptionFolder,
	}, captions)
}

func TestShowFontDialog(t *testing.T) {
	tests := []struct {
		name    string
		reply   any
		want    *Font
		wantErr bool
	}{
		{name: "array reply", reply: []any{"Menlo", uint64(12)}, want: &Font{Family: "Menlo", Size: 12}},
		{name: "map reply", reply: map[string]any{"family": "Monaco", "size": int64(14)}, want: &Font{Family: "Monaco", Size: 14}},
		{name: "cancelled", reply: nil},
		{name: "malformed", reply: []any{"Menlo"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost()
			host.reply("showFontDialog", tt.reply)
			f, err := newEditor(host).ShowFontDialog(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestConstants(t *testing.T) {
	host := newFakeHost()
	host.reply("userPackagesJsonPath", "/home/u/.silk/packages.json")
	e := newEditor(host)

	p, err := e.Constants().UserPackagesJSONPath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/home/u/.silk/packages.json", p)
	assert.Equal(t, ConstantsID, host.last().target)
}
