package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/silkedit/silkedit-helper/internal/proxy"
	"github.com/silkedit/silkedit-helper/internal/registry"
)

// API is the editor's application facade.
type API struct{ h *proxy.Handle }

func (a *API) Handle() *proxy.Handle { return a.h }

func (a *API) LoadKeymap(ctx context.Context, pkg, path string) {
	_, _ = a.h.Call(ctx, "loadKeymap", pkg, path)
}

func (a *API) LoadMenu(ctx context.Context, pkg, path string) {
	_, _ = a.h.Call(ctx, "loadMenu", pkg, path)
}

func (a *API) LoadToolbar(ctx context.Context, pkg, path string) {
	_, _ = a.h.Call(ctx, "loadToolbar", pkg, path)
}

func (a *API) LoadConfig(ctx context.Context, pkg, path string) {
	_, _ = a.h.Call(ctx, "loadConfig", pkg, path)
}

// CommandDescription pairs a command name with its translated description.
type CommandDescription struct {
	Name        string
	Description string
}

// RegisterCommands announces commands to the host as [name, description] pairs.
func (a *API) RegisterCommands(ctx context.Context, cmds []CommandDescription) {
	pairs := make([]any, 0, len(cmds))
	for _, c := range cmds {
		pairs = append(pairs, []any{c.Name, c.Description})
	}
	_, _ = a.h.Call(ctx, "registerCommands", pairs)
}

func (a *API) UnregisterCommands(ctx context.Context, names []string) {
	list := make([]any, len(names))
	for i, n := range names {
		list[i] = n
	}
	_, _ = a.h.Call(ctx, "unregisterCommands", list)
}

func (a *API) Alert(ctx context.Context, msg string) {
	_, _ = a.h.Call(ctx, "alert", msg)
}

func (a *API) RegisterCondition(ctx context.Context, name string) {
	_, _ = a.h.Call(ctx, "registerCondition", name)
}

func (a *API) UnregisterCondition(ctx context.Context, name string) {
	_, _ = a.h.Call(ctx, "unregisterCondition", name)
}

func (a *API) Open(ctx context.Context, path string) {
	_, _ = a.h.Call(ctx, "open", path)
}

// DispatchCommand asks the host to run whatever the key event is bound to.
func (a *API) DispatchCommand(ctx context.Context, ev registry.KeyEvent) {
	_, _ = a.h.Call(ctx, "dispatchCommand",
		ev.Type, ev.Key, ev.Repeat, ev.AltKey, ev.CtrlKey, ev.MetaKey, ev.ShiftKey)
}

func (a *API) SetFont(ctx context.Context, family string, size int) {
	_, _ = a.h.Call(ctx, "setFont", family, size)
}

// GetConfig returns the raw configured value of name.
func (a *API) GetConfig(ctx context.Context, name string) (any, error) {
	return a.h.Call(ctx, "getConfig", name)
}

// Constants exposes host paths and other fixed values.
type Constants struct{ h *proxy.Handle }

func (c *Constants) Handle() *proxy.Handle { return c.h }

// UserPackagesJSONPath returns the path of the user's package list.
func (c *Constants) UserPackagesJSONPath(ctx context.Context) (string, error) {
	v, err := c.h.Call(ctx, "userPackagesJsonPath")
	if err != nil {
		return "", err
	}
	return asString(v)
}

// Window is a top-level editor window.
type Window struct {
	h      *proxy.Handle
	editor *Editor
}

func (w *Window) Handle() *proxy.Handle { return w.h }

func (w *Window) Close(ctx context.Context) {
	_, _ = w.h.Call(ctx, "close")
}

func (w *Window) OpenFindAndReplacePanel(ctx context.Context) {
	_, _ = w.h.Call(ctx, "openFindAndReplacePanel")
}

// StatusBar returns the window's status bar, or nil if it has none.
func (w *Window) StatusBar(ctx context.Context) (*StatusBar, error) {
	raw, err := w.h.Call(ctx, "statusBar")
	if err != nil {
		return nil, err
	}
	obj, ok := w.editor.store.GetOrCreate(raw, statusBarKind)
	if !ok {
		return nil, nil
	}
	return obj.(*StatusBar), nil
}

// StatusBar is a window's status line.
type StatusBar struct{ h *proxy.Handle }

func (s *StatusBar) Handle() *proxy.Handle { return s.h }

// ShowMessage displays msg. A zero timeout keeps it until cleared.
func (s *StatusBar) ShowMessage(ctx context.Context, msg string, timeout time.Duration) {
	_, _ = s.h.Call(ctx, "showMessageWithTimeout", msg, int(timeout/time.Millisecond))
}

func (s *StatusBar) ClearMessage(ctx context.Context) {
	_, _ = s.h.Call(ctx, "clearMessage")
}

// TabView is a tab bar with its documents.
type TabView struct{ h *proxy.Handle }

func (t *TabView) Handle() *proxy.Handle { return t.h }

func (t *TabView) CloseAllTabs(ctx context.Context)   { _, _ = t.h.Call(ctx, "closeAllTabs") }
func (t *TabView) CloseOtherTabs(ctx context.Context) { _, _ = t.h.Call(ctx, "closeOtherTabs") }
func (t *TabView) CloseActiveTab(ctx context.Context) { _, _ = t.h.Call(ctx, "closeActiveTab") }
func (t *TabView) AddNew(ctx context.Context)         { _, _ = t.h.Call(ctx, "addNew") }

func (t *TabView) SetCurrentIndex(ctx context.Context, index int) {
	_, _ = t.h.Call(ctx, "setCurrentIndex", index)
}

// Count returns the number of tabs.
func (t *TabView) Count(ctx context.Context) (int, error) {
	v, err := t.h.Call(ctx, "count")
	if err != nil {
		return 0, err
	}
	return asInt(v)
}

// CurrentIndex returns the visible tab's index, -1 when there is none.
func (t *TabView) CurrentIndex(ctx context.Context) (int, error) {
	v, err := t.h.Call(ctx, "currentIndex")
	if err != nil {
		return 0, err
	}
	return asInt(v)
}

// TabViewGroup holds split tab views.
type TabViewGroup struct{ h *proxy.Handle }

func (g *TabViewGroup) Handle() *proxy.Handle { return g.h }

func (g *TabViewGroup) SaveAll(ctx context.Context) {
	_, _ = g.h.Call(ctx, "saveAll")
}

func (g *TabViewGroup) SplitHorizontally(ctx context.Context) {
	_, _ = g.h.Call(ctx, "splitHorizontally")
}

func (g *TabViewGroup) SplitVertically(ctx context.Context) {
	_, _ = g.h.Call(ctx, "splitVertically")
}

// TextEditView is an editor pane.
type TextEditView struct{ h *proxy.Handle }

func (v *TextEditView) Handle() *proxy.Handle { return v.h }

func (v *TextEditView) Save(ctx context.Context)      { _, _ = v.h.Call(ctx, "save") }
func (v *TextEditView) SaveAs(ctx context.Context)    { _, _ = v.h.Call(ctx, "saveAs") }
func (v *TextEditView) Undo(ctx context.Context)      { _, _ = v.h.Call(ctx, "undo") }
func (v *TextEditView) Redo(ctx context.Context)      { _, _ = v.h.Call(ctx, "redo") }
func (v *TextEditView) Cut(ctx context.Context)       { _, _ = v.h.Call(ctx, "cut") }
func (v *TextEditView) Copy(ctx context.Context)      { _, _ = v.h.Call(ctx, "copy") }
func (v *TextEditView) Paste(ctx context.Context)     { _, _ = v.h.Call(ctx, "paste") }
func (v *TextEditView) SelectAll(ctx context.Context) { _, _ = v.h.Call(ctx, "selectAll") }
func (v *TextEditView) Indent(ctx context.Context)    { _, _ = v.h.Call(ctx, "indent") }

func (v *TextEditView) PerformCompletion(ctx context.Context) {
	_, _ = v.h.Call(ctx, "performCompletion")
}

func (v *TextEditView) InsertNewLineWithIndent(ctx context.Context) {
	_, _ = v.h.Call(ctx, "insertNewLineWithIndent")
}

// Delete removes repeat characters; values below one are treated as one.
func (v *TextEditView) Delete(ctx context.Context, repeat int) {
	_, _ = v.h.Call(ctx, "doDelete", atLeastOne(repeat))
}

// MoveCursor applies a named cursor operation repeat times.
func (v *TextEditView) MoveCursor(ctx context.Context, operation string, repeat int) {
	if operation == "" {
		return
	}
	_, _ = v.h.Call(ctx, "moveCursor", operation, atLeastOne(repeat))
}

func (v *TextEditView) SetThinCursor(ctx context.Context, thin bool) {
	_, _ = v.h.Call(ctx, "setThinCursor", thin)
}

func (v *TextEditView) Text(ctx context.Context) (string, error) {
	return v.stringCall(ctx, "text")
}

func (v *TextEditView) ScopeName(ctx context.Context) (string, error) {
	return v.stringCall(ctx, "scopeName")
}

func (v *TextEditView) ScopeTree(ctx context.Context) (string, error) {
	return v.stringCall(ctx, "scopeTree")
}

func (v *TextEditView) stringCall(ctx context.Context, method string) (string, error) {
	raw, err := v.h.Call(ctx, method)
	if err != nil {
		return "", err
	}
	s, err := asString(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	return s, nil
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
