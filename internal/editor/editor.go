// Package editor wraps the host's remote objects in typed handles.
//
// Every typed method funnels through proxy.Handle.Call, so notify versus
// invoke is decided by the handle type's notify set. Accessors resolve ids
// through the object store and return nil when the host reports no object.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/objstore"
	"github.com/silkedit/silkedit-helper/internal/proxy"
	"github.com/silkedit/silkedit-helper/internal/remote"
)

// Editor is the entry point to the host's objects.
type Editor struct {
	store      *objstore.Store
	logger     *slog.Logger
	windowKind objstore.Kind

	api       *API
	constants *Constants

	mu      sync.Mutex
	dialogs map[remote.ID]*InputDialog
}

// New builds an Editor on top of store.
func New(store *objstore.Store) *Editor {
	e := &Editor{
		store:   store,
		logger:  log.WithComponent("editor"),
		dialogs: make(map[remote.ID]*InputDialog),
	}
	e.windowKind = objstore.Kind{
		Type:   WindowType,
		IDKind: remote.KindIndexed,
		Wrap:   func(h *proxy.Handle) objstore.Object { return &Window{h: h, editor: e} },
	}
	e.api = store.Get(APIID, apiKind).(*API)
	e.constants = store.Get(ConstantsID, constantsKind).(*Constants)
	return e
}

// API returns the application facade.
func (e *Editor) API() *API { return e.api }

// Constants returns the constants provider.
func (e *Editor) Constants() *Constants { return e.constants }

// Store returns the underlying object store.
func (e *Editor) Store() *objstore.Store { return e.store }

func (e *Editor) resolve(ctx context.Context, method string, kind objstore.Kind) (objstore.Object, error) {
	raw, err := e.api.h.Call(ctx, method)
	if err != nil {
		return nil, err
	}
	obj, ok := e.store.GetOrCreate(raw, kind)
	if !ok {
		return nil, nil
	}
	return obj, nil
}

// ActiveWindow returns the focused window, or nil.
func (e *Editor) ActiveWindow(ctx context.Context) (*Window, error) {
	obj, err := e.resolve(ctx, "activeWindow", e.windowKind)
	if obj == nil || err != nil {
		return nil, err
	}
	return obj.(*Window), nil
}

// ActiveTabView returns the focused tab view, or nil.
func (e *Editor) ActiveTabView(ctx context.Context) (*TabView, error) {
	obj, err := e.resolve(ctx, "activeTabView", tabViewKind)
	if obj == nil || err != nil {
		return nil, err
	}
	return obj.(*TabView), nil
}

// ActiveTabViewGroup returns the focused tab view group, or nil.
func (e *Editor) ActiveTabViewGroup(ctx context.Context) (*TabViewGroup, error) {
	obj, err := e.resolve(ctx, "activeTabViewGroup", tabViewGroupKind)
	if obj == nil || err != nil {
		return nil, err
	}
	return obj.(*TabViewGroup), nil
}

// ActiveTextEditView returns the focused text view, or nil.
func (e *Editor) ActiveTextEditView(ctx context.Context) (*TextEditView, error) {
	obj, err := e.resolve(ctx, "activeTextEditView", textEditViewKind)
	if obj == nil || err != nil {
		return nil, err
	}
	return obj.(*TextEditView), nil
}

// Windows lists every open window. Ids the host sends that are not valid are skipped.
func (e *Editor) Windows(ctx context.Context) ([]*Window, error) {
	raw, err := e.api.h.Call(ctx, "windows")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	ids, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("windows: expected list, got %T", raw)
	}
	out := make([]*Window, 0, len(ids))
	for _, id := range ids {
		obj, ok := e.store.GetOrCreate(id, e.windowKind)
		if !ok {
			e.logger.Warn("skipping invalid window id", "id", id)
			continue
		}
		out = append(out, obj.(*Window))
	}
	return out, nil
}
