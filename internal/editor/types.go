package editor

import (
	"github.com/silkedit/silkedit-helper/internal/objstore"
	"github.com/silkedit/silkedit-helper/internal/proxy"
	"github.com/silkedit/silkedit-helper/internal/remote"
)

// Singleton service ids.
var (
	APIID       = remote.MustSingleton("2bb7d707-42e3-4be2-a7fc-3c65f997de40")
	ConstantsID = remote.MustSingleton("6f1d3a52-8b0e-4c47-9e2a-54d8c3b7a019")
)

// Handle types and their notify-only methods.
var (
	APIType = proxy.NewType("API",
		"loadKeymap", "loadMenu", "loadToolbar", "loadConfig",
		"registerCommands", "unregisterCommands",
		"alert", "registerCondition", "unregisterCondition",
		"open", "dispatchCommand", "setFont",
	)
	ConstantsType = proxy.NewType("Constants")
	WindowType    = proxy.NewType("Window", "close", "openFindAndReplacePanel")
	StatusBarType = proxy.NewType("StatusBar", "clearMessage", "showMessageWithTimeout")
	TabViewType   = proxy.NewType("TabView",
		"closeAllTabs", "closeOtherTabs", "closeActiveTab", "addNew", "setCurrentIndex",
	)
	TabViewGroupType = proxy.NewType("TabViewGroup", "saveAll", "splitHorizontally", "splitVertically")
	TextEditViewType = proxy.NewType("TextEditView",
		"save", "saveAs", "undo", "redo", "cut", "copy", "paste", "selectAll",
		"doDelete", "moveCursor", "setThinCursor", "performCompletion",
		"insertNewLineWithIndent", "indent",
	)
	InputDialogType = proxy.NewType("InputDialog",
		"enableOK", "disableOK", "setLabelText", "setTextValue", "setCurrentIndex", "deleteLater",
	)
)

var (
	apiKind = objstore.Kind{
		Type: APIType, IDKind: remote.KindSingleton,
		Wrap: func(h *proxy.Handle) objstore.Object { return &API{h: h} },
	}
	constantsKind = objstore.Kind{
		Type: ConstantsType, IDKind: remote.KindSingleton,
		Wrap: func(h *proxy.Handle) objstore.Object { return &Constants{h: h} },
	}
	statusBarKind = objstore.Kind{
		Type: StatusBarType, IDKind: remote.KindIndexed,
		Wrap: func(h *proxy.Handle) objstore.Object { return &StatusBar{h: h} },
	}
	tabViewKind = objstore.Kind{
		Type: TabViewType, IDKind: remote.KindIndexed,
		Wrap: func(h *proxy.Handle) objstore.Object { return &TabView{h: h} },
	}
	tabViewGroupKind = objstore.Kind{
		Type: TabViewGroupType, IDKind: remote.KindIndexed,
		Wrap: func(h *proxy.Handle) objstore.Object { return &TabViewGroup{h: h} },
	}
	textEditViewKind = objstore.Kind{
		Type: TextEditViewType, IDKind: remote.KindIndexed,
		Wrap: func(h *proxy.Handle) objstore.Object { return &TextEditView{h: h} },
	}
	inputDialogKind = objstore.Kind{
		Type: InputDialogType, IDKind: remote.KindIndexed,
		Wrap: func(h *proxy.Handle) objstore.Object { return &InputDialog{h: h} },
	}
)
