package dispatch

import (
	"github.com/silkedit/silkedit-helper/internal/registry"
)

// eventFromArgs builds the filter argument for an eventFilter request.
func eventFromArgs(typ string, raw any) registry.Event {
	m, _ := raw.(map[string]any)
	switch typ {
	case registry.TypeKeyPress, registry.TypeKeyRelease:
		return registry.KeyEvent{
			Type:     typ,
			Key:      str(m["key"]),
			Repeat:   flag(m["repeat"]),
			AltKey:   flag(m["altKey"]),
			CtrlKey:  flag(m["ctrlKey"]),
			MetaKey:  flag(m["metaKey"]),
			ShiftKey: flag(m["shiftKey"]),
		}
	case registry.TypeFocusChanged:
		return registry.FocusEvent{ViewType: str(m["type"])}
	case registry.TypeCommand, registry.TypeRunCommand:
		args, _ := m["args"].(map[string]any)
		name := str(m["name"])
		if name == "" {
			name = str(m["cmd"])
		}
		return &registry.CommandEvent{Type: typ, Name: name, Args: args}
	}
	return registry.GenericEvent{Type: typ, Payload: raw}
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func flag(v any) bool {
	b, _ := v.(bool)
	return b
}
