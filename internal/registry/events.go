package registry

// Event is the argument passed to event filters.
type Event interface {
	EventType() string
}

// Filter types raised by the dispatcher.
const (
	TypeKeyPress     = "keypress"
	TypeKeyRelease   = "keyrelease"
	TypeCommand      = "command"
	TypeRunCommand   = "runCommand"
	TypeFocusChanged = "focusChanged"
)

// KeyEvent is a key press or release. The modifier flags keep the host's shape.
type KeyEvent struct {
	Type     string `json:"type"`
	Key      string `json:"key"`
	Repeat   bool   `json:"repeat"`
	AltKey   bool   `json:"altKey"`
	CtrlKey  bool   `json:"ctrlKey"`
	MetaKey  bool   `json:"metaKey"`
	ShiftKey bool   `json:"shiftKey"`
}

func (e KeyEvent) EventType() string { return e.Type }

// CommandEvent describes a command. Filters of TypeRunCommand see it before the
// command runs and may rewrite Name and Args.
type CommandEvent struct {
	Type string         `json:"-"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

func (e *CommandEvent) EventType() string {
	if e.Type == "" {
		return TypeCommand
	}
	return e.Type
}

// FocusEvent reports the type of the view that gained focus.
type FocusEvent struct {
	ViewType string `json:"type"`
}

func (FocusEvent) EventType() string { return TypeFocusChanged }

// GenericEvent carries any other event type verbatim.
type GenericEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (e GenericEvent) EventType() string { return e.Type }
