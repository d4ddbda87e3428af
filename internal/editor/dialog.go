package editor

import (
	"context"
	"fmt"

	"github.com/silkedit/silkedit-helper/internal/proxy"
	"github.com/silkedit/silkedit-helper/internal/remote"
)

// Default captions of the file dialogs.
const (
	CaptionFileAndFolder = "Open"
	CaptionFiles         = "Open Files"
	CaptionFolder        = "Open Folder"
)

// ValidateFunc decides whether the dialog's current text is acceptable.
type ValidateFunc func(ctx context.Context, text string) (bool, error)

// InputDialog is a transient single-line text prompt.
type InputDialog struct {
	h        *proxy.Handle
	validate ValidateFunc
}

func (d *InputDialog) Handle() *proxy.Handle { return d.h }

// ShowInputDialog shows a modal prompt and returns the entered text.
// ok is false when the user cancelled. The calling fiber stays parked while
// the dialog is open; validate runs in separate fibers on every text change.
func (e *Editor) ShowInputDialog(ctx context.Context, label, initial string, validate ValidateFunc) (text string, ok bool, err error) {
	raw, err := e.api.h.Call(ctx, "newInputDialog")
	if err != nil {
		return "", false, fmt.Errorf("create input dialog: %w", err)
	}
	obj, valid := e.store.GetOrCreate(raw, inputDialogKind)
	if !valid {
		return "", false, fmt.Errorf("create input dialog: host returned invalid id %v", raw)
	}
	d := obj.(*InputDialog)
	d.validate = validate
	id := d.h.ID()

	e.mu.Lock()
	e.dialogs[id] = d
	e.mu.Unlock()
	defer e.dropDialog(ctx, d)

	if label != "" {
		_, _ = d.h.Call(ctx, "setLabelText", label)
	}
	if initial != "" {
		_, _ = d.h.Call(ctx, "setTextValue", initial)
	}

	result, err := d.h.Call(ctx, "show")
	if err != nil {
		return "", false, err
	}
	if result == nil {
		return "", false, nil
	}
	text, err = asString(result)
	if err != nil {
		return "", false, fmt.Errorf("show input dialog: %w", err)
	}
	return text, true, nil
}

func (e *Editor) dropDialog(ctx context.Context, d *InputDialog) {
	_, _ = d.h.Call(ctx, "deleteLater")
	e.mu.Lock()
	delete(e.dialogs, d.h.ID())
	e.mu.Unlock()
	e.store.Release(d.h.ID())
}

// OpenDialogs returns the number of input dialogs currently shown.
func (e *Editor) OpenDialogs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.dialogs)
}

// InputDialogTextChanged validates text for the dialog raw and toggles its OK button.
// Unknown dialogs and dialogs without a validator are ignored.
func (e *Editor) InputDialogTextChanged(ctx context.Context, raw any, text string) error {
	id := remote.Parse(raw, remote.KindIndexed)
	e.mu.Lock()
	d := e.dialogs[id]
	e.mu.Unlock()
	if d == nil || d.validate == nil {
		return nil
	}

	ok, err := d.validate(ctx, text)
	if err != nil {
		return fmt.Errorf("validate input: %w", err)
	}
	if ok {
		_, _ = d.h.Call(ctx, "enableOK")
	} else {
		_, _ = d.h.Call(ctx, "disableOK")
	}
	return nil
}

// ShowFileAndFolderDialog lets the user pick files or folders.
func (e *Editor) ShowFileAndFolderDialog(ctx context.Context, caption string) ([]string, error) {
	return e.pathsDialog(ctx, "showFileAndFolderDialog", caption, CaptionFileAndFolder)
}

// ShowFilesDialog lets the user pick files.
func (e *Editor) ShowFilesDialog(ctx context.Context, caption string) ([]string, error) {
	return e.pathsDialog(ctx, "showFilesDialog", caption, CaptionFiles)
}

// ShowFolderDialog lets the user pick one folder. An empty path means cancelled.
func (e *Editor) ShowFolderDialog(ctx context.Context, caption string) (string, error) {
	if caption == "" {
		caption = CaptionFolder
	}
	raw, err := e.api.h.Call(ctx, "showFolderDialog", caption)
	if err != nil {
		return "", err
	}
	return asString(raw)
}

func (e *Editor) pathsDialog(ctx context.Context, method, caption, fallback string) ([]string, error) {
	if caption == "" {
		caption = fallback
	}
	raw, err := e.api.h.Call(ctx, method, caption)
	if err != nil {
		return nil, err
	}
	paths, err := asStrings(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return paths, nil
}

// Font is a font family and point size.
type Font struct {
	Family string `json:"family"`
	Size   int    `json:"size"`
}

// ShowFontDialog lets the user pick a font. It returns nil when cancelled.
func (e *Editor) ShowFontDialog(ctx context.Context) (*Font, error) {
	raw, err := e.api.h.Call(ctx, "showFontDialog")
	if err != nil {
		return nil, err
	}

	var family, size any
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		if len(v) != 2 {
			return nil, fmt.Errorf("showFontDialog: expected [family, size], got %d elements", len(v))
		}
		family, size = v[0], v[1]
	case map[string]any:
		family, size = v["family"], v["size"]
	default:
		return nil, fmt.Errorf("showFontDialog: unexpected reply %T", raw)
	}

	f := &Font{}
	if f.Family, err = asString(family); err != nil {
		return nil, fmt.Errorf("showFontDialog family: %w", err)
	}
	if f.Size, err = asInt(size); err != nil {
		return nil, fmt.Errorf("showFontDialog size: %w", err)
	}
	return f, nil
}
