package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/silkedit/silkedit-helper/internal/events"
	"github.com/silkedit/silkedit-helper/internal/fiber"
	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/registry"
	"github.com/silkedit/silkedit-helper/internal/rpc"
)

const (
	// maxBodyBytes caps a sendGetRequest body so the reply fits in one frame.
	maxBodyBytes = 8 << 20

	defaultHTTPTimeout = 30 * time.Second

	kindNotify  = "notify"
	kindRequest = "request"
)

// Translator answers translate requests.
type Translator interface {
	T(key, def string) string
}

// Dialogs receives input dialog text changes.
type Dialogs interface {
	InputDialogTextChanged(ctx context.Context, raw any, text string) error
}

// Packages loads and removes packages on the host's request.
type Packages interface {
	Load(ctx context.Context, dir string) error
	Remove(ctx context.Context, dir string) error
	ReloadKeymaps(ctx context.Context, roots []string)
}

// Options wires a Dispatcher. Scheduler and Registry are required.
type Options struct {
	Scheduler    *fiber.Scheduler
	Registry     *registry.Registry
	Translator   Translator
	Dialogs      Dialogs
	Packages     Packages
	PackageRoots []string
	Hub          *events.Hub
	HTTPClient   *http.Client
}

// Dispatcher implements rpc.Handler.
type Dispatcher struct {
	ctx    context.Context
	opts   Options
	logger *slog.Logger

	wg sync.WaitGroup
}

var _ rpc.Handler = (*Dispatcher)(nil)

// New returns a Dispatcher whose fibers run under ctx.
func New(ctx context.Context, opts Options) *Dispatcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Dispatcher{
		ctx:    ctx,
		opts:   opts,
		logger: log.WithComponent("dispatch"),
	}
}

// Wait blocks until background HTTP fetches and all fibers have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
	d.opts.Scheduler.Wait()
}

// HandleNotify implements rpc.Handler.
func (d *Dispatcher) HandleNotify(method string, args rpc.Args) {
	switch method {
	case "commandEvent":
		ev := &registry.CommandEvent{Name: args.String(0), Args: args.Map(1)}
		d.notifyFilters(method, ev)

	case "focusChanged":
		d.notifyFilters(method, registry.FocusEvent{ViewType: args.String(0)})

	case "InputDialog.textValueChanged":
		if d.opts.Dialogs == nil {
			d.publish(kindNotify, method, events.OutcomeUnhandled, 0, "no dialogs")
			return
		}
		raw, text := args.Value(0), args.String(1)
		d.spawn(kindNotify, method, func(ctx context.Context) error {
			return d.opts.Dialogs.InputDialogTextChanged(ctx, raw, text)
		}, nil)

	case "loadPackage":
		if d.opts.Packages == nil {
			d.publish(kindNotify, method, events.OutcomeUnhandled, 0, "no package loader")
			return
		}
		dir := args.String(0)
		d.spawn(kindNotify, method, func(ctx context.Context) error {
			return d.opts.Packages.Load(ctx, dir)
		}, nil)

	case "reloadKeymaps":
		if d.opts.Packages == nil {
			d.publish(kindNotify, method, events.OutcomeUnhandled, 0, "no package loader")
			return
		}
		d.spawn(kindNotify, method, func(ctx context.Context) error {
			d.opts.Packages.ReloadKeymaps(ctx, d.opts.PackageRoots)
			return nil
		}, nil)

	default:
		d.logger.Debug("unknown notification", "method", method)
		d.publish(kindNotify, method, events.OutcomeUnhandled, 0, "unknown method")
	}
}

// notifyFilters runs every filter of ev's type, ignoring their results.
func (d *Dispatcher) notifyFilters(method string, ev registry.Event) {
	filters := d.opts.Registry.EventFilters(ev.EventType())
	if len(filters) == 0 {
		d.publish(kindNotify, method, events.OutcomeUnhandled, 0, ev.EventType())
		return
	}
	d.spawn(kindNotify, method, func(ctx context.Context) error {
		for _, fn := range filters {
			if _, err := fn(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	}, nil)
}

// HandleRequest implements rpc.Handler.
func (d *Dispatcher) HandleRequest(method string, args rpc.Args, resp *rpc.Response) {
	switch method {
	case "runCommand":
		name := args.String(0)
		cmd, ok := d.opts.Registry.Command(name)
		if !ok {
			d.answer(resp, false, name)
			return
		}
		cmdArgs := args.Map(1)
		if cmdArgs == nil {
			cmdArgs = map[string]any{}
		}
		d.spawn(kindRequest, method, func(ctx context.Context) error {
			if err := cmd(ctx, cmdArgs); err != nil {
				return fmt.Errorf("command %s: %w", name, err)
			}
			d.reply(resp, true)
			return nil
		}, func(error) { d.reply(resp, false) })

	case "askCondition":
		name, op, value := args.String(0), args.String(1), args.String(2)
		cond, ok := d.opts.Registry.Condition(name)
		if !ok {
			d.answer(resp, false, name)
			return
		}
		d.spawn(kindRequest, method, func(ctx context.Context) error {
			ok, err := cond(ctx, op, value)
			if err != nil {
				return fmt.Errorf("condition %s: %w", name, err)
			}
			d.reply(resp, ok)
			return nil
		}, func(error) { d.reply(resp, false) })

	case "eventFilter":
		d.filterRequest(method, eventFromArgs(args.String(0), args.Value(1)), resp)

	case "keyEventFilter":
		d.filterRequest(method, registry.KeyEvent{
			Type:     args.String(0),
			Key:      args.String(1),
			Repeat:   args.Bool(2),
			AltKey:   args.Bool(3),
			CtrlKey:  args.Bool(4),
			MetaKey:  args.Bool(5),
			ShiftKey: args.Bool(6),
		}, resp)

	case "cmdEventFilter":
		d.commandFilter(method, args, resp)

	case "translate":
		key, def := args.String(0), args.String(1)
		text := def
		if d.opts.Translator != nil {
			text = d.opts.Translator.T(key, def)
		}
		d.reply(resp, text)
		d.publish(kindRequest, method, events.OutcomeHandled, 0, key)

	case "removePackage":
		if d.opts.Packages == nil {
			d.fail(resp, "no package loader")
			return
		}
		dir := args.String(0)
		d.spawn(kindRequest, method, func(ctx context.Context) error {
			if err := d.opts.Packages.Remove(ctx, dir); err != nil {
				return err
			}
			d.reply(resp, true)
			return nil
		}, func(err error) { d.fail(resp, err.Error()) })

	case "sendGetRequest":
		d.fetch(args.String(0), resp)

	default:
		d.logger.Warn("unknown request", "method", method)
		d.fail(resp, "unknown method: "+method)
	}
}

func (d *Dispatcher) filterRequest(method string, ev registry.Event, resp *rpc.Response) {
	filters := d.opts.Registry.EventFilters(ev.EventType())
	if len(filters) == 0 {
		d.answer(resp, false, ev.EventType())
		return
	}
	d.spawn(kindRequest, method, func(ctx context.Context) error {
		handled, err := registry.RunFilters(ctx, filters, ev)
		if err != nil {
			return err
		}
		d.reply(resp, handled)
		return nil
	}, func(error) { d.reply(resp, false) })
}

// commandFilter lets runCommand filters veto or rewrite a command before it runs.
func (d *Dispatcher) commandFilter(method string, args rpc.Args, resp *rpc.Response) {
	ev := &registry.CommandEvent{
		Type: registry.TypeRunCommand,
		Name: args.String(0),
		Args: args.Map(1),
	}
	name, cmdArgs := ev.Name, ev.Args

	filters := d.opts.Registry.EventFilters(registry.TypeRunCommand)
	if len(filters) == 0 {
		d.answer(resp, []any{false, name, cmdArgs}, registry.TypeRunCommand)
		return
	}
	d.spawn(kindRequest, method, func(ctx context.Context) error {
		handled, err := registry.RunFilters(ctx, filters, ev)
		if err != nil {
			return err
		}
		d.reply(resp, []any{handled, ev.Name, ev.Args})
		return nil
	}, func(error) { d.reply(resp, []any{false, name, cmdArgs}) })
}

// fetch performs a GET off the fiber turn; it runs no package code.
func (d *Dispatcher) fetch(url string, resp *rpc.Response) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		body, err := d.get(url)
		if err != nil {
			d.logger.Warn("get request failed", "url", url, "error", err)
			d.fail(resp, err.Error())
			return
		}
		d.reply(resp, body)
		d.publish(kindRequest, "sendGetRequest", events.OutcomeHandled, 0, url)
	}()
}

func (d *Dispatcher) get(url string) (string, error) {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	res, err := d.opts.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// spawn runs task in a fiber, recording its progress on the hub.
func (d *Dispatcher) spawn(kind, method string, task func(context.Context) error, fallback func(error)) {
	var fid uint64
	d.opts.Scheduler.Spawn(d.ctx, method, func(ctx context.Context) error {
		if f := fiber.FromContext(ctx); f != nil {
			fid = f.ID()
		}
		d.publish(kind, method, events.OutcomeSpawned, fid, "")
		if err := task(ctx); err != nil {
			return err
		}
		d.publish(kind, method, events.OutcomeHandled, fid, "")
		return nil
	}, func(err error) {
		d.publish(kind, method, events.OutcomeFailed, fid, err.Error())
		if fallback != nil {
			fallback(err)
		}
	})
}

// answer replies without a fiber because nothing is registered for the message.
func (d *Dispatcher) answer(resp *rpc.Response, v any, detail string) {
	d.reply(resp, v)
	d.publish(kindRequest, resp.Method, events.OutcomeUnhandled, 0, detail)
}

func (d *Dispatcher) reply(resp *rpc.Response, v any) {
	if err := resp.Result(v); err != nil {
		d.logReplyError(resp, err)
	}
}

func (d *Dispatcher) fail(resp *rpc.Response, msg string) {
	if err := resp.Error(msg); err != nil {
		d.logReplyError(resp, err)
	}
	d.publish(kindRequest, resp.Method, events.OutcomeFailed, 0, msg)
}

func (d *Dispatcher) logReplyError(resp *rpc.Response, err error) {
	if errors.Is(err, rpc.ErrAlreadyReplied) {
		d.logger.Debug("duplicate reply dropped", "method", resp.Method)
		return
	}
	d.logger.Warn("reply failed", "method", resp.Method, "error", err)
}

func (d *Dispatcher) publish(kind, method, outcome string, fid uint64, detail string) {
	d.opts.Hub.Publish(events.Activity{
		Kind:    kind,
		Method:  method,
		Outcome: outcome,
		FiberID: fid,
		Detail:  detail,
	})
}
