package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/silkedit/silkedit-helper/internal/api"
	"github.com/silkedit/silkedit-helper/internal/config"
	"github.com/silkedit/silkedit-helper/internal/dispatch"
	"github.com/silkedit/silkedit-helper/internal/editor"
	"github.com/silkedit/silkedit-helper/internal/events"
	"github.com/silkedit/silkedit-helper/internal/fiber"
	"github.com/silkedit/silkedit-helper/internal/gateway"
	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/objstore"
	"github.com/silkedit/silkedit-helper/internal/packages"
	"github.com/silkedit/silkedit-helper/internal/registry"
	"github.com/silkedit/silkedit-helper/internal/rpc"
	"github.com/silkedit/silkedit-helper/internal/silk"
	"github.com/silkedit/silkedit-helper/internal/state"
	"github.com/silkedit/silkedit-helper/internal/storage"
	"github.com/silkedit/silkedit-helper/internal/translate"
)

const version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `silkedit-helper - scripting bridge for the silkedit editor

Usage:
  silkedit-helper [flags] <socket> [locale] [package-dir...]

Arguments:
  socket       Unix socket the editor listens on
  locale       UI locale, e.g. ja_JP (default from config, then "en")
  package-dir  Directories whose sub-directories are packages

Flags:
  -config path     Configuration file (default ~/.silk/helper.yml)
  -log-level lvl   debug, info, warn or error
  -version         Show version information
`)
}

// invocation is the parsed command line.
type invocation struct {
	configPath string
	logLevel   string
	socket     string
	locale     string
	roots      []string
}

func parseArgs(args []string, stderr io.Writer) (*invocation, int, bool) {
	fs := flag.NewFlagSet("silkedit-helper", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	inv := &invocation{}
	fs.StringVar(&inv.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&inv.logLevel, "log-level", "", "Log level override")
	showVersion := fs.Bool("version", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, 0, false
		}
		return nil, 1, false
	}
	if *showVersion {
		fmt.Fprintf(stderr, "silkedit-helper version %s\n", version)
		return nil, 0, false
	}

	pos := fs.Args()
	if len(pos) < 1 || pos[0] == "" {
		fmt.Fprintln(stderr, "missing argument: socket")
		printUsage(stderr)
		return nil, 1, false
	}
	inv.socket = pos[0]
	if len(pos) > 1 {
		inv.locale = pos[1]
	}
	if len(pos) > 2 {
		inv.roots = pos[2:]
	}
	return inv, 0, true
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	inv, code, ok := parseArgs(args, stderr)
	if !ok {
		return code
	}

	cfg, err := config.Load(inv.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if inv.logLevel != "" {
		cfg.Service.LogLevel = inv.logLevel
	}
	if inv.locale != "" {
		cfg.Locale = inv.locale
	}
	roots := append(append([]string{}, cfg.PackageDirs...), inv.roots...)

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("silkedit-helper starting", "version", version, "socket", inv.socket, "locale", cfg.Locale)

	backend, closeState, err := openState(ctx, cfg.State.Path, logger)
	if err != nil {
		logger.Error("failed to open package state", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer closeState()

	conn, err := rpc.Dial(ctx, inv.socket)
	if err != nil {
		logger.Error("failed to connect to editor", "socket", inv.socket, "error", err)
		return 1
	}
	defer conn.Close()

	gw := gateway.New(conn)
	store := objstore.New(gw)
	ed := editor.New(store)
	reg := registry.New()
	tr := translate.New(cfg.Locale)
	s := silk.New(ed, reg, tr, backend)

	loader, err := packages.NewLoader(s, packages.NewCatalog(), version)
	if err != nil {
		logger.Error("failed to create package loader", "error", err)
		return 1
	}

	sched := fiber.NewScheduler()
	hub := events.NewHub(256)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	disp := dispatch.New(gctx, dispatch.Options{
		Scheduler:    sched,
		Registry:     reg,
		Translator:   tr,
		Dialogs:      ed,
		Packages:     loader,
		PackageRoots: roots,
		Hub:          hub,
	})
	conn.SetHandler(disp)

	g.Go(func() error {
		// Losing the editor ends the helper.
		defer cancel()
		if err := conn.Serve(gctx); err != nil {
			return fmt.Errorf("host connection: %w", err)
		}
		logger.Info("host connection closed")
		return nil
	})

	if cfg.Debug.Listen != "" {
		srv := api.New(api.Config{Listen: cfg.Debug.Listen}, api.Deps{
			Fibers:   sched,
			Registry: reg,
			Packages: loader,
			Calls:    gw,
			Objects:  store,
			Events:   hub,
		}, log.WithComponent("api"))
		// Diagnostics are optional; the bridge keeps running without them.
		g.Go(func() error {
			if err := srv.Start(gctx); err != nil {
				logger.Warn("diagnostics server unavailable", "listen", cfg.Debug.Listen, "error", err)
			}
			return nil
		})
	}

	sched.Spawn(gctx, "loadPackages", func(ctx context.Context) error {
		return loader.LoadAll(ctx, roots)
	}, nil)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("helper stopped", "error", err)
		return 1
	}
	// Parked fibers wait on replies that will never come; they are abandoned.
	logger.Info("silkedit-helper stopped", "live_fibers", sched.Live())
	return 0
}

// openState opens the SQLite package state, or an in-memory one when path is empty.
func openState(ctx context.Context, path string, logger *slog.Logger) (state.Backend, func(), error) {
	if path == "" {
		logger.Info("package state kept in memory")
		return state.NewMemory(), func() {}, nil
	}
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("package state opened", "path", path)
	return state.NewStore(db), func() { _ = db.Close() }, nil
}
