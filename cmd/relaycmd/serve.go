package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mattjoyce/relaycmd/internal/api"
	"github.com/mattjoyce/relaycmd/internal/auth"
	"github.com/mattjoyce/relaycmd/internal/config"
	"github.com/mattjoyce/relaycmd/internal/events"
	"github.com/mattjoyce/relaycmd/internal/lock"
	"github.com/mattjoyce/relaycmd/internal/log"
	"github.com/mattjoyce/relaycmd/internal/progress"
	"github.com/mattjoyce/relaycmd/internal/registry"
	"github.com/mattjoyce/relaycmd/internal/scheduler"
	"github.com/mattjoyce/relaycmd/internal/state"
	"github.com/mattjoyce/relaycmd/internal/storage"
	"github.com/mattjoyce/relaycmd/internal/tui"
	"github.com/mattjoyce/relaycmd/internal/tui/watch"
	"github.com/mattjoyce/relaycmd/internal/webhook"
)

// runtimeDeps is everything built from a loaded config.
type runtimeDeps struct {
	cfg      *config.Config
	hub      *events.Hub
	registry *registry.Registry
	store    *state.Store
	closers  []func()
}

// buildRuntime wires the registry to its tracker, hub and, when state.path
// is set, the history store. The database is guarded by a PID lock so two
// processes never share it.
func buildRuntime(cfg *config.Config) (*runtimeDeps, error) {
	rt := &runtimeDeps{cfg: cfg, hub: events.NewHub(cfg.Service.EventCapacity)}

	var opts []registry.Option
	if cfg.State.Path != "" {
		if err := rt.openState(context.Background()); err != nil {
			rt.Close()
			return nil, err
		}
		opts = append(opts, registry.WithRecorder(rt.store))
	}

	tracker := progress.NewTracker(progress.WithHub(rt.hub))
	reg, err := registry.New(cfg.Commands, tracker, rt.hub, opts...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("build commands: %w", err)
	}
	rt.registry = reg
	return rt, nil
}

func (rt *runtimeDeps) openState(ctx context.Context) error {
	path := rt.cfg.State.Path
	pl, err := lock.AcquirePIDLock(lock.PathFor(path))
	if err != nil {
		return fmt.Errorf("lock state database: %w", err)
	}
	rt.closers = append(rt.closers, func() { _ = pl.Release() })

	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	rt.closers = append(rt.closers, func() { _ = db.Close() })

	rt.store = state.NewStore(db)
	n, err := rt.store.RecoverInterrupted(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("recover interrupted executions: %w", err)
	}
	if n > 0 {
		log.WithComponent("state").Warn("marked interrupted executions failed", "count", n)
	}
	return nil
}

// Close stops the registry before releasing storage so final results are
// still recorded.
func (rt *runtimeDeps) Close() {
	if rt.registry != nil {
		rt.registry.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func newScheduler(rt *runtimeDeps) (*scheduler.Scheduler, error) {
	var opts []scheduler.Option
	if rt.store != nil {
		opts = append(opts, scheduler.WithPruner(rt.store, rt.cfg.State.HistoryRetention))
	}
	return scheduler.New(rt.cfg.Schedules, rt.registry, rt.hub, log.Get(), opts...)
}

func newAPIServer(rt *runtimeDeps) *api.Server {
	tokens := make([]auth.TokenConfig, 0, len(rt.cfg.API.Auth.Tokens))
	for _, t := range rt.cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{
			Token:  t.Token,
			Scopes: t.Scopes,
		})
	}
	apiConfig := api.Config{
		Listen: rt.cfg.API.Listen,
		APIKey: rt.cfg.API.Auth.APIKey,
		Tokens: tokens,
		Title:  rt.cfg.Service.Name,
	}
	return api.New(apiConfig, rt.registry, rt.hub, log.WithComponent("api"))
}

func runServe(args []string) int {
	var configPath string
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if !cfg.API.Enabled && cfg.Webhooks == nil && len(cfg.Schedules) == 0 {
		fmt.Fprintln(os.Stderr, "api.enabled is false and no webhooks or schedules are configured; nothing to serve (use 'relaycmd tui' for the local panel)")
		return 1
	}

	log.SetupWithWriter(cfg.Service.LogLevel, cfg.Service.LogFormat, os.Stdout)
	logger := log.WithComponent("main")
	logger.Info("relaycmd starting", "version", version, "config_fingerprint", cfg.Fingerprint)

	rt, err := buildRuntime(cfg)
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		return 1
	}
	defer rt.Close()
	for _, name := range rt.registry.Names() {
		logger.Info("command registered", "command", name)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := newScheduler(rt)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		return 1
	}
	sched.Start(ctx)
	defer sched.Stop()

	var servers []func(context.Context) error
	if cfg.Webhooks != nil {
		wcfg, err := webhook.FromGlobalConfig(cfg.Webhooks)
		if err != nil {
			logger.Error("invalid webhook config", "error", err)
			return 1
		}
		servers = append(servers, webhook.New(wcfg, rt.registry, log.WithComponent("webhook")).Start)
	}
	if cfg.API.Enabled {
		servers = append(servers, newAPIServer(rt).Start)
	}

	if len(servers) == 0 {
		<-ctx.Done()
		logger.Info("relaycmd stopped")
		return 0
	}

	errCh := make(chan error, len(servers))
	for _, start := range servers {
		go func() { errCh <- start(ctx) }()
	}

	code := 0
	for range servers {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server failed", "error", err)
			code = 1
			cancel()
		}
	}

	logger.Info("relaycmd stopped")
	return code
}

func runTUI(args []string) int {
	var configPath, logFile string
	var withAPI bool
	fs := pflag.NewFlagSet("tui", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "Path to configuration file or directory")
	fs.BoolVar(&withAPI, "api", false, "Also serve the HTTP API")
	fs.StringVar(&logFile, "log-file", "", "Write logs to this file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// The panel owns the terminal, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logOut = f
	}
	log.SetupWithWriter(cfg.Service.LogLevel, cfg.Service.LogFormat, logOut)

	rt, err := buildRuntime(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build commands: %v\n", err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := newScheduler(rt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build scheduler: %v\n", err)
		return 1
	}
	sched.Start(ctx)
	defer sched.Stop()

	if withAPI {
		if !cfg.API.Enabled {
			fmt.Fprintln(os.Stderr, "--api requires api.enabled: true in config")
			return 1
		}
		srv := newAPIServer(rt)
		go func() {
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("api server failed", "error", err)
			}
		}()
	}

	if err := tui.Run(ctx, rt.registry, cfg.TUI.Title); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func runWatch(args []string) int {
	var apiURL, token string
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	fs.StringVar(&apiURL, "url", "http://127.0.0.1:8087", "API base URL")
	fs.StringVar(&token, "token", os.Getenv("RELAYCMD_TOKEN"), "Bearer token (commands:ro and events:ro)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "A token is required (--token or RELAYCMD_TOKEN)")
		return 1
	}

	if err := watch.Run(apiURL, token, ""); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}
