// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/fractal/internal/api"
	"github.com/starford/fractal/internal/editor"
	"github.com/starford/fractal/internal/geometry"
	"github.com/starford/fractal/internal/library"
	"github.com/starford/fractal/internal/mcpserver"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/registry"
	"github.com/starford/fractal/internal/remote"
	"github.com/starford/fractal/internal/sse"
	"github.com/starford/fractal/internal/storage"
)

// core is the part of the application shared by the HTTP server and the
// stdio MCP mode.
type core struct {
	store *storage.FS
	reg   *registry.DB
	lib   *library.Service
	ed    *editor.Editor
}

func newCore(cfg *Config, logger *slog.Logger, pubs ...editor.Publisher) (*core, error) {
	if err := os.MkdirAll(cfg.Library.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Library.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	reg, err := registry.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}

	lib := library.NewService(store, reg,
		library.WithLogger(logger),
		library.WithDefaultDuration(cfg.Library.ImportDuration),
		library.WithMaxDownload(cfg.Library.MaxDownloadMB<<20),
		library.WithImportCallback(func(a models.Asset) {
			ev := sse.Event{Type: sse.TypeAssetImported, Data: a}
			for _, p := range pubs {
				p.Publish(ev)
			}
		}),
	)
	ed := editor.New(
		editor.WithLogger(logger),
		editor.WithTimeline(cfg.Timeline.NewTimeline()),
		editor.WithTickInterval(cfg.Timeline.TickInterval),
		editor.WithSkipInterval(cfg.Timeline.SkipInterval),
		editor.WithPublishers(pubs...),
	)
	return &core{store: store, reg: reg, lib: lib, ed: ed}, nil
}

func (c *core) initialSync(ctx context.Context, logger *slog.Logger) {
	rep, err := c.lib.Sync(ctx)
	if err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("Library synced",
		slog.Int("scanned", rep.Scanned),
		slog.Int("imported", rep.Imported),
		slog.Int("failed", rep.Failed))
}

func newLogger(app *application) *slog.Logger {
	return slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("auth_enabled", cfg.Auth.AuthEnabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Editor events fan out to the SSE stream and to WebSocket clients. The
	// hub needs the editor, so it is wired in after the core is built and
	// before anything can publish.
	broker := sse.NewBroker(cfg.Events.PlayheadThrottle)
	defer broker.Close()
	var hub *remote.Hub
	toHub := editor.PublisherFunc(func(ev sse.Event) { hub.Publish(ev) })

	c, err := newCore(cfg, logger, broker, toHub)
	if err != nil {
		return err
	}
	defer c.reg.Close()
	hub = remote.NewHub(c.ed, remote.WithLogger(logger))

	c.initialSync(ctx, logger)

	mcpSrv := mcpserver.New(c.ed, c.lib)
	auth := api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	apiRouter := api.NewRouter(c.ed, c.lib, api.Options{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      broker,
		Remote:      hub,
		Scale:       geometry.Scale(cfg.Timeline.PixelsPerSecond),
		FrameRate:   cfg.Timeline.FrameRate,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated). Ready means the editor loop
	// answers.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if _, err := c.ed.Status(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Library files, for players. Not behind auth: <video> and <audio>
	// elements cannot send headers.
	r.Get("/media/*", api.MediaHandler(c.store))

	// Assistant tools over streamable HTTP.
	r.With(auth).Handle("/mcp", mcpSrv.Handler())

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.ed.Run(gCtx)
	})

	g.Go(func() error {
		return hub.Run(gCtx)
	})

	// Start library watcher. Imports are published through the callback.
	if cfg.Library.Watch {
		g.Go(func() error {
			if err := c.lib.Watch(gCtx, c.store.Root()); err != nil {
				logger.Error("library watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Open event streams would hold Shutdown until its timeout.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stop the editor, hub and watcher.
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunStdio serves a single MCP session over stdin/stdout with its own
// editor. The library folder and registry are shared with the server, so
// assets imported by either are visible to both; the timeline is not.
func RunStdio(ctx context.Context, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(app)
	slog.SetDefault(logger)

	c, err := newCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.reg.Close()
	c.initialSync(ctx, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.ed.Run(gCtx)
	})
	g.Go(func() error {
		defer stop()
		logger.Info("MCP stdio session started")
		if err := mcpserver.New(c.ed, c.lib).ServeStdio(gCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			return fmt.Errorf("mcp stdio: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("MCP stdio session ended")
	return nil
}
