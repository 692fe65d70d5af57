package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/exemple-users/internal/api"
	"github.com/eugenenazirov/exemple-users/internal/config"
	"github.com/eugenenazirov/exemple-users/internal/metrics"
	"github.com/eugenenazirov/exemple-users/internal/store"
)

// Option customises how New assembles the application.
type Option func(*options)

type options struct {
	models *store.Models
}

// WithModels installs a ready model registry instead of connecting to MongoDB.
func WithModels(models store.Models) Option {
	return func(o *options) {
		o.models = &models
	}
}

// App encapsulates the application dependencies and HTTP server.
type App struct {
	cfg     config.Config
	conn    *store.Connection
	models  store.Models
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// New connects to the store and assembles handler, router and server from cfg.
// The returned App owns the store connection; Shutdown releases it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{cfg: cfg, logger: logger}

	handlerOpts := []api.HandlerOption{api.WithOperationTimeout(cfg.DBOperationTimeout)}
	if o.models != nil {
		app.models = *o.models
	} else {
		connector := store.NewConnector(cfg, logger, store.WithStateObserver(func(s store.State) {
			metrics.SetStoreState(int(s))
		}))
		conn, err := connector.Connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to store: %w", err)
		}
		app.conn = conn
		app.models = conn.Models()
		handlerOpts = append(handlerOpts, api.WithStoreState(conn.State))
	}

	if err := app.models.Validate(); err != nil {
		app.closeStore(context.Background())
		return nil, err
	}

	app.handler = api.NewHandler(app.models, logger, handlerOpts...)
	app.router = api.NewRouter(app.handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithCORSOrigins(cfg.CORSOrigins...),
	)

	rootHandler, err := BuildRootHandler(cfg.StaticDir, app.router)
	if err != nil {
		app.closeStore(context.Background())
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}
	app.server = NewServer(cfg, rootHandler)

	return app, nil
}

// BuildRootHandler serves the documentation pages under /public/, redirects the
// bare root to the readme, exposes /metrics and hands everything else to the API.
func BuildRootHandler(staticDir string, apiHandler http.Handler) (http.Handler, error) {
	staticPath := staticDir
	if !filepath.IsAbs(staticPath) {
		resolved, err := resolveProjectPath(staticDir)
		if err != nil {
			return nil, err
		}
		staticPath = resolved
	}

	mux := http.NewServeMux()
	mux.Handle("/public/", http.StripPrefix("/public/", http.FileServer(http.Dir(staticPath))))
	mux.Handle("GET /{$}", http.RedirectHandler("/public/readme.html", http.StatusFound))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/", apiHandler)

	return metrics.InstrumentHandler(mux), nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start binds the listener and serves in a goroutine. A bind failure is returned
// to the caller; a later serve failure terminates the process.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}

	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	a.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
	a.logger.Info("documentation available",
		zap.String("url", fmt.Sprintf("http://%s/public/readme", a.cfg.ListenAddr())),
	)

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound listener address, or an empty string before Start.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Shutdown stops accepting requests, drains in-flight ones and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	if a.conn != nil {
		if err := a.conn.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

func (a *App) closeStore(ctx context.Context) {
	if a.conn == nil {
		return
	}
	if err := a.conn.Close(ctx); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
