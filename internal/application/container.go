// Package application provides application-level services and dependency
// injection for the viberater data layer.
package application

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/viberater/viberater/internal/adapters/connectivity"
	"github.com/viberater/viberater/internal/adapters/localstore/sqlite"
	"github.com/viberater/viberater/internal/adapters/remote/api"
	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/application/state"
	"github.com/viberater/viberater/internal/application/syncengine"
	"github.com/viberater/viberater/internal/infrastructure/config"
	"github.com/viberater/viberater/internal/infrastructure/logging"
	"github.com/viberater/viberater/internal/infrastructure/tracing"
)

// Container wires the data layer together: config, observability, the local
// store, the remote client, the connectivity monitor, the sync engine, and
// the state facade. It owns their lifecycle.
type Container struct {
	config  *config.Config
	cfgDir  string
	verbose bool

	logger  *logging.Logger
	tracer  *tracing.Tracer
	store   *sqlite.Store
	remote  *api.Client
	monitor *connectivity.Monitor
	engine  *syncengine.Engine
	facade  *state.Facade
}

// NewContainer builds the container. Services are created eagerly in
// dependency order; Start launches the background pieces.
func NewContainer(ctx context.Context, cfg *config.Config, cfgDir string, verbose bool) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Container{config: cfg, cfgDir: cfgDir, verbose: verbose}

	c.initObservability(ctx)

	if err := c.initStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}

	c.initRemote()
	c.initSync()

	if err := c.facade.Initialize(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to hydrate state: %w", err)
	}

	return c, nil
}

func (c *Container) initObservability(ctx context.Context) {
	level := logging.Level(c.config.Logging.Level)
	if c.verbose {
		level = logging.LevelDebug
	}
	c.logger = logging.New(logging.Config{
		Level:  level,
		Format: logging.Format(c.config.Logging.Format),
	})

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:      c.config.Tracing.Enabled,
		ExporterType: tracing.ExporterType(c.config.Tracing.ExporterType),
		OTLPEndpoint: c.config.Tracing.OTLPEndpoint,
		ServiceName:  c.config.Tracing.ServiceName,
		SampleRate:   c.config.Tracing.SampleRate,
	})
	if err != nil {
		c.logger.Warn("tracing disabled", "error", err)
		tracer = tracing.Noop()
	}
	c.tracer = tracer
}

func (c *Container) initStore(ctx context.Context) error {
	conn, err := sqlite.NewConnection(c.config.Storage.Path)
	if err != nil {
		return err
	}
	c.store = sqlite.NewStore(conn, c.logger)
	return c.store.Init(ctx)
}

func (c *Container) initRemote() {
	c.remote = api.NewClient(api.Config{
		BaseURL:      c.config.API.BaseURL,
		AccessToken:  c.config.API.AccessToken,
		RefreshToken: c.config.API.RefreshToken,
		Timeout:      c.config.API.Timeout,
	}, c.logger, c.tracer)
}

func (c *Container) initSync() {
	marker := c.config.Sync.OfflineMarker
	if marker == "" && c.cfgDir != "" {
		marker = filepath.Join(c.cfgDir, "offline")
	}
	c.monitor = connectivity.NewMonitor(c.remote, connectivity.Config{
		ProbeInterval: c.config.Sync.ProbeInterval,
		Debounce:      c.config.Sync.Debounce,
		OfflineMarker: marker,
	}, c.logger)

	c.engine = syncengine.NewEngine(
		c.store, c.remote, c.monitor,
		syncengine.NewBus(c.logger),
		syncengine.Config{MaxAttempts: c.config.Sync.MaxAttempts},
		c.logger, c.tracer,
	)
	c.facade = state.NewFacade(c.store, c.remote, c.monitor, c.engine, c.logger)

	// Reconnection drains the queue; the monitor serializes these callbacks
	// and the engine's single-flight guard coalesces overlap with manual
	// syncs.
	c.monitor.OnOnline(func() {
		c.engine.Sync(context.Background())
	})
}

// Start launches the connectivity monitor.
func (c *Container) Start(ctx context.Context) error {
	return c.monitor.Start(ctx)
}

// Close releases everything in reverse initialization order.
func (c *Container) Close() error {
	var firstErr error
	if c.monitor != nil {
		if err := c.monitor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.tracer != nil {
		if err := c.tracer.Shutdown(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Config returns the loaded configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the application logger.
func (c *Container) Logger() *logging.Logger {
	return c.logger
}

// Facade returns the state facade the CLI drives.
func (c *Container) Facade() *state.Facade {
	return c.facade
}

// Engine returns the sync engine.
func (c *Container) Engine() *syncengine.Engine {
	return c.engine
}

// Monitor returns the connectivity monitor.
func (c *Container) Monitor() *connectivity.Monitor {
	return c.monitor
}

// Store returns the local store.
func (c *Container) Store() ports.LocalStorePort {
	return c.store
}

// Chat returns the chat provider used by the refine flow.
func (c *Container) Chat() ports.ChatProviderPort {
	return c.remote
}
