// Package commands implements the CLI commands for viberater.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/viberater/viberater/internal/application"
	"github.com/viberater/viberater/internal/infrastructure/config"
	"github.com/viberater/viberater/internal/presentation/cli/output"
)

// Version information - set at build time via ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// GlobalFlags holds the global CLI flags.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	Verbose    bool
}

// AppContext holds the application runtime context.
type AppContext struct {
	Config     *config.Config
	Formatter  *output.Formatter
	Flags      *GlobalFlags
	Container  *application.Container
	cancelFunc context.CancelFunc
}

var (
	globalFlags GlobalFlags
	appCtx      *AppContext
	appCtxMu    sync.RWMutex // Protects appCtx for thread-safe access
)

// NewRootCmd creates the root command for the viberater CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "viberater",
		Short: "Viberater - Offline-first idea and project tracker",
		Long: `Viberater is an offline-first client for capturing ideas, refining them
into project plans, and tracking the resulting tasks.

Every read is served from a local cache and every write lands locally
first. While offline, mutations queue durably and replay automatically
when connectivity returns, so the tool stays fully usable without a
network.

Key features:
  • Local SQLite cache with optimistic writes
  • Durable sync queue with automatic replay on reconnect
  • AI-assisted idea refinement and promotion to projects
  • Connectivity detection with a manual offline switch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip initialization for help, version, init, and completion
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" || cmd.Name() == "init" {
				return nil
			}
			return initializeApp(cmd.Context())
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "config file path (default: ~/.viberater/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Output, "output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewPullCmd())
	rootCmd.AddCommand(NewOfflineCmd())
	rootCmd.AddCommand(NewIdeaCmd())
	rootCmd.AddCommand(NewProjectCmd())
	rootCmd.AddCommand(NewTaskCmd())
	rootCmd.AddCommand(NewRefineCmd())

	return rootCmd
}

// initializeApp initializes the application context.
func initializeApp(ctx context.Context) error {
	format := output.FormatText
	if globalFlags.Output == "json" {
		format = output.FormatJSON
	}

	formatter := output.NewFormatter(
		output.WithFormat(format),
		output.WithColor(format != output.FormatJSON && output.IsColorSupported()),
	)

	loader, err := config.NewLoader("")
	if err != nil {
		return fmt.Errorf("failed to create config loader: %w", err)
	}
	cfg, err := loader.Load(globalFlags.ConfigFile)
	if err != nil {
		if globalFlags.Verbose {
			formatter.Warning("Could not load config: %v, using defaults", err)
		}
		cfg = config.NewDefaultConfig()
	}

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)

	container, err := application.NewContainer(runCtx, cfg, loader.Dir(), globalFlags.Verbose)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Starts the connectivity monitor; the first probe runs immediately so
	// commands see a settled online flag.
	if err := container.Start(runCtx); err != nil {
		_ = container.Close()
		cancel()
		return fmt.Errorf("failed to start connectivity monitor: %w", err)
	}

	appCtxMu.Lock()
	appCtx = &AppContext{
		Config:     cfg,
		Formatter:  formatter,
		Flags:      &globalFlags,
		Container:  container,
		cancelFunc: cancel,
	}
	appCtxMu.Unlock()

	return nil
}

// GetAppContext returns the current application context.
// Returns nil if the app hasn't been initialized.
func GetAppContext() *AppContext {
	appCtxMu.RLock()
	defer appCtxMu.RUnlock()
	return appCtx
}

// GetFormatter returns the output formatter.
// Creates a default formatter if app context is not initialized.
func GetFormatter() *output.Formatter {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()

	if ctx != nil {
		return ctx.Formatter
	}
	return output.NewFormatter()
}

// GetContainer returns the application container.
// Returns nil if the app hasn't been initialized.
func GetContainer() *application.Container {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()

	if ctx != nil {
		return ctx.Container
	}
	return nil
}

// Shutdown releases application resources.
func Shutdown() {
	appCtxMu.Lock()
	ctx := appCtx
	appCtx = nil
	appCtxMu.Unlock()

	if ctx == nil {
		return
	}
	if ctx.Container != nil {
		_ = ctx.Container.Close()
	}
	if ctx.cancelFunc != nil {
		ctx.cancelFunc()
	}
}

// Execute runs the root command with signal handling for graceful shutdown.
func Execute() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		rootCmd := NewRootCmd()
		errChan <- rootCmd.Execute()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			formatter := GetFormatter()
			formatter.Error("%s", err.Error())
			Shutdown()
			os.Exit(1)
		}
	case sig := <-sigChan:
		formatter := GetFormatter()
		formatter.Warning("Received signal %v, shutting down...", sig)
		Shutdown()
		os.Exit(130)
	}

	Shutdown()
}

// requireContainer returns the container or an error telling the user that
// initialization failed earlier.
func requireContainer() (*application.Container, error) {
	c := GetContainer()
	if c == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return c, nil
}
