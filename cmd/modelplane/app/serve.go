package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelplane/modelplane/internal/catalog"
	"github.com/modelplane/modelplane/internal/chat"
	"github.com/modelplane/modelplane/internal/config"
	"github.com/modelplane/modelplane/internal/download"
	"github.com/modelplane/modelplane/internal/llama"
	"github.com/modelplane/modelplane/internal/logger"
	"github.com/modelplane/modelplane/internal/lookout"
	"github.com/modelplane/modelplane/internal/registry"
	"github.com/modelplane/modelplane/internal/server"
	"github.com/modelplane/modelplane/internal/server/handlers"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	*GlobalOptions

	// SkipEngineCheck starts the daemon without verifying the inference
	// engine is reachable. Chat prompts will fail until it comes up.
	SkipEngineCheck bool

	// EngineWait bounds how long startup waits for the inference engine.
	EngineWait time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &ServeOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the control plane daemon",
		Long: `Start the modelplane daemon.

The daemon loads the model catalog, opens the active-model registry,
verifies the inference engine is reachable, and serves the management,
download, and chat surfaces on a single port.

Configuration comes from defaults, the optional --config YAML file, and
MODELPLANE_* environment variables, in that order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipEngineCheck, "skip-engine-check", false,
		"start without verifying the inference engine is reachable")
	cmd.Flags().DurationVar(&opts.EngineWait, "engine-wait", 30*time.Second,
		"how long to wait for the inference engine at startup")

	return cmd
}

// runServe wires the daemon together and blocks until shutdown.
func runServe(opts *ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	// Catalog is required: the download pipeline is useless without it.
	cat, err := catalog.Load(cfg.Paths.CatalogPath)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	logger.Info("Loaded %d model(s) from catalog %s", cat.Len(), cfg.Paths.CatalogPath)

	// Tee logs into the catalog's log directory once it is known.
	if cat.LogPath != "" {
		logFile, err := os.OpenFile(
			filepath.Join(cat.LogPath, "modelplane.log"),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Warn("Failed to open log file: %v", err)
		} else {
			defer logFile.Close()
			logger.SetOutput(io.MultiWriter(os.Stderr, logFile))
		}
	}

	reg := registry.New(cfg.Paths.RegistryPath)

	engine := llama.NewClient(cfg.Chat.EngineURL)
	if current, err := reg.ReadCurrent(); err == nil && current != "" {
		engine.SetModel(current)
		logger.Info("Active model at startup: %s", current)
	}

	if !opts.SkipEngineCheck {
		ctx, cancel := context.WithTimeout(context.Background(), opts.EngineWait)
		err := engine.WaitReady(ctx, opts.EngineWait)
		cancel()
		if err != nil {
			return fmt.Errorf("inference engine: %w", err)
		}
		logger.Info("Inference engine ready at %s", cfg.Chat.EngineURL)
	}

	downloads := download.NewManager(cat)
	chatEngine := chat.NewEngine(engine, cfg.Chat)

	// The lookout retargets the engine when the switch API writes a new
	// active model.
	look := lookout.New(reg, func(model string) {
		engine.SetModel(model)
	})
	if err := look.Start(); err != nil {
		return fmt.Errorf("lookout: %w", err)
	}
	defer look.Stop()

	h := handlers.NewHandler(cfg, reg, downloads, chatEngine, Version)
	srv := server.New(cfg.ListenAddr(), h)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("modelplane %s serving on %s", Version, cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
