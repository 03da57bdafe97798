package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"captiond/internal/common/logx"
	"captiond/internal/config"
	"captiond/internal/httpapi"
	"captiond/internal/manager"
	"captiond/internal/registry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "captiond:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath, corsOrigins string
	var flagCfg config.Config

	root := &cobra.Command{
		Use:           "captiond",
		Short:         "Image captioning server that loads its model on demand",
		Long:          "Image captioning server that loads its model on demand and unloads it when idle.\n\n" + config.EnvUsage(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(cfgPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, flagCfg, corsOrigins)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "Config file (.yaml|.yml|.json|.toml)")
	f.StringVar(&flagCfg.Addr, "addr", "", "HTTP listen address, e.g. :11435 (overrides --port)")
	f.IntVar(&flagCfg.Port, "port", 0, "HTTP listen port")
	f.StringVar(&flagCfg.ModelPath, "model-path", "", "Weights file (.gguf)")
	f.StringVar(&flagCfg.ProjectorPath, "mmproj-path", "", "Vision projector file (.gguf)")
	f.StringVar(&flagCfg.ModelsDir, "models-dir", "", "Directory scanned for *.gguf when no model path is set")
	f.IntVar(&flagCfg.GPULayers, "gpu-layers", 0, "Layers offloaded to the GPU (-1 = all)")
	f.IntVar(&flagCfg.CtxSize, "ctx-size", 0, "Context window in tokens")
	f.IntVar(&flagCfg.Threads, "threads", 0, "CPU threads")
	f.IntVar(&flagCfg.IdleTimeoutSeconds, "idle-timeout", 0, "Unload the model after this many idle seconds (<=0 disables)")
	f.BoolVar(&flagCfg.Preload, "preload", false, "Load the model at startup")
	f.StringVar(&flagCfg.LlamaServerBin, "llama-server-bin", "", "llama.cpp server binary")
	f.StringVar(&flagCfg.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	f.StringVar(&flagCfg.LogFormat, "log-format", "", "Log format: console|json")
	f.IntVar(&flagCfg.MaxBodyMB, "max-body-mb", 0, "Request body limit in MiB")
	f.IntVar(&flagCfg.MaxImageSide, "max-image-side", 0, "Downscale images so the longest side fits (0 disables)")
	f.BoolVar(&flagCfg.CORSEnabled, "cors-enabled", true, "Enable CORS handling")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed origins (empty = *)")
	return root
}

// applyFlags copies explicitly set flags over the resolved configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, fl config.Config, corsOrigins string) {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Addr = fl.Addr
	}
	if changed("port") {
		cfg.Port = fl.Port
	}
	if changed("model-path") {
		cfg.ModelPath = fl.ModelPath
	}
	if changed("mmproj-path") {
		cfg.ProjectorPath = fl.ProjectorPath
	}
	if changed("models-dir") {
		cfg.ModelsDir = fl.ModelsDir
	}
	if changed("gpu-layers") {
		cfg.GPULayers = fl.GPULayers
	}
	if changed("ctx-size") {
		cfg.CtxSize = fl.CtxSize
	}
	if changed("threads") {
		cfg.Threads = fl.Threads
	}
	if changed("idle-timeout") {
		cfg.IdleTimeoutSeconds = fl.IdleTimeoutSeconds
	}
	if changed("preload") {
		cfg.Preload = fl.Preload
	}
	if changed("llama-server-bin") {
		cfg.LlamaServerBin = fl.LlamaServerBin
	}
	if changed("log-level") {
		cfg.LogLevel = fl.LogLevel
	}
	if changed("log-format") {
		cfg.LogFormat = fl.LogFormat
	}
	if changed("max-body-mb") {
		cfg.MaxBodyMB = fl.MaxBodyMB
	}
	if changed("max-image-side") {
		cfg.MaxImageSide = fl.MaxImageSide
	}
	if changed("cors-enabled") {
		cfg.CORSEnabled = fl.CORSEnabled
	}
	if changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(corsOrigins)
	}
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empties.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newManager(cfg config.Config, logger *zerolog.Logger) (*manager.Manager, error) {
	sel, err := registry.Resolve(registry.Sources{
		DevModelPath:  cfg.DevModelPath,
		ModelPath:     cfg.ModelPath,
		ProjectorPath: cfg.ProjectorPath,
		ModelsDir:     cfg.ModelsDir,
	})
	if err != nil {
		return nil, err
	}
	return manager.NewWithConfig(manager.ManagerConfig{
		ModelPath:     sel.ModelPath,
		ProjectorPath: sel.ProjectorPath,
		DevMode:       sel.DevMode,
		GPULayers:     cfg.GPULayers,
		CtxSize:       cfg.CtxSize,
		Threads:       cfg.Threads,
		IdleTimeout:   cfg.IdleTimeout(),
		ReapInterval:  cfg.ReapInterval(),
		LlamaBin:      cfg.LlamaServerBin,
		Logger:        logger,
	}), nil
}

func configureHTTP(cfg config.Config, logger zerolog.Logger) {
	httpapi.SetLogger(logger)
	httpapi.SetRequestLogLevel(cfg.LogLevel)
	httpapi.SetMaxBodyBytes(int64(cfg.MaxBodyMB) << 20)
	httpapi.SetMaxImageSide(cfg.MaxImageSide)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
}

func run(ctx context.Context, cfg config.Config) error {
	logger := logx.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	mgr, err := newManager(cfg, &logger)
	if err != nil {
		return err
	}
	configureHTTP(cfg, logger)

	h := mgr.Health()
	logger.Info().
		Str("model", h.ModelPath).
		Bool("model_exists", h.ModelExists).
		Str("mmproj", h.ProjectorPath).
		Bool("mmproj_exists", h.ProjectorExists).
		Bool("dev_mode", h.DevMode).
		Int("gpu_layers", cfg.GPULayers).
		Dur("idle_timeout", cfg.IdleTimeout()).
		Msg("model configuration")
	if !h.ModelExists {
		logger.Warn().Str("model", h.ModelPath).Msg("model file not found, /caption will fail until it exists")
	}

	if cfg.Preload {
		go func() {
			if err := mgr.EnsureLoaded(ctx); err != nil {
				logger.Error().Err(err).Msg("preload failed")
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("captiond listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case serveErr = <-errCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := mgr.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("manager shutdown error")
	}
	return serveErr
}
