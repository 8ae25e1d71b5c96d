package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sessiond/internal/config"
	"sessiond/internal/httpapi"
	"sessiond/internal/logger"
	"sessiond/internal/registry"
	"sessiond/internal/session"
)

func buildServeCmd() *cobra.Command {
	var (
		cfgPath         string
		addr            string
		modelsDir       string
		defaultModel    string
		cpuBudgetMB     int
		accelBudgetMB   int
		sessionTTLSec   int
		drainTimeoutSec int
		maxBodyBytes    int64
		inferTimeoutSec int
		logLevel        string
		logFormat       string
		corsEnabled     bool
		corsOrigins     []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			// Explicit flags win over the config file.
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("models-dir") {
				cfg.ModelsDir = modelsDir
			}
			if flags.Changed("default-model") {
				cfg.DefaultModel = defaultModel
			}
			if flags.Changed("cpu-budget-mb") {
				cfg.CPUBudgetMB = cpuBudgetMB
			}
			if flags.Changed("accel-budget-mb") {
				cfg.AccelBudgetMB = accelBudgetMB
			}
			if flags.Changed("session-ttl-sec") {
				cfg.SessionTTLSec = sessionTTLSec
			}
			if flags.Changed("drain-timeout-sec") {
				cfg.DrainTimeoutSec = drainTimeoutSec
			}
			if flags.Changed("max-body-bytes") {
				cfg.MaxBodyBytes = maxBodyBytes
			}
			if flags.Changed("infer-timeout-sec") {
				cfg.InferTimeoutSec = inferTimeoutSec
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if flags.Changed("cors") {
				cfg.CORSEnabled = corsEnabled
			}
			if flags.Changed("cors-origin") {
				cfg.CORSAllowedOrigins = corsOrigins
			}
			return runServe(cmd.Context(), *cfg.ApplyDefaults())
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "config file path (json, yaml, or toml)")
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "HTTP listen address")
	cmd.Flags().StringVar(&modelsDir, "models-dir", config.DefaultModelsDir, "directory scanned for model files")
	cmd.Flags().StringVar(&defaultModel, "default-model", "", "registry model id used when a create request names none")
	cmd.Flags().IntVar(&cpuBudgetMB, "cpu-budget-mb", 0, "cpu pool budget in MB (0 discovers system memory)")
	cmd.Flags().IntVar(&accelBudgetMB, "accel-budget-mb", 0, "accelerator pool budget in MB (0 disables the pool)")
	cmd.Flags().IntVar(&sessionTTLSec, "session-ttl-sec", 0, "idle session lifetime in seconds (0 default, negative disables)")
	cmd.Flags().IntVar(&drainTimeoutSec, "drain-timeout-sec", 0, "grace period for in-flight work on destroy, seconds")
	cmd.Flags().Int64Var(&maxBodyBytes, "max-body-bytes", config.DefaultMaxBodyBytes, "request body cap for JSON endpoints")
	cmd.Flags().IntVar(&inferTimeoutSec, "infer-timeout-sec", 0, "server-side cap on one inference, seconds (0 disables)")
	cmd.Flags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "log format (console or json)")
	cmd.Flags().BoolVar(&corsEnabled, "cors", false, "enable CORS")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "allowed CORS origins (repeatable)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	zl := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	httpapi.SetLogger(zl)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetInferTimeoutSeconds(int64(cfg.InferTimeoutSec))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)

	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		zl.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("model scan failed, starting with empty registry")
	} else {
		zl.Info().Int("models", len(models)).Str("dir", cfg.ModelsDir).Msg("model registry loaded")
	}

	mgr := session.NewManager(session.ManagerConfig{
		Registry:     models,
		DefaultModel: cfg.DefaultModel,
		Allocator: session.NewAllocator(session.AllocatorConfig{
			CPUBytes:   int64(cfg.CPUBudgetMB) << 20,
			AccelBytes: int64(cfg.AccelBudgetMB) << 20,
			Logger:     zl,
		}),
		Logger:       zl,
		SessionTTL:   cfg.SessionTTL(),
		DrainTimeout: cfg.DrainTimeout(),
	})

	// Handlers join this context with the request context so shutdown stops
	// in-flight streams.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info().Str("addr", cfg.Addr).Msg("sessiond listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		zl.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		zl.Info().Msg("shutting down")
	}

	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout()+2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("http server shutdown")
	}
	if err := mgr.Close(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("session manager close")
	}
	zl.Info().Msg("sessiond stopped")
	return nil
}
