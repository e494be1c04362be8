package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/notely/internal/config"
	"github.com/MeKo-Tech/notely/internal/server"
	"github.com/MeKo-Tech/notely/internal/worker"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for the notes library",
	Long: `Start an HTTP server exposing the library and the background worker.

The server provides the following endpoints:
  GET    /health                           - Health check
  GET    /metrics                          - Prometheus metrics
  GET    /documents?q=&mode=               - List or filter documents
  POST   /documents                        - Upload pages as a new batch
  GET    /documents/{id}                   - Document with its pages
  DELETE /documents/{id}                   - Delete a document
  GET    /documents/{id}/search?q=         - Matching pages and words
  GET    /documents/{id}/pages/{n}/image   - Page image, optionally highlighted
  DELETE /batches/{id}                     - Withdraw or cancel a batch
  GET    /ws/progress                      - Batch progress over WebSocket

Examples:
  notely serve
  notely serve --port 8080
  notely serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		serveOverrides(cmd, cfg)

		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
		}

		ctx, cancel := context.WithCancel(commandContext(cmd))
		defer cancel()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		pipeline, err := buildPipeline(cfg.Preprocessing.Preset, cfg.Preprocessing.StepsFile)
		if err != nil {
			return err
		}
		proc, err := newProcessor(cfg, pipeline)
		if err != nil {
			return err
		}
		w := worker.New(proc, st,
			worker.WithPoolSize(cfg.Worker.PoolSize),
			worker.WithMessageBuffer(cfg.Worker.MessageBuffer),
			worker.WithLogger(slog.Default()),
		)
		relay := worker.NewRelay(w.Messages(), worker.LogListener(slog.Default()))

		// The worker gets its own context so shutdown can let the current
		// batch finish before cancelling it.
		workerCtx, cancelWorker := context.WithCancel(context.WithoutCancel(ctx))
		defer cancelWorker()
		workerDone := make(chan error, 1)
		go func() { workerDone <- w.Run(workerCtx) }()
		go func() { _ = relay.Run(context.WithoutCancel(ctx)) }()

		srv, err := server.NewServer(serverConfig(cfg), st, w, relay)
		if err != nil {
			w.Shutdown()
			<-workerDone
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
		}

		go func() {
			slog.Info("Starting notely server", "host", cfg.Server.Host, "port", cfg.Server.Port,
				"database", cfg.Database.Path)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		_ = srv.Close()

		slog.Info("Stopping worker", "queued", w.QueueLen())
		w.Shutdown()
		select {
		case err := <-workerDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Worker stopped with error", "error", err)
			}
		case <-shutdownCtx.Done():
			slog.Warn("Shutdown timeout reached, cancelling the running batch")
			cancelWorker()
			<-workerDone
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// serveOverrides applies explicitly set flags on top of cfg.
func serveOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("rate-limit-enabled") {
		cfg.Server.RateLimitEnabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		cfg.Server.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		cfg.Server.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		cfg.Server.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		cfg.Server.MaxDataPerDay, _ = flags.GetInt64("max-data-per-day")
	}
	if flags.Changed("workers") {
		cfg.Worker.PoolSize, _ = flags.GetInt("workers")
	}
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		CORSOrigin:    cfg.Server.CORSOrigin,
		MaxUploadMB:   int64(cfg.Server.MaxUploadMB),
		TimeoutSec:    cfg.Server.TimeoutSec,
		OCR:           cfg.ToOCRConfig(),
		CaseSensitive: cfg.Search.CaseSensitive,
		FuzzyDistance: cfg.Search.FuzzyDistance,
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.Server.RateLimitEnabled,
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
			RequestsPerHour:   cfg.Server.RequestsPerHour,
			MaxRequestsPerDay: cfg.Server.MaxRequestsPerDay,
			MaxDataPerDay:     cfg.Server.MaxDataPerDay,
		},
		Logger: slog.Default(),
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 300, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("workers", 0, "pages recognized in parallel (0 = number of CPUs)")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 500*1024*1024, "maximum data uploaded per day per client (bytes)")
}
