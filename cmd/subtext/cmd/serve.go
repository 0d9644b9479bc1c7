package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/subtext/internal/config"
	"github.com/MeKo-Tech/subtext/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the translation server",
	Long: `Start an HTTP server that translates the text found in screenshots.

POST any path with the raw image bytes as the body to receive a JSON array of
{x, y, w, h, message, translation} entries. GET and PUT answer 404.

When server.admin_port is set, a second listener serves:
  GET /health   - Health check endpoint
  GET /metrics  - Prometheus metrics

Examples:
  subtext serve
  subtext serve --port 8888 --engine vision --provider gemini
  subtext serve --merge --merge-max-y-diff 15 --report-file out.txt`,
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "server host")
	serveCmd.Flags().IntP("port", "p", 8888, "server port")
	serveCmd.Flags().Int("admin-port", 0, "health and metrics port (0 disables)")
	addPipelineFlags(serveCmd)
}

// addPipelineFlags registers the flags shared by serve and translate.
func addPipelineFlags(c *cobra.Command) {
	c.Flags().String("engine", "remote", "OCR engine: remote, vision, tesseract or fixture")
	c.Flags().String("source-lang", "es", "language of the text in the images")
	c.Flags().String("provider", "google", "translation provider: google, gemini, dictionary or none")
	c.Flags().String("target-lang", "en", "language to translate into")
	c.Flags().Bool("merge", false, "merge horizontally overlapping boxes on the same line")
	c.Flags().Int("merge-max-y-diff", 20, "maximum vertical distance of merged boxes")
	c.Flags().String("report-file", "report.txt", "append-only report file (empty disables)")
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("admin-port") {
		cfg.Server.AdminPort, _ = flags.GetInt("admin-port")
	}
	if flags.Changed("engine") {
		cfg.OCR.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("source-lang") {
		cfg.OCR.SourceLang, _ = flags.GetString("source-lang")
	}
	if flags.Changed("provider") {
		cfg.Translate.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("target-lang") {
		cfg.Translate.TargetLang, _ = flags.GetString("target-lang")
	}
	if flags.Changed("merge") {
		cfg.Pipeline.MergeXOverlapping, _ = flags.GetBool("merge")
	}
	if flags.Changed("merge-max-y-diff") {
		cfg.Pipeline.MergeMaxYDiff, _ = flags.GetInt("merge-max-y-diff")
	}
	if flags.Changed("report-file") {
		cfg.Report.FilePath, _ = flags.GetString("report-file")
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg.ToServerConfig(), p)
	defer func() {
		if err := srv.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}
	}()
	srv.Start(ctx)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	servers := []*http.Server{{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// Queue wait plus processing.
		WriteTimeout: timeout + time.Duration(cfg.Server.QueueTimeoutSec)*time.Second,
	}}
	if cfg.Server.AdminPort > 0 {
		servers = append(servers, &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.AdminPort)),
			Handler:           srv.AdminHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, hs := range servers {
		go func() {
			slog.Info("Starting listener", "addr", hs.Addr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listener %s: %w", hs.Addr, err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case serveErr = <-errCh:
		slog.Error("Server error", "error", serveErr)
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, hs := range servers {
		if err := hs.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "addr", hs.Addr, "error", err)
		}
	}

	slog.Info("Graceful shutdown completed")
	return serveErr
}
