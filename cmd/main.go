// Package main is the entry point for the scan console.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/api"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/callback"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/dispatcher"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/publisher"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/render"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scanclient"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/session"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/telemetry"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "invalid arguments: %v\n", err)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Infow("Configuration loaded",
		"port", cfg.Server.Port,
		"scan_service", cfg.ScanService.BaseURL,
		"rate_limit", cfg.ScanService.RateLimit,
		"rabbitmq", cfg.RabbitMQ.Enabled,
		"callback", cfg.Callback.URL != "",
		"telemetry", cfg.Telemetry.Enabled,
	)

	shutdownTelemetry, err := telemetry.Init(context.Background(), cfg.Telemetry, sugar)
	if err != nil {
		sugar.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(ctx)
	}()

	recorder, err := telemetry.NewRecorder(otel.Meter("github.com/aiforce-discovery-agent/collectors/scan-console"))
	if err != nil {
		sugar.Fatalf("Failed to create metrics recorder: %v", err)
	}

	client, err := scanclient.New(cfg.ScanService, sugar)
	if err != nil {
		sugar.Fatalf("Failed to create scan client: %v", err)
	}

	opts := []dispatcher.Option{dispatcher.WithRecorder(recorder)}

	// Initialize RabbitMQ publisher
	if cfg.RabbitMQ.Enabled {
		pub, err := publisher.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, sugar)
		if err != nil {
			sugar.Fatalf("Failed to initialize publisher: %v", err)
		}
		defer pub.Close()
		opts = append(opts, dispatcher.WithPublisher(pub))
	}

	if cfg.Callback.URL != "" {
		opts = append(opts, dispatcher.WithPublisher(callback.NewReporter(cfg.Callback, sugar)))
	}

	ctrl := session.NewController(dispatcher.New(client, sugar, opts...), sugar)

	file, _ := flags.GetString("file")
	text, _ := flags.GetString("text")
	if file != "" || text != "" {
		if err := runOnce(ctrl, file, text); err != nil {
			sugar.Errorw("Scan failed", "error", err)
			// Deferred cleanup does not run after os.Exit.
			logger.Sync()
			os.Exit(1)
		}
		return
	}

	serve(cfg, ctrl, sugar)
}

// runOnce scans a single file or text block and prints the results panel.
func runOnce(ctrl *session.Controller, file, text string) error {
	ctx := context.Background()

	cmd := session.Command(session.ScanTextCommand{})
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		if _, err := ctrl.Handle(ctx, session.SelectFileCommand{
			File: &scan.File{Name: filepath.Base(file), Data: data},
		}); err != nil {
			return err
		}
		cmd = session.ScanFileCommand{}
	} else if _, err := ctrl.Handle(ctx, session.EnterTextCommand{Text: text}); err != nil {
		return err
	}

	out, err := ctrl.Handle(ctx, cmd)
	if err != nil {
		return err
	}

	if err := render.WriteText(os.Stdout, render.Build(*out)); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	if out.Failed() {
		return errors.New(out.Message)
	}
	return nil
}

func serve(cfg *config.Config, ctrl *session.Controller, sugar *zap.SugaredLogger) {
	server := api.New(cfg.Server, ctrl, sugar)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		sugar.Infof("HTTP server listening on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	return zc.Build()
}
