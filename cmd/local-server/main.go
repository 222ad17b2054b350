// Command local-server serves the bridge endpoints from a single process, for
// development and for deployments outside Cloud Functions.
package main

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

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/signingbridge/internal/bg"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/handlers"
	"github.com/Lllllllleong/signingbridge/internal/logging"
	"github.com/Lllllllleong/signingbridge/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error.", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.Debug)
	config.LogConfig(slog.Default(), cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := services.NewRunner(cfg)
	deps, err := services.NewDependencies(ctx, cfg, runner)
	if err != nil {
		return err
	}
	defer deps.Close()

	sender := services.NewDocumentSender(cfg, deps)
	webhook := services.NewSignatureWebhook(deps)

	mux := http.NewServeMux()
	mux.Handle("/senddoc", handlers.CreateDocument(sender))
	mux.Handle("/zapsign/webhook", handlers.SigningWebhook(webhook, cfg.Webhook))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Debug {
		mux.Handle("GET /debug/page/{id}", handlers.DebugPage(deps.Records))
		slog.Warn("Debug endpoints enabled.")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.Wrap(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening.", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if async, ok := runner.(*bg.Async); ok {
			async.Wait()
		}
		return nil
	})
	return g.Wait()
}
