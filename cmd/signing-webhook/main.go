package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/signingbridge/internal/bg"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/handlers"
	"github.com/Lllllllleong/signingbridge/internal/logging"
	"github.com/Lllllllleong/signingbridge/internal/services"
)

var (
	handler http.Handler
	once    sync.Once
	initErr error
)

func init() {
	logging.Setup(config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("DEBUG", "") == "true")

	// "HandleSigningWebhook" is the entry point name configured in GCP.
	functions.HTTP("HandleSigningWebhook", handleSigningWebhook)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.Debug)
	config.LogConfig(slog.Default(), cfg)

	// The webhook flow has no deferred work.
	deps, err := services.NewDependencies(ctx, cfg, bg.Sync{})
	if err != nil {
		return nil, err
	}
	webhook := services.NewSignatureWebhook(deps)
	return handlers.Wrap(handlers.SigningWebhook(webhook, cfg.Webhook)), nil
}

func handleSigningWebhook(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		handler, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}
