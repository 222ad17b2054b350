package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

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

	// "HandleCreateDocument" is the entry point name configured in GCP.
	functions.HTTP("HandleCreateDocument", handleCreateDocument)
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

	deps, err := services.NewDependencies(ctx, cfg, services.NewRunner(cfg))
	if err != nil {
		return nil, err
	}
	sender := services.NewDocumentSender(cfg, deps)
	return handlers.Wrap(handlers.CreateDocument(sender)), nil
}

func handleCreateDocument(w http.ResponseWriter, r *http.Request) {
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
