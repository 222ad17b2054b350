package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/logging"
	"github.com/Lllllllleong/signingbridge/internal/services"
)

var (
	recordChangeInstance *services.RecordChangeFunction
	once                 sync.Once
	initErr              error
)

func init() {
	logging.Setup(config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("DEBUG", "") == "true")

	// Register the CloudEvent function. The framework will handle routing the event here.
	functions.CloudEvent("HandleRecordChange", handleRecordChange)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (*services.RecordChangeFunction, error) {
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
	return services.NewRecordChange(services.NewDocumentSender(cfg, deps)), nil
}

// handleRecordChange is the Cloud Function entry point.
func handleRecordChange(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		recordChangeInstance, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	// Errors are logged with context inside Process. Returning one marks the
	// invocation as failed so the event is redelivered.
	return recordChangeInstance.Process(ctx, e)
}
