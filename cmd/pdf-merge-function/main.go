package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/pdfmerge/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	mergeFunctionInstance *services.MergeFunction
	once                  sync.Once
	initErr               error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("MergeOnTrigger", mergeOnTrigger)
	closeOnTerminate()
}

// main is required by the Go Functions Framework.
func main() {}

// mergeOnTrigger is the Cloud Function entry point for GCS object finalize events.
func mergeOnTrigger(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		mergeFunctionInstance, initErr = services.NewMergeFunction(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	gcsEvent, err := decodeGCSEvent(e)
	if err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return err
	}

	// Errors are logged with context inside Process; returning one marks the
	// invocation as failed.
	return mergeFunctionInstance.Process(ctx, gcsEvent)
}

// closeOnTerminate releases the service clients when the instance receives
// SIGTERM before shutdown.
func closeOnTerminate() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM)
	go func() {
		<-sigs
		shutdown()
		os.Exit(0)
	}()
}

func shutdown() {
	// Waits for an initialization in progress; afterwards no new one starts.
	once.Do(func() {})
	if mergeFunctionInstance == nil {
		return
	}
	if err := mergeFunctionInstance.Close(); err != nil {
		slog.Error("Failed to close service clients", "error", err)
	}
}

func decodeGCSEvent(e cloudevents.Event) (services.GCSEvent, error) {
	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		return gcsEvent, fmt.Errorf("json.Unmarshal: %w", err)
	}
	if gcsEvent.Bucket == "" || gcsEvent.Name == "" {
		return gcsEvent, fmt.Errorf("event %s carries no bucket/object", e.ID())
	}
	return gcsEvent, nil
}
