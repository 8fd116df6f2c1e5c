package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/Lllllllleong/pdfmerge/internal/config"
	"github.com/Lllllllleong/pdfmerge/internal/gcp"
	"golang.org/x/sync/errgroup"
)

type MergeFunctionConfig struct {
	ProjectID        string
	OutputBucket     string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
	TriggerName      string
	OutputName       string
	Compression      int
	Sort             bool
	IfAbsent         bool
}

// MergeFunction merges the PDFs under a Cloud Storage prefix when a trigger
// object is written there.
type MergeFunction struct {
	store     ObjectStore
	publisher *Publisher
	pipeline  *Pipeline
	config    MergeFunctionConfig
}

// GCSEvent is the payload of a GCS object finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// LoadMergeFunctionConfig reads the function settings from the environment.
func LoadMergeFunctionConfig() (MergeFunctionConfig, error) {
	cfg := MergeFunctionConfig{
		ProjectID:        gcp.GetEnv("PROJECT_ID", ""),
		OutputBucket:     gcp.GetEnv("OUTPUT_BUCKET", ""),
		CollectionName:   gcp.GetEnv("FIRESTORE_COLLECTION", "merges"),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
		TriggerName:      gcp.GetEnv("MERGE_TRIGGER_NAME", "_MERGE"),
		OutputName:       gcp.GetEnv("OUTPUT_NAME", "output.pdf"),
	}
	if cfg.ProjectID == "" {
		return cfg, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if cfg.OutputBucket == "" {
		return cfg, fmt.Errorf("OUTPUT_BUCKET environment variable must be set")
	}

	var err error
	if cfg.Compression, err = strconv.Atoi(gcp.GetEnv("COMPRESSION_LEVEL", "-1")); err != nil {
		return cfg, fmt.Errorf("COMPRESSION_LEVEL: %w", err)
	}
	if cfg.Sort, err = strconv.ParseBool(gcp.GetEnv("SORT_FILES", "true")); err != nil {
		return cfg, fmt.Errorf("SORT_FILES: %w", err)
	}
	if cfg.IfAbsent, err = strconv.ParseBool(gcp.GetEnv("PUBLISH_IF_ABSENT", "false")); err != nil {
		return cfg, fmt.Errorf("PUBLISH_IF_ABSENT: %w", err)
	}
	return cfg, nil
}

// NewMergeFunction builds the Cloud Storage, Firestore and (when WORKFLOW_ID
// is set) Workflows clients from the environment.
func NewMergeFunction(ctx context.Context) (*MergeFunction, error) {
	cfg, err := LoadMergeFunctionConfig()
	if err != nil {
		return nil, err
	}

	store, err := gcp.NewStorageStore(ctx)
	if err != nil {
		return nil, err
	}
	store.IfAbsent = cfg.IfAbsent

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	ledger := gcp.NewFirestoreLedger(firestoreClient, cfg.CollectionName)

	var workflow WorkflowStarter
	if cfg.WorkflowID != "" {
		starter, err := gcp.NewWorkflowStarter(ctx, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		if err != nil {
			ledger.Close()
			store.Close()
			return nil, err
		}
		workflow = starter
	}

	f := newMergeFunction(cfg, store, ledger, workflow, NewPipeline(io.Discard, slog.Default()))
	slog.Info("PDF merge function initialized.", "outputBucket", cfg.OutputBucket, "workflowId", cfg.WorkflowID)
	return f, nil
}

func newMergeFunction(cfg MergeFunctionConfig, store ObjectStore, ledger JobLedger, workflow WorkflowStarter, pipeline *Pipeline) *MergeFunction {
	return &MergeFunction{
		store:     store,
		publisher: NewPublisher(store, ledger, workflow),
		pipeline:  pipeline,
		config:    cfg,
	}
}

// Close releases the clients behind the store, ledger and workflow starter.
func (f *MergeFunction) Close() error {
	var errs []error
	for _, dep := range []any{f.store, f.publisher.ledger, f.publisher.workflow} {
		if c, ok := dep.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Process merges the prefix of e when e names the trigger object. Other
// objects are ignored.
func (f *MergeFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if path.Base(e.Name) != f.config.TriggerName {
		logCtx.Debug("Not a merge trigger. Skipping.")
		return nil
	}

	prefix := path.Dir(e.Name) + "/"
	if prefix == "./" {
		prefix = ""
	}
	sourcePrefix := fmt.Sprintf("gs://%s/%s", e.Bucket, prefix)
	logCtx = logCtx.With("sourcePrefix", sourcePrefix)
	logCtx.Info("Processing merge trigger.")

	jobID, err := f.publisher.Begin(ctx, sourcePrefix, f.config.Compression)
	if err != nil {
		logCtx.Error("Failed to create merge job record", "error", err)
		return err
	}
	if jobID != "" {
		logCtx = logCtx.With("jobId", jobID)
	}

	tempDir, err := os.MkdirTemp("", "pdf-merge-*")
	if err != nil {
		return f.publisher.Fail(ctx, logCtx, jobID, "failed to create temp dir", err)
	}
	defer os.RemoveAll(tempDir)

	staged, err := f.stageSources(ctx, logCtx, e.Bucket, prefix, tempDir)
	if err != nil {
		return f.publisher.Fail(ctx, logCtx, jobID, "failed to stage source PDFs", err)
	}
	logCtx.Info("Source PDFs staged.", "fileCount", staged)

	res, err := f.pipeline.Run(ctx, config.Config{
		InputDir:    tempDir,
		Output:      f.config.OutputName,
		Sort:        f.config.Sort,
		Compression: f.config.Compression,
	})
	if err != nil {
		return f.publisher.Fail(ctx, logCtx, jobID, "failed to merge PDFs", err)
	}

	object := prefix + f.config.OutputName
	if _, err := f.publisher.Publish(ctx, logCtx, jobID, res, f.config.OutputBucket, object); err != nil {
		return err
	}
	logCtx.Info("Merge published.", "pageCount", res.Merge.PageCount)
	return nil
}

// stageSources downloads the PDFs directly under prefix into dir.
func (f *MergeFunction) stageSources(ctx context.Context, logCtx *slog.Logger, bucket, prefix, dir string) (int, error) {
	names, err := f.store.List(ctx, bucket, prefix)
	if err != nil {
		return 0, err
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(10)

	staged := 0
	for _, name := range names {
		base := path.Base(name)
		if !isPDFName(base) || base == f.config.OutputName {
			continue
		}
		staged++
		eg.Go(func() error {
			if err := f.store.Download(gctx, bucket, name, filepath.Join(dir, base)); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			logCtx.Debug("Source PDF downloaded.", "gcsObject", name)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return staged, nil
}
