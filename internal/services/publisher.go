package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Lllllllleong/pdfmerge/internal/models"
)

// ObjectStore moves files to and from an object bucket.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Download(ctx context.Context, bucket, object, destPath string) error
	Upload(ctx context.Context, localPath, bucket, object string) error
}

// JobLedger records merge jobs.
type JobLedger interface {
	Create(ctx context.Context, job models.MergeJob) (string, error)
	MarkPublished(ctx context.Context, id string, job models.MergeJob) error
	MarkFailed(ctx context.Context, id, details string) error
}

// WorkflowStarter hands a published merge to a downstream workflow.
type WorkflowStarter interface {
	Start(ctx context.Context, payload models.WorkflowPayload) (string, error)
}

// Publisher uploads a finished merge and, when configured, records it in a
// ledger and starts a workflow for it. ledger and workflow may be nil.
type Publisher struct {
	store    ObjectStore
	ledger   JobLedger
	workflow WorkflowStarter
}

func NewPublisher(store ObjectStore, ledger JobLedger, workflow WorkflowStarter) *Publisher {
	return &Publisher{store: store, ledger: ledger, workflow: workflow}
}

// Begin records a new job in MERGING state. It returns "" without a ledger.
func (p *Publisher) Begin(ctx context.Context, sourcePrefix string, compression int) (string, error) {
	if p.ledger == nil {
		return "", nil
	}
	id, err := p.ledger.Create(ctx, models.MergeJob{
		SourcePrefix:     sourcePrefix,
		Status:           models.StatusMerging,
		CompressionLevel: compression,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return id, nil
}

// Publish uploads the pipeline output to gs://bucket/object.
func (p *Publisher) Publish(ctx context.Context, logCtx *slog.Logger, jobID string, res *PipelineResult, bucket, object string) (*models.MergeJob, error) {
	fail := func(message string, err error) error {
		return fmt.Errorf("%w: %w", ErrPublishFailed, p.Fail(ctx, logCtx, jobID, message, err))
	}

	output := res.Merge.Output
	fileHash, err := calculateFileHash(output)
	if err != nil {
		return nil, fail("failed to calculate file hash", err)
	}
	info, err := os.Stat(output)
	if err != nil {
		return nil, fail("failed to stat merged file", err)
	}

	if err := p.store.Upload(ctx, output, bucket, object); err != nil {
		return nil, fail("failed to upload merged file", err)
	}
	job := &models.MergeJob{
		FileHash:    fileHash,
		SourceFiles: res.Merge.Files.Names(),
		OutputURI:   fmt.Sprintf("gs://%s/%s", bucket, object),
		Status:      models.StatusPublished,
		PageCount:   res.Merge.PageCount,
		FinalSize:   info.Size(),
	}
	job.OriginalSize = job.FinalSize
	if res.Compression != nil {
		job.CompressionLevel = res.Compression.Level
		job.OriginalSize = res.Compression.OriginalSize
	}
	logCtx = logCtx.With("outputUri", job.OutputURI, "fileHash", fileHash)
	logCtx.Info("Merged file uploaded.")

	if p.workflow != nil {
		execID, err := p.workflow.Start(ctx, models.WorkflowPayload{
			JobID:     jobID,
			OutputURI: job.OutputURI,
			PageCount: job.PageCount,
		})
		if err != nil {
			return nil, fail("failed to trigger workflow execution", err)
		}
		job.WorkflowExecutionID = execID
		logCtx.Info("Workflow triggered.", "execution", execID)
	}

	if p.ledger != nil && jobID != "" {
		if err := p.ledger.MarkPublished(ctx, jobID, *job); err != nil {
			return nil, fail("failed to record published job", err)
		}
	}
	return job, nil
}

// Fail logs the failure, marks the job FAILED when a ledger is configured,
// and returns the wrapped error.
func (p *Publisher) Fail(ctx context.Context, logCtx *slog.Logger, jobID, message string, originalErr error) error {
	fullError := fmt.Errorf("%s: %w", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if p.ledger != nil && jobID != "" {
		if err := p.ledger.MarkFailed(ctx, jobID, fullError.Error()); err != nil {
			logCtx.Error("CRITICAL: Failed to update merge job status to FAILED after a processing error.", "updateError", err)
		}
	}
	return fullError
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
