package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/pdfmerge/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreLedger stores merge jobs as documents of one collection.
type FirestoreLedger struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreLedger(client *firestore.Client, collection string) *FirestoreLedger {
	return &FirestoreLedger{client: client, collection: collection}
}

// Create adds job and returns its document ID.
func (l *FirestoreLedger) Create(ctx context.Context, job models.MergeJob) (string, error) {
	docRef, _, err := l.client.Collection(l.collection).Add(ctx, job)
	if err != nil {
		return "", fmt.Errorf("failed to create merge job document: %w", err)
	}
	return docRef.ID, nil
}

// MarkPublished stores the published artifact's details on job id.
func (l *FirestoreLedger) MarkPublished(ctx context.Context, id string, job models.MergeJob) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusPublished},
		{Path: "fileHash", Value: job.FileHash},
		{Path: "sourceFiles", Value: job.SourceFiles},
		{Path: "outputUri", Value: job.OutputURI},
		{Path: "pageCount", Value: job.PageCount},
		{Path: "originalSize", Value: job.OriginalSize},
		{Path: "finalSize", Value: job.FinalSize},
	}
	if job.WorkflowExecutionID != "" {
		updates = append(updates, firestore.Update{Path: "workflowExecutionId", Value: job.WorkflowExecutionID})
	}
	if _, err := l.client.Collection(l.collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to mark job %s published: %w", id, err)
	}
	return nil
}

// MarkFailed sets job id to FAILED with details.
func (l *FirestoreLedger) MarkFailed(ctx context.Context, id, details string) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusFailed},
		{Path: "errorDetails", Value: details},
	}
	_, err := l.client.Collection(l.collection).Doc(id).Update(ctx, updates)
	return err
}

func (l *FirestoreLedger) Close() error {
	return l.client.Close()
}
