package models

import "time"

// MergeJob is the Firestore record of a published merge.
// It tracks where the sources came from and where the merged file went.
type MergeJob struct {
	FileHash            string    `firestore:"fileHash,omitempty"`
	SourcePrefix        string    `firestore:"sourcePrefix,omitempty"`
	SourceFiles         []string  `firestore:"sourceFiles,omitempty"`
	OutputURI           string    `firestore:"outputUri,omitempty"`
	Status              string    `firestore:"status,omitempty"`
	ErrorDetails        string    `firestore:"errorDetails,omitempty"`
	PageCount           int       `firestore:"pageCount,omitempty"`
	CompressionLevel    int       `firestore:"compressionLevel"`
	OriginalSize        int64     `firestore:"originalSize,omitempty"`
	FinalSize           int64     `firestore:"finalSize,omitempty"`
	WorkflowExecutionID string    `firestore:"workflowExecutionId,omitempty"` // For traceability
	CreatedAt           time.Time `firestore:"createdAt,omitempty"`
}

// Merge job statuses.
const (
	StatusMerging   = "MERGING"
	StatusPublished = "PUBLISHED"
	StatusFailed    = "FAILED"
)

// WorkflowPayload is the argument passed to the downstream workflow execution.
type WorkflowPayload struct {
	JobID     string `json:"jobId"`
	OutputURI string `json:"outputUri"`
	PageCount int    `json:"pageCount"`
}
