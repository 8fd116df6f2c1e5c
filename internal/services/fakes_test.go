package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/Lllllllleong/pdfmerge/internal/models"
)

type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte // "bucket/object" -> content
	uploadErr error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) put(bucket, object string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+object] = data
}

func (s *memStore) get(bucket, object string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+object]
	return data, ok
}

func (s *memStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for key := range s.objects {
		name, ok := strings.CutPrefix(key, bucket+"/")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.Contains(strings.TrimPrefix(name, prefix), "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) Download(_ context.Context, bucket, object, destPath string) error {
	data, ok := s.get(bucket, object)
	if !ok {
		return errors.New("object not found")
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (s *memStore) Upload(_ context.Context, localPath, bucket, object string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.put(bucket, object, data)
	return nil
}

type memLedger struct {
	mu     sync.Mutex
	jobs   map[string]models.MergeJob
	nextID int
}

func newMemLedger() *memLedger {
	return &memLedger{jobs: make(map[string]models.MergeJob)}
}

func (l *memLedger) Create(_ context.Context, job models.MergeJob) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := fmt.Sprintf("job-%d", l.nextID)
	l.jobs[id] = job
	return id, nil
}

func (l *memLedger) MarkPublished(_ context.Context, id string, job models.MergeJob) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	existing, ok := l.jobs[id]
	if !ok {
		return errors.New("no such job")
	}
	job.SourcePrefix = existing.SourcePrefix
	job.CreatedAt = existing.CreatedAt
	job.Status = models.StatusPublished
	l.jobs[id] = job
	return nil
}

func (l *memLedger) MarkFailed(_ context.Context, id, details string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[id]
	if !ok {
		return errors.New("no such job")
	}
	job.Status = models.StatusFailed
	job.ErrorDetails = details
	l.jobs[id] = job
	return nil
}

func (l *memLedger) job(id string) models.MergeJob {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jobs[id]
}

type recordingWorkflow struct {
	payloads []models.WorkflowPayload
	err      error
}

func (w *recordingWorkflow) Start(_ context.Context, payload models.WorkflowPayload) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.payloads = append(w.payloads, payload)
	return "executions/exec-1", nil
}
