package localfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// QueueStorage persists Job records as one file per job plus a single
// queue-order file, under dir.
type QueueStorage struct {
	mu  sync.Mutex
	dir string
}

func newQueueStorage(dir string) *QueueStorage {
	return &QueueStorage{dir: dir}
}

func (s *QueueStorage) jobPath(id string) string {
	return filepath.Join(s.dir, safeFilename(id))
}

func (s *QueueStorage) queueOrderPath() string {
	return filepath.Join(s.dir, "_queue_order.json")
}

func (s *QueueStorage) SaveJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.jobPath(job.ID), job)
}

func (s *QueueStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var job models.Job
	if err := readJSON(s.jobPath(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *QueueStorage) GetJobByURL(ctx context.Context, normalizedURL string) (*models.Job, error) {
	jobs, err := s.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.NormalizedURL == normalizedURL {
			return job, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (s *QueueStorage) ListJobs(ctx context.Context) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	jobs := make([]*models.Job, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name() == "_queue_order.json" {
			continue
		}
		var job models.Job
		if err := readJSON(filepath.Join(s.dir, e.Name()), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (s *QueueStorage) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.jobPath(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *QueueStorage) SaveQueueOrder(ctx context.Context, jobIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.queueOrderPath(), jobIDs)
}

func (s *QueueStorage) LoadQueueOrder(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	if err := readJSON(s.queueOrderPath(), &ids); err != nil {
		if err == interfaces.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return ids, nil
}
