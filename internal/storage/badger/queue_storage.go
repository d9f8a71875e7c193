package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const queueOrderKey = "queue_order"

// queueOrderRecord wraps the FIFO job-id ordering for badgerhold storage,
// which needs a concrete value type to Upsert under a fixed key.
type queueOrderRecord struct {
	Key    string   `badgerhold:"key"`
	JobIDs []string
}

// QueueStorage persists Job records and queue order in Badger.
type QueueStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewQueueStorage constructs a Badger-backed QueueStorage.
func NewQueueStorage(db *BadgerDB, logger arbor.ILogger) *QueueStorage {
	return &QueueStorage{db: db, logger: logger}
}

func (s *QueueStorage) SaveJob(ctx context.Context, job *models.Job) error {
	return s.db.Store().Upsert(job.ID, job)
}

func (s *QueueStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *QueueStorage) GetJobByURL(ctx context.Context, normalizedURL string) (*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("NormalizedURL").Eq(normalizedURL)); err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &jobs[0], nil
}

func (s *QueueStorage) ListJobs(ctx context.Context) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, err
	}
	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *QueueStorage) DeleteJob(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.Job{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	return err
}

func (s *QueueStorage) SaveQueueOrder(ctx context.Context, jobIDs []string) error {
	return s.db.Store().Upsert(queueOrderKey, &queueOrderRecord{Key: queueOrderKey, JobIDs: jobIDs})
}

func (s *QueueStorage) LoadQueueOrder(ctx context.Context) ([]string, error) {
	var record queueOrderRecord
	if err := s.db.Store().Get(queueOrderKey, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return record.JobIDs, nil
}
