package localfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

func TestQueueStorage_SaveThenGetJob(t *testing.T) {
	s := newQueueStorage(t.TempDir())
	job := models.NewJob("https://site.com/x", models.JobKindProduct, "")

	require.NoError(t, s.SaveJob(context.Background(), job))

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.NormalizedURL, got.NormalizedURL)
}

func TestQueueStorage_GetJob_MissingReturnsErrNotFound(t *testing.T) {
	s := newQueueStorage(t.TempDir())
	_, err := s.GetJob(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestQueueStorage_ListJobs_SkipsQueueOrderFile(t *testing.T) {
	s := newQueueStorage(t.TempDir())
	j1 := models.NewJob("https://site.com/a", models.JobKindProduct, "")
	j2 := models.NewJob("https://site.com/b", models.JobKindStore, "")
	require.NoError(t, s.SaveJob(context.Background(), j1))
	require.NoError(t, s.SaveJob(context.Background(), j2))
	require.NoError(t, s.SaveQueueOrder(context.Background(), []string{j1.ID, j2.ID}))

	jobs, err := s.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestQueueStorage_GetJobByURL(t *testing.T) {
	s := newQueueStorage(t.TempDir())
	job := models.NewJob("https://site.com/x", models.JobKindProduct, "")
	require.NoError(t, s.SaveJob(context.Background(), job))

	got, err := s.GetJobByURL(context.Background(), "https://site.com/x")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = s.GetJobByURL(context.Background(), "https://site.com/nope")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestQueueStorage_SaveThenLoadQueueOrder(t *testing.T) {
	s := newQueueStorage(t.TempDir())
	order := []string{"a", "b", "c"}
	require.NoError(t, s.SaveQueueOrder(context.Background(), order))

	got, err := s.LoadQueueOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, order, got)
}

func TestQueueStorage_LoadQueueOrder_MissingReturnsEmpty(t *testing.T) {
	s := newQueueStorage(t.TempDir())
	got, err := s.LoadQueueOrder(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueueStorage_DeleteJob(t *testing.T) {
	s := newQueueStorage(t.TempDir())
	job := models.NewJob("https://site.com/x", models.JobKindProduct, "")
	require.NoError(t, s.SaveJob(context.Background(), job))
	require.NoError(t, s.DeleteJob(context.Background(), job.ID))

	_, err := s.GetJob(context.Background(), job.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestQueueStorage_DeleteJob_MissingIsNoop(t *testing.T) {
	s := newQueueStorage(t.TempDir())
	assert.NoError(t, s.DeleteJob(context.Background(), "nonexistent"))
}
