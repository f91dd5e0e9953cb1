package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docresearch/src/core/research"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*Job
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{jobs: make(map[int64]*Job)}
}

func (r *memoryRepo) Create(_ context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	job := &Job{ID: r.nextID, TaskType: taskType, Payload: payload, Status: JobStatusPending, CreatedAt: time.Now()}
	r.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id int64, status JobStatus, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	job.Status = status
	job.Error = errMsg
	return nil
}

func (r *memoryRepo) status(id int64) JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id].Status
}

type processorFunc func(ctx context.Context, job research.IngestJob) error

func (f processorFunc) ProcessIngestJob(ctx context.Context, job research.IngestJob) error {
	return f(ctx, job)
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (failingPublisher) Close() error                              { return nil }

func TestEnqueueIngestRunsThroughRouter(t *testing.T) {
	logger := watermill.NopLogger{}
	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, logger)
	defer pubSub.Close()

	repo := newMemoryRepo()
	svc := NewJobService(pubSub, repo, logger, "")
	assert.Equal(t, DefaultTopic, svc.Topic())

	received := make(chan research.IngestJob, 1)
	svc.RegisterHandler(TaskTypeIngest, NewIngestTask(processorFunc(func(_ context.Context, job research.IngestJob) error {
		received <- job
		return nil
	})))

	router, err := NewRouter(logger, pubSub, svc, RetryConfig{MaxRetries: 0, InitialInterval: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	id, err := svc.EnqueueIngest(ctx, research.IngestJob{DocumentID: 7, Filename: "a.pdf", BlobURL: "uploads/x/a.pdf", ChunkSize: 300})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	select {
	case job := <-received:
		assert.Equal(t, int64(7), job.DocumentID)
		assert.Equal(t, "a.pdf", job.Filename)
		assert.Equal(t, "uploads/x/a.pdf", job.BlobURL)
		assert.Equal(t, 300, job.ChunkSize)
	case <-time.After(5 * time.Second):
		t.Fatal("ingest job was not processed")
	}

	assert.Eventually(t, func() bool {
		return repo.status(id) == JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	info, err := svc.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeIngest, info.TaskType)
	assert.Equal(t, "completed", info.Status)
	assert.Nil(t, info.Error)
}

func TestProcessJobMessageMarksFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewJobService(failingPublisher{}, repo, watermill.NopLogger{}, "jobs")
	svc.RegisterHandler(TaskTypeIngest, NewIngestTask(processorFunc(func(context.Context, research.IngestJob) error {
		return errors.New("ocr crashed")
	})))

	job, err := repo.Create(context.Background(), TaskTypeIngest, json.RawMessage(`{"document_id":1}`))
	require.NoError(t, err)

	payload, err := json.Marshal(JobMessage{JobID: job.ID, TaskType: TaskTypeIngest, Payload: job.Payload})
	require.NoError(t, err)

	err = svc.ProcessJobMessage(message.NewMessage(watermill.NewUUID(), payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr crashed")

	info, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", info.Status)
	require.NotNil(t, info.Error)
	assert.Equal(t, "ocr crashed", *info.Error)
}

func TestProcessJobMessageErrors(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewJobService(failingPublisher{}, repo, watermill.NopLogger{}, "jobs")

	err := svc.ProcessJobMessage(message.NewMessage(watermill.NewUUID(), []byte("{")))
	assert.ErrorContains(t, err, "failed to unmarshal job message")

	missing, _ := json.Marshal(JobMessage{JobID: 42, TaskType: TaskTypeIngest})
	err = svc.ProcessJobMessage(message.NewMessage(watermill.NewUUID(), missing))
	assert.ErrorContains(t, err, "job not found: 42")

	job, _ := repo.Create(context.Background(), "translate", nil)
	unknown, _ := json.Marshal(JobMessage{JobID: job.ID, TaskType: "translate"})
	err = svc.ProcessJobMessage(message.NewMessage(watermill.NewUUID(), unknown))
	assert.ErrorContains(t, err, "unknown task type: translate")
	assert.Equal(t, JobStatusFailed, repo.status(job.ID))
}

func TestEnqueueJobPublishFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewJobService(failingPublisher{}, repo, watermill.NopLogger{}, "jobs")

	_, err := svc.EnqueueIngest(context.Background(), research.IngestJob{DocumentID: 1})
	assert.ErrorContains(t, err, "failed to publish job message")
	assert.Equal(t, JobStatusFailed, repo.status(1))
}

func TestGetJobNotFound(t *testing.T) {
	svc := NewJobService(failingPublisher{}, newMemoryRepo(), watermill.NopLogger{}, "jobs")

	_, err := svc.GetJob(context.Background(), 9)
	assert.ErrorIs(t, err, research.ErrJobNotFound)
}

func TestKeysAndValuesSorted(t *testing.T) {
	kv := keysAndValues(watermill.LogFields{"b": 2, "a": 1})
	assert.Equal(t, []interface{}{"a", 1, "b", 2}, kv)
}
