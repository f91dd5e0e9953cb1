package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"docresearch/src/core/research"
)

const DefaultTopic = "ingest-jobs"

// TaskHandler runs one job of a registered task type.
type TaskHandler func(ctx context.Context, payload json.RawMessage) error

type JobService struct {
	publisher message.Publisher
	repo      JobRepository
	logger    watermill.LoggerAdapter
	topic     string
	handlers  map[string]TaskHandler
}

type JobMessage struct {
	JobID    int64           `json:"job_id"`
	TaskType string          `json:"task_type"`
	Payload  json.RawMessage `json:"payload"`
}

func NewJobService(
	publisher message.Publisher,
	repo JobRepository,
	logger watermill.LoggerAdapter,
	topic string,
) *JobService {
	if topic == "" {
		topic = DefaultTopic
	}
	return &JobService{
		publisher: publisher,
		repo:      repo,
		logger:    logger,
		topic:     topic,
		handlers:  make(map[string]TaskHandler),
	}
}

// Topic is the queue jobs are published to.
func (s *JobService) Topic() string {
	return s.topic
}

// RegisterHandler routes jobs of taskType to h.
func (s *JobService) RegisterHandler(taskType string, h TaskHandler) {
	s.handlers[taskType] = h
}

// EnqueueJob creates a new job and publishes it to the message queue
func (s *JobService) EnqueueJob(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	job, err := s.repo.Create(ctx, taskType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	jobMsg := JobMessage{
		JobID:    job.ID,
		TaskType: job.TaskType,
		Payload:  job.Payload,
	}

	msgPayload, err := json.Marshal(jobMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		errStr := err.Error()
		if updateErr := s.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, &errStr); updateErr != nil {
			s.logger.Error("Failed to update job status to failed", updateErr, watermill.LogFields{
				"job_id": job.ID,
			})
		}
		return nil, fmt.Errorf("failed to publish job message: %w", err)
	}

	return job, nil
}

// EnqueueIngest queues the ingestion of an uploaded document.
func (s *JobService) EnqueueIngest(ctx context.Context, ingest research.IngestJob) (int64, error) {
	payload, err := json.Marshal(ingest)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal ingest payload: %w", err)
	}
	job, err := s.EnqueueJob(ctx, TaskTypeIngest, payload)
	if err != nil {
		return 0, err
	}
	return job.ID, nil
}

// GetJob returns the public view of a job.
func (s *JobService) GetJob(ctx context.Context, id int64) (*research.JobInfo, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, research.ErrJobNotFound
	}
	return job.Info(), nil
}

// ProcessJobMessage processes a job message from the queue
func (s *JobService) ProcessJobMessage(msg *message.Message) error {
	var jobMsg JobMessage
	if err := json.Unmarshal(msg.Payload, &jobMsg); err != nil {
		return fmt.Errorf("failed to unmarshal job message: %w", err)
	}

	ctx := msg.Context()

	job, err := s.repo.Get(ctx, jobMsg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %d", jobMsg.JobID)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, JobStatusRunning, nil); err != nil {
		return fmt.Errorf("failed to update job status to running: %w", err)
	}

	err = s.processJob(ctx, job)

	if err != nil {
		errStr := err.Error()
		if updateErr := s.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, &errStr); updateErr != nil {
			s.logger.Error("Failed to update job status to failed", updateErr, watermill.LogFields{
				"job_id": job.ID,
			})
		}
		return fmt.Errorf("failed to process job: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, JobStatusCompleted, nil); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	s.logger.Info("Job completed", watermill.LogFields{
		"job_id":    job.ID,
		"task_type": job.TaskType,
	})
	return nil
}

func (s *JobService) processJob(ctx context.Context, job *Job) error {
	h, ok := s.handlers[job.TaskType]
	if !ok {
		return fmt.Errorf("unknown task type: %s", job.TaskType)
	}
	return h(ctx, job.Payload)
}
