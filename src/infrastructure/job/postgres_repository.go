package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PostgresJobRepository stores jobs in the ingest_jobs table.
type PostgresJobRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewPostgresJobRepository(db *gorm.DB, node *snowflake.Node) *PostgresJobRepository {
	return &PostgresJobRepository{db: db, node: node}
}

func (Job) TableName() string {
	return "ingest_jobs"
}

// AutoMigrate creates or updates the ingest_jobs table.
func (r *PostgresJobRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&Job{})
}

func (r *PostgresJobRepository) Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	job := &Job{
		ID:       r.node.Generate().Int64(),
		TaskType: taskType,
		Payload:  payload,
		Status:   JobStatusPending,
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

// Get returns nil without error when the job does not exist.
func (r *PostgresJobRepository) Get(ctx context.Context, id int64) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus sets the status and replaces the error message; a nil errMsg clears it.
func (r *PostgresJobRepository) UpdateStatus(ctx context.Context, id int64, status JobStatus, errMsg *string) error {
	result := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"error":      errMsg,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %d not found", id)
	}
	return nil
}
