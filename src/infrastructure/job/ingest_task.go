package job

import (
	"context"
	"encoding/json"
	"fmt"

	"docresearch/src/core/research"
)

const TaskTypeIngest = "ingest"

// IngestProcessor is the part of the ingest service a worker needs.
type IngestProcessor interface {
	ProcessIngestJob(ctx context.Context, job research.IngestJob) error
}

// NewIngestTask decodes ingest payloads and hands them to p.
func NewIngestTask(p IngestProcessor) TaskHandler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var ingest research.IngestJob
		if err := json.Unmarshal(payload, &ingest); err != nil {
			return fmt.Errorf("failed to unmarshal ingest payload: %w", err)
		}
		return p.ProcessIngestJob(ctx, ingest)
	}
}
