package chunkctrl

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Chunk struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	DocumentID int64     `gorm:"not null;index" json:"document_id"`
	VectorID   string    `gorm:"not null" json:"vector_id"`
	Ref        string    `gorm:"not null" json:"ref"`
	Text       string    `gorm:"not null;type:text" json:"text"`
	Order      int       `gorm:"not null;column:chunk_order" json:"order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewChunk holds the fields of a chunk row before an id is assigned.
type NewChunk struct {
	VectorID string
	Ref      string
	Text     string
	Order    int
}

type ChunkService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

// NewChunkService generates chunk ids on node, which must be unique per running process.
func NewChunkService(db *gorm.DB, node *snowflake.Node) *ChunkService {
	return &ChunkService{
		db:        db,
		snowflake: node,
	}
}

// CreateBatch inserts the chunks of one document, 100 rows per statement.
func (s *ChunkService) CreateBatch(ctx context.Context, documentID int64, chunks []NewChunk) ([]Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	rows := s.newRows(documentID, chunks)
	result := s.db.WithContext(ctx).CreateInBatches(rows, 100)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create chunks: %w", result.Error)
	}
	return rows, nil
}

func (s *ChunkService) newRows(documentID int64, chunks []NewChunk) []Chunk {
	rows := make([]Chunk, len(chunks))
	for i, c := range chunks {
		rows[i] = Chunk{
			ID:         s.snowflake.Generate().Int64(),
			DocumentID: documentID,
			VectorID:   c.VectorID,
			Ref:        c.Ref,
			Text:       c.Text,
			Order:      c.Order,
		}
	}
	return rows
}

// Replace deletes the stored chunks of a document and inserts the new ones in one transaction.
func (s *ChunkService) Replace(ctx context.Context, documentID int64, chunks []NewChunk) ([]Chunk, error) {
	var rows []Chunk
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txs := &ChunkService{db: tx, snowflake: s.snowflake}
		if err := txs.DeleteByDocumentID(ctx, documentID); err != nil {
			return err
		}
		var err error
		rows, err = txs.CreateBatch(ctx, documentID, chunks)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ChunkService) GetByDocumentID(ctx context.Context, documentID int64) ([]Chunk, error) {
	var chunks []Chunk
	result := s.db.WithContext(ctx).Where("document_id = ?", documentID).Order("chunk_order").Find(&chunks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", result.Error)
	}
	return chunks, nil
}

func (s *ChunkService) DeleteByDocumentID(ctx context.Context, documentID int64) error {
	result := s.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&Chunk{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete chunks: %w", result.Error)
	}
	return nil
}
