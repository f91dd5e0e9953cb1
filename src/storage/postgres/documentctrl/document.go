package documentctrl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"docresearch/src/core/research"
	"docresearch/src/storage/postgres/chunkctrl"
)

type Document struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	DocID       string    `gorm:"not null;index" json:"doc_id"`
	Filename    string    `gorm:"not null" json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `gorm:"not null" json:"size"`
	BlobURL     string    `gorm:"column:blob_url" json:"blob_url"` // bucket name + object name
	Status      string    `gorm:"not null;default:pending" json:"status"`
	NumChunks   int       `gorm:"not null;default:0" json:"num_chunks"`
	Error       string    `gorm:"type:text" json:"error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentService implements research.DocumentRepository on gorm.
type DocumentService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
	chunks    *chunkctrl.ChunkService
}

func NewDocumentService(db *gorm.DB, chunks *chunkctrl.ChunkService, node *snowflake.Node) *DocumentService {
	return &DocumentService{
		db:        db,
		snowflake: node,
		chunks:    chunks,
	}
}

// AutoMigrate creates or updates the document and chunk tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Document{}, &chunkctrl.Chunk{})
}

func (s *DocumentService) Create(ctx context.Context, doc *research.Document) error {
	row := fromResearch(doc)
	row.ID = s.snowflake.Generate().Int64()

	result := s.db.WithContext(ctx).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to create document: %w", result.Error)
	}

	doc.ID = row.ID
	doc.CreatedAt = row.CreatedAt
	return nil
}

func (s *DocumentService) Get(ctx context.Context, id int64) (*research.Document, error) {
	var row Document
	result := s.db.WithContext(ctx).First(&row, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, research.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", result.Error)
	}
	doc := row.toResearch()
	return &doc, nil
}

// List returns a page of documents, newest first
func (s *DocumentService) List(ctx context.Context, limit, offset int) ([]research.Document, error) {
	var rows []Document

	result := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list documents: %w", result.Error)
	}

	docs := make([]research.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.toResearch()
	}
	return docs, nil
}

func (s *DocumentService) MarkProcessed(ctx context.Context, id int64, numChunks int) error {
	return s.update(ctx, id, map[string]interface{}{
		"status":     string(research.DocumentStatusProcessed),
		"num_chunks": numChunks,
		"error":      "",
	})
}

func (s *DocumentService) MarkFailed(ctx context.Context, id int64, reason string) error {
	return s.update(ctx, id, map[string]interface{}{
		"status": string(research.DocumentStatusFailed),
		"error":  reason,
	})
}

func (s *DocumentService) update(ctx context.Context, id int64, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return research.ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentService) SaveChunks(ctx context.Context, documentID int64, chunks []research.Chunk) error {
	rows := make([]chunkctrl.NewChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = chunkctrl.NewChunk{VectorID: c.VectorID, Ref: c.Ref, Text: c.Text, Order: c.Order}
	}
	_, err := s.chunks.Replace(ctx, documentID, rows)
	return err
}

func (s *DocumentService) Chunks(ctx context.Context, documentID int64) ([]research.Chunk, error) {
	rows, err := s.chunks.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	chunks := make([]research.Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = research.Chunk{VectorID: r.VectorID, Ref: r.Ref, Text: r.Text, Order: r.Order}
	}
	return chunks, nil
}

// Ping checks the database connection.
func (s *DocumentService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func fromResearch(doc *research.Document) Document {
	status := doc.Status
	if status == "" {
		status = research.DocumentStatusPending
	}
	return Document{
		ID:          doc.ID,
		DocID:       doc.DocID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		BlobURL:     doc.BlobURL,
		Status:      string(status),
		NumChunks:   doc.NumChunks,
		Error:       doc.Error,
	}
}

func (d Document) toResearch() research.Document {
	return research.Document{
		ID:          d.ID,
		DocID:       d.DocID,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Size:        d.Size,
		BlobURL:     d.BlobURL,
		Status:      research.DocumentStatus(d.Status),
		NumChunks:   d.NumChunks,
		Error:       d.Error,
		CreatedAt:   d.CreatedAt,
	}
}
