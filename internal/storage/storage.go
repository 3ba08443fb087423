// Package storage defines the persistence interface for document records and
// conversation history.
package storage

import (
	"context"

	"github.com/unistudy/unirag/internal/models"
)

// Storage persists ingested-document bookkeeping and question/answer turns.
// Documents are keyed by filename; re-ingesting a file with new content
// upserts the record with its new fingerprint.
type Storage interface {
	UpsertDocument(ctx context.Context, doc *models.DocumentRecord) error
	GetDocument(ctx context.Context, filename string) (*models.DocumentRecord, error)
	DeleteDocument(ctx context.Context, filename string) error
	ListDocuments(ctx context.Context) ([]*models.DocumentRecord, error)
	CountDocuments(ctx context.Context) (int64, error)

	SaveTurn(ctx context.Context, turn *models.ConversationTurn) error
	ListTurns(ctx context.Context, limit int) ([]*models.ConversationTurn, error)

	Close() error
}
