// Package storage defines the persistence interface for indexed documents.
package storage

import (
	"context"

	"github.com/hyperjump/vecbridge/internal/models"
)

// Storage keeps the documents behind each host id so search hits can be
// joined back to their text.
type Storage interface {
	InsertDocuments(ctx context.Context, docs []*models.Document) error
	GetDocuments(ctx context.Context, ids []int64) (map[int64]*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	IDsByUID(ctx context.Context, uids []string) ([]int64, error)
	DeleteDocuments(ctx context.Context, ids []int64) error
	Reset(ctx context.Context) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
