// Package embeddings is the host side of the ANN abstraction: it embeds
// documents, hands vectors to the configured backend, and keeps the documents
// behind each host id so search hits can be returned with their text.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/hyperjump/vecbridge/internal/embedding"
	"github.com/hyperjump/vecbridge/internal/models"
	"github.com/hyperjump/vecbridge/internal/storage"
	"go.uber.org/zap"
)

// SnapshotFile is the name of the vector checkpoint inside the index directory.
const SnapshotFile = "vectors.snap"

// ErrInvalidDocument is returned for nil documents or documents without text.
var ErrInvalidDocument = errors.New("invalid document")

// Embeddings coordinates the embedder, the ANN backend and the document store.
type Embeddings struct {
	storage  storage.Storage
	embedder embedding.Embedder
	backend  ann.Backend
	logger   *zap.Logger

	// mu serializes mutations; the backend assigns ids from its offset.
	mu sync.Mutex
}

// Option configures Embeddings.
type Option func(*Embeddings)

// WithLogger sets a logger for debug output (documents indexed, deleted, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(e *Embeddings) { e.logger = l }
}

// New creates the host over an already constructed store, embedder and backend.
func New(store storage.Storage, embedder embedding.Embedder, backend ann.Backend, opts ...Option) *Embeddings {
	e := &Embeddings{
		storage:  store,
		embedder: embedder,
		backend:  backend,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the underlying ANN backend.
func (e *Embeddings) Backend() ann.Backend {
	return e.backend
}

// Index replaces everything with inputs. Documents get ids 0..len(inputs)-1.
func (e *Embeddings) Index(ctx context.Context, inputs []*models.DocumentInput) ([]*models.Document, error) {
	docs, err := prepare(inputs)
	if err != nil {
		return nil, err
	}
	vectors, err := e.embed(ctx, docs)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.backend.Index(ctx, vectors); err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}
	for i, doc := range docs {
		doc.ID = int64(i)
	}
	if err := e.storage.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset documents: %w", err)
	}
	if err := e.storage.InsertDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to store documents: %w", err)
	}
	e.logger.Debug("documents indexed", zap.Int("count", len(docs)))
	return docs, nil
}

// Add appends inputs. Ids continue from the backend's offset.
func (e *Embeddings) Add(ctx context.Context, inputs []*models.DocumentInput) ([]*models.Document, error) {
	docs, err := prepare(inputs)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return docs, nil
	}
	vectors, err := e.embed(ctx, docs)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked(ctx, docs, vectors)
}

func (e *Embeddings) addLocked(ctx context.Context, docs []*models.Document, vectors [][]float32) ([]*models.Document, error) {
	start := e.backend.Offset()
	if err := e.backend.Append(ctx, vectors); err != nil {
		return nil, fmt.Errorf("failed to append vectors: %w", err)
	}
	for i, doc := range docs {
		doc.ID = start + int64(i)
	}
	if err := e.storage.InsertDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to store documents: %w", err)
	}
	e.logger.Debug("documents added", zap.Int("count", len(docs)), zap.Int64("first_id", start))
	return docs, nil
}

// Upsert appends inputs, then removes the documents previously stored under
// the same uids. A failed append leaves the previous documents in place.
func (e *Embeddings) Upsert(ctx context.Context, inputs []*models.DocumentInput) ([]*models.Document, error) {
	docs, err := prepare(inputs)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return docs, nil
	}
	vectors, err := e.embed(ctx, docs)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	uids := make([]string, len(docs))
	for i, doc := range docs {
		uids[i] = doc.UID
	}
	previous, err := e.storage.IDsByUID(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uids: %w", err)
	}
	added, err := e.addLocked(ctx, docs, vectors)
	if err != nil {
		return nil, err
	}
	if err := e.deleteIDsLocked(ctx, previous); err != nil {
		return nil, err
	}
	return added, nil
}

// Delete removes every document stored under uids and returns the removed host ids.
func (e *Embeddings) Delete(ctx context.Context, uids []string) ([]int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteLocked(ctx, uids)
}

func (e *Embeddings) deleteLocked(ctx context.Context, uids []string) ([]int64, error) {
	ids, err := e.storage.IDsByUID(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := e.deleteIDsLocked(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (e *Embeddings) deleteIDsLocked(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := e.backend.Delete(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if err := e.storage.DeleteDocuments(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	e.logger.Debug("documents deleted", zap.Int("count", len(ids)))
	return nil
}

// Search returns the top limit documents for query.
func (e *Embeddings) Search(ctx context.Context, query string, limit int) ([]*models.SearchResult, error) {
	results, err := e.BatchSearch(ctx, []string{query}, limit)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// BatchSearch embeds all queries and runs them as one backend search.
// Hits whose document is no longer stored are dropped.
func (e *Embeddings) BatchSearch(ctx context.Context, queries []string, limit int) ([][]*models.SearchResult, error) {
	out := make([][]*models.SearchResult, len(queries))
	if len(queries) == 0 {
		return out, nil
	}
	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = normalize(q)
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed queries: %w", err)
	}
	hits, err := e.backend.Search(ctx, vectors, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	var ids []int64
	for _, list := range hits {
		for _, h := range list {
			ids = append(ids, h.ID)
		}
	}
	docs, err := e.storage.GetDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	for qi, list := range hits {
		results := make([]*models.SearchResult, 0, len(list))
		for _, h := range list {
			doc, ok := docs[h.ID]
			if !ok {
				e.logger.Debug("search hit without document", zap.Int64("id", h.ID))
				continue
			}
			results = append(results, &models.SearchResult{
				ID:       h.ID,
				UID:      doc.UID,
				Text:     doc.Text,
				Tags:     doc.Tags,
				Metadata: doc.Metadata,
				Score:    h.Score,
				Rank:     len(results) + 1,
			})
		}
		out[qi] = results
	}
	return out, nil
}

// Count returns the number of vectors reported by the backend.
func (e *Embeddings) Count(ctx context.Context) (int64, error) {
	return e.backend.Count(ctx)
}

// Status summarizes the backend and document store.
type Status struct {
	Vectors     int64  `json:"vectors"`
	Documents   int64  `json:"documents"`
	Offset      int64  `json:"offset"`
	Persistence string `json:"persistence"`
}

// Status reports vector and document counts.
func (e *Embeddings) Status(ctx context.Context) (*Status, error) {
	vectors, err := e.backend.Count(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := e.storage.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	return &Status{
		Vectors:     vectors,
		Documents:   docs,
		Offset:      e.backend.Offset(),
		Persistence: e.backend.Persistence().String(),
	}, nil
}

// Save checkpoints a file-backed backend into dir. Server-backed backends are skipped.
func (e *Embeddings) Save(dir string) error {
	if e.backend.Persistence() == ann.ServerBacked {
		e.logger.Debug("save skipped for server-backed backend")
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	path := filepath.Join(dir, SnapshotFile)
	if err := e.backend.Save(path); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	e.logger.Info("index saved", zap.String("path", path))
	return nil
}

// Load restores a file-backed backend from dir. A missing checkpoint is not an
// error: the backend simply starts empty.
func (e *Embeddings) Load(ctx context.Context, dir string) error {
	if e.backend.Persistence() == ann.ServerBacked {
		return nil
	}
	path := filepath.Join(dir, SnapshotFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		e.logger.Debug("no index checkpoint found", zap.String("path", path))
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.backend.Load(path); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	vectors, err := e.backend.Count(ctx)
	if err != nil {
		return err
	}
	docs, err := e.storage.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	if vectors != docs {
		e.logger.Warn("index and document store disagree",
			zap.Int64("vectors", vectors),
			zap.Int64("documents", docs),
		)
	}
	e.logger.Info("index loaded", zap.String("path", path), zap.Int64("count", vectors))
	return nil
}

// Close releases the backend, the embedder and the document store.
func (e *Embeddings) Close() error {
	return errors.Join(e.backend.Close(), e.embedder.Close(), e.storage.Close())
}

func (e *Embeddings) embed(ctx context.Context, docs []*models.Document) ([][]float32, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return vectors, nil
}

// prepare validates inputs and turns them into documents with normalized text
// and a uid.
func prepare(inputs []*models.DocumentInput) ([]*models.Document, error) {
	docs := make([]*models.Document, 0, len(inputs))
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("%w: document %d is nil", ErrInvalidDocument, i)
		}
		text := normalize(in.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: document %d has no text", ErrInvalidDocument, i)
		}
		uid := in.UID
		if uid == "" {
			uid = uuid.New().String()
		}
		docs = append(docs, &models.Document{
			UID:      uid,
			Text:     text,
			Tags:     in.Tags,
			Metadata: in.Metadata,
		})
	}
	return docs, nil
}

// normalize trims text and collapses whitespace runs to one space.
func normalize(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
