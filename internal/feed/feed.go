// Package feed keeps the index in sync with JSON-lines document files placed
// in watched directories. Each line is one document:
//
//	{"uid": "doc-1", "text": "...", "tags": "news", "metadata": {"lang": "en"}}
//
// Lines without a uid get one derived from the file path and line number.
// Other supported files (text, markdown, PDF, office formats) are extracted to
// text and split into word windows, one document per window, with uids derived
// from the path and tags set to the file type.
// Rewriting a file replaces its documents; removing it deletes them.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyperjump/vecbridge/internal/extract"
	"github.com/hyperjump/vecbridge/internal/fileid"
	"github.com/hyperjump/vecbridge/internal/models"
	"github.com/hyperjump/vecbridge/internal/watcher"
	"go.uber.org/zap"
)

// Extension is the extension of JSON-lines document files.
const Extension = ".jsonl"

// Extensions returns every extension the feed picks up.
func Extensions() []string {
	return append([]string{Extension}, extract.Extensions()...)
}

const maxLineSize = 16 << 20

// Sink receives the documents read from files.
type Sink interface {
	Upsert(ctx context.Context, inputs []*models.DocumentInput) ([]*models.Document, error)
	Delete(ctx context.Context, uids []string) ([]int64, error)
}

// Feed loads document files from watched directories into a Sink.
type Feed struct {
	sink         Sink
	dirs         []string
	logger       *zap.Logger
	chunkSize    int
	chunkOverlap int
	watcher      *watcher.Watcher
	ctx          context.Context

	mu    sync.Mutex
	files map[string][]string // path -> uids loaded from it
}

// Option configures a Feed.
type Option func(*Feed)

// WithChunking splits extracted files into windows of size words overlapping
// by overlap words. Without it each file is a single document.
func WithChunking(size, overlap int) Option {
	return func(f *Feed) {
		f.chunkSize = size
		f.chunkOverlap = overlap
	}
}

// New creates a feed over dirs.
func New(sink Sink, dirs []string, logger *zap.Logger, opts ...Option) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Feed{
		sink:   sink,
		dirs:   dirs,
		logger: logger.With(zap.String("component", "feed")),
		ctx:    context.Background(),
		files:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start watches the directories and loads the files already in them.
func (f *Feed) Start(ctx context.Context) error {
	f.ctx = ctx
	f.watcher = watcher.New(f.dirs, Extensions(),
		func(path string) {
			if err := f.Load(f.ctx, path); err != nil {
				f.logger.Warn("feed load failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := f.Remove(f.ctx, path); err != nil {
				f.logger.Warn("feed remove failed", zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithLogger(f.logger),
	)
	if err := f.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	f.logger.Info("feed started", zap.Strings("directories", f.watcher.Directories()))
	f.watcher.SyncExistingFiles()
	return nil
}

// Stop stops watching.
func (f *Feed) Stop() {
	if f.watcher != nil {
		f.watcher.Stop()
	}
}

// Load upserts the documents in the file at path and deletes documents the
// previous version of the file had but this one does not.
func (f *Feed) Load(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	docs, err := f.readFile(abs)
	if err != nil {
		return fmt.Errorf("%s: %w", abs, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(docs) > 0 {
		if _, err := f.sink.Upsert(ctx, docs); err != nil {
			return err
		}
	}
	current := make(map[string]bool, len(docs))
	uids := make([]string, len(docs))
	for i, d := range docs {
		current[d.UID] = true
		uids[i] = d.UID
	}
	var stale []string
	for _, uid := range f.files[abs] {
		if !current[uid] {
			stale = append(stale, uid)
		}
	}
	if len(stale) > 0 {
		if _, err := f.sink.Delete(ctx, stale); err != nil {
			return err
		}
	}
	f.files[abs] = uids
	f.logger.Debug("feed file loaded",
		zap.String("path", abs),
		zap.Int("documents", len(docs)),
		zap.Int("stale", len(stale)),
	)
	return nil
}

func (f *Feed) readFile(path string) ([]*models.DocumentInput, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != Extension {
		text, err := extract.File(path)
		if err != nil {
			return nil, err
		}
		chunks := chunkWords(text, f.chunkSize, f.chunkOverlap)
		docs := make([]*models.DocumentInput, len(chunks))
		for i, chunk := range chunks {
			docs[i] = &models.DocumentInput{
				UID:      fileid.ChunkUID(path, i),
				Text:     chunk,
				Tags:     strings.TrimPrefix(ext, "."),
				Metadata: map[string]interface{}{"path": path, "chunk": i},
			}
		}
		return docs, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open: %w", err)
	}
	defer file.Close()
	var docs []*models.DocumentInput
	err = scanDocuments(file, func(line int, doc *models.DocumentInput) {
		if doc.UID == "" {
			doc.UID = fileid.DocumentUID(path, line)
		}
		docs = append(docs, doc)
	})
	return docs, err
}

// Remove deletes every document loaded from the file at path.
func (f *Feed) Remove(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	uids := f.files[abs]
	delete(f.files, abs)
	if len(uids) == 0 {
		return nil
	}
	if _, err := f.sink.Delete(ctx, uids); err != nil {
		return err
	}
	f.logger.Debug("feed file removed", zap.String("path", abs), zap.Int("documents", len(uids)))
	return nil
}

// Files returns the number of files currently loaded.
func (f *Feed) Files() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// ReadDocuments parses JSON lines from r. Blank lines are skipped.
func ReadDocuments(r io.Reader) ([]*models.DocumentInput, error) {
	var docs []*models.DocumentInput
	err := scanDocuments(r, func(_ int, doc *models.DocumentInput) {
		docs = append(docs, doc)
	})
	return docs, err
}

func scanDocuments(r io.Reader, fn func(line int, doc *models.DocumentInput)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc models.DocumentInput
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		fn(line, &doc)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read documents: %w", err)
	}
	return nil
}
