// Package ann defines the contract shared by all approximate nearest neighbor backends.
//
// A Backend owns one collection inside an external engine and maps the host's
// contiguous int64 id space onto it. Ids are assigned positionally from the
// backend's offset, so the host never needs to know the engine's native key type.
package ann

import "context"

// Backend is a vector index and similarity search engine for one collection.
//
// Mutating calls (Index, Append, Delete) must be serialized by the caller per
// collection. Search and Count may be called concurrently.
type Backend interface {
	// Index drops and recreates the collection, resets the offset to 0 and
	// appends vectors with ids 0..len(vectors)-1.
	Index(ctx context.Context, vectors [][]float32) error
	// Append stores vectors with ids [Offset(), Offset()+len(vectors)) and
	// advances the offset only when the whole batch landed.
	Append(ctx context.Context, vectors [][]float32) error
	// Delete removes points by host id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []int64) error
	// Search runs all queries in one batched request and returns, per query,
	// at most limit results ordered by descending score.
	Search(ctx context.Context, queries [][]float32, limit int) ([][]Result, error)
	// Count returns the number of points the engine reports for the collection.
	Count(ctx context.Context) (int64, error)
	// Save checkpoints the index to path. No-op for server-backed engines.
	Save(path string) error
	// Load restores a checkpoint from path. Server-backed engines only warn.
	Load(path string) error
	// Offset returns the next host id that Append will assign.
	Offset() int64
	// Persistence reports how the engine persists its data.
	Persistence() Persistence
	Close() error
}

// Result is a single search hit. Score is a similarity: higher is better.
type Result struct {
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
}

// Persistence describes how a backend keeps its data across process restarts.
type Persistence int

const (
	// FileBacked engines keep data in process memory and need explicit Save/Load.
	FileBacked Persistence = iota
	// ServerBacked engines persist the collection themselves; the collection
	// name takes the place of a file path.
	ServerBacked
)

func (p Persistence) String() string {
	switch p {
	case FileBacked:
		return "file"
	case ServerBacked:
		return "server"
	default:
		return "unknown"
	}
}

// CheckDimensions verifies every vector in batch has exactly dim components.
func CheckDimensions(batch [][]float32, dim int) error {
	for i, v := range batch {
		if len(v) != dim {
			return Configurationf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return nil
}

// EmptyResults returns one empty result list per query.
func EmptyResults(n int) [][]Result {
	out := make([][]Result, n)
	for i := range out {
		out[i] = []Result{}
	}
	return out
}
