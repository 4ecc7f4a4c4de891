// Package snapshot reads and writes checkpoints for file-backed ANN backends.
//
// Format (little endian, zstd compressed): magic "VBSN", version (4), dimensions (4),
// metric length (4) + metric bytes, offset (8), n (4), then per vector: id (8),
// vector (dimensions*4 bytes).
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/klauspost/compress/zstd"
)

const (
	magic   = "VBSN"
	version = uint32(1)

	maxMetricLen  = 64
	maxDimensions = 1 << 16
	// Vectors are appended as they are read; the count in the header only
	// sizes the first allocation, up to this many entries.
	maxPrealloc = 4096
)

// ErrCorrupt is returned when a checkpoint cannot be decoded.
var ErrCorrupt = errors.New("snapshot: corrupt checkpoint")

// Snapshot is the full state of a file-backed collection.
type Snapshot struct {
	Dimensions int
	Metric     ann.Metric
	// Offset is kept separately from len(IDs) so ids are not reused after deletes.
	Offset  int64
	IDs     []int64
	Vectors [][]float32
}

// Write encodes s to path atomically. Parent directories are created if needed.
func Write(path string, s *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, s); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Read decodes the checkpoint at path.
func Read(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes s to w.
func Encode(w io.Writer, s *Snapshot) error {
	if len(s.IDs) != len(s.Vectors) {
		return fmt.Errorf("snapshot: %d ids for %d vectors", len(s.IDs), len(s.Vectors))
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}

	header := []any{
		[]byte(magic),
		version,
		uint32(s.Dimensions),
		uint32(len(s.Metric)),
		[]byte(s.Metric),
		s.Offset,
		uint32(len(s.IDs)),
	}
	for _, v := range header {
		if err := binary.Write(zw, binary.LittleEndian, v); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write header: %w", err)
		}
	}

	buf := make([]byte, 8+s.Dimensions*4)
	for i, id := range s.IDs {
		vec := s.Vectors[i]
		if len(vec) != s.Dimensions {
			_ = zw.Close()
			return fmt.Errorf("snapshot: vector %d has dimension %d, expected %d", id, len(vec), s.Dimensions)
		}
		binary.LittleEndian.PutUint64(buf[:8], uint64(id))
		for j, x := range vec {
			binary.LittleEndian.PutUint32(buf[8+j*4:], math.Float32bits(x))
		}
		if _, err := zw.Write(buf); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot from r.
func Decode(r io.Reader) (*Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(zr, head); err != nil {
		return nil, fmt.Errorf("%w: read magic: %v", ErrCorrupt, err)
	}
	if string(head) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, head)
	}
	var ver, dim, metricLen uint32
	for _, p := range []*uint32{&ver, &dim, &metricLen} {
		if err := binary.Read(zr, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
		}
	}
	if ver != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, ver)
	}
	if dim == 0 || dim > maxDimensions {
		return nil, fmt.Errorf("%w: dimension %d out of range", ErrCorrupt, dim)
	}
	if metricLen > maxMetricLen {
		return nil, fmt.Errorf("%w: metric name too long", ErrCorrupt)
	}
	metric := make([]byte, metricLen)
	if _, err := io.ReadFull(zr, metric); err != nil {
		return nil, fmt.Errorf("%w: read metric: %v", ErrCorrupt, err)
	}

	s := &Snapshot{Dimensions: int(dim), Metric: ann.Metric(metric)}
	var n uint32
	if err := binary.Read(zr, binary.LittleEndian, &s.Offset); err != nil {
		return nil, fmt.Errorf("%w: read offset: %v", ErrCorrupt, err)
	}
	if err := binary.Read(zr, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: read count: %v", ErrCorrupt, err)
	}

	capacity := min(n, maxPrealloc)
	s.IDs = make([]int64, 0, capacity)
	s.Vectors = make([][]float32, 0, capacity)
	buf := make([]byte, 8+s.Dimensions*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(zr, buf); err != nil {
			return nil, fmt.Errorf("%w: read vector %d: %v", ErrCorrupt, i, err)
		}
		vec := make([]float32, s.Dimensions)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[8+j*4:]))
		}
		s.IDs = append(s.IDs, int64(binary.LittleEndian.Uint64(buf[:8])))
		s.Vectors = append(s.Vectors, vec)
	}
	return s, nil
}

// Validate checks that a loaded snapshot matches the configured collection shape.
func (s *Snapshot) Validate(dim int, metric ann.Metric) error {
	if s.Dimensions != dim {
		return ann.Configurationf("snapshot has dimension %d, index expects %d", s.Dimensions, dim)
	}
	if s.Metric != metric {
		return ann.Configurationf("snapshot uses metric %q, index expects %q", s.Metric, metric)
	}
	return nil
}

// NextID returns the offset to resume from: the saved offset, raised past any
// id still present so restored collections never reuse an id.
func (s *Snapshot) NextID() int64 {
	next := s.Offset
	for _, id := range s.IDs {
		if id >= next {
			next = id + 1
		}
	}
	return next
}
