package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// sqliteSidecars are the files SQLite keeps next to a database in WAL mode.
var sqliteSidecars = []string{"", "-wal", "-shm"}

// Usage is the on-disk footprint of a vecbridge data directory.
type Usage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	IndexBytes    int64 `json:"index_bytes"`
}

// Total returns the combined size.
func (u Usage) Total() int64 {
	return u.DatabaseBytes + u.IndexBytes
}

// DiskUsage measures the document database (including its WAL sidecars) and
// the checkpoint directory. Missing paths count as zero.
func DiskUsage(databasePath, indexPath string) (Usage, error) {
	var u Usage
	if databasePath != "" {
		for _, suffix := range sqliteSidecars {
			n, err := pathSize(databasePath + suffix)
			if err != nil {
				return Usage{}, err
			}
			u.DatabaseBytes += n
		}
	}
	if indexPath != "" {
		n, err := pathSize(indexPath)
		if err != nil {
			return Usage{}, err
		}
		u.IndexBytes = n
	}
	return u, nil
}

// pathSize sums regular files under path, which may be a file or a directory.
func pathSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	return total, err
}
