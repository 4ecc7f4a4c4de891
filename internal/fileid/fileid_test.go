package fileid

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestFileID(t *testing.T) {
	id1 := FileID("/foo/bar.jsonl")
	id2 := FileID("/foo/bar.jsonl")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+16 {
		t.Errorf("unexpected ID length: %q", id1)
	}
}

func TestFileID_differentPaths(t *testing.T) {
	if FileID("/foo/bar.jsonl") == FileID("/foo/baz.jsonl") {
		t.Error("different paths should give different IDs")
	}
}

func TestFileID_normalized(t *testing.T) {
	id1 := FileID("/foo/bar")
	if id1 != FileID("/foo/bar/") {
		t.Error("paths differing only by trailing slash should match")
	}
	if id1 != FileID("/foo/./bar") {
		t.Error("paths with . should normalize")
	}
}

func TestDocumentUID(t *testing.T) {
	abs, _ := filepath.Abs("docs.jsonl")
	uid := DocumentUID(abs, 3)
	if !strings.HasSuffix(uid, ":3") {
		t.Errorf("uid should end with line number: %q", uid)
	}
	if uid == DocumentUID(abs, 4) {
		t.Error("different lines should give different uids")
	}
	if !FromFile(uid, abs) {
		t.Errorf("FromFile(%q, %q) = false", uid, abs)
	}
	if FromFile(uid, abs+".bak") {
		t.Error("uid must not match another file")
	}
	if FromFile("doc-1", abs) {
		t.Error("explicit uid must not match a file")
	}
}

func TestChunkUID(t *testing.T) {
	abs, _ := filepath.Abs("report.pdf")
	uid := ChunkUID(abs, 0)
	if uid != FileID(abs)+"#0" {
		t.Errorf("ChunkUID = %q", uid)
	}
	if uid == DocumentUID(abs, 0) {
		t.Error("chunk and line uids must differ")
	}
	if !FromFile(uid, abs) {
		t.Errorf("FromFile(%q, %q) = false", uid, abs)
	}
	if FromFile(FileID(abs)+"x", abs) {
		t.Error("bare suffix must not match")
	}
}
