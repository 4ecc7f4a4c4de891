package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/hyperjump/vecbridge/internal/cli"
	"github.com/hyperjump/vecbridge/internal/config"
	"github.com/hyperjump/vecbridge/internal/embeddings"
	"github.com/hyperjump/vecbridge/internal/models"
)

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		batch bool
		want  *models.SearchQuery
	}{
		{"single word", []string{"hyperjump"}, false, &models.SearchQuery{Query: "hyperjump"}},
		{"multiple words", []string{"hyperjump", "profile"}, false, &models.SearchQuery{Query: "hyperjump profile"}},
		{"single quoted phrase", []string{"hyperjump profile"}, false, &models.SearchQuery{Query: "hyperjump profile"}},
		{"blank args", []string{"  ", "  "}, false, &models.SearchQuery{Query: ""}},
		{"batch", []string{"cats", " ", "rockets "}, true, &models.SearchQuery{Queries: []string{"cats", "rockets"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args, tt.batch)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildSearchQuery(%v, %v) = %+v, want %+v", tt.args, tt.batch, got, tt.want)
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	if f, err := parseOutputFormat("json"); err != nil || f != cli.OutputJSON {
		t.Errorf("json: got %q, %v", f, err)
	}
	if f, err := parseOutputFormat(""); err != nil || f != cli.OutputText {
		t.Errorf("empty: got %q, %v", f, err)
	}
	if _, err := parseOutputFormat("compact"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestReadDocumentsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	if err := os.WriteFile(path, []byte("{\"uid\": \"a\", \"text\": \"first\"}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	docs, err := readDocumentsFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].UID != "a" {
		t.Errorf("unexpected docs: %+v", docs)
	}
	if _, err := readDocumentsFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
ann:
  backend: hnsw
  metric: l2
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.ANN.Backend != "hnsw" || cfg.ANN.Metric != "l2" || cfg.ANN.Dimensions != cfg.Embedding.Dimensions {
		t.Errorf("unexpected ann config: %+v", cfg.ANN)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func writeTestConfig(t *testing.T, backend string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/documents.db"
  index_path: "./data/index"
embedding:
  provider: mock
  dimensions: 512
ann:
  backend: ` + backend + `
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir, configPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommands_endToEnd(t *testing.T) {
	for _, backend := range []string{"memory", "hnsw"} {
		t.Run(backend, func(t *testing.T) {
			dir, configPath := writeTestConfig(t, backend)
			docsPath := filepath.Join(dir, "docs.jsonl")
			docs := `{"uid": "cats", "text": "cats purr and sleep all day"}
{"uid": "rockets", "text": "rockets launch into orbit"}
`
			if err := os.WriteFile(docsPath, []byte(docs), 0600); err != nil {
				t.Fatal(err)
			}

			out, err := run(t, "index", docsPath, "--config", configPath)
			if err != nil {
				t.Fatalf("index: %v\n%s", err, out)
			}
			if !strings.Contains(out, "Indexed 2 document(s)") {
				t.Errorf("index output: %q", out)
			}
			if _, err := os.Stat(filepath.Join(dir, "data", "index", embeddings.SnapshotFile)); err != nil {
				t.Fatalf("checkpoint not written on exit: %v", err)
			}

			// A new process must see the checkpoint.
			out, err = run(t, "search", "cats", "--limit", "1", "--output", "json", "--config", configPath)
			if err != nil {
				t.Fatalf("search: %v\n%s", err, out)
			}
			var resp models.SearchResponse
			if err := json.Unmarshal([]byte(out), &resp); err != nil {
				t.Fatalf("search output is not JSON: %v\n%s", err, out)
			}
			if len(resp.Results) != 1 || len(resp.Results[0]) != 1 || resp.Results[0][0].UID != "cats" {
				t.Fatalf("search results: %+v", resp.Results)
			}

			out, err = run(t, "delete", "rockets", "--config", configPath)
			if err != nil || !strings.Contains(out, "Deleted 1 document(s)") {
				t.Fatalf("delete: %v\n%s", err, out)
			}
			out, err = run(t, "count", "--config", configPath)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if strings.TrimSpace(out) != "1" {
				t.Errorf("count output: %q, want 1", out)
			}

			out, err = run(t, "status", "--output", "json", "--config", configPath)
			if err != nil {
				t.Fatalf("status: %v", err)
			}
			var status statusResponse
			if err := json.Unmarshal([]byte(out), &status); err != nil {
				t.Fatalf("status output is not JSON: %v\n%s", err, out)
			}
			if status.Vectors != 1 || status.Documents != 1 || status.Offset != 2 || status.Config.Backend != backend {
				t.Errorf("status: %+v", status)
			}
		})
	}
}

func TestBuildEmbeddings_dimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "documents.db")
	cfg.Storage.IndexPath = filepath.Join(dir, "index")
	cfg.Embedding.Dimensions = 8
	cfg.ANN.Dimensions = 16
	config.ApplyDefaults(cfg)

	_, err := buildEmbeddings(context.Background(), cfg, nil)
	if !ann.IsConfiguration(err) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if _, statErr := os.Stat(cfg.Storage.DatabasePath); !os.IsNotExist(statErr) {
		t.Error("no database should be created for a rejected configuration")
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "vecbridge version") {
		t.Errorf("version output: %q", out)
	}
}

func TestWriteStatus_text(t *testing.T) {
	var buf bytes.Buffer
	disk := int64(42)
	err := writeStatus(&buf, &statusResponse{
		Vectors: 3, Documents: 3, Offset: 5, Persistence: "file", DiskUsageBytes: &disk,
		Config: &statusConfigResponse{Backend: "memory", Dimensions: 8, Metric: "cosine", Embedding: "mock"},
	}, "text")
	if err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"vectors:        3", "offset:         5", "disk_usage:     42 bytes", "backend:        memory"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("status output missing %q:\n%s", sub, buf.String())
		}
	}
	if err := writeStatus(&buf, &statusResponse{}, "yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
