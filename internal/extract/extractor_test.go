package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

// zipOf builds an archive from name/content pairs, preserving order.
func zipOf(t *testing.T, parts ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 0; i+1 < len(parts); i += 2 {
		fw, err := w.Create(parts[i])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(parts[i+1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func wordXML(text string) string {
	return `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`
}

func slideXML(text string) string {
	return `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestBytes(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		content func(t *testing.T) []byte
		want    string
	}{
		{
			name:    "plain",
			ext:     ".txt",
			content: func(*testing.T) []byte { return []byte("Hello world\nLine 2") },
			want:    "Hello world\nLine 2",
		},
		{
			name:    "markdown utf8",
			ext:     ".MD",
			content: func(*testing.T) []byte { return []byte("caf\xc3\xa9") },
			want:    "café",
		},
		{
			name:    "invalid utf8",
			ext:     ".rst",
			content: func(*testing.T) []byte { return []byte("hello\x80world") },
			want:    "hello�world",
		},
		{
			name: "docx default part",
			ext:  ".docx",
			content: func(t *testing.T) []byte {
				return zipOf(t, "word/document.xml", wordXML("Searchable docx content"))
			},
			want: "Searchable docx content",
		},
		{
			name: "docx content types",
			ext:  ".docx",
			content: func(t *testing.T) []byte {
				types := `<Types><Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/></Types>`
				return zipOf(t,
					"[Content_Types].xml", types,
					"word/document.xml", wordXML("stale"),
					"word/document2.xml", wordXML("Content from document2"),
				)
			},
			want: "Content from document2",
		},
		{
			name: "pptx slides",
			ext:  ".pptx",
			content: func(t *testing.T) []byte {
				return zipOf(t,
					"ppt/slides/slide1.xml", slideXML("First slide"),
					"ppt/slides/_rels/slide1.xml.rels", "<Relationships/>",
					"ppt/slides/slide2.xml", slideXML("Second slide"),
				)
			},
			want: "First slide Second slide",
		},
		{
			name: "pptx without slides",
			ext:  ".pptx",
			content: func(t *testing.T) []byte {
				return zipOf(t, "docProps/core.xml", "<cp/>")
			},
			want: "",
		},
		{
			name: "odp",
			ext:  ".odp",
			content: func(t *testing.T) []byte {
				return zipOf(t, "content.xml", `<office:body><draw:page><text:h>Slide title</text:h><text:p>Body text</text:p></draw:page></office:body>`)
			},
			want: "Body text Slide title",
		},
		{
			name: "ods cells",
			ext:  ".ods",
			content: func(t *testing.T) []byte {
				return zipOf(t, "content.xml", `<table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:span>Cell B</text:span></table:table-cell></table:table-row>`)
			},
			want: "Cell A Cell B",
		},
		{
			name: "odt",
			ext:  ".odt",
			content: func(t *testing.T) []byte {
				return zipOf(t, "content.xml", `<office:text><text:h text:outline-level="1">Title</text:h><text:p text:style-name="P1">Paragraph</text:p></office:text>`)
			},
			want: "Paragraph Title",
		},
		{
			name: "xlsx",
			ext:  ".xlsx",
			content: func(t *testing.T) []byte {
				f := excelize.NewFile()
				defer f.Close()
				_ = f.SetCellValue("Sheet1", "A1", "Title")
				_ = f.SetCellValue("Sheet1", "A2", "Value 1")
				_ = f.SetCellValue("Sheet1", "B2", "Value 2")
				var buf bytes.Buffer
				if _, err := f.WriteTo(&buf); err != nil {
					t.Fatalf("WriteTo: %v", err)
				}
				return buf.Bytes()
			},
			want: "Sheet1\nTitle\nValue 1\tValue 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Bytes(tt.content(t), tt.ext)
			if err != nil {
				t.Fatalf("Bytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBytes_errors(t *testing.T) {
	missingContent := zipOf(t, "other.xml", "<x/>")
	tests := []struct {
		name    string
		ext     string
		content []byte
	}{
		{"pptx not a zip", ".pptx", []byte("not a zip")},
		{"odp without content", ".odp", missingContent},
		{"ods without content", ".ods", missingContent},
		{"docx without document", ".docx", missingContent},
		{"pdf garbage", ".pdf", []byte("%PDF-garbage")},
		{"xlsx garbage", ".xlsx", []byte("garbage")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Bytes(tt.content, tt.ext); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBytes_unsupported(t *testing.T) {
	_, err := Bytes([]byte("raw"), ".xyz")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := File(txt)
	if err != nil || got != "File content" {
		t.Fatalf("File(txt) = %q, %v", got, err)
	}

	xlsx := filepath.Join(dir, "data.xlsx")
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "Searchable text")
	if err := f.SaveAs(xlsx); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()
	got, err = File(xlsx)
	if err != nil || got != "Sheet1\nSearchable text" {
		t.Fatalf("File(xlsx) = %q, %v", got, err)
	}

	if _, err := File(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := File(filepath.Join(dir, "image.png")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestExtensions(t *testing.T) {
	want := []string{".docx", ".md", ".odp", ".ods", ".odt", ".pdf", ".pptx", ".rst", ".txt", ".xlsx"}
	if got := Extensions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Extensions() = %v, want %v", got, want)
	}
	if !Supported(".PDF") || Supported(".jsonl") {
		t.Error("Supported mismatch")
	}
}
