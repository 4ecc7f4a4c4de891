package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// zipFormat describes a zip-packaged XML format (OOXML or OpenDocument):
// which parts hold text and which elements carry it.
type zipFormat struct {
	name string
	// parts returns the names of the parts to read, in order.
	parts func(zr *zip.Reader) []string
	tags  []*regexp.Regexp
}

func textTag(name string) *regexp.Regexp {
	return regexp.MustCompile(`<` + regexp.QuoteMeta(name) + `(?:\s[^>]*)?>([^<]*)</` + regexp.QuoteMeta(name) + `>`)
}

const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	overrideRe = regexp.MustCompile(`<Override\s[^>]*>`)
	partNameRe = regexp.MustCompile(`PartName="([^"]+)"`)

	docx = zipFormat{name: "DOCX", parts: docxParts, tags: []*regexp.Regexp{textTag("w:t")}}
	pptx = zipFormat{name: "PPTX", parts: prefixParts("ppt/slides/slide", ".xml"), tags: []*regexp.Regexp{textTag("a:t")}}
	odt  = zipFormat{name: "ODT", parts: fixedPart("content.xml"), tags: []*regexp.Regexp{textTag("text:p"), textTag("text:h"), textTag("text:span")}}
	odp  = zipFormat{name: "ODP", parts: fixedPart("content.xml"), tags: []*regexp.Regexp{textTag("text:p"), textTag("text:span"), textTag("text:h")}}
	ods  = zipFormat{name: "ODS", parts: fixedPart("content.xml"), tags: []*regexp.Regexp{textTag("text:p"), textTag("text:span")}}
)

func fixedPart(name string) func(*zip.Reader) []string {
	return func(*zip.Reader) []string { return []string{name} }
}

func prefixParts(prefix, suffix string) func(*zip.Reader) []string {
	return func(zr *zip.Reader) []string {
		var names []string
		for _, f := range zr.File {
			if strings.HasPrefix(f.Name, prefix) && strings.HasSuffix(f.Name, suffix) {
				names = append(names, f.Name)
			}
		}
		return names
	}
}

// docxParts finds the main document part from [Content_Types].xml and falls
// back to word/document.xml.
func docxParts(zr *zip.Reader) []string {
	if types, err := readPart(zr, "[Content_Types].xml"); err == nil {
		for _, o := range overrideRe.FindAllString(string(types), -1) {
			if !strings.Contains(o, `ContentType="`+docxMainContentType+`"`) {
				continue
			}
			if m := partNameRe.FindStringSubmatch(o); m != nil {
				return []string{strings.TrimPrefix(m[1], "/")}
			}
		}
	}
	return []string{"word/document.xml"}
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}

func (z zipFormat) extract(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", z.name, err)
	}
	var b strings.Builder
	for _, name := range z.parts(zr) {
		data, err := readPart(zr, name)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", z.name, err)
		}
		s := string(data)
		for _, tag := range z.tags {
			for _, m := range tag.FindAllStringSubmatch(s, -1) {
				text := strings.TrimSpace(m[1])
				if text == "" {
					continue
				}
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
	}
	return b.String(), nil
}
