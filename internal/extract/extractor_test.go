package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"resumate/internal/parser"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`,
		"word/document.xml": documentXML,
	}
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
<w:p><w:r><w:t>Senior</w:t></w:r><w:r><w:tab/></w:r><w:r><w:t>Engineer</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestExtractDocxParagraphsAndTabs(t *testing.T) {
	text, err := extractDocx(buildDocx(t, sampleDocumentXML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Jane Doe\n") {
		t.Errorf("paragraph break missing: %q", text)
	}
	if !strings.Contains(text, "Senior\tEngineer") {
		t.Errorf("tab not preserved: %q", text)
	}
}

func TestExtractDocxMissingDocumentStream(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("word/styles.xml")
	_, _ = f.Write([]byte("<styles/>"))
	_ = w.Close()

	if _, err := extractDocx(buf.Bytes()); err == nil {
		t.Fatal("expected error for docx without word/document.xml")
	}
}

func TestExtractorPlainText(t *testing.T) {
	e := NewExtractor(nil)

	text, err := e.Extract(context.Background(), parser.Document{
		ID:    "job-1",
		Bytes: []byte("plain resume text with enough words to be recognized as text"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "plain resume text") {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestExtractorUnsupportedFormat(t *testing.T) {
	e := NewExtractor(nil)

	// 普通 zip 不是 docx。
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("random.bin")
	_, _ = f.Write([]byte{0x00, 0x01})
	_ = w.Close()

	_, err := e.Extract(context.Background(), parser.Document{ID: "job-1", Bytes: buf.Bytes()})
	if !errors.Is(err, parser.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractorHonoursCancelledContext(t *testing.T) {
	e := NewExtractor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, parser.Document{ID: "job-1", Bytes: []byte("text")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
