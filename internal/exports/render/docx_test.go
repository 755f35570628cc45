package render

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func sampleDoc() Document {
	return Document{
		Title:      "Backend Engineer Resume",
		Name:       "Ada Lovelace",
		Email:      "ada@example.com",
		Phone:      "555-0100",
		Summary:    "Engineer with a focus on distributed systems & tooling.",
		Skills:     []string{"Go", "Postgres"},
		Experience: []Experience{
			{
				Company:    "Example Corp",
				Role:       "Staff Engineer",
				Start:      "2020",
				End:        "2024",
				Highlights: []string{"Shipped the export pipeline.", "Cut render times by 40%."},
			},
		},
		Education: []Education{
			{School: "University of London", Degree: "BSc Mathematics", Start: "2012", End: "2015"},
		},
	}
}

func readDocumentXML(t *testing.T, docxBytes []byte) string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(docxBytes), int64(len(docxBytes)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open document.xml: %v", err)
			}
			defer rc.Close()
			content, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read document.xml: %v", err)
			}
			return string(content)
		}
	}
	t.Fatal("word/document.xml missing from package")
	return ""
}

func TestDOCXRenderProducesValidPackage(t *testing.T) {
	out, err := NewDOCXRenderer().Render(context.Background(), sampleDoc())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}

	wantParts := map[string]bool{
		"[Content_Types].xml": false,
		"_rels/.rels":         false,
		"word/document.xml":   false,
	}
	for _, f := range reader.File {
		if _, ok := wantParts[f.Name]; ok {
			wantParts[f.Name] = true
		}
	}
	for name, found := range wantParts {
		if !found {
			t.Errorf("missing package part %s", name)
		}
	}
}

func TestDOCXRenderIncludesContent(t *testing.T) {
	out, err := NewDOCXRenderer().Render(context.Background(), sampleDoc())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	documentXML := readDocumentXML(t, out)

	for _, want := range []string{
		"Ada Lovelace",
		"Example Corp",
		"Shipped the export pipeline.",
		"BSc Mathematics",
		"Go, Postgres",
	} {
		if !strings.Contains(documentXML, want) {
			t.Errorf("document.xml missing %q", want)
		}
	}
}

func TestDOCXRenderEscapesMarkup(t *testing.T) {
	doc := Document{Title: "T", Name: "<script>&boom;</script>"}
	out, err := NewDOCXRenderer().Render(context.Background(), doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	documentXML := readDocumentXML(t, out)
	if strings.Contains(documentXML, "<script>") {
		t.Fatal("markup not escaped in document.xml")
	}
	if !strings.Contains(documentXML, "&lt;script&gt;") {
		t.Fatal("escaped markup missing")
	}
}

func TestParseDocumentIgnoresUnknownKeys(t *testing.T) {
	content := json.RawMessage(`{"name":"Grace Hopper","skills":["COBOL"],"legacyField":123}`)
	doc, err := ParseDocument("My Resume", content)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if doc.Name != "Grace Hopper" || doc.Title != "My Resume" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if len(doc.Skills) != 1 || doc.Skills[0] != "COBOL" {
		t.Fatalf("skills not parsed: %+v", doc.Skills)
	}
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	html, err := RenderHTML(Document{Title: "T", Name: "<b>bold</b>"})
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if strings.Contains(html, "<b>bold</b>") {
		t.Fatal("HTML content not escaped")
	}
}
