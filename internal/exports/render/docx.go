package render

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

// DOCXRenderer builds a WordprocessingML package from scratch. The output is
// a minimal but valid .docx: content types, package relationships and a
// single document part.
type DOCXRenderer struct{}

// NewDOCXRenderer constructs a DOCXRenderer.
func NewDOCXRenderer() *DOCXRenderer {
	return &DOCXRenderer{}
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// Render produces DOCX bytes for the document.
func (r *DOCXRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/document.xml", buildDocumentXML(doc)},
	}
	for _, part := range parts {
		w, err := writer.Create(part.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildDocumentXML(doc Document) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	name := doc.Name
	if name == "" {
		name = doc.Title
	}
	writeParagraph(&b, name, runProps{Bold: true, SizeHalfPts: 48})

	contact := joinNonEmpty(" | ", doc.Email, doc.Phone, doc.Location)
	if contact != "" {
		writeParagraph(&b, contact, runProps{SizeHalfPts: 20})
	}

	if doc.Summary != "" {
		writeHeading(&b, "Summary")
		writeParagraph(&b, doc.Summary, runProps{})
	}

	if len(doc.Experience) > 0 {
		writeHeading(&b, "Experience")
		for _, exp := range doc.Experience {
			head := joinNonEmpty(", ", exp.Role, exp.Company)
			dates := joinNonEmpty(" - ", exp.Start, exp.End)
			if dates != "" {
				head = joinNonEmpty("  ", head, dates)
			}
			writeParagraph(&b, head, runProps{Bold: true})
			for _, h := range exp.Highlights {
				writeBullet(&b, h)
			}
		}
	}

	if len(doc.Education) > 0 {
		writeHeading(&b, "Education")
		for _, edu := range doc.Education {
			head := joinNonEmpty(", ", edu.Degree, edu.School)
			dates := joinNonEmpty(" - ", edu.Start, edu.End)
			if dates != "" {
				head = joinNonEmpty("  ", head, dates)
			}
			writeParagraph(&b, head, runProps{})
		}
	}

	if len(doc.Skills) > 0 {
		writeHeading(&b, "Skills")
		writeParagraph(&b, strings.Join(doc.Skills, ", "), runProps{})
	}

	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

type runProps struct {
	Bold        bool
	SizeHalfPts int
}

func writeParagraph(b *strings.Builder, text string, props runProps) {
	if text == "" {
		return
	}
	b.WriteString(`<w:p><w:r>`)
	if props.Bold || props.SizeHalfPts > 0 {
		b.WriteString(`<w:rPr>`)
		if props.Bold {
			b.WriteString(`<w:b/>`)
		}
		if props.SizeHalfPts > 0 {
			fmt.Fprintf(b, `<w:sz w:val="%d"/>`, props.SizeHalfPts)
		}
		b.WriteString(`</w:rPr>`)
	}
	fmt.Fprintf(b, `<w:t xml:space="preserve">%s</w:t>`, escapeXML(text))
	b.WriteString(`</w:r></w:p>`)
}

func writeHeading(b *strings.Builder, text string) {
	writeParagraph(b, strings.ToUpper(text), runProps{Bold: true, SizeHalfPts: 26})
}

func writeBullet(b *strings.Builder, text string) {
	writeParagraph(b, "• "+text, runProps{})
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

var _ Renderer = (*DOCXRenderer)(nil)
