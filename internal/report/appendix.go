package report

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/hhtab/internal/tabulate"
	"github.com/KaramelBytes/hhtab/internal/utils"
)

// WriteAppendix writes the cross-tabulations to one document. The format
// follows the extension: .docx or .md.
func WriteAppendix(path string, tabs []*tabulate.CrossTab) error {
	data, err := RenderAppendix(path, tabs)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("write appendix: %w", err)
	}
	return nil
}

// RenderAppendix encodes the cross-tabulations in the format implied by
// path without touching the filesystem.
func RenderAppendix(path string, tabs []*tabulate.CrossTab) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return Docx(tabs)
	case ".md", ".markdown":
		return []byte(Markdown(tabs)), nil
	}
	return nil, fmt.Errorf("unsupported appendix format %q (use .docx or .md)", filepath.Ext(path))
}

func crossHeader(ct *tabulate.CrossTab) []string {
	h := make([]string, 0, len(ct.Columns)+2)
	h = append(h, "country")
	h = append(h, ct.Columns...)
	return append(h, "Total")
}

func crossBody(ct *tabulate.CrossTab) [][]string {
	rows := make([][]string, 0, len(ct.Rows)+1)
	for _, r := range ct.Rows {
		row := []string{r.Country}
		for _, c := range r.Counts {
			row = append(row, strconv.Itoa(c))
		}
		rows = append(rows, append(row, strconv.Itoa(r.Total)))
	}
	total := []string{"Total"}
	for _, c := range ct.Totals {
		total = append(total, strconv.Itoa(c))
	}
	return append(rows, append(total, strconv.Itoa(ct.Total)))
}

// Markdown renders the cross-tabulations as Markdown tables.
func Markdown(tabs []*tabulate.CrossTab) string {
	var b strings.Builder
	b.WriteString("# Appendix: sample composition by country\n")
	for i, ct := range tabs {
		b.WriteString(fmt.Sprintf("\n## Table A%d. %s\n\n", i+1, safeVal(ct.Title)))
		header := crossHeader(ct)
		b.WriteString("| ")
		b.WriteString(strings.Join(mapStrings(header, safeVal), " | "))
		b.WriteString(" |\n|")
		for j := range header {
			if j == 0 {
				b.WriteString(" --- |")
			} else {
				b.WriteString(" ---: |")
			}
		}
		b.WriteString("\n")
		for _, row := range crossBody(ct) {
			b.WriteString("| ")
			b.WriteString(strings.Join(mapStrings(row, safeVal), " | "))
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

func mapStrings(in []string, fn func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fn(s)
	}
	return out
}

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`
	rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
	docRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
)

// Docx renders the cross-tabulations as a WordprocessingML package: a
// heading paragraph followed by a bordered table per variable.
func Docx(tabs []*tabulate.CrossTab) ([]byte, error) {
	var doc bytes.Buffer
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	writePara(&doc, "Appendix: sample composition by country", true)
	for i, ct := range tabs {
		writePara(&doc, fmt.Sprintf("Table A%d. %s", i+1, ct.Title), true)
		doc.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="0" w:type="auto"/><w:tblBorders>`)
		for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
			doc.WriteString(`<w:` + side + ` w:val="single" w:sz="4" w:space="0" w:color="auto"/>`)
		}
		doc.WriteString(`</w:tblBorders></w:tblPr>`)
		writeTableRow(&doc, crossHeader(ct), true)
		body := crossBody(ct)
		for j, row := range body {
			writeTableRow(&doc, row, j == len(body)-1)
		}
		doc.WriteString(`</w:tbl>`)
		writePara(&doc, "", false)
	}
	doc.WriteString(`<w:sectPr><w:pgSz w:w="16838" w:h="11906" w:orient="landscape"/></w:sectPr>`)
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(rootRelsXML)},
		{"word/_rels/document.xml.rels", []byte(docRelsXML)},
		{"word/document.xml", doc.Bytes()},
	} {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", part.name, err)
		}
		if _, err := w.Write(part.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return buf.Bytes(), nil
}

func writePara(b *bytes.Buffer, text string, bold bool) {
	b.WriteString(`<w:p>`)
	if text != "" {
		writeRun(b, text, bold)
	}
	b.WriteString(`</w:p>`)
}

func writeRun(b *bytes.Buffer, text string, bold bool) {
	b.WriteString(`<w:r>`)
	if bold {
		b.WriteString(`<w:rPr><w:b/></w:rPr>`)
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(b, []byte(text))
	b.WriteString(`</w:t></w:r>`)
}

func writeTableRow(b *bytes.Buffer, cells []string, bold bool) {
	b.WriteString(`<w:tr>`)
	for _, c := range cells {
		b.WriteString(`<w:tc><w:p>`)
		writeRun(b, c, bold)
		b.WriteString(`</w:p></w:tc>`)
	}
	b.WriteString(`</w:tr>`)
}
