package loader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// readDOCXText extracts the paragraph text of a DOCX file. A DOCX is a
// ZIP archive; the document body lives in word/document.xml. Non-empty
// paragraphs are joined with newlines.
func readDOCXText(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening DOCX archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("opening document.xml: %w", err)
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading document.xml: %w", err)
		}

		return parseDocumentXML(content)
	}

	return "", fmt.Errorf("word/document.xml not found in archive")
}

// documentXML mirrors the parts of word/document.xml we care about:
// paragraphs containing runs containing text nodes.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Texts []string `xml:"t"`
	} `xml:"r"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parsing document.xml: %w", err)
	}

	var paragraphs []string
	for _, p := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, run := range p.Runs {
			for _, t := range run.Texts {
				b.WriteString(t)
			}
		}
		if text := b.String(); strings.TrimSpace(text) != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}
