package loader

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// extractPDFPages returns the text of every page in the file, in page
// order. Pages whose content cannot be extracted are returned as empty
// strings so page numbering stays intact.
func extractPDFPages(path string) ([]string, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}

	pages := make([]string, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			log.Printf("[PDF] Failed to extract content of page %d: %v", pageNr, err)
			pages = append(pages, "")
			continue
		}
		if r == nil {
			pages = append(pages, "")
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			log.Printf("[PDF] Failed to read content of page %d: %v", pageNr, err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, contentStreamText(raw))
	}
	return pages, nil
}

// cropHeaderFooter trims top and bottom margins of every page, in points
// (1 pt = 1/72 inch). Used to drop repeating headers and footers before
// text extraction.
func cropHeaderFooter(inputPath, outputPath string, top, bottom float64) error {
	conf := api.LoadConfiguration()

	pages := []string{"1-"}

	cropStr := fmt.Sprintf("%.2f 0 %.2f 0", top, bottom)

	box, err := model.ParseBox(cropStr, pdftypes.POINTS)
	if err != nil {
		return fmt.Errorf("failed to parse crop box: %w", err)
	}

	if err := api.CropFile(inputPath, outputPath, pages, box, conf); err != nil {
		return fmt.Errorf("failed to crop PDF: %w", err)
	}

	return nil
}

// contentStreamText pulls the text shown by a page's content stream. It
// collects string operands and emits them when a text-showing operator
// (Tj, TJ, ' or ") consumes them; strings consumed by any other operator
// are discarded. Text-positioning operators become line breaks.
func contentStreamText(content []byte) string {
	var out strings.Builder
	var pending []string

	flush := func() {
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '(':
			s, next := parseLiteralString(content, i)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(content) && content[i+1] != '<':
			s, next := parseHexString(content, i)
			pending = append(pending, s)
			i = next
		case c == '/':
			// Name object: skip so its letters are not taken for an operator.
			i++
			for i < len(content) && !isDelimiter(content[i]) {
				i++
			}
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case isOperatorChar(c):
			j := i
			for j < len(content) && isOperatorChar(content[j]) {
				j++
			}
			switch string(content[i:j]) {
			case "Tj", "TJ":
				flush()
				out.WriteString(" ")
			case "'", "\"":
				out.WriteString("\n")
				flush()
			case "Td", "TD", "T*", "ET":
				pending = pending[:0]
				out.WriteString("\n")
			default:
				pending = pending[:0]
			}
			i = j
		default:
			i++
		}
	}

	return strings.TrimSpace(out.String())
}

func isOperatorChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '*' || c == '\'' || c == '"'
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', '\x00', '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// parseLiteralString reads a PDF literal string starting at the opening
// parenthesis, handling nested parentheses and backslash escapes. It
// returns the decoded text and the index just past the closing parenthesis.
func parseLiteralString(content []byte, start int) (string, int) {
	var b strings.Builder
	depth := 1
	i := start + 1

	for i < len(content) && depth > 0 {
		c := content[i]
		switch c {
		case '\\':
			if i+1 >= len(content) {
				i++
				break
			}
			i++
			esc := content[i]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
				// Ignore backspace and form feed.
			case '(', ')', '\\':
				b.WriteByte(esc)
			case '\r':
				// Line continuation; a \r\n pair counts as one break.
				if i+1 < len(content) && content[i+1] == '\n' {
					i++
				}
			case '\n':
				// Line continuation.
			default:
				if esc >= '0' && esc <= '7' {
					code := int(esc - '0')
					for n := 0; n < 2 && i+1 < len(content) && content[i+1] >= '0' && content[i+1] <= '7'; n++ {
						i++
						code = code*8 + int(content[i]-'0')
					}
					b.WriteByte(byte(code))
				} else {
					b.WriteByte(esc)
				}
			}
			i++
		case '(':
			depth++
			b.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				b.WriteByte(c)
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String(), i
}

// parseHexString reads a PDF hex string starting at '<'. It returns the
// decoded bytes and the index just past the closing '>'.
func parseHexString(content []byte, start int) (string, int) {
	var digits []byte
	i := start + 1
	for i < len(content) && content[i] != '>' {
		c := content[i]
		if c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' {
			digits = append(digits, c)
		}
		i++
	}
	if i < len(content) {
		i++ // closing '>'
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	var b strings.Builder
	for j := 0; j+1 < len(digits); j += 2 {
		b.WriteByte(hexVal(digits[j])<<4 | hexVal(digits[j+1]))
	}
	return b.String(), i
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
