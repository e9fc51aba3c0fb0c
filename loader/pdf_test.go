package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentStreamTextShowsTjStrings(t *testing.T) {
	stream := []byte(`BT /F1 12 Tf (Hello World) Tj ET`)
	assert.Equal(t, "Hello World", contentStreamText(stream))
}

func TestContentStreamTextJoinsTJArray(t *testing.T) {
	stream := []byte(`BT [(Cov) -20 (er) 5 (age)] TJ ET`)
	assert.Equal(t, "Coverage", contentStreamText(stream))
}

func TestContentStreamTextPositioningBreaksLines(t *testing.T) {
	stream := []byte(`BT (first line) Tj 0 -14 Td (second line) Tj ET`)
	out := contentStreamText(stream)
	assert.Contains(t, out, "first line")
	assert.Contains(t, out, "second line")
	assert.Less(t,
		indexOf(out, "first line"), indexOf(out, "second line"))
	assert.Contains(t, out, "\n")
}

func TestContentStreamTextDiscardsNonShownStrings(t *testing.T) {
	// Strings consumed by operators other than the text-showing ones must
	// not leak into the output.
	stream := []byte(`(metadata) Tz BT (visible) Tj ET`)
	out := contentStreamText(stream)
	assert.Equal(t, "visible", out)
}

func TestContentStreamTextSkipsNamesAndComments(t *testing.T) {
	stream := []byte("% page header\nBT /TJ12 (ok) Tj ET")
	assert.Equal(t, "ok", contentStreamText(stream))
}

func TestContentStreamTextHexStrings(t *testing.T) {
	// 48 65 78 = "Hex"
	stream := []byte(`BT <486578> Tj ET`)
	assert.Equal(t, "Hex", contentStreamText(stream))
}

func TestParseLiteralString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`(plain)`, "plain"},
		{`(nested (parens) kept)`, "nested (parens) kept"},
		{`(escaped \( paren)`, "escaped ( paren"},
		{`(tab\there)`, "tab\there"},
		{`(line\nbreak)`, "line\nbreak"},
		{`(back\\slash)`, `back\slash`},
		{`(octal \101)`, "octal A"},
		{"(cont\\\ninued)", "continued"},
	}

	for _, tt := range tests {
		got, next := parseLiteralString([]byte(tt.in), 0)
		assert.Equalf(t, tt.want, got, "input %q", tt.in)
		assert.Equalf(t, len(tt.in), next, "input %q", tt.in)
	}
}

func TestParseHexString(t *testing.T) {
	got, next := parseHexString([]byte(`<48692C20504446>`), 0)
	assert.Equal(t, "Hi, PDF", got)
	assert.Equal(t, 16, next)

	// Odd digit count is padded with zero per the PDF spec.
	got, _ = parseHexString([]byte(`<48656C6C6F2`), 0)
	assert.Equal(t, "Hello ", got)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
