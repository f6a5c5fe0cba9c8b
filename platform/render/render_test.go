package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextResolvesNestedPaths(t *testing.T) {
	data := map[string]any{"ticket": map[string]any{"number": 42, "title": "Printer"}}

	got := Text("Hi {{ticket.number}} - {{ticket.title}}", data)

	assert.Equal(t, "Hi 42 - Printer", got)
}

func TestTextLeavesUnresolvedTokensUntouched(t *testing.T) {
	data := map[string]any{"ticket": map[string]any{"number": 42}}

	got := Text("Hi {{ticket.number}} {{unknown}} {{ ticket.missing }}", data)

	assert.Equal(t, "Hi 42 {{unknown}} {{ ticket.missing }}", got)
}

func TestTextMatchesKeysCaseInsensitively(t *testing.T) {
	data := map[string]any{"Ticket": map[string]any{"Title": "VPN"}}

	assert.Equal(t, "VPN", Text("{{ticket.title}}", data))
}

func TestTextIgnoresNonPathBraces(t *testing.T) {
	assert.Equal(t, "{{ 1 + 2 }} {{.x}}", Text("{{ 1 + 2 }} {{.x}}", map[string]any{"x": "y"}))
}

func TestHTMLEscapesValues(t *testing.T) {
	got := HTML("<p>{{title}}</p>", map[string]any{"title": "<script>"})
	assert.Equal(t, "<p>&lt;script&gt;</p>", got)
}

func TestJoinSkipsEmptyParts(t *testing.T) {
	assert.Equal(t, "Header\n\nBody", Join("Header", "  ", "Body", ""))
}

func TestPlaceholdersDistinct(t *testing.T) {
	assert.Equal(t, []string{"a.b", "c"}, Placeholders("{{a.b}} {{c}} {{ a.b }}"))
}
