package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRanges(t *testing.T) {
	text := "<!-- Page 1 -->first page text<!-- Page 2 -->second page text"
	ranges := PageRanges(text)
	require.Len(t, ranges, 2)

	assert.Equal(t, 1, ranges[0].Number)
	assert.Equal(t, 0, ranges[0].Start)
	assert.Equal(t, strings.Index(text, "<!-- Page 2"), ranges[0].End)

	assert.Equal(t, 2, ranges[1].Number)
	assert.Equal(t, len(text), ranges[1].End)
}

func TestPageRanges_NoMarkers(t *testing.T) {
	assert.Empty(t, PageRanges("no markers here"))
}

func TestAttributePages_Midpoint(t *testing.T) {
	text := "<!-- Page 1 -->" + strings.Repeat("a", 100) + "<!-- Page 2 -->" + strings.Repeat("b", 100)
	ranges := PageRanges(text)

	page2Start := strings.Index(text, "<!-- Page 2")
	chunks := []Chunk{
		{Start: 20, End: 60},                          // entirely in page 1
		{Start: page2Start + 20, End: page2Start + 80}, // entirely in page 2
	}
	AttributePages(chunks, ranges)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 2, chunks[1].PageNumber)
}

// A chunk straddling a page boundary belongs to the page containing its
// midpoint. That is the documented tie-break, not an accident.
func TestAttributePages_StraddlingChunk(t *testing.T) {
	text := "<!-- Page 1 -->" + strings.Repeat("a", 30) + "<!-- Page 2 -->" + strings.Repeat("b", 200)
	ranges := PageRanges(text)

	page2Start := strings.Index(text, "<!-- Page 2")
	straddler := Chunk{Start: 25, End: page2Start + 100}
	chunks := []Chunk{straddler}
	AttributePages(chunks, ranges)
	assert.Equal(t, 2, chunks[0].PageNumber, "midpoint falls in page 2's range")
}

func TestAttributePages_BeforeFirstMarker(t *testing.T) {
	text := "preamble<!-- Page 1 -->" + strings.Repeat("a", 50)
	chunks := []Chunk{{Start: 0, End: 8}}
	AttributePages(chunks, PageRanges(text))
	assert.Equal(t, 0, chunks[0].PageNumber, "text before the first marker has no page")
}
