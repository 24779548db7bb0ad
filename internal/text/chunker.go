package text

import (
	"fmt"
	"regexp"
	"strings"
)

// Options controls chunk sizing. Sizes are in characters.
type Options struct {
	MaxChunkSize           int
	MinChunkSize           int
	OverlapSize            int
	PreservePageBoundaries bool
}

// DefaultOptions returns the sizing used for textbook-style documents.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize:           1800,
		MinChunkSize:           200,
		OverlapSize:            300,
		PreservePageBoundaries: true,
	}
}

// Chunk is a bounded span of sanitized text. Start and End are character
// offsets into the sanitized input; consecutive chunks may overlap by up to
// OverlapSize characters for continuity across boundaries.
type Chunk struct {
	Index         int
	Content       string
	Start         int
	End           int
	SectionTitle  string
	ChapterNumber int
	PageNumber    int
}

// Chunker splits sanitized text into bounded, overlapping chunks using a
// header -> paragraph -> sentence fallback hierarchy.
type Chunker struct {
	opts Options
}

// NewChunker validates options and returns a chunker. OverlapSize must be
// strictly smaller than MaxChunkSize or overlap seeding could never make
// progress.
func NewChunker(opts Options) (*Chunker, error) {
	if opts.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d", opts.MaxChunkSize)
	}
	if opts.MinChunkSize < 0 || opts.MinChunkSize > opts.MaxChunkSize {
		return nil, fmt.Errorf("min chunk size %d out of range [0, %d]", opts.MinChunkSize, opts.MaxChunkSize)
	}
	if opts.OverlapSize < 0 || opts.OverlapSize >= opts.MaxChunkSize {
		return nil, fmt.Errorf("overlap size %d must be in [0, %d)", opts.OverlapSize, opts.MaxChunkSize)
	}
	return &Chunker{opts: opts}, nil
}

// Chunk sanitizes the input and splits it into ordered chunks. Empty or
// whitespace-only input yields no chunks. Chunk indices are contiguous
// starting at 0 across all sections.
func (c *Chunker) Chunk(input string) []Chunk {
	sanitized := Sanitize(input)
	if strings.TrimSpace(sanitized) == "" {
		return nil
	}

	var chunks []Chunk
	for _, sec := range DetectSections(sanitized) {
		c.chunkSection(sanitized, sec, &chunks)
	}

	if c.opts.PreservePageBoundaries {
		AttributePages(chunks, PageRanges(sanitized))
	}
	return chunks
}

// chunkSection emits chunks for one section. Sections that fit the size bound
// become a single chunk; larger sections are split at paragraph boundaries
// with sentence-level fallback for oversized paragraphs.
func (c *Chunker) chunkSection(text string, sec Section, out *[]Chunk) {
	if sec.End-sec.Start <= c.opts.MaxChunkSize {
		c.emit(text, sec, sec.Start, sec.End, out)
		return
	}

	pieces := c.pieces(text, sec.Start, sec.End)
	sectionFirst := len(*out)

	start, end := sec.Start, sec.Start
	hasPiece := false
	for _, p := range pieces {
		if hasPiece && p[1]-start > c.opts.MaxChunkSize {
			c.emit(text, sec, start, end, out)
			prev := (*out)[len(*out)-1]
			start = end - c.opts.OverlapSize
			if start < prev.Start {
				start = prev.Start
			}
			hasPiece = false
		}
		if !hasPiece && p[1]-start > c.opts.MaxChunkSize {
			// Shrink the overlap seed so the chunk stays within bound.
			start = p[1] - c.opts.MaxChunkSize
		}
		end = p[1]
		hasPiece = true
	}

	if end <= start {
		return
	}
	if end-start >= c.opts.MinChunkSize || len(*out) == sectionFirst {
		c.emit(text, sec, start, end, out)
		return
	}
	// Trailing buffer below MinChunkSize: extend the previous chunk instead of
	// emitting a degenerate tiny chunk.
	prev := &(*out)[len(*out)-1]
	prev.End = end
	prev.Content = text[prev.Start:end]
}

func (c *Chunker) emit(text string, sec Section, start, end int, out *[]Chunk) {
	*out = append(*out, Chunk{
		Index:         len(*out),
		Content:       text[start:end],
		Start:         start,
		End:           end,
		SectionTitle:  sec.Title,
		ChapterNumber: sec.ChapterNumber,
	})
}

// pieces returns contiguous spans tiling [start, end), each at most
// MaxChunkSize long. Paragraphs that fit are kept whole; oversized paragraphs
// fall back to sentences, and a sentence that still exceeds the bound is
// hard-split so chunking always terminates.
func (c *Chunker) pieces(text string, start, end int) [][2]int {
	var pieces [][2]int
	for _, p := range paragraphSpans(text, start, end) {
		if p[1]-p[0] <= c.opts.MaxChunkSize {
			pieces = append(pieces, p)
			continue
		}
		for _, s := range sentenceSpans(text, p[0], p[1]) {
			if s[1]-s[0] <= c.opts.MaxChunkSize {
				pieces = append(pieces, s)
				continue
			}
			for at := s[0]; at < s[1]; at += c.opts.MaxChunkSize {
				cut := at + c.opts.MaxChunkSize
				if cut > s[1] {
					cut = s[1]
				}
				pieces = append(pieces, [2]int{at, cut})
			}
		}
	}
	return pieces
}

// paragraphBreakRe matches a blank-line paragraph separator.
var paragraphBreakRe = regexp.MustCompile(`\n[ \t]*\n`)

// paragraphSpans splits [start, end) at blank lines. The separator is kept
// with the preceding paragraph so the spans tile the input exactly.
func paragraphSpans(text string, start, end int) [][2]int {
	var spans [][2]int
	at := start
	for _, loc := range paragraphBreakRe.FindAllStringIndex(text[start:end], -1) {
		breakEnd := start + loc[1]
		spans = append(spans, [2]int{at, breakEnd})
		at = breakEnd
	}
	if at < end {
		spans = append(spans, [2]int{at, end})
	}
	return spans
}

// sentenceBoundaryRe matches the gap between sentences: terminal punctuation,
// optional closing quotes or brackets, whitespace, then a capital letter.
var sentenceBoundaryRe = regexp.MustCompile(`[.!?]['")\]]*\s+[A-Z]`)

// sentenceSpans splits [start, end) after sentence-terminating punctuation.
// Returns the whole span when no boundary is found.
func sentenceSpans(text string, start, end int) [][2]int {
	var spans [][2]int
	at := start
	for _, loc := range sentenceBoundaryRe.FindAllStringIndex(text[start:end], -1) {
		// The capital letter starting the next sentence is one byte long.
		next := start + loc[1] - 1
		spans = append(spans, [2]int{at, next})
		at = next
	}
	if at < end {
		spans = append(spans, [2]int{at, end})
	}
	return spans
}
