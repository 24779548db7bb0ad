package text

import (
	"regexp"
	"strconv"
)

// PageRange maps a page number to the character range it covers. The range
// starts at the page's boundary marker and runs to the next marker (or EOF).
type PageRange struct {
	Number int
	Start  int
	End    int
}

// pageMarkerRe matches the page-boundary markers the conversion service embeds
// in extracted text: an HTML comment of the form <!-- Page N -->.
var pageMarkerRe = regexp.MustCompile(`<!--\s*[Pp]age\s+(\d+)\s*-->`)

// PageRanges scans text for page-boundary markers and returns the character
// range covered by each page, in document order. Text before the first marker
// belongs to no page.
func PageRanges(text string) []PageRange {
	locs := pageMarkerRe.FindAllStringSubmatchIndex(text, -1)
	ranges := make([]PageRange, 0, len(locs))
	for i, loc := range locs {
		number, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		ranges = append(ranges, PageRange{Number: number, Start: loc[0], End: end})
	}
	return ranges
}

// AttributePages assigns each chunk the page whose range contains the chunk's
// midpoint. A chunk straddling a page boundary is attributed to the page
// holding its midpoint; chunks outside every range keep page 0 (unknown).
func AttributePages(chunks []Chunk, ranges []PageRange) {
	if len(ranges) == 0 {
		return
	}
	for i := range chunks {
		mid := (chunks[i].Start + chunks[i].End) / 2
		for _, r := range ranges {
			if mid >= r.Start && mid < r.End {
				chunks[i].PageNumber = r.Number
				break
			}
		}
	}
}
