package text

import (
	"regexp"
	"strconv"
	"strings"
)

// Section is a heading-delimited region of a document. Start and End are
// character offsets into the sanitized text; the heading line itself belongs
// to the section. ChapterNumber is 0 when the heading carries no chapter number.
type Section struct {
	Title         string
	ChapterNumber int
	Start         int
	End           int
}

// ChapterHeading is a detected chapter marker used by the structuring stage.
type ChapterHeading struct {
	Number int
	Title  string
}

// headingLineRe matches markdown H1/H2 heading lines ("# Title", "## Title").
// Deeper headings (###+) are not section boundaries.
var headingLineRe = regexp.MustCompile(`^#{1,2}\s+\S`)

// chapterTitleRe pulls an explicit chapter number out of a heading title.
var chapterTitleRe = regexp.MustCompile(`(?i)^chapter\s+(\d+)[:.\s]*(.*)$`)

// chapterPatterns is the detection ladder for chapter headings. Patterns are
// tried in order and the first one that matches anywhere in the text wins.
var chapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?mi)^#{1,2}\s*Chapter\s+(\d+)[:\s]*(.+)$`),
	regexp.MustCompile(`(?mi)^#{1,2}\s*(\d+)[.\s]+(.+)$`),
	regexp.MustCompile(`(?mi)^Chapter\s+(\d+)[:\s]*(.+)$`),
	regexp.MustCompile(`(?m)^CHAPTER\s+(\d+)[:\s]*(.+)$`),
}

// DetectSections splits text into heading-delimited sections. Text preceding
// the first heading becomes an untitled leading section; if it is pure
// whitespace it is folded into the first heading's section so that sections
// always tile the full input. Text without any headings is one section.
func DetectSections(text string) []Section {
	type heading struct {
		start  int
		title  string
		number int
	}

	var heads []heading
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimRight(line, "\n")
		if headingLineRe.MatchString(trimmed) {
			title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			number := 0
			if m := chapterTitleRe.FindStringSubmatch(title); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					number = n
					if rest := strings.TrimSpace(m[2]); rest != "" {
						title = rest
					}
				}
			}
			heads = append(heads, heading{start: offset, title: title, number: number})
		}
		offset += len(line)
	}

	if len(heads) == 0 {
		return []Section{{Start: 0, End: len(text)}}
	}

	var sections []Section
	if heads[0].start > 0 {
		if strings.TrimSpace(text[:heads[0].start]) != "" {
			sections = append(sections, Section{Start: 0, End: heads[0].start})
		} else {
			heads[0].start = 0
		}
	}
	for i, h := range heads {
		end := len(text)
		if i+1 < len(heads) {
			end = heads[i+1].start
		}
		sections = append(sections, Section{
			Title:         h.title,
			ChapterNumber: h.number,
			Start:         h.start,
			End:           end,
		})
	}
	return sections
}

// DetectChapters finds chapter headings using the pattern ladder. It returns
// nil when no pattern matches; callers decide how to synthesize a default.
func DetectChapters(text string) []ChapterHeading {
	for _, pattern := range chapterPatterns {
		matches := pattern.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		var chapters []ChapterHeading
		for _, m := range matches {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			chapters = append(chapters, ChapterHeading{
				Number: n,
				Title:  strings.TrimSpace(m[2]),
			})
		}
		if len(chapters) > 0 {
			return chapters
		}
	}
	return nil
}
