// Package exercises turns chapter content into practice exercises and worked
// solutions, degrading to deterministic placeholders when no generator is
// available.
package exercises

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/studypdf/docpipe/internal/llm"
	"github.com/studypdf/docpipe/internal/logger"
	"github.com/studypdf/docpipe/internal/store"
)

// MaxChapterContent caps how much chapter text goes into one extraction
// prompt. Longer chapters are truncated, not split.
const MaxChapterContent = 15000

// MinChapterContent is the shortest chapter text worth sending to the
// generator. Thinner chapters go straight to placeholders.
const MinChapterContent = 100

const extractSystem = `You identify practice exercises in textbook chapters. Extract existing exercises verbatim where the chapter contains them; otherwise write new ones grounded strictly in the chapter's content. Respond with a JSON array only.`

const extractPromptFormat = `Chapter %d: %s

Extract or create 3 to 8 practice exercises for this chapter. Respond with a JSON array where each element has:
- "type": one of "multiple_choice", "single_select", "short_answer", "long_answer", "mathematical", "coding"
- "question": the exercise text
- "answer": the expected answer (brief)
- "difficulty": "easy", "medium", or "hard"
- "options": for choice types only, an array of {"label", "text", "correct"}
- "topics": an array of short topic tags

Chapter content:
%s`

// extracted is the JSON element shape the model returns.
type extracted struct {
	Type       string                 `json:"type"`
	Question   string                 `json:"question"`
	Answer     string                 `json:"answer"`
	Difficulty string                 `json:"difficulty"`
	Options    []store.ExerciseOption `json:"options"`
	Topics     []string               `json:"topics"`
}

// Extractor produces exercises for one chapter at a time.
type Extractor struct {
	gen llm.Generator
	log *logger.Logger
}

// NewExtractor wires an extractor. A nil generator is allowed; extraction
// then always yields placeholders.
func NewExtractor(gen llm.Generator, log *logger.Logger) *Extractor {
	return &Extractor{gen: gen, log: log}
}

// ExtractChapter returns the chapter's exercises. Generation failures never
// propagate; the chapter gets placeholder exercises instead so the pipeline
// keeps moving.
func (e *Extractor) ExtractChapter(ctx context.Context, doc *store.Document, chapter *store.Chapter, content string) []*store.Exercise {
	if e.gen == nil {
		return Placeholders(doc, chapter)
	}
	if len(strings.TrimSpace(content)) < MinChapterContent {
		e.log.Debug("chapter content too thin for extraction, using placeholders",
			"chapter", chapter.Number, "length", len(content))
		return Placeholders(doc, chapter)
	}

	if len(content) > MaxChapterContent {
		content = content[:MaxChapterContent]
	}

	prompt := fmt.Sprintf(extractPromptFormat, chapter.Number, chapter.Title, content)
	response, err := e.gen.Generate(ctx, prompt, llm.Options{
		System: extractSystem,
		Model:  llm.ModelFast,
	})
	if err != nil {
		e.log.Warn("exercise extraction failed, using placeholders",
			"chapter", chapter.Number, "error", err)
		return Placeholders(doc, chapter)
	}

	parsed, err := parseExtracted(response)
	if err != nil {
		e.log.Warn("exercise extraction returned unusable output, using placeholders",
			"chapter", chapter.Number, "error", err)
		return Placeholders(doc, chapter)
	}

	result := make([]*store.Exercise, 0, len(parsed))
	for _, item := range parsed {
		ex, err := toExercise(doc, chapter, item)
		if err != nil {
			e.log.Debug("dropping invalid extracted exercise",
				"chapter", chapter.Number, "error", err)
			continue
		}
		result = append(result, ex)
	}
	if len(result) == 0 {
		return Placeholders(doc, chapter)
	}
	return result
}

func parseExtracted(response string) ([]extracted, error) {
	raw, err := llm.ExtractJSON(response)
	if err != nil {
		return nil, err
	}
	var items []extracted
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode exercises: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty exercise list")
	}
	return items, nil
}

func toExercise(doc *store.Document, chapter *store.Chapter, item extracted) (*store.Exercise, error) {
	typ := store.ExerciseType(item.Type)
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown exercise type %q", item.Type)
	}
	if item.Question == "" {
		return nil, fmt.Errorf("exercise has no question")
	}

	ex := &store.Exercise{
		DocumentID: doc.ID,
		ChapterID:  chapter.ID,
		Type:       typ,
		Question:   item.Question,
		Answer:     item.Answer,
		Difficulty: item.Difficulty,
		Generated:  true,
	}
	if typ.HasOptions() {
		if len(item.Options) == 0 {
			return nil, fmt.Errorf("choice exercise has no options")
		}
		if err := ex.SetOptions(item.Options); err != nil {
			return nil, err
		}
	}
	if err := ex.SetTopics(item.Topics); err != nil {
		return nil, err
	}
	return ex, nil
}

// Placeholders builds the two stand-in exercises a chapter receives when
// generation is unavailable. Deterministic for a given chapter title.
func Placeholders(doc *store.Document, chapter *store.Chapter) []*store.Exercise {
	short := &store.Exercise{
		DocumentID: doc.ID,
		ChapterID:  chapter.ID,
		Type:       store.ExerciseShortAnswer,
		Question:   fmt.Sprintf("Summarize the key ideas of %q in your own words.", chapter.Title),
		Difficulty: "medium",
		Generated:  true,
	}

	choice := &store.Exercise{
		DocumentID: doc.ID,
		ChapterID:  chapter.ID,
		Type:       store.ExerciseMultipleChoice,
		Question:   fmt.Sprintf("Which topic does the chapter %q primarily cover?", chapter.Title),
		Difficulty: "easy",
		Generated:  true,
	}
	// SetOptions cannot fail for a choice type with options present.
	_ = choice.SetOptions([]store.ExerciseOption{
		{Label: "A", Text: chapter.Title, Correct: true},
		{Label: "B", Text: "An unrelated topic"},
		{Label: "C", Text: "None of the above"},
	})

	return []*store.Exercise{short, choice}
}
