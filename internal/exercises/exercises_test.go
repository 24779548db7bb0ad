package exercises

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypdf/docpipe/internal/llm"
	"github.com/studypdf/docpipe/internal/logger"
	"github.com/studypdf/docpipe/internal/store"
)

// fakeGenerator returns canned responses and records prompts.
type fakeGenerator struct {
	mu       sync.Mutex
	prompts  []string
	response string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeContexts struct {
	passages string
	err      error
}

func (f *fakeContexts) ExerciseContext(_ context.Context, _, _ uuid.UUID, _ string) (string, error) {
	return f.passages, f.err
}

func testChapter() (*store.Document, *store.Chapter) {
	doc := &store.Document{ID: uuid.New()}
	return doc, &store.Chapter{ID: uuid.New(), DocumentID: doc.ID, Number: 2, Title: "Forces"}
}

// chapterText is long enough to pass the thin-content guard.
const chapterText = `A force is a push or a pull acting on a body. Newton's second law relates the
net force on a body to its mass and acceleration, and balanced forces leave the
body's velocity unchanged.`

func TestExtractChapter(t *testing.T) {
	gen := &fakeGenerator{response: `[
		{"type": "short_answer", "question": "Define force.", "answer": "A push or pull.", "difficulty": "easy", "topics": ["forces"]},
		{"type": "multiple_choice", "question": "Unit of force?", "difficulty": "easy",
		 "options": [{"label": "A", "text": "Newton", "correct": true}, {"label": "B", "text": "Joule"}]}
	]`}
	doc, chapter := testChapter()

	got := NewExtractor(gen, logger.NewNop()).ExtractChapter(context.Background(), doc, chapter, chapterText)
	require.Len(t, got, 2)
	assert.Equal(t, store.ExerciseShortAnswer, got[0].Type)
	assert.Equal(t, doc.ID, got[0].DocumentID)
	assert.Equal(t, chapter.ID, got[0].ChapterID)
	assert.True(t, got[0].Generated)

	topics, err := got[0].DecodeTopics()
	require.NoError(t, err)
	assert.Equal(t, []string{"forces"}, topics)

	opts, err := got[1].DecodeOptions()
	require.NoError(t, err)
	require.Len(t, opts, 2)
	assert.True(t, opts[0].Correct)
}

func TestExtractChapter_TruncatesLongContent(t *testing.T) {
	gen := &fakeGenerator{response: `[{"type": "short_answer", "question": "Q?"}]`}
	doc, chapter := testChapter()

	long := make([]byte, MaxChapterContent*2)
	for i := range long {
		long[i] = 'x'
	}
	NewExtractor(gen, logger.NewNop()).ExtractChapter(context.Background(), doc, chapter, string(long))

	require.Len(t, gen.prompts, 1)
	assert.Less(t, len(gen.prompts[0]), MaxChapterContent+len(extractPromptFormat)+100)
}

func TestExtractChapter_PlaceholdersOnFailure(t *testing.T) {
	doc, chapter := testChapter()
	cases := []struct {
		name string
		gen  llm.Generator
	}{
		{"nil generator", nil},
		{"generation error", &fakeGenerator{err: errors.New("rate limited")}},
		{"no json", &fakeGenerator{response: "I cannot help with that."}},
		{"empty list", &fakeGenerator{response: "[]"}},
		{"all invalid", &fakeGenerator{response: `[{"type": "essay", "question": "Q?"}]`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewExtractor(tc.gen, logger.NewNop()).ExtractChapter(context.Background(), doc, chapter, chapterText)
			require.Len(t, got, 2)
			assert.Equal(t, store.ExerciseShortAnswer, got[0].Type)
			assert.Equal(t, store.ExerciseMultipleChoice, got[1].Type)
			assert.Contains(t, got[0].Question, "Forces")

			opts, err := got[1].DecodeOptions()
			require.NoError(t, err)
			require.NotEmpty(t, opts)
			assert.True(t, opts[0].Correct)
		})
	}
}

func TestExtractChapter_DropsInvalidKeepsValid(t *testing.T) {
	gen := &fakeGenerator{response: `[
		{"type": "essay", "question": "bad type"},
		{"type": "multiple_choice", "question": "no options"},
		{"type": "short_answer", "question": ""},
		{"type": "coding", "question": "Write a sort function."}
	]`}
	doc, chapter := testChapter()

	got := NewExtractor(gen, logger.NewNop()).ExtractChapter(context.Background(), doc, chapter, chapterText)
	require.Len(t, got, 1)
	assert.Equal(t, store.ExerciseCoding, got[0].Type)
}

func TestExtractChapter_ThinContentSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{response: `[{"type": "short_answer", "question": "Q?"}]`}
	doc, chapter := testChapter()

	got := NewExtractor(gen, logger.NewNop()).ExtractChapter(context.Background(), doc, chapter, "F=ma")
	require.Len(t, got, 2)
	assert.Equal(t, store.ExerciseShortAnswer, got[0].Type)
	assert.Equal(t, store.ExerciseMultipleChoice, got[1].Type)
	assert.Contains(t, got[0].Question, "Forces")

	// The generator never saw the near-empty chapter.
	assert.Empty(t, gen.prompts)
}

func TestSolveAll(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"approach": "Apply Newton's second law directly.",
		"explanation": "Force equals mass times acceleration.",
		"steps": [
			{"number": 1, "description": "State the law", "content": "F = ma"},
			{"number": 2, "description": "Substitute", "content": "F = 2 * 3 = 6 N"}
		]
	}`}
	solver := NewSolver(gen, &fakeContexts{passages: "[Source 1]\nNewton's second law."}, logger.NewNop())

	exercises := []*store.Exercise{
		{ID: uuid.New(), DocumentID: uuid.New(), ChapterID: uuid.New(), Type: store.ExerciseMathematical, Question: "Compute F for m=2, a=3."},
	}
	solutions, err := solver.SolveAll(context.Background(), exercises)
	require.NoError(t, err)
	require.Len(t, solutions, 1)
	assert.Equal(t, exercises[0].ID, solutions[0].ExerciseID)
	assert.True(t, solutions[0].Generated)
	assert.Equal(t, "Apply Newton's second law directly.", solutions[0].Approach)
	assert.Equal(t, llm.ModelSmart.Resolved(), solutions[0].AIModel)

	steps, err := solutions[0].DecodeSteps()
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "F = ma", steps[0].Content)

	// The grounding passages made it into the prompt, and the prompt asks
	// for the solution approach.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Newton's second law.")
	assert.Contains(t, gen.prompts[0], `"approach"`)
}

func TestSolveAll_BatchesAndOrder(t *testing.T) {
	gen := &fakeGenerator{response: `{"explanation": "done"}`}
	solver := NewSolver(gen, nil, logger.NewNop())

	var exs []*store.Exercise
	for i := 0; i < 12; i++ {
		exs = append(exs, &store.Exercise{
			ID:       uuid.New(),
			Type:     store.ExerciseShortAnswer,
			Question: fmt.Sprintf("question %d", i),
		})
	}
	solutions, err := solver.SolveAll(context.Background(), exs)
	require.NoError(t, err)
	require.Len(t, solutions, 12)
	for i, sol := range solutions {
		assert.Equal(t, exs[i].ID, sol.ExerciseID, "solution %d out of order", i)
	}
}

func TestSolveAll_FallbackPaths(t *testing.T) {
	ex := &store.Exercise{
		ID:       uuid.New(),
		Type:     store.ExerciseShortAnswer,
		Question: "Define velocity.",
		Answer:   "Rate of change of position.",
	}
	cases := []struct {
		name string
		gen  llm.Generator
	}{
		{"nil generator", nil},
		{"generation error", &fakeGenerator{err: errors.New("boom")}},
		{"no explanation", &fakeGenerator{response: `{"steps": []}`}},
		{"bad steps", &fakeGenerator{response: `{"explanation": "x", "steps": [{"number": 5}]}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			solutions, err := NewSolver(tc.gen, nil, logger.NewNop()).SolveAll(context.Background(), []*store.Exercise{ex})
			require.NoError(t, err)
			require.Len(t, solutions, 1)
			assert.False(t, solutions[0].Generated)
			assert.Empty(t, solutions[0].AIModel)
			assert.Contains(t, solutions[0].Explanation, "Define velocity.")
			assert.Contains(t, solutions[0].Explanation, "Rate of change of position.")
		})
	}
}

func TestSolve_ContextFailureIsSwallowed(t *testing.T) {
	gen := &fakeGenerator{response: `{"explanation": "answer without grounding"}`}
	solver := NewSolver(gen, &fakeContexts{err: errors.New("index down")}, logger.NewNop())

	solutions, err := solver.SolveAll(context.Background(), []*store.Exercise{
		{ID: uuid.New(), Type: store.ExerciseShortAnswer, Question: "Q?"},
	})
	require.NoError(t, err)
	require.Len(t, solutions, 1)
	assert.True(t, solutions[0].Generated)
}
