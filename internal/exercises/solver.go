package exercises

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/studypdf/docpipe/internal/llm"
	"github.com/studypdf/docpipe/internal/logger"
	"github.com/studypdf/docpipe/internal/store"
)

// solveBatchSize bounds how many solutions generate concurrently.
const solveBatchSize = 5

const solveSystem = `You write worked solutions for textbook exercises. Ground every claim in the provided source passages when they are given. Respond with a JSON object only.`

const solvePromptFormat = `Exercise (%s): %s
%s
Write a worked solution. Respond with a JSON object:
- "approach": one or two sentences naming the method used to solve the exercise
- "explanation": a complete prose explanation of the answer
- "steps": an array of {"number", "description", "content", "rationale"} walking through the solution in order, numbers starting at 1
%s`

// ContextProvider supplies grounding passages for an exercise's topic.
// Optional; a nil provider means solutions are generated without retrieval.
type ContextProvider interface {
	ExerciseContext(ctx context.Context, documentID, chapterID uuid.UUID, topic string) (string, error)
}

// Solver generates worked solutions for extracted exercises.
type Solver struct {
	gen      llm.Generator
	contexts ContextProvider
	log      *logger.Logger
}

// NewSolver wires a solver. Both gen and contexts may be nil; generation
// then degrades to templated fallback solutions.
func NewSolver(gen llm.Generator, contexts ContextProvider, log *logger.Logger) *Solver {
	return &Solver{gen: gen, contexts: contexts, log: log}
}

// SolveAll produces one solution per exercise, batched five at a time.
// Individual failures yield fallback solutions rather than errors; the only
// way SolveAll returns early is context cancellation.
func (s *Solver) SolveAll(ctx context.Context, exercises []*store.Exercise) ([]*store.Solution, error) {
	solutions := make([]*store.Solution, len(exercises))

	for start := 0; start < len(exercises); start += solveBatchSize {
		end := start + solveBatchSize
		if end > len(exercises) {
			end = len(exercises)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				solutions[i] = s.solve(gctx, exercises[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return solutions, nil
}

// solve generates one solution, falling back to a template on any failure.
func (s *Solver) solve(ctx context.Context, ex *store.Exercise) *store.Solution {
	if s.gen == nil {
		return Fallback(ex)
	}

	prompt := s.buildPrompt(ctx, ex)
	opts := llm.Options{
		System: solveSystem,
		Model:  llm.ModelSmart,
	}
	response, err := s.gen.Generate(ctx, prompt, opts)
	if err != nil {
		s.log.Warn("solution generation failed, using fallback",
			"exercise", ex.ID, "error", err)
		return Fallback(ex)
	}

	sol, err := parseSolution(ex, response, opts.Model)
	if err != nil {
		s.log.Warn("solution response unusable, using fallback",
			"exercise", ex.ID, "error", err)
		return Fallback(ex)
	}
	return sol
}

func (s *Solver) buildPrompt(ctx context.Context, ex *store.Exercise) string {
	var optionsBlock string
	if opts, err := ex.DecodeOptions(); err == nil && len(opts) > 0 {
		var b strings.Builder
		b.WriteString("Options:\n")
		for _, o := range opts {
			fmt.Fprintf(&b, "%s. %s\n", o.Label, o.Text)
		}
		optionsBlock = b.String()
	}

	// Retrieval failures only lose grounding context, never the solution.
	var contextBlock string
	if s.contexts != nil {
		passages, err := s.contexts.ExerciseContext(ctx, ex.DocumentID, ex.ChapterID, s.topic(ex))
		if err != nil {
			s.log.Debug("context retrieval failed, solving without grounding",
				"exercise", ex.ID, "error", err)
		} else if passages != "" {
			contextBlock = "Source passages:\n" + passages
		}
	}

	return fmt.Sprintf(solvePromptFormat, ex.Type, ex.Question, optionsBlock, contextBlock)
}

// topic picks the retrieval query for an exercise: its first topic tag when
// present, otherwise the question itself.
func (s *Solver) topic(ex *store.Exercise) string {
	if topics, err := ex.DecodeTopics(); err == nil && len(topics) > 0 {
		return topics[0]
	}
	return ex.Question
}

// solved is the JSON object shape the model returns.
type solved struct {
	Approach    string               `json:"approach"`
	Explanation string               `json:"explanation"`
	Steps       []store.SolutionStep `json:"steps"`
}

func parseSolution(ex *store.Exercise, response string, model llm.Model) (*store.Solution, error) {
	raw, err := llm.ExtractJSON(response)
	if err != nil {
		return nil, err
	}
	var out solved
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode solution: %w", err)
	}
	if strings.TrimSpace(out.Explanation) == "" {
		return nil, fmt.Errorf("solution has no explanation")
	}

	sol := &store.Solution{
		ExerciseID:  ex.ID,
		Approach:    out.Approach,
		Explanation: out.Explanation,
		Generated:   true,
		AIModel:     model.Resolved(),
	}
	if err := sol.SetSteps(out.Steps); err != nil {
		return nil, err
	}
	return sol, nil
}

// Fallback builds the templated solution used when generation is
// unavailable or fails for an exercise.
func Fallback(ex *store.Exercise) *store.Solution {
	explanation := fmt.Sprintf(
		"A worked solution could not be generated for this exercise. Review the relevant chapter material and answer: %s",
		ex.Question)
	if ex.Answer != "" {
		explanation += fmt.Sprintf(" The expected answer is: %s", ex.Answer)
	}
	return &store.Solution{
		ExerciseID:  ex.ID,
		Explanation: explanation,
	}
}
