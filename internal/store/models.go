package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExerciseType classifies an exercise. The set is closed; Valid rejects
// anything else at the model boundary.
type ExerciseType string

const (
	ExerciseMultipleChoice ExerciseType = "multiple_choice"
	ExerciseSingleSelect   ExerciseType = "single_select"
	ExerciseShortAnswer    ExerciseType = "short_answer"
	ExerciseLongAnswer     ExerciseType = "long_answer"
	ExerciseMathematical   ExerciseType = "mathematical"
	ExerciseCoding         ExerciseType = "coding"
)

// Valid reports whether t is a known exercise type.
func (t ExerciseType) Valid() bool {
	switch t {
	case ExerciseMultipleChoice, ExerciseSingleSelect, ExerciseShortAnswer,
		ExerciseLongAnswer, ExerciseMathematical, ExerciseCoding:
		return true
	}
	return false
}

// HasOptions reports whether exercises of this type carry answer options.
func (t ExerciseType) HasOptions() bool {
	return t == ExerciseMultipleChoice || t == ExerciseSingleSelect
}

// Document is an uploaded source file and the root of the processing state
// machine. ExtractedMarkdown is populated by the extraction stage and reused
// on replays instead of re-calling the conversion service.
type Document struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID           uuid.UUID        `gorm:"type:uuid;index" json:"owner_id"`
	Title             string           `gorm:"not null" json:"title"`
	Author            string           `json:"author,omitempty"`
	StorageURL        string           `gorm:"not null" json:"storage_url"`
	FileKind          string           `gorm:"not null;default:pdf" json:"file_kind"`
	ProcessingStatus  ProcessingStatus `gorm:"not null;default:pending;index" json:"processing_status"`
	ProcessingError   string           `json:"processing_error,omitempty"`
	PageCount         int              `json:"page_count"`
	ExtractedMarkdown string           `gorm:"type:text" json:"-"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Chapter is one detected chapter of a document, ordered by Number.
type Chapter struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	Number     int       `gorm:"not null" json:"number"`
	Title      string    `gorm:"not null" json:"title"`
	StartPage  int       `json:"start_page,omitempty"`
	EndPage    int       `json:"end_page,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	Document *Document `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Chapter) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ContentChunk is one retrieval unit of a chapter. Embedding is null until
// the embedding stage runs; documents processed without an embedding
// provider keep their chunks unembedded.
type ContentChunk struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"document_id"`
	ChapterID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"chapter_id"`
	ChunkIndex   int            `gorm:"not null" json:"chunk_index"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	StartOffset  int            `json:"start_offset"`
	EndOffset    int            `json:"end_offset"`
	PageNumber   int            `json:"page_number,omitempty"`
	SectionTitle string         `json:"section_title,omitempty"`
	Embedding    datatypes.JSON `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`

	Document *Document `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Chapter  *Chapter  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (c *ContentChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// SetEmbedding stores the vector as a JSON array. A nil vector clears it.
func (c *ContentChunk) SetEmbedding(vec []float32) error {
	if vec == nil {
		c.Embedding = nil
		return nil
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	c.Embedding = raw
	return nil
}

// DecodeEmbedding returns the stored vector, or nil when none is set.
func (c *ContentChunk) DecodeEmbedding() ([]float32, error) {
	if len(c.Embedding) == 0 {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal(c.Embedding, &vec); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return vec, nil
}

// ExerciseOption is one answer option of a choice-type exercise.
type ExerciseOption struct {
	Label   string `json:"label"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Exercise is a practice question tied to a chapter. Options and Topics are
// stored as JSON columns; use the typed accessors instead of touching the
// raw bytes.
type Exercise struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"document_id"`
	ChapterID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"chapter_id"`
	Type       ExerciseType   `gorm:"not null" json:"type"`
	Question   string         `gorm:"type:text;not null" json:"question"`
	Answer     string         `gorm:"type:text" json:"answer,omitempty"`
	Difficulty string         `json:"difficulty,omitempty"`
	Options    datatypes.JSON `json:"options,omitempty"`
	Topics     datatypes.JSON `json:"topics,omitempty"`
	Generated  bool           `gorm:"not null;default:false" json:"generated"`
	CreatedAt  time.Time      `json:"created_at"`

	Document *Document `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Chapter  *Chapter  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (e *Exercise) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// SetOptions stores answer options. Only choice types may carry options.
func (e *Exercise) SetOptions(opts []ExerciseOption) error {
	if len(opts) == 0 {
		e.Options = nil
		return nil
	}
	if !e.Type.HasOptions() {
		return fmt.Errorf("exercise type %q does not take options", e.Type)
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	e.Options = raw
	return nil
}

// DecodeOptions returns the stored answer options, or nil when none are set.
func (e *Exercise) DecodeOptions() ([]ExerciseOption, error) {
	if len(e.Options) == 0 {
		return nil, nil
	}
	var opts []ExerciseOption
	if err := json.Unmarshal(e.Options, &opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

// SetTopics stores the topic tags covered by this exercise.
func (e *Exercise) SetTopics(topics []string) error {
	if len(topics) == 0 {
		e.Topics = nil
		return nil
	}
	raw, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	e.Topics = raw
	return nil
}

// DecodeTopics returns the stored topic tags, or nil when none are set.
func (e *Exercise) DecodeTopics() ([]string, error) {
	if len(e.Topics) == 0 {
		return nil, nil
	}
	var topics []string
	if err := json.Unmarshal(e.Topics, &topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	return topics, nil
}

// SolutionStep is one ordered step of a worked solution.
type SolutionStep struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Rationale   string `json:"rationale,omitempty"`
}

// Solution is the worked solution for one exercise. ExerciseID is unique;
// regenerating a solution replaces the previous one. AIModel records which
// provider model produced the solution and stays empty for fallbacks.
type Solution struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ExerciseID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"exercise_id"`
	Approach    string         `gorm:"type:text" json:"approach,omitempty"`
	Explanation string         `gorm:"type:text;not null" json:"explanation"`
	Steps       datatypes.JSON `json:"steps,omitempty"`
	Generated   bool           `gorm:"not null;default:false" json:"generated"`
	AIModel     string         `gorm:"size:100" json:"ai_model,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`

	Exercise *Exercise `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (s *Solution) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SetSteps stores ordered solution steps. Step numbers must start at 1 and
// strictly increase.
func (s *Solution) SetSteps(steps []SolutionStep) error {
	if len(steps) == 0 {
		s.Steps = nil
		return nil
	}
	for i, step := range steps {
		if step.Number != i+1 {
			return fmt.Errorf("step %d has number %d, want %d", i, step.Number, i+1)
		}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	s.Steps = raw
	return nil
}

// DecodeSteps returns the stored solution steps, or nil when none are set.
func (s *Solution) DecodeSteps() ([]SolutionStep, error) {
	if len(s.Steps) == 0 {
		return nil, nil
	}
	var steps []SolutionStep
	if err := json.Unmarshal(s.Steps, &steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	return steps, nil
}
