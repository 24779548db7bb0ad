package store

// ProcessingStatus is the document state machine's state, persisted on the
// Document row and exposed verbatim to polling clients.
type ProcessingStatus string

const (
	StatusPending             ProcessingStatus = "pending"
	StatusExtracting          ProcessingStatus = "extracting"
	StatusStructuring         ProcessingStatus = "structuring"
	StatusEmbedding           ProcessingStatus = "embedding"
	StatusExtractingExercises ProcessingStatus = "extracting_exercises"
	StatusGeneratingSolutions ProcessingStatus = "generating_solutions"
	StatusCompleted           ProcessingStatus = "completed"
	StatusFailed              ProcessingStatus = "failed"
)

// Terminal reports whether no further automatic transitions happen from s.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known state.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusExtracting, StatusStructuring, StatusEmbedding,
		StatusExtractingExercises, StatusGeneratingSolutions, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
