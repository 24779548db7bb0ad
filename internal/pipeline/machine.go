package pipeline

import "github.com/studypdf/docpipe/internal/store"

// stageOrder is the happy path through document processing.
var stageOrder = []store.ProcessingStatus{
	store.StatusPending,
	store.StatusExtracting,
	store.StatusStructuring,
	store.StatusEmbedding,
	store.StatusExtractingExercises,
	store.StatusGeneratingSolutions,
	store.StatusCompleted,
}

// Next returns the status following s on the happy path. Terminal and
// unknown statuses have no successor.
func Next(s store.ProcessingStatus) (store.ProcessingStatus, bool) {
	for i, status := range stageOrder {
		if status == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}
