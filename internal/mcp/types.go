// Package mcp exposes the study-content pipeline to MCP clients.
package mcp

// SearchContentInput defines the input parameters for the search_content tool.
type SearchContentInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query for finding relevant study content"`
	// DocumentID scopes the search to one document.
	DocumentID string `json:"document_id" jsonschema:"required,description=UUID of the document to search within"`
	// ChapterID optionally narrows the search to one chapter.
	ChapterID string `json:"chapter_id,omitempty" jsonschema:"description=Optional UUID of a chapter to narrow the search to"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of chunks to return"`
	// MinScore is the minimum similarity threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,default=0.5,description=Minimum similarity score threshold (0-1)"`
}

// SearchContentOutput contains the search results.
type SearchContentOutput struct {
	Results []ContentResult `json:"results"`
	// Message provides informational context when there are no results.
	Message string `json:"message,omitempty"`
}

// ContentResult is one matching chunk.
type ContentResult struct {
	ChunkID      string  `json:"chunk_id"`
	ChapterID    string  `json:"chapter_id"`
	PageNumber   int     `json:"page_number,omitempty"`
	SectionTitle string  `json:"section_title,omitempty"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// DocumentStatusInput defines the input parameters for the document_status tool.
type DocumentStatusInput struct {
	// DocumentID is the document to inspect.
	DocumentID string `json:"document_id" jsonschema:"required,description=UUID of the document to inspect"`
}

// DocumentStatusOutput reports a document's processing state and outline.
type DocumentStatusOutput struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title,omitempty"`
	Status     string `json:"status,omitempty"`
	// Error carries the failure reason when Status is "failed".
	Error     string           `json:"error,omitempty"`
	PageCount int              `json:"page_count,omitempty"`
	Chapters  []ChapterSummary `json:"chapters,omitempty"`
	Found     bool             `json:"found"`
}

// ChapterSummary is one chapter in a status response.
type ChapterSummary struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}
