// Package server exposes the pipeline over HTTP: document intake and
// processing triggers, status polling, outlines, search, and health.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studypdf/docpipe/internal/logger"
	"github.com/studypdf/docpipe/internal/markdown"
	"github.com/studypdf/docpipe/internal/pipeline"
	"github.com/studypdf/docpipe/internal/retrieval"
	"github.com/studypdf/docpipe/internal/store"
	"github.com/studypdf/docpipe/internal/vector"
)

// Searcher is the query surface the search endpoint depends on. Nil means
// no embedding provider is configured and search answers 503.
type Searcher interface {
	Search(ctx context.Context, req retrieval.Request) ([]vector.Hit, error)
}

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Deps collects the server's collaborators.
type Deps struct {
	Documents store.DocumentRepo
	Chapters  store.ChapterRepo
	Runner    *pipeline.Runner
	Searcher  Searcher
	Outliner  *markdown.Outliner

	// Checks maps component names to health probes, aggregated by /health.
	Checks map[string]HealthCheck
	Log    *logger.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
	log  *logger.Logger
}

// New creates a server. Mode selects gin's mode ("prod" is release).
func New(deps Deps, mode string) *Server {
	if mode == "prod" || mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Outliner == nil {
		deps.Outliner = markdown.NewOutliner()
	}
	return &Server{deps: deps, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)
	r.GET("/documents", s.listDocuments)
	r.POST("/documents", s.createDocument)
	r.POST("/documents/:id/process", s.processDocument)
	r.GET("/documents/:id/status", s.documentStatus)
	r.GET("/documents/:id/outline", s.documentOutline)
	r.POST("/search", s.search)
	return r
}

type createDocumentRequest struct {
	OwnerID    uuid.UUID `json:"owner_id"`
	Title      string    `json:"title" binding:"required"`
	Author     string    `json:"author"`
	StorageURL string    `json:"storage_url" binding:"required"`
	FileKind   string    `json:"file_kind"`
}

func (s *Server) createDocument(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FileKind == "" {
		req.FileKind = "pdf"
	}

	doc := &store.Document{
		OwnerID:    req.OwnerID,
		Title:      req.Title,
		Author:     req.Author,
		StorageURL: req.StorageURL,
		FileKind:   req.FileKind,
	}
	if err := s.deps.Documents.Create(c.Request.Context(), doc); err != nil {
		s.log.Error("create document failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create document"})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) listDocuments(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Query("owner_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing owner_id"})
		return
	}
	docs, err := s.deps.Documents.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		s.log.Error("list documents failed", "owner", ownerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list documents"})
		return
	}
	if docs == nil {
		docs = []*store.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) processDocument(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}
	doc, err := s.deps.Documents.GetByID(c.Request.Context(), id)
	if err != nil {
		s.notFoundOrError(c, err)
		return
	}
	if doc.ProcessingStatus == store.StatusCompleted {
		c.JSON(http.StatusOK, gin.H{"id": id, "processing_status": doc.ProcessingStatus})
		return
	}
	// A document already moving through the stages must not get a second
	// concurrent run; only pending and failed documents can be (re)triggered.
	if doc.ProcessingStatus != store.StatusPending && !doc.ProcessingStatus.Terminal() {
		c.JSON(http.StatusConflict, gin.H{
			"error":             "document is already being processed",
			"processing_status": doc.ProcessingStatus,
		})
		return
	}

	if err := s.deps.Runner.Enqueue(c.Request.Context(), pipeline.Event{DocumentID: id}); err != nil {
		s.log.Error("enqueue failed", "document", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "enqueued": true})
}

func (s *Server) documentStatus(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}
	doc, err := s.deps.Documents.GetByID(c.Request.Context(), id)
	if err != nil {
		s.notFoundOrError(c, err)
		return
	}
	chapters, err := s.deps.Chapters.ListByDocument(c.Request.Context(), id)
	if err != nil {
		s.log.Error("list chapters failed", "document", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load chapters"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                doc.ID,
		"title":             doc.Title,
		"processing_status": doc.ProcessingStatus,
		"processing_error":  doc.ProcessingError,
		"page_count":        doc.PageCount,
		"chapters":          chapters,
	})
}

func (s *Server) documentOutline(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}
	doc, err := s.deps.Documents.GetByID(c.Request.Context(), id)
	if err != nil {
		s.notFoundOrError(c, err)
		return
	}
	if doc.ExtractedMarkdown == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "document has not been extracted yet"})
		return
	}

	headings, err := s.deps.Outliner.Outline([]byte(doc.ExtractedMarkdown))
	if err != nil {
		s.log.Error("outline failed", "document", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build outline"})
		return
	}
	if headings == nil {
		headings = []markdown.Heading{}
	}
	c.JSON(http.StatusOK, gin.H{"id": doc.ID, "outline": headings})
}

type searchRequest struct {
	Query      string    `json:"query" binding:"required"`
	DocumentID uuid.UUID `json:"document_id" binding:"required"`
	ChapterID  uuid.UUID `json:"chapter_id"`
	Limit      int       `json:"limit"`
	Threshold  float64   `json:"threshold"`
}

type searchHit struct {
	ChunkID      uuid.UUID `json:"chunk_id"`
	ChapterID    uuid.UUID `json:"chapter_id"`
	PageNumber   int       `json:"page_number,omitempty"`
	SectionTitle string    `json:"section_title,omitempty"`
	Content      string    `json:"content"`
	Score        float64   `json:"score"`
}

func (s *Server) search(c *gin.Context) {
	if s.deps.Searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hits, err := s.deps.Searcher.Search(c.Request.Context(), retrieval.Request{
		Query:      req.Query,
		DocumentID: req.DocumentID,
		ChapterID:  req.ChapterID,
		Limit:      req.Limit,
		Threshold:  req.Threshold,
	})
	if err != nil {
		s.log.Error("search failed", "document", req.DocumentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	results := make([]searchHit, len(hits))
	for i, h := range hits {
		results[i] = searchHit{
			ChunkID:      h.ID,
			ChapterID:    h.ChapterID,
			PageNumber:   h.PageNumber,
			SectionTitle: h.SectionTitle,
			Content:      h.Content,
			Score:        h.Score,
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	components := gin.H{}
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			components[name] = gin.H{"healthy": false, "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			components[name] = gin.H{"healthy": true}
		}
	}
	c.JSON(status, gin.H{"status": httpStatusWord(status), "components": components})
}

func httpStatusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

func (s *Server) documentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) notFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	s.log.Error("document lookup failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
}
