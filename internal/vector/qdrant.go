// Package vector is the Qdrant-backed similarity index over content chunks.
package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	// CollectionName holds every embedded content chunk.
	CollectionName = "content_chunks"

	// VectorDimension matches text-embedding-3-small.
	VectorDimension = 1536

	upsertBatchSize = 100
)

// Point is one chunk to index, with its embedding and filterable payload.
type Point struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	ChapterID    uuid.UUID
	ChunkIndex   int
	PageNumber   int
	SectionTitle string
	Content      string
	Embedding    []float32
}

// Hit is one search result. Score is cosine similarity in [0, 1]; higher is
// closer.
type Hit struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	ChapterID    uuid.UUID
	ChunkIndex   int
	PageNumber   int
	SectionTitle string
	Content      string
	Score        float64
}

// Query scopes and bounds one similarity search.
type Query struct {
	Embedding  []float32
	DocumentID uuid.UUID // required scope
	ChapterID  uuid.UUID // optional; uuid.Nil searches the whole document
	Limit      int
	// Threshold drops hits with Score <= Threshold. Zero keeps everything.
	Threshold float64
}

// Index wraps the Qdrant client with connection management and health checks.
type Index struct {
	client *qdrant.Client
}

// NewIndex creates a Qdrant client and verifies connectivity with retry,
// failing fast if the server stays unreachable.
func NewIndex(host string, port int) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	idx := &Index{client: client}
	if err := idx.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return idx, nil
}

// healthCheckWithRetry probes Qdrant with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (x *Index) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return x.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (x *Index) Health(ctx context.Context) error {
	result, err := x.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the chunk collection (1536-dim cosine vectors)
// and its payload indexes if missing. Idempotent.
func (x *Index) EnsureCollection(ctx context.Context) error {
	collections, err := x.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	// Searches always filter by document_id, often by chapter_id. Without
	// these indexes filtered queries degrade badly.
	for _, field := range []string{"document_id", "chapter_id"} {
		_, err := x.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create index for field %s: %w", field, err)
		}
	}
	return nil
}

// UpsertChunks indexes the given points, batched in groups of 100.
func (x *Index) UpsertChunks(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	for i, p := range points {
		if len(p.Embedding) != VectorDimension {
			return fmt.Errorf("%w: point %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(p.Embedding), VectorDimension)
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}

		batch := points[start:end]
		qpoints := make([]*qdrant.PointStruct, len(batch))
		for i, p := range batch {
			qpoints[i] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(p.ID.String()),
				Vectors: qdrant.NewVectors(p.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"document_id":   p.DocumentID.String(),
					"chapter_id":    p.ChapterID.String(),
					"chunk_index":   p.ChunkIndex,
					"page_number":   p.PageNumber,
					"section_title": p.SectionTitle,
					"content":       p.Content,
				}),
			}
		}

		if err := x.upsertWithRetry(ctx, qpoints); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// upsertWithRetry performs the upsert with exponential backoff.
func (x *Index) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Search runs a scoped similarity query and returns hits ordered by score
// descending. Hits at or below q.Threshold are dropped.
func (x *Index) Search(ctx context.Context, q Query) ([]Hit, error) {
	if len(q.Embedding) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(q.Embedding), VectorDimension)
	}
	if q.DocumentID == uuid.Nil {
		return nil, fmt.Errorf("search requires a document scope")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	must := []*qdrant.Condition{
		qdrant.NewMatch("document_id", q.DocumentID.String()),
	}
	if q.ChapterID != uuid.Nil {
		must = append(must, qdrant.NewMatch("chapter_id", q.ChapterID.String()))
	}

	query := &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(q.Embedding...),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if q.Threshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(float32(q.Threshold))
	}

	results, err := x.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, result := range results {
		// ScoreThreshold is inclusive; the contract here is strict.
		score := float64(result.Score)
		if q.Threshold > 0 && score <= q.Threshold {
			continue
		}

		payload := result.Payload
		hit := Hit{
			ChunkIndex:   int(payload["chunk_index"].GetIntegerValue()),
			PageNumber:   int(payload["page_number"].GetIntegerValue()),
			SectionTitle: payload["section_title"].GetStringValue(),
			Content:      payload["content"].GetStringValue(),
			Score:        score,
		}
		if id, err := uuid.Parse(result.Id.GetUuid()); err == nil {
			hit.ID = id
		}
		if id, err := uuid.Parse(payload["document_id"].GetStringValue()); err == nil {
			hit.DocumentID = id
		}
		if id, err := uuid.Parse(payload["chapter_id"].GetStringValue()); err == nil {
			hit.ChapterID = id
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteDocument removes every indexed chunk of the document.
func (x *Index) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID.String()),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("delete document %s from index: %w", documentID, err)
	}
	return nil
}

// Close closes the underlying client connection.
func (x *Index) Close() error {
	if x.client != nil {
		return x.client.Close()
	}
	return nil
}
