// Package ingest implements the document ingestion pipeline: normalizing
// incoming upsert/delete messages, converting spreadsheet rows into
// documents, and running the queue worker that persists documents, computes
// their embeddings, and keeps the full-text index current.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sachiverma0/policychat/internal/models"
)

// Store persists documents on behalf of the queue worker.
type Store interface {
	PutDocument(ctx context.Context, doc models.Document) error
	DeleteDocument(ctx context.Context, id string) error
}

// Embedder computes embedding vectors for document contents.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index keeps the full-text index in sync with the document store.
type Index interface {
	Add(doc models.Document) error
	Remove(id string) error
}

// Content longer than this is truncated before embedding to stay inside the
// embedding API input limits. The stored document keeps the full content.
const maxEmbeddingChars = 8000

const defaultQueueSize = 256

// ErrQueueFull is returned by Enqueue when the worker cannot keep up.
var ErrQueueFull = errors.New("ingest queue is full")

// Queue accepts ingest messages and processes them on a background worker.
// Documents are stored immediately; the embedding is computed afterwards and
// the document is kept even when embedding fails.
type Queue struct {
	store    Store
	embedder Embedder
	index    Index

	notify func(models.Document)

	ch chan models.IngestMessage
	wg sync.WaitGroup

	logger *slog.Logger
}

// NewQueue creates an ingest queue. The embedder may be nil, in which case
// documents are stored without vectors and retrieval falls back to full-text
// search.
func NewQueue(store Store, embedder Embedder, index Index, logger *slog.Logger) *Queue {
	return &Queue{
		store:    store,
		embedder: embedder,
		index:    index,
		ch:       make(chan models.IngestMessage, defaultQueueSize),
		logger:   logger.With(slog.String("module", "ingest")),
	}
}

// OnIndexed registers a callback invoked after a document has been upserted
// and indexed. Must be called before Start.
func (q *Queue) OnIndexed(fn func(models.Document)) {
	q.notify = fn
}

// Start launches the background worker. The worker drains until the context
// is canceled; Wait blocks until it has exited.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-q.ch:
				if err := q.Process(ctx, msg); err != nil {
					q.logger.Error("Failed to process ingest message",
						slog.String("id", msg.ID),
						slog.String("action", string(msg.Action)),
						slog.String("err", err.Error()))
				}
			}
		}
	}()
}

// Wait blocks until the worker goroutine has exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Enqueue submits a message for background processing without blocking.
func (q *Queue) Enqueue(msg models.IngestMessage) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Normalize validates an incoming ingest message and fills in derivable
// fields: the action defaults to upsert, the version to "v1", the id is
// generated when absent, and the userId may be supplied at the top level or
// inside the data. Deletes must name an explicit id.
func Normalize(msg models.IngestMessage) (models.IngestMessage, error) {
	if msg.Action == "" {
		msg.Action = models.ActionUpsert
	}
	if msg.Action != models.ActionUpsert && msg.Action != models.ActionDelete {
		return models.IngestMessage{}, fmt.Errorf("invalid action %q; use 'upsert' or 'delete'", msg.Action)
	}

	if msg.Action == models.ActionDelete && msg.ID == "" && msg.Data.ID == "" {
		return models.IngestMessage{}, errors.New("delete requires 'id' or data.id")
	}

	if msg.ID == "" {
		msg.ID = msg.Data.ID
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.Data.ID = msg.ID

	if msg.UserID == "" {
		msg.UserID = msg.Data.UserID
	}
	if msg.UserID == "" {
		return models.IngestMessage{}, errors.New(
			"missing required partition field 'userId'; include it at top-level or inside 'data'")
	}
	msg.Data.UserID = msg.UserID

	if msg.Version == "" {
		msg.Version = "v1"
	}

	return msg, nil
}

// Process applies a single ingest message synchronously. It is used by the
// background worker and by the direct upload path.
func (q *Queue) Process(ctx context.Context, msg models.IngestMessage) error {
	if msg.Action == models.ActionDelete {
		if err := q.store.DeleteDocument(ctx, msg.ID); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		if err := q.index.Remove(msg.ID); err != nil {
			return fmt.Errorf("failed to remove index entry: %w", err)
		}
		q.logger.Info("Deleted document", slog.String("id", msg.ID))
		return nil
	}

	doc := msg.Data
	doc.Version = msg.Version
	doc.UpdatedAt = time.Now()

	if err := q.store.PutDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	if q.embedder != nil && doc.Content != "" {
		content := truncateForEmbedding(doc.Content)

		embedding, err := q.embedder.Embed(ctx, content)
		if err != nil {
			// The document stays retrievable through full-text search.
			q.logger.Error("Failed to create embedding",
				slog.String("id", doc.ID),
				slog.String("err", err.Error()))
		} else {
			doc.Embedding = embedding
			if err := q.store.PutDocument(ctx, doc); err != nil {
				return fmt.Errorf("failed to store embedding: %w", err)
			}
		}
	}

	if err := q.index.Add(doc); err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}

	q.logger.Info("Upserted document",
		slog.String("id", doc.ID),
		slog.String("userId", doc.UserID),
		slog.Bool("embedded", len(doc.Embedding) > 0))

	if q.notify != nil {
		q.notify(doc)
	}
	return nil
}

// truncateForEmbedding caps content at maxEmbeddingChars bytes, backing off
// to a rune boundary so the embedding API never receives invalid UTF-8.
func truncateForEmbedding(content string) string {
	if len(content) <= maxEmbeddingChars {
		return content
	}

	cut := maxEmbeddingChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
