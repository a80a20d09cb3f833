package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"

	"github.com/sachiverma0/policychat/internal/models"
)

// LLM represents a large language model provider. It accepts the full message
// sequence, including an optional leading system message, and returns the
// complete reply with its token usage.
type LLM interface {
	Chat(ctx context.Context, messages []models.Message) (models.Completion, error)
}

// Embedder computes embedding vectors for retrieval queries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store defines the persistence interface for conversations, messages,
// document ranking, and uploaded-file records.
type Store interface {
	Chats(ctx context.Context) ([]models.Chat, error)
	AddChat(ctx context.Context, chat models.Chat) (string, error)
	UpdateChat(ctx context.Context, chat models.Chat) error

	Messages(ctx context.Context, chatID string) ([]models.Message, error)
	AddMessage(ctx context.Context, chatID string, message models.Message) (string, error)

	TopDocuments(ctx context.Context, embedding []float32, limit int) ([]models.ScoredDocument, error)

	AddFile(ctx context.Context, rec models.FileRecord) error
	Files(ctx context.Context) ([]models.FileRecord, error)
}

// Index provides keyword retrieval over ingested documents.
type Index interface {
	Search(query string, limit int) ([]models.Document, error)
}

// Ingestor accepts document messages either for background processing or for
// synchronous handling on the direct upload path.
type Ingestor interface {
	Enqueue(msg models.IngestMessage) error
	Process(ctx context.Context, msg models.IngestMessage) error
}

// Config carries the prompt and auth settings the handlers need.
type Config struct {
	SystemPrompt string
	RAGPrompt    string
	TitlePrompt  string

	// AuthToken, when non-empty, must be presented as a bearer token on every
	// API request.
	AuthToken string
}

// Main handles the core functionality of the relay, tying the LLM provider,
// the stores, and the ingest pipeline to the HTTP surface. It also owns the
// SSE server used to push ingest progress to connected clients.
type Main struct {
	sseSrv *sse.Server

	llm      LLM
	embedder Embedder
	store    Store
	index    Index
	ingestor Ingestor

	cfg Config

	markdown goldmark.Markdown

	logger *slog.Logger
}

const errLoggerKey = "err"

const ingestSSETopic = "ingest"

var indexedSSEType = sse.Type("document-indexed")

// NewMain creates a new Main instance wiring the given collaborators. The
// embedder may be nil; retrieval then falls back to the full-text index.
func NewMain(llm LLM, embedder Embedder, store Store, index Index, ingestor Ingestor,
	cfg Config, logger *slog.Logger,
) Main {
	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, ingestSSETopic},
				}, true
			},
		},
		llm:      llm,
		embedder: embedder,
		store:    store,
		index:    index,
		ingestor: ingestor,
		cfg:      cfg,
		markdown: goldmark.New(
			goldmark.WithExtensions(highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
			)),
		),
		logger: logger.With(slog.String("module", "handlers")),
	}
}

// HandleSSE serves the event stream carrying ingest progress.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// PublishIndexed pushes a document-indexed event to subscribed clients. It is
// wired as the ingest queue's completion callback.
func (m Main) PublishIndexed(doc models.Document) {
	payload, err := json.Marshal(map[string]string{
		"id":     doc.ID,
		"title":  doc.Title,
		"source": doc.Source,
	})
	if err != nil {
		return
	}

	msg := sse.Message{Type: indexedSSEType}
	msg.AppendData(string(payload))

	if err := m.sseSrv.Publish(&msg, ingestSSETopic); err != nil {
		m.logger.Error("Failed to publish ingest event",
			slog.String("id", doc.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// HandleHealth reports liveness.
func (m Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close
// message to all connected clients and waits up to 5 seconds for connections
// to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("close")}
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
