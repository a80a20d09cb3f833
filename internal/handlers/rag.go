package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sachiverma0/policychat/internal/models"
)

const ragTopK = 5

type ragRequest struct {
	Question string `json:"question"`
}

type ragSource struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ragResponse struct {
	Answer  string      `json:"answer"`
	Sources []ragSource `json:"sources"`
}

// HandleRAGQuery answers a question using context retrieved from ingested
// documents. Retrieval ranks by cosine similarity between the question
// embedding and stored document embeddings; when no embedder is configured,
// or no document carries an embedding yet, it falls back to full-text search.
func (m Main) HandleRAGQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "Missing 'question'")
		return
	}

	docs, err := m.retrieve(r.Context(), req.Question)
	if err != nil {
		m.logger.Error("Retrieval failed", slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest,
			"No documents found for retrieval. Please ingest documents first.")
		return
	}

	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("%s:\n%s", doc.Title, doc.Content))
	}

	completion, err := m.llm.Chat(r.Context(), []models.Message{
		{Role: models.RoleSystem, Content: m.cfg.RAGPrompt},
		{Role: models.RoleUser, Content: fmt.Sprintf(
			"Question: %s\n\nContext:\n%s\n\nAnswer using ONLY the context.",
			req.Question, sb.String())},
	})
	if err != nil {
		m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sources := make([]ragSource, len(docs))
	for i, doc := range docs {
		sources[i] = ragSource{ID: doc.ID, Title: doc.Title, Content: doc.Content}
	}

	writeJSON(w, http.StatusOK, ragResponse{
		Answer:  completion.Content,
		Sources: sources,
	})
}

func (m Main) retrieve(ctx context.Context, question string) ([]models.Document, error) {
	if m.embedder != nil {
		embedding, err := m.embedder.Embed(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("failed to embed question: %w", err)
		}

		scored, err := m.store.TopDocuments(ctx, embedding, ragTopK)
		if err != nil {
			return nil, fmt.Errorf("failed to rank documents: %w", err)
		}
		if len(scored) > 0 {
			docs := make([]models.Document, len(scored))
			for i, s := range scored {
				docs[i] = s.Document
			}
			return docs, nil
		}
	}

	docs, err := m.index.Search(question, ragTopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	return docs, nil
}

// HandleKnowledgeSearch exposes the full-text index directly for keyword
// lookups without involving the LLM.
func (m Main) HandleKnowledgeSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	docs, err := m.index.Search(query, 20)
	if err != nil {
		m.logger.Error("Failed to search knowledge", slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}

	writeJSON(w, http.StatusOK, docs)
}
