package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sachiverma0/policychat/internal/models"
)

type chatRequest struct {
	Message             string           `json:"message"`
	ConversationHistory []historyMessage `json:"conversationHistory"`
	ConversationID      string           `json:"conversationId"`
}

type historyMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

type chatResponse struct {
	Message        string       `json:"message"`
	Usage          models.Usage `json:"usage"`
	Model          string       `json:"model"`
	ConversationID string       `json:"conversationId"`
}

// HandleChat relays a user message, together with the client-supplied
// conversation history, to the configured LLM provider and returns the reply
// with its token usage.
//
// The exchange is additionally persisted server-side: when the request names
// no conversation, a new one is created and its title generated
// asynchronously from the first message. Persistence failures are logged but
// never fail the request; the relay's contract is the reply itself.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing 'message'")
		return
	}

	messages := make([]models.Message, 0, len(req.ConversationHistory)+2)
	messages = append(messages, models.Message{
		Role:    models.RoleSystem,
		Content: m.cfg.SystemPrompt,
	})
	for _, h := range req.ConversationHistory {
		messages = append(messages, models.Message{
			Role:    h.Role,
			Content: h.Content,
		})
	}
	messages = append(messages, models.Message{
		Role:    models.RoleUser,
		Content: req.Message,
	})

	completion, err := m.llm.Chat(r.Context(), messages)
	if err != nil {
		m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	chatID := m.persistExchange(r.Context(), req.ConversationID, req.Message, completion)

	writeJSON(w, http.StatusOK, chatResponse{
		Message:        completion.Content,
		Usage:          completion.Usage,
		Model:          completion.Model,
		ConversationID: chatID,
	})
}

func (m Main) persistExchange(ctx context.Context, chatID, userMessage string, completion models.Completion) string {
	if chatID == "" {
		newID, err := m.store.AddChat(ctx, models.Chat{
			ID:        uuid.New().String(),
			CreatedAt: time.Now(),
		})
		if err != nil {
			m.logger.Error("Failed to create chat", slog.String(errLoggerKey, err.Error()))
			return ""
		}
		chatID = newID

		go m.generateChatTitle(chatID, userMessage)
	}

	um := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   userMessage,
		Timestamp: time.Now(),
	}
	if _, err := m.store.AddMessage(ctx, chatID, um); err != nil {
		m.logger.Error("Failed to add user message",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		return chatID
	}

	am := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleAssistant,
		Content:   completion.Content,
		Timestamp: time.Now(),
	}
	if _, err := m.store.AddMessage(ctx, chatID, am); err != nil {
		m.logger.Error("Failed to add assistant message",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
	}

	return chatID
}

func (m Main) generateChatTitle(chatID, message string) {
	completion, err := m.llm.Chat(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: m.cfg.TitlePrompt},
		{Role: models.RoleUser, Content: message},
	})
	if err != nil {
		m.logger.Error("Error generating chat title",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	if err := m.store.UpdateChat(context.Background(), models.Chat{
		ID:    chatID,
		Title: completion.Content,
	}); err != nil {
		m.logger.Error("Failed to update chat title",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// HandleConversations lists the persisted conversations, newest first.
func (m Main) HandleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	chats, err := m.store.Chats(r.Context())
	if err != nil {
		m.logger.Error("Failed to get chats", slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}

	writeJSON(w, http.StatusOK, chats)
}

// HandleMessages lists the persisted messages of one conversation in
// insertion order.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	chatID := r.URL.Query().Get("conversation_id")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "Missing 'conversation_id'")
		return
	}

	messages, err := m.store.Messages(r.Context(), chatID)
	if err != nil {
		m.logger.Error("Failed to get messages",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, messages)
}
