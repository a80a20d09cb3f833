package handlers

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sachiverma0/policychat/internal/models"
)

// HandleExportConversation renders a persisted conversation as a standalone
// HTML transcript. Assistant replies are treated as markdown; user messages
// are escaped verbatim.
func (m Main) HandleExportConversation(w http.ResponseWriter, r *http.Request) {
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

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Conversation ")
	sb.WriteString(html.EscapeString(chatID))
	sb.WriteString("</title></head>\n<body>\n")

	for _, msg := range messages {
		sb.WriteString(fmt.Sprintf("<h3>%s</h3>\n", html.EscapeString(string(msg.Role))))

		if msg.Role == models.RoleAssistant {
			var body strings.Builder
			if err := m.markdown.Convert([]byte(msg.Content), &body); err != nil {
				m.logger.Error("Failed to render markdown",
					slog.String("messageID", msg.ID),
					slog.String(errLoggerKey, err.Error()))
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			sb.WriteString(body.String())
		} else {
			sb.WriteString("<p>")
			sb.WriteString(html.EscapeString(msg.Content))
			sb.WriteString("</p>\n")
		}
	}

	sb.WriteString("</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}
