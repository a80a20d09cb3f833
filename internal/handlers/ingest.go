package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sachiverma0/policychat/internal/ingest"
	"github.com/sachiverma0/policychat/internal/models"
)

// HandleIngest accepts a single upsert/delete document message and enqueues
// it for the background worker. The message must carry a userId; deletes must
// name an id. Accepted messages are acknowledged with 202 before any storage
// or embedding work happens.
func (m Main) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var raw models.IngestMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := ingest.Normalize(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := m.ingestor.Enqueue(msg); err != nil {
		m.logger.Error("Failed to enqueue ingest message",
			slog.String("id", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "queued",
		"messageId": msg.ID,
	})
}
