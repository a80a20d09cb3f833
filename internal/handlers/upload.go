package handlers

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sachiverma0/policychat/internal/ingest"
	"github.com/sachiverma0/policychat/internal/models"
)

// HandleUploadExcelDirect accepts one or more spreadsheet files under the
// "file" field, converts their rows into documents, and processes them
// synchronously: every row is stored, embedded, and indexed before the
// response is written.
func (m Main) HandleUploadExcelDirect(w http.ResponseWriter, r *http.Request) {
	m.handleTabularUpload(w, r, false)
}

// HandleUploadExcel is the queued counterpart: rows are enqueued for the
// background worker and the request is acknowledged with 202 before any
// embedding work happens.
func (m Main) HandleUploadExcel(w http.ResponseWriter, r *http.Request) {
	m.handleTabularUpload(w, r, true)
}

func (m Main) handleTabularUpload(w http.ResponseWriter, r *http.Request, queued bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No file uploaded (must be 'file').")
		return
	}

	userID := r.FormValue("userId")
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}

	ids := []string{}
	for _, fh := range files {
		docs, err := m.parseTabularFile(fh, userID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		for _, doc := range docs {
			doc.Source = models.SourceTabular
			msg := models.IngestMessage{
				ID:      doc.ID,
				Action:  models.ActionUpsert,
				Version: "v1",
				UserID:  doc.UserID,
				Data:    doc,
			}

			if queued {
				err = m.ingestor.Enqueue(msg)
			} else {
				err = m.ingestor.Process(r.Context(), msg)
			}
			if err != nil {
				m.logger.Error("Failed to ingest row",
					slog.String("id", doc.ID),
					slog.String(errLoggerKey, err.Error()))
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			ids = append(ids, doc.ID)
		}

		if err := m.store.AddFile(r.Context(), models.FileRecord{
			Name:       fh.Filename,
			Kind:       models.FileKindTabular,
			Rows:       len(docs),
			UploadedAt: time.Now(),
		}); err != nil {
			m.logger.Error("Failed to record uploaded file",
				slog.String("name", fh.Filename),
				slog.String(errLoggerKey, err.Error()))
		}
	}

	if queued {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":     "queued",
			"rowsQueued": len(ids),
			"ids":        ids,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rowsProcessed": len(ids),
		"ids":           ids,
	})
}

func (m Main) parseTabularFile(fh *multipart.FileHeader, userID string) ([]models.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, rows, err := ingest.ReadTable(fh.Filename, f)
	if err != nil {
		return nil, err
	}

	return ingest.DocumentsFromTable(header, rows, userID)
}

// HandleUploadPolicyDocuments accepts whole documents under the repeated
// "files" field. Each file becomes one document; embedding and indexing
// happen on the background worker.
func (m Main) HandleUploadPolicyDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded (must be 'files').")
		return
	}

	userID := r.FormValue("userId")
	if userID == "" {
		userID = models.SourcePolicy
	}

	processed := 0
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		doc := models.Document{
			ID:      uuid.New().String(),
			UserID:  userID,
			Title:   fh.Filename,
			Content: string(content),
			Source:  models.SourcePolicy,
		}

		if err := m.ingestor.Enqueue(models.IngestMessage{
			ID:      doc.ID,
			Action:  models.ActionUpsert,
			Version: "v1",
			UserID:  doc.UserID,
			Data:    doc,
		}); err != nil {
			m.logger.Error("Failed to enqueue policy document",
				slog.String("name", fh.Filename),
				slog.String(errLoggerKey, err.Error()))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := m.store.AddFile(r.Context(), models.FileRecord{
			Name:       fh.Filename,
			Kind:       models.FileKindPolicy,
			UploadedAt: time.Now(),
		}); err != nil {
			m.logger.Error("Failed to record uploaded file",
				slog.String("name", fh.Filename),
				slog.String(errLoggerKey, err.Error()))
		}
		processed++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filesProcessed": processed,
	})
}

// HandleUploadedFiles reports the names of previously persisted uploads,
// split by kind. The listing reflects the store at request time; there is no
// client-side invalidation.
func (m Main) HandleUploadedFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	files, err := m.store.Files(r.Context())
	if err != nil {
		m.logger.Error("Failed to list files", slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	csvFiles := []string{}
	policyFiles := []string{}
	for _, f := range files {
		switch f.Kind {
		case models.FileKindTabular:
			csvFiles = append(csvFiles, f.Name)
		case models.FileKindPolicy:
			policyFiles = append(policyFiles, f.Name)
		}
	}

	writeJSON(w, http.StatusOK, map[string][]string{
		"csvFiles":    csvFiles,
		"policyFiles": policyFiles,
	})
}
