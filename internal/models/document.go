package models

import "time"

// Document sources. Tabular documents originate from spreadsheet rows, policy
// documents from whole uploaded files.
const (
	SourceTabular = "tabular"
	SourcePolicy  = "policy"
)

// Document is a retrievable knowledge record. The embedding is computed by
// the ingest worker after the document is first persisted; a document without
// an embedding is still stored and findable through full-text search.
type Document struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	Version   string    `json:"version,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ScoredDocument pairs a document with its similarity to a query embedding.
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

// IngestAction selects what the ingest worker does with a queued message.
type IngestAction string

const (
	// ActionUpsert creates or replaces a document.
	ActionUpsert IngestAction = "upsert"
	// ActionDelete removes a document by id.
	ActionDelete IngestAction = "delete"
)

// IngestMessage is the unit of work flowing through the ingest queue. The
// wire shape matches what clients post to the ingest endpoint: the id and
// userId may appear at the top level, inside the data, or both.
type IngestMessage struct {
	ID      string       `json:"id"`
	Action  IngestAction `json:"action"`
	Version string       `json:"version"`
	UserID  string       `json:"userId"`
	Data    Document     `json:"data"`
}

// File kinds reported by the uploaded-file listing.
const (
	FileKindTabular = "csv"
	FileKindPolicy  = "policy"
)

// FileRecord is a minimal server-side record of a previously persisted
// upload. Only the name is reported back to clients.
type FileRecord struct {
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Rows       int       `json:"rows,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}
