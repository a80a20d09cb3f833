package services

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sachiverma0/policychat/internal/models"
)

const searchSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts4(
    id,
    title,
    content,
    tokenize=porter
);`

// SearchIndex maintains a full-text index over document titles and contents
// using SQLite FTS4. It backs keyword retrieval and serves as the fallback
// ranking when no embedding provider is configured.
type SearchIndex struct {
	db *sql.DB
}

// NewSearchIndex opens or creates the index at the given path.
func NewSearchIndex(path string) (*SearchIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}

	if _, err := db.Exec(searchSchema); err != nil {
		return nil, fmt.Errorf("failed to create FTS table: %w", err)
	}

	return &SearchIndex{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SearchIndex) Close() error {
	return s.db.Close()
}

// Add indexes a document, replacing any previous entry with the same ID.
func (s *SearchIndex) Add(doc models.Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE id = ?`, doc.ID); err != nil {
		return fmt.Errorf("failed to remove stale index entry: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO documents_fts(id, title, content)
		VALUES (?, ?, ?)
	`, doc.ID, doc.Title, doc.Content); err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}

	return tx.Commit()
}

// Remove deletes a document from the index. Removing a missing document is
// not an error.
func (s *SearchIndex) Remove(id string) error {
	if _, err := s.db.Exec(`DELETE FROM documents_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove index entry: %w", err)
	}
	return nil
}

// Search performs a full-text match over document titles and contents and
// returns up to limit matching documents.
func (s *SearchIndex) Search(query string, limit int) ([]models.Document, error) {
	rows, err := s.db.Query(`
		SELECT id, title, content
		FROM documents_fts
		WHERE documents_fts MATCH ?
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
