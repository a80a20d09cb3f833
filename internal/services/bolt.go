package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/sachiverma0/policychat/internal/models"
)

// BoltDB implements persistent storage for conversations, messages, documents
// and uploaded-file records using a BoltDB backend. It provides atomic
// operations through a key-value storage model.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates a new BoltDB instance with the specified file path. It
// initializes the database with required buckets and returns an error if the
// database cannot be opened or initialized. The database file is created with
// 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{"chats", "documents", "files"} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})

	return BoltDB{db: db}, err
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func messageBucketName(chatID string) []byte {
	return []byte(fmt.Sprintf("chat-%s", chatID))
}

// Chats retrieves all stored chat records from the database in reverse
// chronological order.
func (b BoltDB) Chats(context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("chats"))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var chat models.Chat
			if err := json.Unmarshal(v, &chat); err != nil {
				return fmt.Errorf("failed to unmarshal chat: %w", err)
			}
			chats = append(chats, chat)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(chats)
	return chats, nil
}

// AddChat stores a new chat record in the database and creates an associated
// message bucket. It generates a unique ID for the chat by combining a
// sequence number with the chat's original ID, and returns the new ID or an
// error if the operation fails.
func (b BoltDB) AddChat(_ context.Context, chat models.Chat) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("chats"))
		if b == nil {
			return nil
		}

		idPrefix, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%d-%s", idPrefix, chat.ID)
		chat.ID = newID

		_, err = tx.CreateBucketIfNotExists(messageBucketName(chat.ID))
		if err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		v, err := json.Marshal(chat)
		if err != nil {
			return fmt.Errorf("failed to marshal chat: %w", err)
		}

		return b.Put([]byte(newID), v)
	})

	return newID, err
}

// UpdateChat modifies an existing chat record in the database. If the chat
// doesn't exist, the operation is silently ignored.
func (b BoltDB) UpdateChat(_ context.Context, chat models.Chat) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("chats"))
		if b == nil {
			return nil
		}

		v := b.Get([]byte(chat.ID))
		if v == nil {
			return nil
		}

		var stored models.Chat
		if err := json.Unmarshal(v, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal chat: %w", err)
		}
		stored.Title = chat.Title

		v, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal chat: %w", err)
		}

		return b.Put([]byte(chat.ID), v)
	})
}

// Messages retrieves all messages associated with the specified chat ID in
// their stored order.
func (b BoltDB) Messages(_ context.Context, chatID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(messageBucketName(chatID))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var message models.Message
			if err := json.Unmarshal(v, &message); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AddMessage stores a new message in the specified chat's message bucket. It
// generates a unique ID for the message by combining a sequence number with
// the message's original ID, and returns the new ID or an error if the
// operation fails.
func (b BoltDB) AddMessage(_ context.Context, chatID string, message models.Message) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(messageBucketName(chatID))
		if err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		idPrefix, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%d-%s", idPrefix, message.ID)
		message.ID = newID

		v, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return b.Put([]byte(newID), v)
	})

	return newID, err
}

// PutDocument stores or replaces a document keyed by its ID.
func (b BoltDB) PutDocument(_ context.Context, doc models.Document) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("documents"))
		if b == nil {
			return nil
		}

		v, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}

		return b.Put([]byte(doc.ID), v)
	})
}

// Document retrieves a single document by ID. The second return value reports
// whether the document exists.
func (b BoltDB) Document(_ context.Context, id string) (models.Document, bool, error) {
	var doc models.Document
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("documents"))
		if b == nil {
			return nil
		}

		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &doc)
	})
	return doc, found, err
}

// DeleteDocument removes a document by ID. Deleting a missing document is not
// an error.
func (b BoltDB) DeleteDocument(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("documents"))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
}

// TopDocuments ranks every stored document carrying an embedding by cosine
// similarity against the query embedding and returns up to limit results in
// descending score order.
func (b BoltDB) TopDocuments(_ context.Context, embedding []float32, limit int) ([]models.ScoredDocument, error) {
	var scored []models.ScoredDocument
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("documents"))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var doc models.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("failed to unmarshal document: %w", err)
			}
			if len(doc.Embedding) == 0 {
				return nil
			}
			scored = append(scored, models.ScoredDocument{
				Document: doc,
				Score:    cosineSimilarity(embedding, doc.Embedding),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// AddFile records an uploaded file. Re-uploading a file with the same name
// and kind replaces the previous record.
func (b BoltDB) AddFile(_ context.Context, rec models.FileRecord) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("files"))
		if b == nil {
			return nil
		}

		v, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal file record: %w", err)
		}

		return b.Put([]byte(rec.Kind+"/"+rec.Name), v)
	})
}

// Files retrieves every uploaded-file record.
func (b BoltDB) Files(context.Context) ([]models.FileRecord, error) {
	var files []models.FileRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("files"))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var rec models.FileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal file record: %w", err)
			}
			files = append(files, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
