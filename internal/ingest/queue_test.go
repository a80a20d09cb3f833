package ingest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sachiverma0/policychat/internal/ingest"
	"github.com/sachiverma0/policychat/internal/models"
)

type mockStore struct {
	mu      sync.Mutex
	docs    map[string]models.Document
	deleted []string
	err     error
}

func newMockStore() *mockStore {
	return &mockStore{docs: make(map[string]models.Document)}
}

func (m *mockStore) PutDocument(_ context.Context, doc models.Document) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *mockStore) DeleteDocument(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStore) document(id string) (models.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	return doc, ok
}

type mockEmbedder struct {
	embedding []float32
	err       error

	gotText string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.gotText = text
	return m.embedding, m.err
}

type mockIndex struct {
	mu      sync.Mutex
	added   []models.Document
	removed []string
}

func (m *mockIndex) Add(doc models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, doc)
	return nil
}

func (m *mockIndex) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		msg     models.IngestMessage
		wantErr string
		check   func(t *testing.T, got models.IngestMessage)
	}{
		{
			name: "Defaults are filled",
			msg: models.IngestMessage{
				UserID: "u1",
				Data:   models.Document{Title: "T"},
			},
			check: func(t *testing.T, got models.IngestMessage) {
				if got.Action != models.ActionUpsert {
					t.Errorf("action = %q, want upsert", got.Action)
				}
				if got.Version != "v1" {
					t.Errorf("version = %q, want v1", got.Version)
				}
				if got.ID == "" || got.Data.ID != got.ID {
					t.Errorf("id = %q, data.id = %q", got.ID, got.Data.ID)
				}
			},
		},
		{
			name: "UserID propagates from data",
			msg: models.IngestMessage{
				Data: models.Document{ID: "d1", UserID: "u2"},
			},
			check: func(t *testing.T, got models.IngestMessage) {
				if got.UserID != "u2" {
					t.Errorf("userId = %q, want u2", got.UserID)
				}
			},
		},
		{
			name: "Top-level userID wins and propagates down",
			msg: models.IngestMessage{
				UserID: "top",
				Data:   models.Document{ID: "d1", UserID: "inner"},
			},
			check: func(t *testing.T, got models.IngestMessage) {
				if got.UserID != "top" || got.Data.UserID != "top" {
					t.Errorf("userId = %q, data.userId = %q, want top for both", got.UserID, got.Data.UserID)
				}
			},
		},
		{
			name:    "Missing userID",
			msg:     models.IngestMessage{Data: models.Document{ID: "d1"}},
			wantErr: "userId",
		},
		{
			name:    "Invalid action",
			msg:     models.IngestMessage{Action: "merge", UserID: "u1"},
			wantErr: "invalid action",
		},
		{
			name:    "Delete without id",
			msg:     models.IngestMessage{Action: models.ActionDelete, UserID: "u1"},
			wantErr: "delete requires",
		},
		{
			name: "Delete with data id",
			msg: models.IngestMessage{
				Action: models.ActionDelete,
				UserID: "u1",
				Data:   models.Document{ID: "d1"},
			},
			check: func(t *testing.T, got models.IngestMessage) {
				if got.ID != "d1" {
					t.Errorf("id = %q, want d1", got.ID)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ingest.Normalize(tt.msg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Normalize() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestProcessUpsert(t *testing.T) {
	store := newMockStore()
	embedder := &mockEmbedder{embedding: []float32{0.1, 0.2}}
	index := &mockIndex{}
	q := ingest.NewQueue(store, embedder, index, testLogger())

	msg := models.IngestMessage{
		ID:      "d1",
		Action:  models.ActionUpsert,
		Version: "v2",
		UserID:  "u1",
		Data: models.Document{
			ID:      "d1",
			UserID:  "u1",
			Title:   "T",
			Content: "policy text",
		},
	}

	if err := q.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	doc, ok := store.document("d1")
	if !ok {
		t.Fatal("document not stored")
	}
	if doc.Version != "v2" {
		t.Errorf("version = %q, want v2", doc.Version)
	}
	if len(doc.Embedding) != 2 {
		t.Errorf("embedding = %v, want the embedder's vector", doc.Embedding)
	}
	if len(index.added) != 1 || index.added[0].ID != "d1" {
		t.Errorf("index.added = %v", index.added)
	}
}

func TestProcessTruncatesEmbeddingInput(t *testing.T) {
	store := newMockStore()
	embedder := &mockEmbedder{embedding: []float32{1}}
	q := ingest.NewQueue(store, embedder, &mockIndex{}, testLogger())

	long := strings.Repeat("a", 9000)
	msg := models.IngestMessage{
		ID:     "d1",
		Action: models.ActionUpsert,
		UserID: "u1",
		Data:   models.Document{ID: "d1", UserID: "u1", Content: long},
	}

	if err := q.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(embedder.gotText) != 8000 {
		t.Errorf("embedder received %d chars, want 8000", len(embedder.gotText))
	}
	doc, _ := store.document("d1")
	if len(doc.Content) != 9000 {
		t.Errorf("stored content is %d chars, want the full 9000", len(doc.Content))
	}
}

func TestProcessTruncatesOnRuneBoundary(t *testing.T) {
	store := newMockStore()
	embedder := &mockEmbedder{embedding: []float32{1}}
	q := ingest.NewQueue(store, embedder, &mockIndex{}, testLogger())

	// Three-byte runes leave the 8000-byte cut mid-rune.
	long := strings.Repeat("€", 3000)
	msg := models.IngestMessage{
		ID:     "d1",
		Action: models.ActionUpsert,
		UserID: "u1",
		Data:   models.Document{ID: "d1", UserID: "u1", Content: long},
	}

	if err := q.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if !utf8.ValidString(embedder.gotText) {
		t.Error("embedder received invalid UTF-8")
	}
	if len(embedder.gotText) > 8000 {
		t.Errorf("embedder received %d bytes, want at most 8000", len(embedder.gotText))
	}
	if len(embedder.gotText) != 7998 {
		t.Errorf("embedder received %d bytes, want 7998 after backing off to a rune boundary",
			len(embedder.gotText))
	}
}

func TestProcessKeepsDocumentOnEmbeddingFailure(t *testing.T) {
	store := newMockStore()
	embedder := &mockEmbedder{err: errors.New("quota exceeded")}
	index := &mockIndex{}
	q := ingest.NewQueue(store, embedder, index, testLogger())

	msg := models.IngestMessage{
		ID:     "d1",
		Action: models.ActionUpsert,
		UserID: "u1",
		Data:   models.Document{ID: "d1", UserID: "u1", Content: "text"},
	}

	if err := q.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process() error = %v, embedding failure must not fail the upsert", err)
	}

	doc, ok := store.document("d1")
	if !ok {
		t.Fatal("document should be stored despite embedding failure")
	}
	if len(doc.Embedding) != 0 {
		t.Errorf("embedding = %v, want none", doc.Embedding)
	}
	if len(index.added) != 1 {
		t.Error("document should still be indexed for full-text search")
	}
}

func TestProcessWithoutEmbedder(t *testing.T) {
	store := newMockStore()
	q := ingest.NewQueue(store, nil, &mockIndex{}, testLogger())

	msg := models.IngestMessage{
		ID:     "d1",
		Action: models.ActionUpsert,
		UserID: "u1",
		Data:   models.Document{ID: "d1", UserID: "u1", Content: "text"},
	}

	if err := q.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, ok := store.document("d1"); !ok {
		t.Error("document not stored")
	}
}

func TestProcessDelete(t *testing.T) {
	store := newMockStore()
	store.docs["d1"] = models.Document{ID: "d1"}
	index := &mockIndex{}
	q := ingest.NewQueue(store, nil, index, testLogger())

	msg := models.IngestMessage{ID: "d1", Action: models.ActionDelete, UserID: "u1"}
	if err := q.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if _, ok := store.document("d1"); ok {
		t.Error("document not deleted")
	}
	if len(index.removed) != 1 || index.removed[0] != "d1" {
		t.Errorf("index.removed = %v", index.removed)
	}
}

func TestQueueWorker(t *testing.T) {
	store := newMockStore()
	q := ingest.NewQueue(store, nil, &mockIndex{}, testLogger())

	indexed := make(chan models.Document, 1)
	q.OnIndexed(func(doc models.Document) {
		indexed <- doc
	})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	msg := models.IngestMessage{
		ID:     "d1",
		Action: models.ActionUpsert,
		UserID: "u1",
		Data:   models.Document{ID: "d1", UserID: "u1", Content: "text"},
	}
	if err := q.Enqueue(msg); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case doc := <-indexed:
		if doc.ID != "d1" {
			t.Errorf("indexed doc id = %q, want d1", doc.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker")
	}

	cancel()
	q.Wait()
}
