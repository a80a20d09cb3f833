package services_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sachiverma0/policychat/internal/models"
	"github.com/sachiverma0/policychat/internal/services"
)

func newTestBoltDB(t *testing.T) services.BoltDB {
	t.Helper()

	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestChats(t *testing.T) {
	db := newTestBoltDB(t)
	ctx := context.Background()

	firstID, err := db.AddChat(ctx, models.Chat{ID: "a", Title: "First", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("AddChat() error = %v", err)
	}
	if !strings.HasSuffix(firstID, "-a") {
		t.Errorf("AddChat() id = %q, want sequence prefix on original id", firstID)
	}

	secondID, err := db.AddChat(ctx, models.Chat{ID: "b", Title: "Second", CreatedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	chats, err := db.Chats(ctx)
	if err != nil {
		t.Fatalf("Chats() error = %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("Chats() returned %d chats, want 2", len(chats))
	}
	if chats[0].ID != secondID {
		t.Errorf("Chats()[0].ID = %q, want newest chat %q first", chats[0].ID, secondID)
	}

	if err := db.UpdateChat(ctx, models.Chat{ID: firstID, Title: "Renamed"}); err != nil {
		t.Fatalf("UpdateChat() error = %v", err)
	}
	chats, _ = db.Chats(ctx)
	if chats[1].Title != "Renamed" {
		t.Errorf("title = %q, want Renamed", chats[1].Title)
	}
	if chats[1].CreatedAt.IsZero() {
		t.Error("UpdateChat() should keep the original CreatedAt")
	}

	// Updating a missing chat is silently ignored.
	if err := db.UpdateChat(ctx, models.Chat{ID: "missing", Title: "X"}); err != nil {
		t.Errorf("UpdateChat() on missing chat error = %v", err)
	}
}

func TestMessages(t *testing.T) {
	db := newTestBoltDB(t)
	ctx := context.Background()

	chatID, err := db.AddChat(ctx, models.Chat{ID: "a"})
	if err != nil {
		t.Fatal(err)
	}

	for _, content := range []string{"first", "second", "third"} {
		if _, err := db.AddMessage(ctx, chatID, models.Message{
			ID:      content,
			Role:    models.RoleUser,
			Content: content,
		}); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}

	messages, err := db.Messages(ctx, chatID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("Messages() returned %d messages, want 3", len(messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Content != want {
			t.Errorf("messages[%d].Content = %q, want %q", i, messages[i].Content, want)
		}
	}

	empty, err := db.Messages(ctx, "no-such-chat")
	if err != nil {
		t.Fatalf("Messages() on missing chat error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Messages() on missing chat = %v, want none", empty)
	}
}

func TestDocuments(t *testing.T) {
	db := newTestBoltDB(t)
	ctx := context.Background()

	doc := models.Document{
		ID:      "d1",
		UserID:  "u1",
		Title:   "Policy A",
		Content: "Coverage details.",
	}
	if err := db.PutDocument(ctx, doc); err != nil {
		t.Fatalf("PutDocument() error = %v", err)
	}

	got, found, err := db.Document(ctx, "d1")
	if err != nil || !found {
		t.Fatalf("Document() = %v, %v, %v", got, found, err)
	}
	if got.Title != "Policy A" {
		t.Errorf("title = %q", got.Title)
	}

	if err := db.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if _, found, _ := db.Document(ctx, "d1"); found {
		t.Error("document should be gone after delete")
	}

	// Deleting a missing document is not an error.
	if err := db.DeleteDocument(ctx, "d1"); err != nil {
		t.Errorf("DeleteDocument() on missing document error = %v", err)
	}
}

func TestTopDocuments(t *testing.T) {
	db := newTestBoltDB(t)
	ctx := context.Background()

	docs := []models.Document{
		{ID: "exact", Embedding: []float32{1, 0}},
		{ID: "close", Embedding: []float32{0.9, 0.1}},
		{ID: "orthogonal", Embedding: []float32{0, 1}},
		{ID: "unembedded"},
	}
	for _, doc := range docs {
		if err := db.PutDocument(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	scored, err := db.TopDocuments(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("TopDocuments() error = %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("TopDocuments() returned %d documents, want 2", len(scored))
	}
	if scored[0].ID != "exact" || scored[1].ID != "close" {
		t.Errorf("ranking = [%s, %s], want [exact, close]", scored[0].ID, scored[1].ID)
	}
	if scored[0].Score <= scored[1].Score {
		t.Errorf("scores = [%f, %f], want descending", scored[0].Score, scored[1].Score)
	}
}

func TestFiles(t *testing.T) {
	db := newTestBoltDB(t)
	ctx := context.Background()

	records := []models.FileRecord{
		{Name: "rows.csv", Kind: models.FileKindTabular, Rows: 10, UploadedAt: time.Now()},
		{Name: "terms.txt", Kind: models.FileKindPolicy, UploadedAt: time.Now()},
	}
	for _, rec := range records {
		if err := db.AddFile(ctx, rec); err != nil {
			t.Fatalf("AddFile() error = %v", err)
		}
	}

	// Re-uploading replaces the record rather than duplicating it.
	if err := db.AddFile(ctx, models.FileRecord{
		Name: "rows.csv", Kind: models.FileKindTabular, Rows: 12, UploadedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	files, err := db.Files(ctx)
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Files() returned %d records, want 2", len(files))
	}
	for _, f := range files {
		if f.Name == "rows.csv" && f.Rows != 12 {
			t.Errorf("rows = %d, want the replacing record's 12", f.Rows)
		}
	}
}
