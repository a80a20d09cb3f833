package ingest_test

import (
	"strings"
	"testing"

	"github.com/sachiverma0/policychat/internal/ingest"
)

func TestReadTableCSV(t *testing.T) {
	csv := "id,userId,title\nr1,u1,First\nr2,u2,Second\n"

	header, rows, err := ingest.ReadTable("data.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(header) != 3 || header[0] != "id" {
		t.Errorf("header = %v", header)
	}
	if len(rows) != 2 || rows[1][2] != "Second" {
		t.Errorf("rows = %v", rows)
	}
}

func TestReadTableRaggedCSV(t *testing.T) {
	csv := "id,userId,title\nr1,u1\nr2,u2,Second,extra\n"

	_, rows, err := ingest.ReadTable("data.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %v, want both ragged rows kept", rows)
	}
}

func TestReadTableUnsupportedExtension(t *testing.T) {
	_, _, err := ingest.ReadTable("data.txt", strings.NewReader("whatever"))
	if err == nil {
		t.Fatal("ReadTable() expected error for .txt")
	}
	if !strings.Contains(err.Error(), "only .csv or .xlsx") {
		t.Errorf("error = %v", err)
	}
}

func TestReadTableEmptyCSV(t *testing.T) {
	header, rows, err := ingest.ReadTable("empty.csv", strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if header != nil || rows != nil {
		t.Errorf("header = %v, rows = %v, want both nil", header, rows)
	}
}

func TestDocumentsFromTable(t *testing.T) {
	t.Run("Full row is taken as-is", func(t *testing.T) {
		docs, err := ingest.DocumentsFromTable(
			[]string{"id", "userId", "title", "content"},
			[][]string{{"r1", "u1", "Row One", "Alpha"}},
			"",
		)
		if err != nil {
			t.Fatalf("DocumentsFromTable() error = %v", err)
		}
		if len(docs) != 1 {
			t.Fatalf("got %d documents, want 1", len(docs))
		}
		d := docs[0]
		if d.ID != "r1" || d.UserID != "u1" || d.Title != "Row One" || d.Content != "Alpha" {
			t.Errorf("document = %+v", d)
		}
	})

	t.Run("Missing id is generated", func(t *testing.T) {
		docs, err := ingest.DocumentsFromTable(
			[]string{"userId", "title"},
			[][]string{{"u1", "Row One"}},
			"",
		)
		if err != nil {
			t.Fatal(err)
		}
		if docs[0].ID == "" {
			t.Error("expected a generated id")
		}
	})

	t.Run("Missing title defaults to Record id", func(t *testing.T) {
		docs, err := ingest.DocumentsFromTable(
			[]string{"id", "userId"},
			[][]string{{"r1", "u1"}},
			"",
		)
		if err != nil {
			t.Fatal(err)
		}
		if docs[0].Title != "Record r1" {
			t.Errorf("title = %q, want %q", docs[0].Title, "Record r1")
		}
	})

	t.Run("Missing content becomes column listing without userId", func(t *testing.T) {
		docs, err := ingest.DocumentsFromTable(
			[]string{"id", "userId", "region", "premium"},
			[][]string{{"r1", "u1", "west", "120"}},
			"",
		)
		if err != nil {
			t.Fatal(err)
		}
		content := docs[0].Content
		if !strings.Contains(content, "region: west") || !strings.Contains(content, "premium: 120") {
			t.Errorf("content = %q", content)
		}
		if strings.Contains(content, "userId") {
			t.Errorf("content %q should not include the partition column", content)
		}
	})

	t.Run("Default userId fills the gap", func(t *testing.T) {
		docs, err := ingest.DocumentsFromTable(
			[]string{"id", "title"},
			[][]string{{"r1", "Row One"}},
			"fallback-user",
		)
		if err != nil {
			t.Fatal(err)
		}
		if docs[0].UserID != "fallback-user" {
			t.Errorf("userId = %q, want fallback-user", docs[0].UserID)
		}
	})

	t.Run("Missing userId rejects the batch", func(t *testing.T) {
		_, err := ingest.DocumentsFromTable(
			[]string{"id", "title"},
			[][]string{{"r1", "Row One"}},
			"",
		)
		if err == nil {
			t.Fatal("expected error for missing userId")
		}
		if !strings.Contains(err.Error(), "userId") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("Empty rows are skipped", func(t *testing.T) {
		docs, err := ingest.DocumentsFromTable(
			[]string{"id", "userId"},
			[][]string{{}, {"r1", "u1"}},
			"",
		)
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 1 {
			t.Errorf("got %d documents, want 1", len(docs))
		}
	})
}
