package services_test

import (
	"path/filepath"
	"testing"

	"github.com/sachiverma0/policychat/internal/models"
	"github.com/sachiverma0/policychat/internal/services"
)

func newTestSearchIndex(t *testing.T) *services.SearchIndex {
	t.Helper()

	idx, err := services.NewSearchIndex(filepath.Join(t.TempDir(), "search.db"))
	if err != nil {
		t.Fatalf("NewSearchIndex() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSearchIndex(t *testing.T) {
	idx := newTestSearchIndex(t)

	docs := []models.Document{
		{ID: "d1", Title: "Motor policy", Content: "Covers collision damage and theft."},
		{ID: "d2", Title: "Home policy", Content: "Covers fire and flooding."},
	}
	for _, doc := range docs {
		if err := idx.Add(doc); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	results, err := idx.Search("collision", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "d1" {
		t.Errorf("Search(collision) = %v, want just d1", results)
	}

	// Porter stemming matches inflected forms.
	results, err = idx.Search("flooded", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "d2" {
		t.Errorf("Search(flooded) = %v, want just d2", results)
	}
}

func TestSearchIndexMatchesTitle(t *testing.T) {
	idx := newTestSearchIndex(t)

	if err := idx.Add(models.Document{
		ID:      "d1",
		Title:   "refund policy",
		Content: "claims are settled within thirty days",
	}); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search("refund", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "d1" {
		t.Errorf("Search(refund) = %v, want the title hit", results)
	}
}

func TestSearchIndexReplace(t *testing.T) {
	idx := newTestSearchIndex(t)

	if err := idx.Add(models.Document{ID: "d1", Content: "old wording"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(models.Document{ID: "d1", Content: "new wording"}); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search("old", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("Search(old) = %v, want the stale entry replaced", results)
	}

	results, err = idx.Search("new", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("Search(new) = %v, want one entry", results)
	}
}

func TestSearchIndexRemove(t *testing.T) {
	idx := newTestSearchIndex(t)

	if err := idx.Add(models.Document{ID: "d1", Content: "something"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Remove("d1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := idx.Remove("d1"); err != nil {
		t.Errorf("Remove() on missing entry error = %v", err)
	}

	results, err := idx.Search("something", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("Search() = %v after removal, want none", results)
	}
}
