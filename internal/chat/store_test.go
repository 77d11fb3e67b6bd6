package chat

import (
	"fmt"
	"testing"
)

func TestStoreWindowCapAndOrder(t *testing.T) {
	s := NewStore(50)

	for i := 0; i < 120; i++ {
		s.Append(Comment{
			DisplayName: "viewer",
			Content:     fmt.Sprintf("message %d", i),
			CreatedAt:   fmt.Sprintf("2025-01-01T00:00:%02d", i%60),
		})
	}

	if s.Len() != 120 {
		t.Fatalf("store should keep all records, got %d", s.Len())
	}

	win := s.Window()
	if len(win) != 50 {
		t.Fatalf("window = %d, want 50", len(win))
	}
	if win[0].Content != "message 119" {
		t.Fatalf("newest first: got %q at head", win[0].Content)
	}
	if win[49].Content != "message 70" {
		t.Fatalf("window tail = %q, want message 70", win[49].Content)
	}
}

func TestStoreWindowSmallerThanCap(t *testing.T) {
	s := NewStore(50)
	s.Append(Comment{DisplayName: "a", Content: "one", CreatedAt: "t1"})
	s.Append(Comment{DisplayName: "b", Content: "two", CreatedAt: "t2"})

	win := s.Window()
	if len(win) != 2 {
		t.Fatalf("window = %d, want 2", len(win))
	}
	if win[0].Content != "two" || win[1].Content != "one" {
		t.Fatalf("unexpected order: %q, %q", win[0].Content, win[1].Content)
	}
}

func TestStoreRemoveByKey(t *testing.T) {
	s := NewStore(50)
	s.Append(Comment{DisplayName: "Tom", Content: "first", CreatedAt: "t1"})
	s.Append(Comment{DisplayName: "Tom", Content: "dup key", CreatedAt: "t1"})
	s.Append(Comment{DisplayName: "Tom", Content: "later", CreatedAt: "t2"})
	s.Append(Comment{DisplayName: "Ann", Content: "other", CreatedAt: "t1"})

	removed := s.RemoveByKey("Tom", "t1")
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	for _, c := range s.Window() {
		if c.DisplayName == "Tom" && c.CreatedAt == "t1" {
			t.Fatalf("matching comment survived removal: %+v", c)
		}
	}
}

func TestStoreAppendDeduplicatesRedelivery(t *testing.T) {
	s := NewStore(50)
	c := Comment{DisplayName: "Tom", Content: "hello", CreatedAt: "t1"}

	if !s.Append(c) {
		t.Fatal("first append should insert")
	}
	if s.Append(c) {
		t.Fatal("redelivered comment should be dropped")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}

	// Same key but different content is a distinct comment.
	if !s.Append(Comment{DisplayName: "Tom", Content: "bye", CreatedAt: "t1"}) {
		t.Fatal("distinct content should insert")
	}
}

func TestStoreAppendKeepsUnstampedComments(t *testing.T) {
	s := NewStore(50)
	// Locally composed comments have no createdAt yet; two identical
	// ones must both be kept.
	c := Comment{DisplayName: "Tom", Content: "hello"}
	if !s.Append(c) || !s.Append(c) {
		t.Fatal("unstamped comments must not be deduplicated")
	}
}

func TestStoreReplaceAll(t *testing.T) {
	s := NewStore(50)
	s.Append(Comment{DisplayName: "old", Content: "stale", CreatedAt: "t0"})

	s.ReplaceAll([]Comment{
		{DisplayName: "a", Content: "one", CreatedAt: "t1"},
		{DisplayName: "b", Content: "two", CreatedAt: "t2"},
	})

	win := s.Window()
	if len(win) != 2 {
		t.Fatalf("window = %d, want 2", len(win))
	}
	if win[0].DisplayName != "b" {
		t.Fatalf("head = %q, want b", win[0].DisplayName)
	}
}
