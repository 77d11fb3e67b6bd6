package chat

// DefaultWindow is how many comments the surface renders at most.
const DefaultWindow = 50

// Store is the client-local ordered collection of chat comments.
// Insertion order is arrival order; the visible window is computed at
// render time and never mutates the underlying sequence.
//
// Store is not safe for concurrent use: the dispatch loop is its only
// writer and the surface reads from the same goroutine.
type Store struct {
	comments []Comment
	window   int
}

// NewStore builds a store with the given render window. A window of
// zero or less falls back to DefaultWindow.
func NewStore(window int) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{window: window}
}

// Append inserts a comment at the newest end. A redelivered comment
// (same display name, creation timestamp and content as one already
// held) is dropped, so a history replay after reconnect cannot
// duplicate entries. Returns whether the comment was inserted.
func (s *Store) Append(c Comment) bool {
	for i := range s.comments {
		held := &s.comments[i]
		if held.DisplayName == c.DisplayName &&
			held.CreatedAt == c.CreatedAt &&
			held.Content == c.Content &&
			c.CreatedAt != "" {
			return false
		}
	}
	s.comments = append(s.comments, c)
	return true
}

// ReplaceAll swaps the held sequence for the history snapshot.
func (s *Store) ReplaceAll(comments []Comment) {
	s.comments = append(s.comments[:0:0], comments...)
}

// RemoveByKey drops every held comment whose (displayName, createdAt)
// pair matches, and returns how many were removed. Used when a deletion
// broadcast arrives, regardless of which client originated the delete.
func (s *Store) RemoveByKey(displayName, createdAt string) int {
	kept := s.comments[:0]
	removed := 0
	for _, c := range s.comments {
		if c.DisplayName == displayName && c.CreatedAt == createdAt {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.comments = kept
	return removed
}

// Len reports how many comments are held, including those outside the
// visible window.
func (s *Store) Len() int {
	return len(s.comments)
}

// Window returns the renderable slice: the newest comments up to the
// window cap, ordered newest first. The underlying records are never
// trimmed here, and trimming must not trigger a removal broadcast.
func (s *Store) Window() []Comment {
	n := len(s.comments)
	if n > s.window {
		n = s.window
	}
	out := make([]Comment, 0, n)
	for i := len(s.comments) - 1; i >= len(s.comments)-n; i-- {
		out = append(out, s.comments[i])
	}
	return out
}
