package chat

import (
	"errors"
	"strings"
	"time"
)

// Comment length limits enforced both client-side and at the stub
// broker's ingress.
const (
	MaxDisplayNameLength = 50
	MaxContentLength     = 500
)

// CreatedAtFormat is the timestamp layout the backend assigns to
// comments.
const CreatedAtFormat = "2006-01-02T15:04:05"

var (
	ErrEmptyDisplayName   = errors.New("display name is required")
	ErrDisplayNameTooLong = errors.New("display name exceeds 50 characters")
	ErrEmptyContent       = errors.New("comment content is required")
	ErrContentTooLong     = errors.New("comment content exceeds 500 characters")
	ErrDanglingReply      = errors.New("parent id and reply-to name must be set together")
)

// Comment is a single chat entry. ID and CreatedAt are assigned by the
// backend; a comment composed locally carries neither until it comes
// back on the live topic.
type Comment struct {
	ID          *int64 `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
	Content     string `json:"content"`
	CreatedAt   string `json:"createdAt,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
	ReplyTo     string `json:"replyTo,omitempty"`

	// IPAddress is populated by the backend and only present on frames
	// delivered to an operator session.
	IPAddress     string `json:"ipAddress,omitempty"`
	IsAdmin       bool   `json:"isAdmin,omitempty"`
	AdminUsername string `json:"adminUsername,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	City      string   `json:"city,omitempty"`
	Address   string   `json:"address,omitempty"`
}

// Key identifies a comment for deduplication and removal when no
// numeric id is available: the (displayName, createdAt) pair.
type Key struct {
	DisplayName string
	CreatedAt   string
}

// Key returns the comment's natural identity.
func (c Comment) Key() Key {
	return Key{DisplayName: c.DisplayName, CreatedAt: c.CreatedAt}
}

// Validate checks the field constraints of a comment about to be
// submitted. Name and content are validated after trimming.
func (c Comment) Validate() error {
	name := strings.TrimSpace(c.DisplayName)
	if name == "" {
		return ErrEmptyDisplayName
	}
	if len([]rune(name)) > MaxDisplayNameLength {
		return ErrDisplayNameTooLong
	}

	content := strings.TrimSpace(c.Content)
	if content == "" {
		return ErrEmptyContent
	}
	if len([]rune(content)) > MaxContentLength {
		return ErrContentTooLong
	}

	if (c.ParentID == "") != (c.ReplyTo == "") {
		return ErrDanglingReply
	}
	return nil
}

// Stamp assigns a backend-formatted creation timestamp. Used by the
// stub broker when accepting a comment.
func (c *Comment) Stamp(t time.Time) {
	c.CreatedAt = t.Format(CreatedAtFormat)
}
