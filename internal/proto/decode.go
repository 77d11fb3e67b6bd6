package proto

import (
	"encoding/json"
	"fmt"

	"github.com/vietstream/livechat/internal/chat"
)

// Decoding at the transport boundary fails closed: a body that does not
// match the expected shape yields an error and the frame is dropped by
// the caller. It never tears down the connection.

// ViewerCountPayload is the body of a viewer-count frame.
type ViewerCountPayload struct {
	Count int `json:"count"`
}

// DecodeComment decodes a single encoded comment body.
func DecodeComment(body string) (chat.Comment, error) {
	var c chat.Comment
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return chat.Comment{}, fmt.Errorf("decode comment: %w", err)
	}
	if c.DisplayName == "" {
		return chat.Comment{}, fmt.Errorf("decode comment: missing display name")
	}
	return c, nil
}

// DecodeViewerCount decodes a viewer-count body.
func DecodeViewerCount(body string) (int, error) {
	var p ViewerCountPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return 0, fmt.Errorf("decode viewer count: %w", err)
	}
	if p.Count < 0 {
		return 0, fmt.Errorf("decode viewer count: negative count %d", p.Count)
	}
	return p.Count, nil
}

// DecodeHistory decodes a comments-history body: a JSON array of
// individually encoded comment strings. Records that fail to decode are
// skipped; the second return value reports how many were dropped.
func DecodeHistory(body string) ([]chat.Comment, int, error) {
	var raw []string
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, 0, fmt.Errorf("decode history envelope: %w", err)
	}

	comments := make([]chat.Comment, 0, len(raw))
	dropped := 0
	for _, enc := range raw {
		c, err := DecodeComment(enc)
		if err != nil {
			dropped++
			continue
		}
		comments = append(comments, c)
	}
	return comments, dropped, nil
}

// EncodeBody marshals a payload into the string form frames carry.
func EncodeBody(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	return string(data), nil
}

// EncodeHistory builds a history body from comments, encoding each
// record individually inside the envelope array.
func EncodeHistory(comments []chat.Comment) (string, error) {
	encoded := make([]string, 0, len(comments))
	for _, c := range comments {
		body, err := EncodeBody(c)
		if err != nil {
			return "", err
		}
		encoded = append(encoded, body)
	}
	return EncodeBody(encoded)
}
