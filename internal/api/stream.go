package api

import (
	"context"
	"net/http"

	"github.com/vietstream/livechat/internal/chat"
)

// CurrentStream fetches the broadcast metadata. The stream's status
// feeds the presence estimator.
func (c *Client) CurrentStream(ctx context.Context) (chat.Stream, error) {
	var stream chat.Stream
	err := c.do(ctx, http.MethodGet, "/stream/current", "", nil, &stream)
	return stream, err
}
