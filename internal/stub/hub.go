package stub

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vietstream/livechat/internal/chat"
	"github.com/vietstream/livechat/internal/proto"
)

const historyCap = 50

// client is one websocket connection as seen by the hub.
type client struct {
	id     string
	ip     string
	admin  bool
	topics map[string]struct{}
	frames chan proto.Frame
}

func (c *client) deliver(frame proto.Frame) {
	select {
	case c.frames <- frame:
	default:
		// Drop if slow consumer.
	}
}

type inbound struct {
	from  *client
	frame proto.Frame
}

// Hub is the broker core: it tracks connections, fans frames out to
// topic subscribers, keeps the comment history ring and the live viewer
// count. All state is owned by the Run goroutine.
type Hub struct {
	log       *zerolog.Logger
	blocklist *Blocklist
	// adminUsername is the one identity whose comments get the
	// server-computed isAdmin flag.
	adminUsername string
	// commentCooldown is the per-address ingress rate limit. Zero
	// disables it.
	commentCooldown time.Duration

	register   chan *client
	unregister chan *client
	inbound    chan inbound

	clients     map[*client]struct{}
	history     []chat.Comment
	nextID      int64
	lastComment map[string]time.Time
	matchInfo   string // last published match info body, empty when cleared
}

// NewHub builds a hub. The blocklist is shared with the HTTP admin
// surface.
func NewHub(blocklist *Blocklist, adminUsername string, commentCooldown time.Duration, logger *zerolog.Logger) *Hub {
	return &Hub{
		log:             logger,
		blocklist:       blocklist,
		adminUsername:   adminUsername,
		commentCooldown: commentCooldown,
		register:        make(chan *client),
		unregister:      make(chan *client),
		inbound:         make(chan inbound, 32),
		clients:         make(map[*client]struct{}),
		lastComment:     make(map[string]time.Time),
	}
}

// Run owns all hub state until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.broadcastViewerCount()
		case c := <-h.unregister:
			delete(h.clients, c)
			h.broadcastViewerCount()
		case in := <-h.inbound:
			h.handle(in.from, in.frame)
		}
	}
}

func (h *Hub) handle(from *client, frame proto.Frame) {
	switch frame.Type {
	case proto.FrameSubscribe:
		from.topics[frame.Destination] = struct{}{}
	case proto.FrameUnsubscribe:
		delete(from.topics, frame.Destination)
	case proto.FrameSend:
		h.handleSend(from, frame)
	default:
		h.log.Debug().Str("type", frame.Type).Msg("unexpected frame type")
	}
}

func (h *Hub) handleSend(from *client, frame proto.Frame) {
	switch frame.Destination {
	case proto.DestComment:
		h.acceptComment(from, frame.Body)
	case proto.DestCommentDelete:
		h.deleteComment(frame.Body)
	case proto.DestViewerCountReq:
		h.broadcastViewerCount()
	case proto.DestCommentsHistory:
		h.sendHistory(from)
	case proto.DestMatchInfoUpdate:
		h.matchInfo = frame.Body
		h.broadcast(proto.TopicMatchInfo, frame.Body)
	case proto.DestMatchInfoClear:
		h.matchInfo = ""
		h.broadcast(proto.TopicMatchInfo, "{}")
	case proto.DestMatchInfoRequest:
		if h.matchInfo != "" {
			from.deliver(proto.Frame{
				Type:        proto.FrameMessage,
				Destination: proto.TopicMatchInfo,
				Body:        h.matchInfo,
			})
		}
	default:
		h.log.Debug().Str("destination", frame.Destination).Msg("send to unknown destination dropped")
	}
}

// acceptComment is the ingress path: validation, block list, rate
// limit, server-side identity assignment, then broadcast.
func (h *Hub) acceptComment(from *client, body string) {
	comment, err := proto.DecodeComment(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("malformed comment rejected")
		return
	}
	if err := comment.Validate(); err != nil {
		h.log.Warn().Err(err).Msg("invalid comment rejected")
		return
	}
	if h.blocklist.Blocked(from.ip) {
		h.log.Info().Str("ip", from.ip).Msg("comment from blocked address rejected")
		return
	}
	if h.commentCooldown > 0 {
		if last, ok := h.lastComment[from.ip]; ok && time.Since(last) < h.commentCooldown {
			h.log.Debug().Str("ip", from.ip).Msg("comment rate limited")
			return
		}
		h.lastComment[from.ip] = time.Now()
	}

	h.nextID++
	id := h.nextID
	comment.ID = &id
	comment.Stamp(time.Now())
	comment.IPAddress = from.ip
	// isAdmin is computed here and only here: the client-sent
	// adminUsername is checked against the configured admin identity.
	comment.IsAdmin = comment.AdminUsername != "" && comment.AdminUsername == h.adminUsername

	h.history = append(h.history, comment)
	if len(h.history) > historyCap {
		h.history = h.history[len(h.history)-historyCap:]
	}

	for c := range h.clients {
		if _, ok := c.topics[proto.TopicLiveComments]; !ok {
			continue
		}
		encoded, err := proto.EncodeBody(h.visibleTo(c, comment))
		if err != nil {
			continue
		}
		c.deliver(proto.Frame{
			Type:        proto.FrameMessage,
			Destination: proto.TopicLiveComments,
			Body:        encoded,
		})
	}
}

func (h *Hub) deleteComment(body string) {
	comment, err := proto.DecodeComment(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("malformed delete rejected")
		return
	}

	kept := h.history[:0]
	for _, held := range h.history {
		if held.DisplayName == comment.DisplayName && held.CreatedAt == comment.CreatedAt {
			continue
		}
		kept = append(kept, held)
	}
	h.history = kept

	encoded, err := proto.EncodeBody(chat.Comment{
		DisplayName: comment.DisplayName,
		Content:     comment.Content,
		CreatedAt:   comment.CreatedAt,
	})
	if err != nil {
		return
	}
	h.broadcast(proto.TopicCommentDeleted, encoded)
}

func (h *Hub) sendHistory(to *client) {
	visible := make([]chat.Comment, 0, len(h.history))
	for _, c := range h.history {
		visible = append(visible, h.visibleTo(to, c))
	}
	body, err := proto.EncodeHistory(visible)
	if err != nil {
		h.log.Error().Err(err).Msg("encode history")
		return
	}
	to.deliver(proto.Frame{
		Type:        proto.FrameMessage,
		Destination: proto.TopicCommentsHistory,
		Body:        body,
	})
}

func (h *Hub) broadcastViewerCount() {
	body, err := proto.EncodeBody(proto.ViewerCountPayload{Count: len(h.clients)})
	if err != nil {
		return
	}
	h.broadcast(proto.TopicViewerCount, body)
}

func (h *Hub) broadcast(topic, body string) {
	frame := proto.Frame{
		Type:        proto.FrameMessage,
		Destination: topic,
		Body:        body,
	}
	for c := range h.clients {
		if _, ok := c.topics[topic]; ok {
			c.deliver(frame)
		}
	}
}

// visibleTo strips the source address for non-operator connections.
func (h *Hub) visibleTo(c *client, comment chat.Comment) chat.Comment {
	if c.admin {
		return comment
	}
	comment.IPAddress = ""
	return comment
}
