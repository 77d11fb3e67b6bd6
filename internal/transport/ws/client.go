// Package ws owns the client side of the realtime channel: one logical
// connection to the chat broker, reconnection, heartbeats, topic
// subscriptions and the fan-out of decoded events to the consumer.
package ws

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vietstream/livechat/internal/chat"
	"github.com/vietstream/livechat/internal/proto"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Features selects which optional topics a session engages. The live
// comment topic is always subscribed.
type Features struct {
	ViewerCount    bool
	History        bool
	CommentDeleted bool
}

// Options configures the transport client.
type Options struct {
	// URL is the broker websocket endpoint.
	URL string
	// Token, when non-nil, supplies the operator bearer credential
	// appended to the dial URL as the token query parameter. It is
	// re-read on every connection attempt, so an expired credential
	// downgrades the next session instead of poisoning it.
	Token func(ctx context.Context) string
	// ReconnectDelay is the fixed backoff between connection attempts.
	ReconnectDelay time.Duration
	// HeartbeatInterval is the ping cadence while connected.
	HeartbeatInterval time.Duration
	// ViewerCountRefresh is how often the count request is re-issued,
	// independent of the heartbeat.
	ViewerCountRefresh time.Duration
}

// Client maintains the logical broker connection for a page session.
// It is shared by reference with every component that publishes; all
// publishes are fire-and-forget, so no locking discipline is required
// of callers beyond not calling Connect twice without an intervening
// Disconnect.
type Client struct {
	opts   Options
	log    *zerolog.Logger
	events chan chat.Event

	mu       sync.Mutex
	conn     *websocket.Conn // nil while disconnected
	handlers map[string]func(body string)
	feats    Features
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a transport client. The logger must not be nil.
func New(opts Options, logger *zerolog.Logger) *Client {
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 4 * time.Second
	}
	if opts.ViewerCountRefresh == 0 {
		opts.ViewerCountRefresh = 30 * time.Second
	}
	return &Client{
		opts:     opts,
		log:      logger,
		events:   make(chan chat.Event, 64),
		handlers: make(map[string]func(body string)),
	}
}

// Events is the tagged-event channel consumed by the dispatch loop.
// The channel stays open across reconnects and Disconnect.
func (c *Client) Events() <-chan chat.Event {
	return c.events
}

// Connect starts the connection loop: dial, subscribe, read, and on any
// drop retry forever with the fixed backoff. Idempotent per session; a
// second call without Disconnect is a no-op.
func (c *Client) Connect(ctx context.Context, feats Features) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		c.log.Warn().Msg("transport already connected, ignoring connect")
		return
	}
	c.started = true
	c.feats = feats

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx)
}

// Disconnect stops timers, deactivates the connection and waits for the
// connection loop to exit. Idempotent, and safe when never connected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// Handle registers a callback for an auxiliary topic, for realtime
// traffic that is not chat (match info panels and the like). The topic
// is subscribed on the current connection if one is up, and
// resubscribed on every reconnect.
func (c *Client) Handle(topic string, fn func(body string)) {
	c.mu.Lock()
	c.handlers[topic] = fn
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		subCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		c.subscribe(subCtx, conn, topic)
	}
}

// SendComment publishes a composed comment. Silently dropped while
// disconnected; callers must not assume delivery.
func (c *Client) SendComment(ctx context.Context, comment chat.Comment) {
	c.send(ctx, proto.DestComment, comment)
}

// DeleteComment publishes a moderated removal request; only the
// comment's identity fields are required. Silently dropped while
// disconnected.
func (c *Client) DeleteComment(ctx context.Context, comment chat.Comment) {
	c.send(ctx, proto.DestCommentDelete, comment)
}

// Publish writes a raw frame to any destination. This is the deliberate
// abstraction leak for auxiliary realtime panels; chat traffic should
// go through SendComment and DeleteComment.
func (c *Client) Publish(ctx context.Context, destination string, payload any) error {
	body, err := proto.EncodeBody(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.log.Debug().Str("destination", destination).Msg("publish while disconnected, dropped")
		return nil
	}
	return wsjson.Write(ctx, conn, proto.Frame{
		Type:        proto.FrameSend,
		Destination: destination,
		Body:        body,
	})
}

// Connected reports whether a broker connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) send(ctx context.Context, destination string, comment chat.Comment) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.log.Debug().Str("destination", destination).Msg("not connected, comment dropped")
		return
	}

	body, err := proto.EncodeBody(comment)
	if err != nil {
		c.log.Error().Err(err).Msg("encode comment")
		return
	}
	if err := wsjson.Write(ctx, conn, proto.Frame{
		Type:        proto.FrameSend,
		Destination: destination,
		Body:        body,
	}); err != nil {
		// Best-effort delivery: the recovery unit is the connection.
		c.log.Warn().Err(err).Str("destination", destination).Msg("publish failed")
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("broker connection lost")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// session runs one broker connection from dial to drop.
func (c *Client) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.dialURL(dialCtx), nil)
	cancel()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	feats := c.feats
	auxTopics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		auxTopics = append(auxTopics, topic)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "closing")
	}()

	c.log.Info().Str("url", c.opts.URL).Msg("broker connected")

	// Subscriptions are per-connection state and re-established on
	// every successful (re)connect.
	c.subscribe(ctx, conn, proto.TopicLiveComments)
	if feats.ViewerCount {
		c.subscribe(ctx, conn, proto.TopicViewerCount)
		// Subscribing alone does not guarantee an initial value.
		c.request(ctx, conn, proto.DestViewerCountReq)
	}
	if feats.CommentDeleted {
		c.subscribe(ctx, conn, proto.TopicCommentDeleted)
	}
	if feats.History {
		c.subscribe(ctx, conn, proto.TopicCommentsHistory)
		// One-shot snapshot, requested once per connection.
		c.request(ctx, conn, proto.DestCommentsHistory)
	}
	for _, topic := range auxTopics {
		c.subscribe(ctx, conn, topic)
	}

	heartbeat := time.NewTicker(c.opts.HeartbeatInterval)
	refresh := time.NewTicker(c.opts.ViewerCountRefresh)
	// Timer teardown happens before the deferred connection close so a
	// tick can never fire into a dead connection.
	defer refresh.Stop()
	defer heartbeat.Stop()

	// The read goroutine lives exactly as long as this session: a
	// ping or timer failure below cancels it even though the
	// connection loop's context keeps running.
	sessCtx, sessCancel := context.WithCancel(ctx)
	defer sessCancel()

	frames := make(chan proto.Frame)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.Read(sessCtx)
			if err != nil {
				readErr <- err
				return
			}
			var frame proto.Frame
			if err := json.Unmarshal(data, &frame); err != nil {
				// Malformed envelope: drop the frame, keep the
				// connection.
				c.log.Warn().Err(err).Msg("malformed frame dropped")
				continue
			}
			select {
			case frames <- frame:
			case <-sessCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case frame := <-frames:
			c.dispatch(ctx, frame)
		case <-heartbeat.C:
			if err := conn.Ping(ctx); err != nil {
				return err
			}
		case <-refresh.C:
			if feats.ViewerCount {
				c.request(ctx, conn, proto.DestViewerCountReq)
			}
		}
	}
}

// dialURL is the endpoint plus the operator credential, when one is
// currently held. The credential never appears in logs.
func (c *Client) dialURL(ctx context.Context) string {
	if c.opts.Token == nil {
		return c.opts.URL
	}
	token := c.opts.Token(ctx)
	if token == "" {
		return c.opts.URL
	}
	sep := "?"
	if strings.Contains(c.opts.URL, "?") {
		sep = "&"
	}
	return c.opts.URL + sep + "token=" + url.QueryEscape(token)
}

func (c *Client) subscribe(ctx context.Context, conn *websocket.Conn, topic string) {
	err := wsjson.Write(ctx, conn, proto.Frame{
		Type:        proto.FrameSubscribe,
		ID:          uuid.NewString(),
		Destination: topic,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("topic", topic).Msg("subscribe failed")
	}
}

func (c *Client) request(ctx context.Context, conn *websocket.Conn, destination string) {
	err := wsjson.Write(ctx, conn, proto.Frame{
		Type:        proto.FrameSend,
		Destination: destination,
		Body:        "{}",
	})
	if err != nil {
		c.log.Warn().Err(err).Str("destination", destination).Msg("request failed")
	}
}

// dispatch decodes one broker frame into a domain event. Decode
// failures are logged and the frame dropped; they never tear down the
// subscription or the connection.
func (c *Client) dispatch(ctx context.Context, frame proto.Frame) {
	switch frame.Type {
	case proto.FrameMessage:
	case proto.FrameError:
		c.log.Error().Str("body", frame.Body).Msg("broker reported error")
		return
	default:
		c.log.Debug().Str("type", frame.Type).Msg("unexpected frame type")
		return
	}

	switch frame.Destination {
	case proto.TopicLiveComments:
		comment, err := proto.DecodeComment(frame.Body)
		if err != nil {
			c.log.Warn().Err(err).Msg("live comment dropped")
			return
		}
		c.emit(ctx, chat.Event{Kind: chat.EventComment, Comment: comment})

	case proto.TopicViewerCount:
		count, err := proto.DecodeViewerCount(frame.Body)
		if err != nil {
			c.log.Warn().Err(err).Msg("viewer count dropped")
			return
		}
		c.emit(ctx, chat.Event{Kind: chat.EventViewerCount, Count: count})

	case proto.TopicCommentDeleted:
		comment, err := proto.DecodeComment(frame.Body)
		if err != nil {
			c.log.Warn().Err(err).Msg("delete broadcast dropped")
			return
		}
		c.emit(ctx, chat.Event{Kind: chat.EventCommentDeleted, Comment: comment})

	case proto.TopicCommentsHistory:
		comments, dropped, err := proto.DecodeHistory(frame.Body)
		if err != nil {
			c.log.Warn().Err(err).Msg("history snapshot dropped")
			return
		}
		if dropped > 0 {
			c.log.Warn().Int("dropped", dropped).Msg("history records skipped")
		}
		c.emit(ctx, chat.Event{Kind: chat.EventHistory, Comments: comments, Dropped: dropped})

	default:
		c.mu.Lock()
		handler := c.handlers[frame.Destination]
		c.mu.Unlock()
		if handler != nil {
			handler(frame.Body)
			return
		}
		c.log.Debug().Str("destination", frame.Destination).Msg("frame for unknown topic dropped")
	}
}

func (c *Client) emit(ctx context.Context, event chat.Event) {
	select {
	case c.events <- event:
	case <-ctx.Done():
	}
}
