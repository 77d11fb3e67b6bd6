package stub

import (
	"context"
	"encoding/json"
	"net"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vietstream/livechat/internal/auth"
	"github.com/vietstream/livechat/internal/proto"
)

// wsHandler upgrades HTTP connections and bridges them to hub clients.
type wsHandler struct {
	hub    *Hub
	jwtCfg *auth.JWTConfig
	log    *zerolog.Logger
}

func newWSHandler(hub *Hub, jwtCfg *auth.JWTConfig, logger *zerolog.Logger) stdhttp.Handler {
	return &wsHandler{hub: hub, jwtCfg: jwtCfg, log: logger}
}

func (h *wsHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	c := &client{
		id:     uuid.NewString(),
		ip:     remoteIP(r),
		admin:  h.isOperator(r),
		topics: make(map[string]struct{}),
		frames: make(chan proto.Frame, 32),
	}
	h.hub.register <- c
	defer func() { h.hub.unregister <- c }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, c)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, c)
	}()

	<-errCh
	cancel() // stop the other goroutine
	<-errCh

	conn.Close(websocket.StatusNormalClosure, "closing")
}

// isOperator checks the optional bearer token carried as a query
// parameter. Operator connections receive comment source addresses.
func (h *wsHandler) isOperator(r *stdhttp.Request) bool {
	token := r.URL.Query().Get("token")
	if token == "" {
		return false
	}
	claims, err := auth.ValidateToken(h.jwtCfg, token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws token rejected")
		return false
	}
	return claims.Role == auth.RoleAdmin
}

func (h *wsHandler) readLoop(ctx context.Context, conn *websocket.Conn, c *client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var frame proto.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.log.Warn().Err(err).Str("client_id", c.id).Msg("malformed frame dropped")
			continue
		}
		select {
		case h.hub.inbound <- inbound{from: c, frame: frame}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *wsHandler) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) error {
	for {
		select {
		case frame := <-c.frames:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Error().Err(err).Str("client_id", c.id).Msg("write ws frame")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func remoteIP(r *stdhttp.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
