// Package stub is a single-process development stand-in for the chat
// broker and backend API: a websocket broker endpoint, auth, stream
// metadata and the admin block list. It exists so the client can be run
// and integration-tested without the production backend.
package stub

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vietstream/livechat/internal/auth"
	"github.com/vietstream/livechat/internal/chat"
)

// Config holds stub server settings.
type Config struct {
	Addr          string
	AdminUsername string
	AdminPassword string
	JWTSecret     string
	// CommentCooldown is the per-address ingress rate limit. Zero
	// disables it (tests).
	CommentCooldown time.Duration
	// Stream is the broadcast metadata served by /api/stream/current.
	Stream chat.Stream

	adminPasswordHash string
}

// DefaultConfig returns stub settings suitable for local development.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		AdminUsername:   "admin",
		AdminPassword:   "admin123",
		JWTSecret:       "dev-secret-change-me",
		CommentCooldown: 3 * time.Second,
		Stream: chat.Stream{
			ID:     1,
			Title:  "Development stream",
			Status: chat.StatusLive,
			HLSURL: "http://localhost:8090/hls/stream.m3u8",
		},
	}
}

// Server bundles the hub and the HTTP surface.
type Server struct {
	cfg    Config
	hub    *Hub
	router *gin.Engine
	log    *zerolog.Logger
}

// New builds a stub server.
func New(cfg Config, logger *zerolog.Logger) (*Server, error) {
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	cfg.adminPasswordHash = hash

	jwtCfg := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   "livechat-stub",
		Audience: "livechat",
		TTL:      24 * time.Hour,
	}

	blocklist := NewBlocklist()
	hub := NewHub(blocklist, cfg.AdminUsername, cfg.CommentCooldown, logger)

	h := &handlers{
		cfg:       cfg,
		jwtCfg:    jwtCfg,
		blocklist: blocklist,
		stream:    cfg.Stream,
		log:       logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), loggerMiddleware(logger))

	router.GET("/ws", gin.WrapH(newWSHandler(hub, jwtCfg, logger)))

	apiGroup := router.Group("/api")
	apiGroup.POST("/auth/login", h.Login)
	apiGroup.POST("/auth/logout", h.Logout)
	apiGroup.GET("/stream/current", h.CurrentStream)

	admin := apiGroup.Group("/admin", authMiddleware(jwtCfg, logger))
	admin.GET("/blocked-ips", h.ListBlockedIPs)
	admin.POST("/blocked-ips/block", h.BlockIP)
	admin.DELETE("/blocked-ips/:id", h.UnblockIP)

	return &Server{cfg: cfg, hub: hub, router: router, log: logger}, nil
}

// Handler exposes the HTTP surface, for tests that mount the stub on an
// ephemeral listener.
func (s *Server) Handler() stdhttp.Handler {
	return s.router
}

// RunHub starts the hub loop; it owns all broker state until ctx ends.
func (s *Server) RunHub(ctx context.Context) {
	s.hub.Run(ctx)
}

// Run serves HTTP and blocks until context cancellation or a fatal
// listen error.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)

	server := &stdhttp.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	s.log.Info().Str("addr", s.cfg.Addr).Msg("stub server listening")

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
