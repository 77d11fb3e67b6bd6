package stub

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vietstream/livechat/internal/api"
	"github.com/vietstream/livechat/internal/auth"
	"github.com/vietstream/livechat/internal/chat"
)

// ErrorResponse is the error body shape clients decode.
type ErrorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	cfg       Config
	jwtCfg    *auth.JWTConfig
	blocklist *Blocklist
	stream    chat.Stream
	log       *zerolog.Logger
}

// Login handles POST /api/auth/login.
func (h *handlers) Login(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Username != h.cfg.AdminUsername ||
		auth.ComparePassword(h.cfg.adminPasswordHash, req.Password) != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(h.jwtCfg, 1, req.Username, auth.RoleAdmin)
	if err != nil {
		h.log.Error().Err(err).Msg("generate token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, api.LoginResponse{
		Token: token,
		User:  api.User{ID: 1, Username: req.Username, Role: auth.RoleAdmin},
	})
}

// Logout handles POST /api/auth/logout. Token invalidation is not
// tracked here; the stub accepts and forgets.
func (h *handlers) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// CurrentStream handles GET /api/stream/current.
func (h *handlers) CurrentStream(c *gin.Context) {
	c.JSON(http.StatusOK, h.stream)
}

// ListBlockedIPs handles GET /api/admin/blocked-ips.
func (h *handlers) ListBlockedIPs(c *gin.Context) {
	c.JSON(http.StatusOK, h.blocklist.All())
}

// BlockIP handles POST /api/admin/blocked-ips/block.
func (h *handlers) BlockIP(c *gin.Context) {
	ip := c.Query("ipAddress")
	if ip == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "ipAddress is required"})
		return
	}
	reason := c.Query("reason")
	if reason == "" {
		reason = "Spam or inappropriate behavior"
	}
	adminUsername := c.Query("adminUsername")

	entry, ok := h.blocklist.Block(ip, reason, adminUsername)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "IP is already blocked"})
		return
	}
	h.log.Info().Str("ip", ip).Str("by", adminUsername).Msg("ip blocked")
	c.JSON(http.StatusOK, entry)
}

// UnblockIP handles DELETE /api/admin/blocked-ips/:id.
func (h *handlers) UnblockIP(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
		return
	}
	if !h.blocklist.Unblock(id) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "IP block not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "IP address unblocked successfully"})
}

// authMiddleware validates the bearer token on admin routes.
func authMiddleware(jwtCfg *auth.JWTConfig, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(jwtCfg, parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}
		if claims.Role != auth.RoleAdmin {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin role required"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// loggerMiddleware logs HTTP requests after completion.
func loggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
