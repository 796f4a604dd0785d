package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/waynekhien/social-media/internal/config"
	"github.com/waynekhien/social-media/internal/hub"
	"github.com/waynekhien/social-media/internal/registry"
	"github.com/waynekhien/social-media/pkg/log"
	"github.com/waynekhien/social-media/pkg/middleware"
)

// WSHandler upgrades authenticated clients onto the delivery channel and
// keeps the connection registry in step with the hub.
type WSHandler struct {
	hub      *hub.Hub
	registry registry.Registry
	cfg      config.SocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, reg registry.Registry, cfg config.SocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		registry: reg,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

// HandleWebSocket handles GET /ws.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, userID, h.hub, conn, h.cfg)

	h.hub.Register(client)
	if err := h.registry.Register(ctx, userID, clientID); err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to register connection")
	}

	go client.WritePump()
	go client.ReadPump(h.onDisconnect)
}

func (h *WSHandler) onDisconnect(c *hub.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.registry.Deregister(ctx, c.UserID, c.ID); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldUserID, c.UserID).Msg("failed to deregister connection")
	}
}
