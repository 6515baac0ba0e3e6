package realtime

import (
	"context"
	"net/http"
	"time"

	"salespilot/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// TokenValidator checks the JWT passed in the connect query string.
type TokenValidator interface {
	ValidateJWTToken(ctx context.Context, token string) (uuid.UUID, error)
}

type Handler struct {
	hub       *Hub
	validator TokenValidator
	upgrader  websocket.Upgrader
	logger    *observability.Logger
}

func NewHandler(hub *Hub, validator TokenValidator, logger *observability.Logger) Handler {
	return Handler{
		hub:       hub,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser websocket clients cannot set an Authorization
			// header, so auth happens via the token query parameter and
			// origin checking is left to the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleConnect upgrades the request and streams the user's events until
// the client goes away.
func (h *Handler) HandleConnect(c *gin.Context) {
	ctx := c.Request.Context()

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token query parameter is required"})
		return
	}
	userID, err := h.validator.ValidateJWTToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(ctx, "failed to upgrade websocket", err)
		return
	}

	sub := h.hub.Subscribe(userID)
	go h.writeLoop(ctx, conn, sub)
	go h.readLoop(conn, sub)
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.Events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Warn(ctx, "failed to write realtime event")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so pong handlers run, and tears the
// subscription down when the peer disconnects.
func (h *Handler) readLoop(conn *websocket.Conn, sub *Subscriber) {
	defer sub.Close()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
