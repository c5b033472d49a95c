package httpapi

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mindfulai/naina/internal/chat"
	"github.com/mindfulai/naina/internal/crisis"
)

const (
	wsReadLimit = 64 << 10
	wsPongWait  = 60 * time.Second
	wsWriteWait = 10 * time.Second
)

type wsMessage struct {
	Message any    `json:"message"`
	UserID  string `json:"user_id"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	origins := s.cfg.AllowedOrigins
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}

// handleWebSocket runs chat turns over one connection. The user id comes from
// the user_id query parameter unless a frame carries its own.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	defaultUser := c.Query("user_id")
	ctx := c.Request.Context()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		user := msg.UserID
		if user == "" {
			user = defaultUser
		}
		reply, err := s.deps.Chat.Handle(ctx, chat.Input{UserID: user, Message: crisis.MessageText(msg.Message)})

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			err = conn.WriteJSON(gin.H{"error": "Message required"})
		case err != nil:
			s.logger.Error("websocket chat turn failed", "error", err)
			err = conn.WriteJSON(gin.H{"error": "Failed to process message"})
		default:
			err = conn.WriteJSON(reply)
		}
		if err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}
