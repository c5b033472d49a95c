package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mindfulai/naina/internal/chat"
	"github.com/mindfulai/naina/internal/crisis"
	"github.com/mindfulai/naina/internal/session"
	"github.com/mindfulai/naina/internal/transcript"
)

// chatRequest accepts any JSON value for message; non-strings read as empty.
type chatRequest struct {
	Message any    `json:"message"`
	UserID  string `json:"user_id"`
}

type analyticsResponse struct {
	transcript.Analytics
	Session *session.Counters `json:"session,omitempty"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	reply, err := s.deps.Chat.Handle(c.Request.Context(), chat.Input{
		UserID:  req.UserID,
		Message: crisis.MessageText(req.Message),
	})
	if errors.Is(err, chat.ErrEmptyMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message required"})
		return
	}
	if err != nil {
		s.logger.Error("chat turn failed", "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":             "healthy",
		"version":            Version,
		"mode":               "conversational",
		"pattern_count":      s.deps.Library.Len(),
		"pattern_hash":       s.deps.Library.ComputeHash(),
		"resource_threshold": s.deps.Chat.Policy().ResourceThreshold(),
	}
	if s.deps.Sessions != nil {
		n, err := s.deps.Sessions.Len(c.Request.Context())
		if err != nil {
			body["status"] = "degraded"
			body["session_store"] = "unavailable"
		} else {
			body["active_conversations"] = n
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"resources": crisis.Resources()})
}

func (s *Server) transcripts(c *gin.Context) (transcript.Store, bool) {
	store := s.deps.Chat.Transcripts()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "conversation history is disabled"})
		return nil, false
	}
	return store, true
}

func (s *Server) handleHistory(c *gin.Context) {
	store, ok := s.transcripts(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(transcript.DefaultHistoryLimit)))
	msgs, err := store.History(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		s.internalError(c, "load history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("user"), "messages": msgs})
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	store, ok := s.transcripts(c)
	if !ok {
		return
	}
	user := c.Param("user")
	if err := store.Delete(c.Request.Context(), user); err != nil {
		s.internalError(c, "delete transcript", err)
		return
	}
	if err := s.deps.Chat.ResetSession(c.Request.Context(), user); err != nil {
		s.logger.Warn("failed to reset session counters", "error", err)
	}
	if s.deps.Events != nil {
		if _, err := s.deps.Events.DeleteCrisisEvents(c.Request.Context(), session.NormalizeUserID(user)); err != nil {
			s.logger.Warn("failed to delete crisis events", "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAnalytics(c *gin.Context) {
	store, ok := s.transcripts(c)
	if !ok {
		return
	}
	user := c.Param("user")
	a, err := store.Analytics(c.Request.Context(), user)
	if err != nil {
		s.internalError(c, "load analytics", err)
		return
	}

	out := analyticsResponse{Analytics: a}
	if counters, err := s.deps.Chat.Counters(c.Request.Context(), user); err == nil {
		out.Session = &counters
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleExport(c *gin.Context) {
	store, ok := s.transcripts(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "json")
	data, err := store.Export(c.Request.Context(), c.Param("user"), format)
	switch {
	case errors.Is(err, transcript.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	case errors.Is(err, transcript.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.internalError(c, "export transcript", err)
		return
	}

	contentType := "application/json"
	switch format {
	case "txt", "text":
		contentType = "text/plain; charset=utf-8"
	case "yaml", "yml":
		contentType = "application/yaml"
	}
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.deps.Events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "crisis audit log is disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := s.deps.Events.ListCrisisEvents(c.Request.Context(), c.Query("user"), limit)
	if err != nil {
		s.internalError(c, "list crisis events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error(op+" failed", "error", err, "request_id", c.GetString("request_id"))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
