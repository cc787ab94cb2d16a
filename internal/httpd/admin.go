package httpd

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/matheus3301/wabot/internal/api"
	"github.com/matheus3301/wabot/internal/store"
	"go.uber.org/zap"
)

func (s *Server) getStatus(c *gin.Context) {
	convCount, err := s.db.ConversationCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	msgCount, err := s.db.MessageCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	state := "unknown"
	if s.machine != nil {
		state = string(s.machine.Current())
	}
	c.JSON(http.StatusOK, api.Status{
		State:         state,
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Conversations: convCount,
		Messages:      msgCount,
	})
}

func (s *Server) listConversations(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	convs, err := s.tracker.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	out := make([]api.Conversation, 0, len(convs))
	for _, conv := range convs {
		out = append(out, toAPIConversation(&conv))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listMessages(c *gin.Context) {
	contactID := c.Param("id")
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)
	limit := intQuery(c, "limit", 50)

	msgs, err := s.tracker.History(contactID, before, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	out := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toAPIMessage(&m))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) sendMessage(c *gin.Context) {
	contactID := c.Param("id")
	var req api.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.tracker.RecordOutbound(c.Request.Context(), contactID, req.Text); err != nil {
		s.logger.Warn("operator send failed", zap.Error(err), zap.String("contact", contactID))
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (s *Server) markRead(c *gin.Context) {
	if err := s.tracker.MarkRead(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) deleteConversation(c *gin.Context) {
	deleted, err := s.tracker.Delete(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "q is required"})
		return
	}
	results, err := s.db.SearchMessages(query, c.Query("contact"), intQuery(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	out := make([]api.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, api.SearchResult{Message: toAPIMessage(&r.Message), Snippet: r.Snippet})
	}
	c.JSON(http.StatusOK, out)
}

// streamEvents relays the daemon's event bus as server-sent events until the
// client hangs up.
func (s *Server) streamEvents(c *gin.Context) {
	namespace := c.Query("namespace")
	ch, unsub := s.bus.Subscribe(namespace, 64)
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	// Flush headers now so clients see the stream open before the first event.
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
	c.Stream(func(io.Writer) bool {
		select {
		case evt, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(evt.Kind, api.Event{
				ID:        uuid.NewString(),
				Kind:      evt.Kind,
				Timestamp: evt.Timestamp.UnixMilli(),
				Payload:   evt.Payload,
			})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func toAPIConversation(c *store.Conversation) api.Conversation {
	return api.Conversation{
		ContactID:          c.ContactID,
		DisplayName:        c.DisplayName,
		UnreadCount:        c.UnreadCount,
		LastGreetingAt:     c.LastGreetingAt,
		LastActivityAt:     c.LastActivityAt,
		LastConversationID: c.LastConversationID,
	}
}

func toAPIMessage(m *store.Message) api.Message {
	return api.Message{
		ID:          m.ID,
		ContactID:   m.ContactID,
		MsgID:       m.MsgID,
		Direction:   m.Direction,
		Body:        m.Body,
		MessageType: m.MessageType,
		Status:      m.Status,
		Timestamp:   m.Timestamp,
	}
}
