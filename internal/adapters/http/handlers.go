package httpadapter

import (
	"iter"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PabloGalante/chatrelay/internal/app/conversation"
	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ─────────────────────────────────────────────
// Chats
// ─────────────────────────────────────────────

func (s *Server) handleCreateChat(c *gin.Context) {
	chat, err := s.conv.CreateChat(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": statusSuccess,
		"data":   toChatResponse(chat),
	})
}

func (s *Server) handleListChats(c *gin.Context) {
	summaries, err := s.conv.ListChats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	data := make([]chatSummaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		data = append(data, toChatSummaryResponse(sum))
	}

	c.JSON(http.StatusOK, gin.H{
		"status": statusSuccess,
		"data":   data,
		"total":  len(data),
	})
}

func (s *Server) handleGetChat(c *gin.Context) {
	chat, err := s.conv.GetChat(c.Request.Context(), domain.ChatID(c.Param("chat_id")))
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, toChatResponse(chat))
}

// ─────────────────────────────────────────────
// Messages
// ─────────────────────────────────────────────

func (s *Server) handleListMessages(c *gin.Context) {
	chatID := domain.ChatID(c.Param("chat_id"))

	msgs, err := s.conv.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"data":    toMessagesResponse(msgs),
		"total":   len(msgs),
		"chat_id": chatID,
	})
}

func (s *Server) handleGetMessage(c *gin.Context) {
	msg, err := s.conv.GetMessage(c.Request.Context(), domain.MessageID(c.Param("message_id")))
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, toMessageResponse(msg))
}

// handleStreamTurn persists the user message and streams the reply as SSE.
// Failures before the first frame get a JSON error response instead.
func (s *Server) handleStreamTurn(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	turn, err := s.conv.StreamTurn(c.Request.Context(), domain.ChatID(c.Param("chat_id")), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	streamEvents(c, turn.Events())
}

func (s *Server) handleComplete(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	events, err := s.conv.StreamCompletion(c.Request.Context(), req.Content, nil)
	if err != nil {
		writeError(c, err)
		return
	}

	streamEvents(c, events)
}

func (s *Server) handleCompleteWithContext(c *gin.Context) {
	var req contextMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	events, err := s.conv.StreamCompletion(c.Request.Context(), req.Content, req.Context)
	if err != nil {
		writeError(c, err)
		return
	}

	streamEvents(c, events)
}

// streamEvents writes events until the stream ends or the client leaves.
// Leaving early does not stop the turn; the producer keeps draining.
func streamEvents(c *gin.Context, events iter.Seq[conversation.Event]) {
	ctx := c.Request.Context()
	log := observability.LoggerFromContext(ctx)

	sse, err := newSSEWriter(c.Writer)
	if err != nil {
		// drain so a persisted turn still completes
		for range events {
		}
		writeError(c, err)
		return
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	for ev := range events {
		if ctx.Err() != nil {
			log.Info("client disconnected, dropping remaining events")
			return
		}
		if err := sse.WriteEvent(ev); err != nil {
			log.Warn("failed to write event", "error", err)
			return
		}
	}
}

// ─────────────────────────────────────────────
// Metrics
// ─────────────────────────────────────────────

func (s *Server) handleAnalyze(c *gin.Context) {
	analysis, err := s.analysis.Analyze(c.Request.Context(), domain.ChatID(c.Param("chat_id")))
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, toAnalysisResponse(analysis))
}
