package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/intelogroup/searchmatic/services"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type sendMessageRequest struct {
	Content     string  `json:"content"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// handleSendMessage is the non-streaming send: one completion call, both
// sides persisted, the exchange returned in the function-endpoint envelope.
func (h *Handler) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := h.chat.SendMessage(c.Request.Context(), ownerID(c), c.Param("id"), req.Content, services.SendOptions{
		Streaming:   false,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		respondFailure(c, statusFromError(err), err.Error())
		return
	}

	respondSuccess(c, result)
}

type chatClientFrame struct {
	Type        string  `json:"type"`
	Content     string  `json:"content"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// handleChatStream upgrades to a websocket and streams assistant replies.
// The client sends {type:"message", content}; the server answers with a
// sequence of {type:"chunk"} frames followed by {type:"done"} carrying the
// persisted exchange, or {type:"error"}.
func (h *Handler) handleChatStream(c *gin.Context) {
	owner := ownerID(c)
	conversationID := c.Param("id")

	conn, err := chatUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("chat websocket upgrade failed", "conversation_id", conversationID, "error", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	sendJSON := func(payload any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(payload)
	}

	sendError := func(message string) {
		_ = sendJSON(gin.H{"type": "error", "error": message})
	}

	for {
		var frame chatClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debugw("chat websocket closed", "conversation_id", conversationID, "error", err)
			}
			return
		}

		switch frame.Type {
		case "message":
		case "ping":
			_ = sendJSON(gin.H{"type": "pong"})
			continue
		default:
			sendError("unsupported frame type: " + frame.Type)
			continue
		}

		if strings.TrimSpace(frame.Content) == "" {
			sendError("content is required")
			continue
		}

		result, err := h.chat.SendMessage(c.Request.Context(), owner, conversationID, frame.Content, services.SendOptions{
			Streaming:   true,
			Model:       frame.Model,
			Temperature: frame.Temperature,
			MaxTokens:   frame.MaxTokens,
			OnChunk: func(chunk string) error {
				return sendJSON(gin.H{"type": "chunk", "content": chunk})
			},
		})
		if err != nil {
			sendError(err.Error())
			continue
		}

		_ = sendJSON(gin.H{
			"type":         "done",
			"conversation": result.Conversation,
			"userMessage":  result.UserMessage,
			"message":      result.AssistantMessage,
		})
	}
}
