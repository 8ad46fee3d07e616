package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/chateval/backend/internal/evaluation"
	"github.com/chateval/backend/internal/session"
	"github.com/chateval/backend/internal/storage/models"
	"github.com/chateval/backend/internal/storage/sqlite"
	"github.com/chateval/backend/pkg/logger"
)

// StreamHandler replays completed chat results over a websocket in word
// chunks. This is cosmetic: the answer and its judgments are fully
// generated before the first chunk goes out.
type StreamHandler struct {
	orchestrator *evaluation.Orchestrator
	documents    session.Store
	history      *sqlite.Client
}

func NewStreamHandler(orchestrator *evaluation.Orchestrator, documents session.Store, history *sqlite.Client) *StreamHandler {
	return &StreamHandler{
		orchestrator: orchestrator,
		documents:    documents,
		history:      history,
	}
}

func (h *StreamHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	sessionID, _ := c.Locals(session.LocalsKey).(string)

	for {
		var msg struct {
			Type               string             `json:"type"`
			Message            string             `json:"message"`
			APIKey             string             `json:"api_key"`
			EvaluationCriteria []models.Criterion `json:"evaluation_criteria"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			break
		}

		if msg.Type != "chat" {
			continue
		}

		if msg.APIKey == "" {
			h.sendError(c, "API key is required")
			continue
		}

		err = h.streamChat(c, sessionID, msg.Message, msg.APIKey, msg.EvaluationCriteria)
		if err != nil {
			logger.Error("Failed to stream chat", zap.Error(err))
			h.sendError(c, err.Error())
		}
	}
}

func (h *StreamHandler) streamChat(c *websocket.Conn, sessionID, message, apiKey string, criteria []models.Criterion) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Generating answer...")

	var documentText, filename string
	if doc, ok, err := h.documents.Get(ctx, sessionID); err == nil && ok {
		documentText = doc.Text
		filename = doc.Filename
	}

	answer, judgments, err := h.orchestrator.Evaluate(ctx, apiKey, message, documentText, criteria)
	if err != nil {
		return err
	}

	recordExchange(h.history, sessionID, message, answer, judgments, filename, false)

	words := splitIntoWords(answer)
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		if err := h.sendChunk(c, "chunk", word); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":                "complete",
		"evaluation":          firstRaw(judgments),
		"combined_evaluation": combined(judgments),
	})
}

func (h *StreamHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *StreamHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	current := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if current != "" {
				words = append(words, current)
				current = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			current += string(char)
		}
	}

	if current != "" {
		words = append(words, current)
	}

	return words
}
