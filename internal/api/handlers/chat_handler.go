package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chateval/backend/internal/evaluation"
	"github.com/chateval/backend/internal/llm"
	"github.com/chateval/backend/internal/metrics"
	"github.com/chateval/backend/internal/session"
	"github.com/chateval/backend/internal/storage/models"
	"github.com/chateval/backend/internal/storage/sqlite"
	"github.com/chateval/backend/pkg/logger"
)

// historyPageSize is how many recent exchanges ride along in chat and
// improve responses.
const historyPageSize = 10

type ChatHandler struct {
	orchestrator *evaluation.Orchestrator
	documents    session.Store
	history      *sqlite.Client
	llmClient    *llm.Client
}

func NewChatHandler(orchestrator *evaluation.Orchestrator, documents session.Store, history *sqlite.Client, llmClient *llm.Client) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		documents:    documents,
		history:      history,
		llmClient:    llmClient,
	}
}

type chatRequest struct {
	Message            string             `json:"message"`
	APIKey             string             `json:"api_key"`
	EvaluationPrompt   string             `json:"evaluation_prompt"`
	EvaluationCriteria []models.Criterion `json:"evaluation_criteria"`
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	started := time.Now()

	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	if req.APIKey == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "API key is required. Please add your API key.",
		})
	}

	sessionID := session.FromCtx(c)
	documentText, filename := h.sessionDocument(c, sessionID)

	criteria := resolveCriteria(req.EvaluationCriteria, req.EvaluationPrompt)

	answer, judgments, err := h.orchestrator.Evaluate(c.Context(), req.APIKey, req.Message, documentText, criteria)
	if err != nil {
		metrics.ChatTotal.WithLabelValues("chat", "error").Inc()
		return completionError(c, err)
	}

	recordExchange(h.history, sessionID, req.Message, answer, judgments, filename, false)

	metrics.ChatTotal.WithLabelValues("chat", "success").Inc()
	metrics.ChatDuration.WithLabelValues("chat").Observe(time.Since(started).Seconds())
	observeJudgments(judgments)

	return c.JSON(fiber.Map{
		"response":            answer,
		"evaluation":          firstRaw(judgments),
		"combined_evaluation": combined(judgments),
		"evaluation_history":  h.recentHistory(sessionID),
	})
}

type improveRequest struct {
	Question           string             `json:"question"`
	Response           string             `json:"response"`
	Evaluation         string             `json:"evaluation"`
	CombinedEvaluation []models.Judgment  `json:"combined_evaluation"`
	APIKey             string             `json:"api_key"`
	EvaluationPrompt   string             `json:"evaluation_prompt"`
	EvaluationCriteria []models.Criterion `json:"evaluation_criteria"`
}

func (h *ChatHandler) HandleImprove(c *fiber.Ctx) error {
	started := time.Now()

	var req improveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.APIKey == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "API key is required",
		})
	}

	priorJudgments := req.CombinedEvaluation
	if len(priorJudgments) == 0 && req.Evaluation != "" {
		priorJudgments = []models.Judgment{
			evaluation.ParseJudgment(models.DefaultCriterionName, req.Evaluation),
		}
	}

	if len(priorJudgments) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A prior evaluation is required to improve a response",
		})
	}

	sessionID := session.FromCtx(c)
	documentText, filename := h.sessionDocument(c, sessionID)

	criteria := resolveCriteria(req.EvaluationCriteria, req.EvaluationPrompt)

	revised, judgments, err := h.orchestrator.Improve(c.Context(), req.APIKey, req.Question, priorJudgments, documentText, criteria)
	if err != nil {
		metrics.ChatTotal.WithLabelValues("improve", "error").Inc()
		return completionError(c, err)
	}

	recordExchange(h.history, sessionID, req.Question, revised, judgments, filename, true)

	metrics.ChatTotal.WithLabelValues("improve", "success").Inc()
	metrics.ChatDuration.WithLabelValues("improve").Observe(time.Since(started).Seconds())
	observeJudgments(judgments)

	return c.JSON(fiber.Map{
		"response":            revised,
		"evaluation":          firstRaw(judgments),
		"combined_evaluation": combined(judgments),
		"evaluation_history":  h.recentHistory(sessionID),
	})
}

func (h *ChatHandler) ValidateAPIKey(c *fiber.Ctx) error {
	var req struct {
		APIKey string `json:"api_key"`
	}

	if err := c.BodyParser(&req); err != nil || req.APIKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"valid": false,
			"error": "No API key provided",
		})
	}

	if err := h.llmClient.ValidateKey(c.Context(), req.APIKey); err != nil {
		var authErr *llm.AuthError
		if errors.As(err, &authErr) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"valid": false,
				"error": "Invalid API key",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"valid": false,
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"valid":   true,
		"message": "API key is valid",
	})
}

func (h *ChatHandler) ClearHistory(c *fiber.Ctx) error {
	sessionID := session.FromCtx(c)

	if err := h.history.ClearSession(sessionID); err != nil {
		logger.Error("Failed to clear history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear history",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *ChatHandler) sessionDocument(c *fiber.Ctx, sessionID string) (string, string) {
	doc, ok, err := h.documents.Get(c.Context(), sessionID)
	if err != nil {
		logger.Warn("Failed to load session document", zap.Error(err))
		return "", ""
	}
	if !ok {
		return "", ""
	}
	return doc.Text, doc.Filename
}

// recordExchange appends the turn to persisted history. Turns without
// judgments are not recorded, matching the evaluation-history semantics.
// A storage failure does not fail the chat response.
func recordExchange(history *sqlite.Client, sessionID, question, answer string, judgments []models.Judgment, filename string, improved bool) {
	if len(judgments) == 0 {
		return
	}

	exchange := &models.Exchange{
		SessionID:   sessionID,
		Question:    question,
		Response:    answer,
		Judgments:   judgments,
		PDFFilename: filename,
		IsImproved:  improved,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := history.AppendExchange(exchange); err != nil {
		logger.Error("Failed to record exchange", zap.Error(err))
	}
}

func (h *ChatHandler) recentHistory(sessionID string) []models.Exchange {
	exchanges, _, err := h.history.ListExchanges(sessionID, models.HistoryFilter{}, historyPageSize, 0)
	if err != nil {
		logger.Warn("Failed to load recent history", zap.Error(err))
		return []models.Exchange{}
	}
	if exchanges == nil {
		return []models.Exchange{}
	}
	return exchanges
}

// resolveCriteria reconciles the structured criteria list with the
// legacy single custom evaluation prompt: when only the latter is sent,
// it becomes a groundedness criterion with a custom template.
func resolveCriteria(criteria []models.Criterion, customPrompt string) []models.Criterion {
	if len(criteria) > 0 {
		return criteria
	}
	if customPrompt != "" {
		return []models.Criterion{{Name: models.DefaultCriterionName, PromptTemplate: customPrompt}}
	}
	return nil
}

// completionError maps gateway failures to the HTTP boundary: credential
// problems are 401, everything else is 500 with the upstream message
// passed through.
func completionError(c *fiber.Ctx, err error) error {
	var authErr *llm.AuthError
	if errors.As(err, &authErr) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid API key. Please check your API key.",
		})
	}

	logger.Error("Completion failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func firstRaw(judgments []models.Judgment) interface{} {
	if len(judgments) == 0 {
		return nil
	}
	return judgments[0].Raw
}

func combined(judgments []models.Judgment) interface{} {
	if len(judgments) == 0 {
		return nil
	}
	return judgments
}

func observeJudgments(judgments []models.Judgment) {
	for _, j := range judgments {
		metrics.EvaluationsTotal.WithLabelValues(j.CriterionName).Inc()
		if j.CriterionName == models.DefaultCriterionName && j.Label != "" {
			metrics.GroundednessLabels.WithLabelValues(j.Label).Inc()
		}
	}
}
