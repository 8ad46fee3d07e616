package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chateval/backend/internal/metrics"
	"github.com/chateval/backend/internal/prompt"
	"github.com/chateval/backend/internal/session"
	"github.com/chateval/backend/pkg/logger"
)

// ExtractFunc turns raw PDF bytes into plain text.
type ExtractFunc func([]byte) (string, error)

type DocumentHandler struct {
	documents session.Store
	decode    func(string) ([]byte, error)
	extract   ExtractFunc
}

func NewDocumentHandler(documents session.Store, decode func(string) ([]byte, error), extract ExtractFunc) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		decode:    decode,
		extract:   extract,
	}
}

// UploadPDF replaces the calling session's document with the extracted
// text of the uploaded PDF. A bad payload is reported as success:false
// with a message rather than a hard failure; an image-only PDF extracts
// to empty text and is accepted (later chats simply see no document).
func (h *DocumentHandler) UploadPDF(c *fiber.Ctx) error {
	var req struct {
		PDFData  string `json:"pdf_data"`
		Filename string `json:"filename"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.PDFData == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "pdf_data is required",
		})
	}

	raw, err := h.decode(req.PDFData)
	if err != nil {
		metrics.ExtractionFailures.Inc()
		return c.JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	text, err := h.extract(raw)
	if err != nil {
		metrics.ExtractionFailures.Inc()
		logger.Warn("PDF extraction failed", zap.Error(err))
		return c.JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	sessionID := session.FromCtx(c)
	doc := session.Document{
		Text:       prompt.Truncate(text, prompt.StoredDocumentBudget),
		Filename:   req.Filename,
		UploadedAt: time.Now().UTC(),
	}

	if err := h.documents.Put(c.Context(), sessionID, doc); err != nil {
		logger.Error("Failed to store document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store document",
		})
	}

	metrics.DocumentsUploaded.Inc()
	logger.Info("Document uploaded",
		zap.String("session_id", sessionID),
		zap.String("filename", req.Filename),
		zap.Int("extracted_chars", len(text)),
	)

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("PDF uploaded successfully. Extracted %d characters.", len(text)),
		"preview": prompt.Truncate(text, prompt.PreviewLength),
	})
}
