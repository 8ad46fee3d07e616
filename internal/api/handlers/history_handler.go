package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chateval/backend/internal/metrics"
	"github.com/chateval/backend/internal/session"
	"github.com/chateval/backend/internal/storage/models"
	"github.com/chateval/backend/internal/storage/sqlite"
	"github.com/chateval/backend/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type HistoryHandler struct {
	history *sqlite.Client
}

func NewHistoryHandler(history *sqlite.Client) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	sessionID := session.FromCtx(c)
	// SQLite treats a negative LIMIT as unbounded, so clamp before
	// querying.
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	filter := models.HistoryFilter{
		Groundedness: c.Query("groundedness"),
		Search:       c.Query("search"),
	}

	var err error
	if filter.DateFrom, err = parseDateParam(c.Query("date_from")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid date_from, expected ISO-8601",
		})
	}
	if filter.DateTo, err = parseDateParam(c.Query("date_to")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid date_to, expected ISO-8601",
		})
	}

	exchanges, total, err := h.history.ListExchanges(sessionID, filter, limit, offset)
	if err != nil {
		logger.Error("Failed to list history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	if exchanges == nil {
		exchanges = []models.Exchange{}
	}

	return c.JSON(fiber.Map{
		"evaluations": exchanges,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

func (h *HistoryHandler) GetStats(c *fiber.Ctx) error {
	sessionID := session.FromCtx(c)

	stats, err := h.history.Stats(sessionID)
	if err != nil {
		logger.Error("Failed to compute stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute stats",
		})
	}

	return c.JSON(stats)
}

func (h *HistoryHandler) ExportHistory(c *fiber.Ctx) error {
	sessionID := session.FromCtx(c)
	format := c.Query("format", "json")

	exchanges, err := h.history.ExportExchanges(sessionID)
	if err != nil {
		logger.Error("Failed to export history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export history",
		})
	}

	stamp := time.Now().Format("20060102_150405")

	switch format {
	case "csv":
		data, err := exportCSV(exchanges)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to encode export",
			})
		}

		metrics.HistoryExports.WithLabelValues("csv").Inc()
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="evaluation_history_%s.csv"`, stamp))
		return c.Send(data)

	default:
		if exchanges == nil {
			exchanges = []models.Exchange{}
		}
		data, err := json.MarshalIndent(exchanges, "", "  ")
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to encode export",
			})
		}

		metrics.HistoryExports.WithLabelValues("json").Inc()
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="evaluation_history_%s.json"`, stamp))
		return c.Send(data)
	}
}

func (h *HistoryHandler) DeleteItem(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid history id",
		})
	}

	if err := h.history.DeleteExchange(id); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "History item not found",
			})
		}
		logger.Error("Failed to delete history item", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete history item",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func exportCSV(exchanges []models.Exchange) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"id", "timestamp", "question", "response", "groundedness_level",
		"evaluation_explanation", "pdf_filename", "is_improved",
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for i := range exchanges {
		e := &exchanges[i]
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.Format(time.RFC3339),
			e.Question,
			e.Response,
			e.GroundednessLabel(),
			e.GroundednessExplanation(),
			e.PDFFilename,
			strconv.FormatBool(e.IsImproved),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts, nil
		}
	}

	return nil, fmt.Errorf("unparseable date %q", value)
}
