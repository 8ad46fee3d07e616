package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/chateval/backend/internal/storage/sqlite"
)

type HealthHandler struct {
	db          *sqlite.Client
	redisClient *redis.Client
}

// NewHealthHandler takes a nil redisClient when Redis is not configured.
func NewHealthHandler(db *sqlite.Client, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
	}
}

func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	dbStatus := "healthy"
	if err := h.db.Ping(); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "not configured"
	if h.redisClient != nil {
		redisStatus = "healthy"
		if err := h.redisClient.Ping(c.Context()).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"database":  dbStatus,
		"redis":     redisStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
