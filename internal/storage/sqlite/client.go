package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/chateval/backend/internal/storage/models"
	"github.com/chateval/backend/pkg/logger"
)

// ErrNotFound is returned when an exchange id does not exist.
var ErrNotFound = errors.New("exchange not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		response TEXT NOT NULL,
		pdf_filename TEXT,
		is_improved INTEGER NOT NULL DEFAULT 0,
		groundedness_level TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id);
	CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at);
	CREATE INDEX IF NOT EXISTS idx_exchanges_groundedness ON exchanges(groundedness_level);

	CREATE TABLE IF NOT EXISTS judgments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exchange_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		criterion TEXT NOT NULL,
		label TEXT,
		explanation TEXT,
		raw TEXT NOT NULL,
		FOREIGN KEY (exchange_id) REFERENCES exchanges(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_judgments_exchange ON judgments(exchange_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// AppendExchange inserts an exchange and its judgments in one
// transaction and returns the assigned id. Judgment row order preserves
// the evaluation's criteria order.
func (c *Client) AppendExchange(exchange *models.Exchange) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	improved := 0
	if exchange.IsImproved {
		improved = 1
	}

	result, err := tx.Exec(
		`INSERT INTO exchanges (session_id, question, response, pdf_filename, is_improved, groundedness_level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exchange.SessionID,
		exchange.Question,
		exchange.Response,
		exchange.PDFFilename,
		improved,
		exchange.GroundednessLabel(),
		exchange.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert exchange: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read exchange id: %w", err)
	}

	for i, judgment := range exchange.Judgments {
		_, err = tx.Exec(
			`INSERT INTO judgments (exchange_id, position, criterion, label, explanation, raw)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id,
			i,
			judgment.CriterionName,
			judgment.Label,
			judgment.Explanation,
			judgment.Raw,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert judgment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit exchange: %w", err)
	}

	logger.Info("Exchange recorded",
		zap.Int64("exchange_id", id),
		zap.String("session_id", exchange.SessionID),
		zap.Int("judgments", len(exchange.Judgments)),
		zap.Bool("is_improved", exchange.IsImproved),
	)

	return id, nil
}

// ListExchanges returns a page of a session's exchanges in descending
// creation order, plus the total count matching the filter.
func (c *Client) ListExchanges(sessionID string, filter models.HistoryFilter, limit, offset int) ([]models.Exchange, int, error) {
	where := "WHERE session_id = ?"
	args := []interface{}{sessionID}

	if filter.Groundedness != "" {
		where += " AND groundedness_level = ?"
		args = append(args, filter.Groundedness)
	}
	if filter.Search != "" {
		where += " AND (question LIKE ? OR response LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.DateFrom != nil {
		where += " AND created_at >= ?"
		args = append(args, filter.DateFrom.Unix())
	}
	if filter.DateTo != nil {
		where += " AND created_at <= ?"
		args = append(args, filter.DateTo.Unix())
	}

	var total int
	err := c.db.QueryRow("SELECT COUNT(*) FROM exchanges "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count exchanges: %w", err)
	}

	query := `SELECT id, session_id, question, response, pdf_filename, is_improved, created_at
		FROM exchanges ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	exchanges, err := c.scanExchanges(rows)
	if err != nil {
		return nil, 0, err
	}

	return exchanges, total, nil
}

// ExportExchanges returns every exchange of a session, newest first.
func (c *Client) ExportExchanges(sessionID string) ([]models.Exchange, error) {
	rows, err := c.db.Query(
		`SELECT id, session_id, question, response, pdf_filename, is_improved, created_at
		 FROM exchanges
		 WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to export exchanges: %w", err)
	}
	defer rows.Close()

	return c.scanExchanges(rows)
}

func (c *Client) scanExchanges(rows *sql.Rows) ([]models.Exchange, error) {
	var exchanges []models.Exchange
	for rows.Next() {
		var e models.Exchange
		var filename sql.NullString
		var improved int
		var createdAt int64

		err := rows.Scan(&e.ID, &e.SessionID, &e.Question, &e.Response, &filename, &improved, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		e.PDFFilename = filename.String
		e.IsImproved = improved != 0
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		exchanges = append(exchanges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	for i := range exchanges {
		judgments, err := c.loadJudgments(exchanges[i].ID)
		if err != nil {
			return nil, err
		}
		exchanges[i].Judgments = judgments
	}

	return exchanges, nil
}

func (c *Client) loadJudgments(exchangeID int64) ([]models.Judgment, error) {
	rows, err := c.db.Query(
		`SELECT criterion, label, explanation, raw
		 FROM judgments
		 WHERE exchange_id = ?
		 ORDER BY position`,
		exchangeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load judgments: %w", err)
	}
	defer rows.Close()

	var judgments []models.Judgment
	for rows.Next() {
		var j models.Judgment
		var label, explanation sql.NullString

		err := rows.Scan(&j.CriterionName, &label, &explanation, &j.Raw)
		if err != nil {
			return nil, fmt.Errorf("failed to scan judgment: %w", err)
		}

		j.Label = label.String
		j.Explanation = explanation.String
		judgments = append(judgments, j)
	}

	return judgments, rows.Err()
}

func (c *Client) DeleteExchange(id int64) error {
	result, err := c.db.Exec("DELETE FROM exchanges WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete exchange: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	logger.Info("Exchange deleted", zap.Int64("exchange_id", id))
	return nil
}

// ClearSession drops every exchange of one session.
func (c *Client) ClearSession(sessionID string) error {
	_, err := c.db.Exec("DELETE FROM exchanges WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear session history: %w", err)
	}

	logger.Info("Session history cleared", zap.String("session_id", sessionID))
	return nil
}

// Stats aggregates a session's history: counts per groundedness label
// and the share of exchanges that are improved revisions.
func (c *Client) Stats(sessionID string) (*models.HistoryStats, error) {
	stats := &models.HistoryStats{}

	counts := []struct {
		query string
		args  []interface{}
		dest  *int
	}{
		{"SELECT COUNT(*) FROM exchanges WHERE session_id = ?", []interface{}{sessionID}, &stats.TotalEvaluations},
		{"SELECT COUNT(*) FROM exchanges WHERE session_id = ? AND groundedness_level = ?", []interface{}{sessionID, "Grounded"}, &stats.Grounded},
		{"SELECT COUNT(*) FROM exchanges WHERE session_id = ? AND groundedness_level = ?", []interface{}{sessionID, "Partially Grounded"}, &stats.PartiallyGrounded},
		{"SELECT COUNT(*) FROM exchanges WHERE session_id = ? AND groundedness_level = ?", []interface{}{sessionID, "Not Grounded"}, &stats.NotGrounded},
	}

	for _, count := range counts {
		if err := c.db.QueryRow(count.query, count.args...).Scan(count.dest); err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
	}

	var improved int
	err := c.db.QueryRow(
		"SELECT COUNT(*) FROM exchanges WHERE session_id = ? AND is_improved = 1",
		sessionID,
	).Scan(&improved)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	if stats.TotalEvaluations > 0 {
		rate := float64(improved) / float64(stats.TotalEvaluations) * 100
		stats.ImprovementRate = math.Round(rate*100) / 100
	}

	return stats, nil
}
