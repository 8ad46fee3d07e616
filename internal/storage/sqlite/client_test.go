package sqlite

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chateval/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { client.Close() })

	return client
}

func groundedJudgment(label string) []models.Judgment {
	return []models.Judgment{{
		CriterionName: models.DefaultCriterionName,
		Label:         label,
		Explanation:   "because",
		Raw:           fmt.Sprintf("Label: %s\nExplanation: because", label),
	}}
}

func TestAppendAndListExchanges(t *testing.T) {
	client := newTestClient(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		_, err := client.AppendExchange(&models.Exchange{
			SessionID: "s1",
			Question:  fmt.Sprintf("question %d", i),
			Response:  fmt.Sprintf("response %d", i),
			Judgments: groundedJudgment("Grounded"),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page, total, err := client.ListExchanges("s1", models.HistoryFilter{}, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page, 5)

	// Newest first.
	assert.Equal(t, "question 6", page[0].Question)
	assert.Equal(t, "question 2", page[4].Question)

	rest, total, err := client.ListExchanges("s1", models.HistoryFilter{}, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, rest, 2)
	assert.Equal(t, "question 1", rest[0].Question)
	assert.Equal(t, "question 0", rest[1].Question)
}

func TestListExchangesScopesBySession(t *testing.T) {
	client := newTestClient(t)
	now := time.Now().UTC()

	for _, sid := range []string{"s1", "s1", "s2"} {
		_, err := client.AppendExchange(&models.Exchange{
			SessionID: sid,
			Question:  "q",
			Response:  "r",
			CreatedAt: now,
		})
		require.NoError(t, err)
	}

	_, total, err := client.ListExchanges("s1", models.HistoryFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = client.ListExchanges("s2", models.HistoryFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestListExchangesPreservesJudgmentOrder(t *testing.T) {
	client := newTestClient(t)

	_, err := client.AppendExchange(&models.Exchange{
		SessionID: "s1",
		Question:  "q",
		Response:  "r",
		Judgments: []models.Judgment{
			{CriterionName: "groundedness", Label: "Grounded", Raw: "raw a"},
			{CriterionName: "clarity", Label: "Good", Raw: "raw b"},
			{CriterionName: "completeness", Label: "Fair", Raw: "raw c"},
		},
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	page, _, err := client.ListExchanges("s1", models.HistoryFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Len(t, page[0].Judgments, 3)
	assert.Equal(t, "groundedness", page[0].Judgments[0].CriterionName)
	assert.Equal(t, "clarity", page[0].Judgments[1].CriterionName)
	assert.Equal(t, "completeness", page[0].Judgments[2].CriterionName)
}

func TestListExchangesFilters(t *testing.T) {
	client := newTestClient(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	fixtures := []struct {
		question string
		label    string
		offset   time.Duration
	}{
		{"capital of France", "Grounded", 0},
		{"tallest mountain", "Not Grounded", time.Hour},
		{"capital of Spain", "Partially Grounded", 2 * time.Hour},
	}
	for _, f := range fixtures {
		_, err := client.AppendExchange(&models.Exchange{
			SessionID: "s1",
			Question:  f.question,
			Response:  "r",
			Judgments: groundedJudgment(f.label),
			CreatedAt: base.Add(f.offset),
		})
		require.NoError(t, err)
	}

	page, total, err := client.ListExchanges("s1", models.HistoryFilter{Groundedness: "Not Grounded"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "tallest mountain", page[0].Question)

	_, total, err = client.ListExchanges("s1", models.HistoryFilter{Search: "capital"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	page, total, err = client.ListExchanges("s1", models.HistoryFilter{DateFrom: &from, DateTo: &to}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "tallest mountain", page[0].Question)
}

func TestDeleteExchange(t *testing.T) {
	client := newTestClient(t)

	id, err := client.AppendExchange(&models.Exchange{
		SessionID: "s1",
		Question:  "q",
		Response:  "r",
		Judgments: groundedJudgment("Grounded"),
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, client.DeleteExchange(id))

	_, total, err := client.ListExchanges("s1", models.HistoryFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	err = client.DeleteExchange(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearSession(t *testing.T) {
	client := newTestClient(t)
	now := time.Now().UTC()

	for _, sid := range []string{"s1", "s1", "s2"} {
		_, err := client.AppendExchange(&models.Exchange{SessionID: sid, Question: "q", Response: "r", CreatedAt: now})
		require.NoError(t, err)
	}

	require.NoError(t, client.ClearSession("s1"))

	_, total, err := client.ListExchanges("s1", models.HistoryFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	_, total, err = client.ListExchanges("s2", models.HistoryFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStats(t *testing.T) {
	client := newTestClient(t)
	now := time.Now().UTC()

	fixtures := []struct {
		label    string
		improved bool
	}{
		{"Grounded", false},
		{"Grounded", true},
		{"Partially Grounded", false},
		{"Not Grounded", false},
	}
	for _, f := range fixtures {
		_, err := client.AppendExchange(&models.Exchange{
			SessionID:  "s1",
			Question:   "q",
			Response:   "r",
			Judgments:  groundedJudgment(f.label),
			IsImproved: f.improved,
			CreatedAt:  now,
		})
		require.NoError(t, err)
	}

	stats, err := client.Stats("s1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalEvaluations)
	assert.Equal(t, 2, stats.Grounded)
	assert.Equal(t, 1, stats.PartiallyGrounded)
	assert.Equal(t, 1, stats.NotGrounded)
	assert.Equal(t, 25.0, stats.ImprovementRate)
}

func TestStatsEmptySession(t *testing.T) {
	client := newTestClient(t)

	stats, err := client.Stats("nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalEvaluations)
	assert.Equal(t, 0.0, stats.ImprovementRate)
}

func TestExportExchanges(t *testing.T) {
	client := newTestClient(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := client.AppendExchange(&models.Exchange{
			SessionID: "s1",
			Question:  fmt.Sprintf("question %d", i),
			Response:  "r",
			Judgments: groundedJudgment("Grounded"),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	all, err := client.ExportExchanges("s1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "question 2", all[0].Question)
	assert.Equal(t, "question 0", all[2].Question)
	require.Len(t, all[0].Judgments, 1)
}
