package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chateval/backend/internal/storage/models"
)

// scriptedCompleter records every prompt and replays canned responses in
// order, returning "ok" once the script is exhausted.
type scriptedCompleter struct {
	mu      sync.Mutex
	prompts []string
	replies []string

	failAt  int // 1-based call index to fail at, 0 for never
	failErr error
}

func (s *scriptedCompleter) Complete(_ context.Context, _, prompt string, _ int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if s.failAt != 0 && len(s.prompts) == s.failAt {
		return "", s.failErr
	}

	if len(s.replies) == 0 {
		return "ok", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func TestEvaluateJudgesCriteriaInCallerOrder(t *testing.T) {
	gateway := &scriptedCompleter{replies: []string{
		"the answer",
		"Label: Grounded\nExplanation: supported.",
		"Label: Good\nExplanation: readable.",
		"Label: Fair\nExplanation: terse.",
	}}
	orch := NewOrchestrator(gateway, 1000, 500)

	criteria := []models.Criterion{
		{Name: "groundedness"},
		{Name: "clarity"},
		{Name: "completeness"},
	}
	answer, judgments, err := orch.Evaluate(context.Background(), "key", "q", "doc text", criteria)

	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	require.Len(t, judgments, 3)
	assert.Equal(t, "groundedness", judgments[0].CriterionName)
	assert.Equal(t, "clarity", judgments[1].CriterionName)
	assert.Equal(t, "completeness", judgments[2].CriterionName)
	assert.Equal(t, "Grounded", judgments[0].Label)
	assert.Equal(t, "Good", judgments[1].Label)
	assert.Equal(t, "Fair", judgments[2].Label)

	// Answer call first, then one judgment call per criterion.
	require.Len(t, gateway.prompts, 4)
	assert.Contains(t, gateway.prompts[0], "q")
	assert.Contains(t, gateway.prompts[0], "doc text")
	for _, p := range gateway.prompts[1:] {
		assert.Contains(t, p, "the answer")
	}
}

func TestEvaluateImplicitGroundednessWithDocument(t *testing.T) {
	gateway := &scriptedCompleter{replies: []string{
		"the answer",
		"Label: Grounded\nExplanation: matches.",
	}}
	orch := NewOrchestrator(gateway, 1000, 500)

	_, judgments, err := orch.Evaluate(context.Background(), "key", "q", "doc text", nil)

	require.NoError(t, err)
	require.Len(t, judgments, 1)
	assert.Equal(t, models.DefaultCriterionName, judgments[0].CriterionName)
	require.Len(t, gateway.prompts, 2)
	assert.Contains(t, gateway.prompts[1], "doc text")
}

func TestEvaluateNoCriteriaNoDocumentSkipsJudging(t *testing.T) {
	gateway := &scriptedCompleter{replies: []string{"the answer"}}
	orch := NewOrchestrator(gateway, 1000, 500)

	answer, judgments, err := orch.Evaluate(context.Background(), "key", "q", "", nil)

	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	assert.Empty(t, judgments)
	assert.Len(t, gateway.prompts, 1)
}

func TestEvaluateUnnamedCriterionDefaultsToGroundedness(t *testing.T) {
	gateway := &scriptedCompleter{replies: []string{
		"the answer",
		"Label: Grounded\nExplanation: fine.",
	}}
	orch := NewOrchestrator(gateway, 1000, 500)

	_, judgments, err := orch.Evaluate(context.Background(), "key", "q", "doc",
		[]models.Criterion{{PromptTemplate: "Judge {response}"}})

	require.NoError(t, err)
	require.Len(t, judgments, 1)
	assert.Equal(t, models.DefaultCriterionName, judgments[0].CriterionName)
}

func TestEvaluateCriterionFailureFailsWholeCall(t *testing.T) {
	upstream := errors.New("boom")
	gateway := &scriptedCompleter{
		replies: []string{"the answer", "Label: Good\nExplanation: ok."},
		failAt:  3,
		failErr: upstream,
	}
	orch := NewOrchestrator(gateway, 1000, 500)

	criteria := []models.Criterion{{Name: "clarity"}, {Name: "depth"}}
	answer, judgments, err := orch.Evaluate(context.Background(), "key", "q", "doc", criteria)

	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), `criterion "depth"`)
	assert.Empty(t, answer)
	assert.Nil(t, judgments)
}

func TestEvaluateAnswerFailureSkipsJudging(t *testing.T) {
	gateway := &scriptedCompleter{failAt: 1, failErr: errors.New("boom")}
	orch := NewOrchestrator(gateway, 1000, 500)

	_, _, err := orch.Evaluate(context.Background(), "key", "q", "doc",
		[]models.Criterion{{Name: "groundedness"}})

	require.Error(t, err)
	assert.Len(t, gateway.prompts, 1)
}

func TestImproveFoldsAllPriorJudgmentsAndReJudges(t *testing.T) {
	gateway := &scriptedCompleter{replies: []string{
		"revised answer",
		"Label: Grounded\nExplanation: better.",
		"Label: Good\nExplanation: clearer.",
	}}
	orch := NewOrchestrator(gateway, 1000, 500)

	prior := []models.Judgment{
		{CriterionName: "groundedness", Raw: "Label: Not Grounded\nExplanation: invented a date."},
		{CriterionName: "clarity", Raw: "Label: Poor\nExplanation: wall of text."},
	}
	criteria := []models.Criterion{{Name: "groundedness"}, {Name: "clarity"}}

	revised, judgments, err := orch.Improve(context.Background(), "key", "q", prior, "doc text", criteria)

	require.NoError(t, err)
	assert.Equal(t, "revised answer", revised)
	require.Len(t, judgments, 2)
	assert.Equal(t, "groundedness", judgments[0].CriterionName)
	assert.Equal(t, "clarity", judgments[1].CriterionName)

	require.GreaterOrEqual(t, len(gateway.prompts), 1)
	revisionPrompt := gateway.prompts[0]
	assert.Contains(t, revisionPrompt, "invented a date.")
	assert.Contains(t, revisionPrompt, "wall of text.")
	assert.Contains(t, revisionPrompt, strings.ToUpper("groundedness")+":")
	assert.Contains(t, revisionPrompt, strings.ToUpper("clarity")+":")
	assert.Contains(t, revisionPrompt, "doc text")

	// Re-judging sees the revised answer, not the original.
	for _, p := range gateway.prompts[1:] {
		assert.Contains(t, p, "revised answer")
	}
}

func TestImproveWithoutCriteriaDegradesToImplicitDefault(t *testing.T) {
	gateway := &scriptedCompleter{replies: []string{
		"revised answer",
		"Label: Grounded\nExplanation: better.",
	}}
	orch := NewOrchestrator(gateway, 1000, 500)

	prior := []models.Judgment{{CriterionName: "groundedness", Raw: "Label: Not Grounded"}}

	_, judgments, err := orch.Improve(context.Background(), "key", "q", prior, "doc", nil)

	require.NoError(t, err)
	require.Len(t, judgments, 1)
	assert.Equal(t, models.DefaultCriterionName, judgments[0].CriterionName)
}
