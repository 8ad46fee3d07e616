package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseJudgmentWellFormed(t *testing.T) {
	raw := "Label: Grounded\nExplanation: Every claim appears in the document."

	j := ParseJudgment("groundedness", raw)

	assert.Equal(t, "groundedness", j.CriterionName)
	assert.Equal(t, "Grounded", j.Label)
	assert.Equal(t, "Every claim appears in the document.", j.Explanation)
	assert.Equal(t, raw, j.Raw)
}

func TestParseJudgmentContinuationLines(t *testing.T) {
	raw := "Label: Partially Grounded\nExplanation: The first claim is supported.\nThe second claim is not."

	j := ParseJudgment("groundedness", raw)

	assert.Equal(t, "Partially Grounded", j.Label)
	assert.Equal(t, "The first claim is supported. The second claim is not.", j.Explanation)
}

func TestParseJudgmentSkipsBlankContinuationLines(t *testing.T) {
	raw := "Label: Good\nExplanation: Clear and complete.\n\n   \nWell structured."

	j := ParseJudgment("clarity", raw)

	assert.Equal(t, "Clear and complete. Well structured.", j.Explanation)
}

func TestParseJudgmentNoConventionFallsBackToRaw(t *testing.T) {
	raw := "The response looks fine to me overall."

	j := ParseJudgment("groundedness", raw)

	assert.Equal(t, "", j.Label)
	assert.Equal(t, raw, j.Explanation)
	assert.Equal(t, raw, j.Raw)
}

func TestParseJudgmentLabelOnly(t *testing.T) {
	j := ParseJudgment("groundedness", "Label: Not Grounded")

	assert.Equal(t, "Not Grounded", j.Label)
	assert.Equal(t, "", j.Explanation)
}

func TestParseJudgmentEmptyInput(t *testing.T) {
	j := ParseJudgment("groundedness", "")

	assert.Equal(t, "", j.Label)
	assert.Equal(t, "", j.Explanation)
	assert.Equal(t, "", j.Raw)
}
