package prompt

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/chateval/backend/internal/storage/models"
)

var testTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestSubstituteReplacesEveryPlaceholder(t *testing.T) {
	template := "D={document_content} Q={question} R={response} T={timestamp} D2={document_content}"

	out := Substitute(template, "the doc", "the question", "the answer", testTime)

	assert.NotContains(t, out, "{document_content}")
	assert.NotContains(t, out, "{question}")
	assert.NotContains(t, out, "{response}")
	assert.NotContains(t, out, "{timestamp}")
	assert.Contains(t, out, "D=the doc")
	assert.Contains(t, out, "D2=the doc")
	assert.Contains(t, out, "Q=the question")
	assert.Contains(t, out, "R=the answer")
	assert.Contains(t, out, "T=2026-03-14 09:26:53")
}

func TestSubstituteLeavesUnknownPlaceholders(t *testing.T) {
	out := Substitute("{question} {mystery} {another_one}", "", "q", "r", testTime)

	assert.Contains(t, out, "{mystery}")
	assert.Contains(t, out, "{another_one}")
	assert.NotContains(t, out, "{question}")
}

func TestSubstituteUsesSentinelForMissingDocument(t *testing.T) {
	out := Substitute("doc: {document_content}", "", "q", "r", testTime)

	assert.Contains(t, out, NoDocumentSentinel)
}

func TestSubstituteTruncatesDocument(t *testing.T) {
	doc := strings.Repeat("x", EvalDocumentBudget+500)

	out := Substitute("{document_content}", doc, "q", "r", testTime)

	assert.Len(t, out, EvalDocumentBudget)
}

func TestAnswerPromptWithoutDocumentHasNoDocumentBlock(t *testing.T) {
	out := AnswerPrompt("What is Go?", "")

	assert.NotContains(t, out, "Document context:")
	assert.Contains(t, out, "What is Go?")
}

func TestAnswerPromptWithDocumentEmbedsItVerbatim(t *testing.T) {
	out := AnswerPrompt("What is Go?", "Go is a language.")

	assert.Contains(t, out, "Document context:")
	assert.Contains(t, out, "Go is a language.")
	assert.Contains(t, out, "What is Go?")
}

func TestEvaluationPromptCustomTemplate(t *testing.T) {
	criterion := models.Criterion{
		Name:           "clarity",
		PromptTemplate: "Judge {response} against {document_content} for {question}",
	}

	out := EvaluationPrompt(criterion, "q1", "a1", "d1", testTime)

	assert.Equal(t, "Judge a1 against d1 for q1", out)
}

func TestEvaluationPromptDefaultsToGroundednessWithDocument(t *testing.T) {
	criterion := models.Criterion{Name: models.DefaultCriterionName}

	out := EvaluationPrompt(criterion, "q1", "a1", "some document", testTime)

	assert.Contains(t, out, "grounded in the provided document context")
	assert.Contains(t, out, "some document")
	assert.Contains(t, out, "Label:")
}

func TestEvaluationPromptDefaultsToGenericWithoutDocument(t *testing.T) {
	criterion := models.Criterion{Name: "factual_accuracy"}

	out := EvaluationPrompt(criterion, "q1", "a1", "", testTime)

	assert.Contains(t, out, "factual_accuracy criteria")
	assert.NotContains(t, out, "Document Context:")
}

func TestImprovementPromptFoldsAllJudgments(t *testing.T) {
	judgments := []models.Judgment{
		{CriterionName: "groundedness", Raw: "Label: Not Grounded\nExplanation: invented facts."},
		{CriterionName: "clarity", Raw: "Label: Poor\nExplanation: rambling."},
	}

	out := ImprovementPrompt("the question", judgments, "doc text")

	assert.Contains(t, out, "GROUNDEDNESS:")
	assert.Contains(t, out, "invented facts.")
	assert.Contains(t, out, "CLARITY:")
	assert.Contains(t, out, "rambling.")
	assert.Contains(t, out, "the question")
	assert.Contains(t, out, "doc text")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("", 5))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestTruncateCountsCharactersNotBytes(t *testing.T) {
	doc := strings.Repeat("€", 2000) // 3 bytes per character

	out := Truncate(doc, 1500)

	assert.Equal(t, 1500, utf8.RuneCountInString(out))
	assert.True(t, utf8.ValidString(out))
}

func TestTruncateNeverSplitsARune(t *testing.T) {
	doc := "a" + strings.Repeat("€", 2000)

	out := Truncate(doc, 100)

	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "a"+strings.Repeat("€", 99), out)
}

func TestSubstituteKeepsFullCharacterBudgetForMultiByteDocuments(t *testing.T) {
	doc := strings.Repeat("é", EvalDocumentBudget) // 2 bytes per character

	out := Substitute("{document_content}", doc, "q", "r", testTime)

	assert.Equal(t, doc, out)
	assert.Equal(t, EvalDocumentBudget, utf8.RuneCountInString(out))
}
