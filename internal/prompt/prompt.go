// Package prompt assembles every piece of text sent to the completion
// API. All functions are pure string builders with no network access,
// which keeps the orchestration layer testable without a live endpoint.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/chateval/backend/internal/storage/models"
)

// Truncation budgets are fixed constants, not configurable per call.
const (
	// EvalDocumentBudget caps the document text embedded in an
	// evaluation or improvement prompt.
	EvalDocumentBudget = 3000

	// StoredDocumentBudget caps the document text retained per session.
	StoredDocumentBudget = 10000

	// PreviewLength is the slice of extracted text echoed back after an
	// upload.
	PreviewLength = 500
)

// NoDocumentSentinel is substituted for {document_content} when no
// document is available, so template substitution never fails.
const NoDocumentSentinel = "No document provided."

const answerWithDocumentTemplate = `You are a helpful AI assistant. Please answer the following question based on the provided document context.

**Important Instructions:**
- Structure your response using markdown formatting
- Use bullet points or numbered lists for key insights
- Keep paragraphs concise (2-3 sentences max)
- Bold important terms and concepts
- If applicable, use headers (##) to organize different sections
- Be clear and direct, avoiding unnecessary verbosity

Document context:
%s

User question: %s`

const answerWithoutDocumentTemplate = `Please answer the following question. Use markdown formatting for clarity:
- Use bullet points for lists
- Bold important terms
- Keep responses concise and well-structured

Question: %s`

const groundednessTemplate = `You are evaluating whether an AI response is grounded in the provided document context.

Document Context:
{document_content}

User Question:
{question}

AI Response:
{response}

Evaluate the response and provide:
1. A label: "Grounded", "Partially Grounded", or "Not Grounded"
2. A brief explanation (2-3 sentences) of your evaluation

Format your response as:
Label: [your label]
Explanation: [your explanation]`

const genericQualityTemplate = `Evaluate this AI response based on %s criteria.

User Question:
{question}

AI Response:
{response}

Evaluate and provide:
1. A label indicating the quality (e.g., "Good", "Fair", "Poor")
2. A brief explanation (2-3 sentences) of your evaluation

Format your response as:
Label: [your label]
Explanation: [your explanation]`

// Truncate caps s at limit characters, never splitting a rune. The
// budgets count characters, not bytes, so multi-byte documents keep
// their full allowance and the cut always lands on a boundary.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// AnswerPrompt builds the answer-generation prompt. The document block
// appears only when documentText is non-empty; documentText is embedded
// verbatim, so callers truncate it to the storage budget beforehand.
func AnswerPrompt(question, documentText string) string {
	if documentText == "" {
		return fmt.Sprintf(answerWithoutDocumentTemplate, question)
	}
	return fmt.Sprintf(answerWithDocumentTemplate, documentText, question)
}

// EvaluationPrompt builds the judging prompt for one criterion. A custom
// template gets literal placeholder substitution; otherwise a built-in
// template is chosen: the groundedness template when document text is
// present, the generic quality template otherwise.
func EvaluationPrompt(criterion models.Criterion, question, answer, documentText string, ts time.Time) string {
	if criterion.PromptTemplate != "" {
		return Substitute(criterion.PromptTemplate, documentText, question, answer, ts)
	}

	if criterion.Name == models.DefaultCriterionName && documentText != "" {
		return Substitute(groundednessTemplate, documentText, question, answer, ts)
	}

	template := fmt.Sprintf(genericQualityTemplate, criterion.Name)
	return Substitute(template, documentText, question, answer, ts)
}

// ImprovementPrompt asks the model to revise a prior answer, folding in
// every prior judgment, not just the first.
func ImprovementPrompt(question string, judgments []models.Judgment, documentText string) string {
	var feedback strings.Builder
	feedback.WriteString("Previous evaluations:\n")
	for _, j := range judgments {
		feedback.WriteString(fmt.Sprintf("\n%s: %s\n", strings.ToUpper(j.CriterionName), j.Raw))
	}

	return fmt.Sprintf(`%s
Based on ALL the above feedback, please improve your response to better address the question.

**Important Instructions:**
- Use markdown formatting for clarity
- Structure key points with bullet points or numbered lists
- Bold important terms from the document
- Keep paragraphs concise and focused
- Cite specific information from the document when possible
- Be more precise and direct than the previous response

Document context:
%s

Original question: %s

Please provide an improved, well-formatted response:`,
		feedback.String(),
		documentOrSentinel(documentText),
		question,
	)
}

// Substitute performs literal placeholder substitution. Every occurrence
// of the four known placeholders is replaced; unknown placeholders pass
// through unchanged, and missing document text becomes the sentinel so
// substitution is total.
func Substitute(template, documentText, question, response string, ts time.Time) string {
	replacer := strings.NewReplacer(
		"{document_content}", documentOrSentinel(documentText),
		"{question}", question,
		"{response}", response,
		"{timestamp}", ts.Format("2006-01-02 15:04:05"),
	)
	return replacer.Replace(template)
}

func documentOrSentinel(documentText string) string {
	if documentText == "" {
		return NoDocumentSentinel
	}
	return Truncate(documentText, EvalDocumentBudget)
}
