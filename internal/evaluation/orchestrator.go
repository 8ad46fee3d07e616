// Package evaluation runs the answer-then-judge workflow: one answer
// call, followed by one evaluation call per configured criterion, plus
// the improve-then-re-evaluate cycle.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chateval/backend/internal/prompt"
	"github.com/chateval/backend/internal/storage/models"
	"github.com/chateval/backend/pkg/logger"
)

// Completer is the completion gateway the orchestrator drives.
type Completer interface {
	Complete(ctx context.Context, apiKey, prompt string, maxTokens int) (string, error)
}

type Orchestrator struct {
	gateway         Completer
	answerMaxTokens int
	evalMaxTokens   int
	now             func() time.Time
}

func NewOrchestrator(gateway Completer, answerMaxTokens, evalMaxTokens int) *Orchestrator {
	return &Orchestrator{
		gateway:         gateway,
		answerMaxTokens: answerMaxTokens,
		evalMaxTokens:   evalMaxTokens,
		now:             time.Now,
	}
}

// Evaluate generates an answer and judges it against each criterion in
// the caller-supplied order. The answer call always completes before any
// judgment call. With no criteria and a non-empty document, a single
// implicit groundedness criterion is used; with no criteria and no
// document, no judgments are produced. Any criterion failure fails the
// whole call; no partial judgment list is returned.
func (o *Orchestrator) Evaluate(ctx context.Context, apiKey, question, documentText string, criteria []models.Criterion) (string, []models.Judgment, error) {
	answer, err := o.gateway.Complete(ctx, apiKey, prompt.AnswerPrompt(question, documentText), o.answerMaxTokens)
	if err != nil {
		return "", nil, err
	}

	judgments, err := o.judge(ctx, apiKey, question, answer, documentText, criteria)
	if err != nil {
		return "", nil, err
	}

	logger.Info("Answer evaluated",
		zap.Int("answer_length", len(answer)),
		zap.Int("judgments", len(judgments)),
	)

	return answer, judgments, nil
}

// Improve builds a revision prompt folding in every prior judgment, asks
// the model for a revised answer, then re-judges it with the same
// criteria set the original evaluation used. Criteria must be threaded
// through by the caller; an empty set degrades to the implicit default.
func (o *Orchestrator) Improve(ctx context.Context, apiKey, question string, priorJudgments []models.Judgment, documentText string, criteria []models.Criterion) (string, []models.Judgment, error) {
	revisionPrompt := prompt.ImprovementPrompt(question, priorJudgments, documentText)

	revised, err := o.gateway.Complete(ctx, apiKey, revisionPrompt, o.answerMaxTokens)
	if err != nil {
		return "", nil, err
	}

	judgments, err := o.judge(ctx, apiKey, question, revised, documentText, criteria)
	if err != nil {
		return "", nil, err
	}

	logger.Info("Answer improved",
		zap.Int("prior_judgments", len(priorJudgments)),
		zap.Int("judgments", len(judgments)),
	)

	return revised, judgments, nil
}

func (o *Orchestrator) judge(ctx context.Context, apiKey, question, answer, documentText string, criteria []models.Criterion) ([]models.Judgment, error) {
	criteria = effectiveCriteria(criteria, documentText)

	var judgments []models.Judgment
	for _, criterion := range criteria {
		evalPrompt := prompt.EvaluationPrompt(criterion, question, answer, documentText, o.now())

		raw, err := o.gateway.Complete(ctx, apiKey, evalPrompt, o.evalMaxTokens)
		if err != nil {
			return nil, fmt.Errorf("criterion %q: %w", criterion.Name, err)
		}

		judgments = append(judgments, ParseJudgment(criterion.Name, raw))
	}

	return judgments, nil
}

// effectiveCriteria normalizes the caller's criteria: unnamed entries
// fall back to the default criterion name, and an empty set with a
// document present becomes the single implicit groundedness check.
func effectiveCriteria(criteria []models.Criterion, documentText string) []models.Criterion {
	if len(criteria) == 0 {
		if documentText == "" {
			return nil
		}
		return []models.Criterion{{Name: models.DefaultCriterionName}}
	}

	normalized := make([]models.Criterion, len(criteria))
	for i, criterion := range criteria {
		if criterion.Name == "" {
			criterion.Name = models.DefaultCriterionName
		}
		normalized[i] = criterion
	}
	return normalized
}
