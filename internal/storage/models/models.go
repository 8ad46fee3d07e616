package models

import "time"

// Criterion is a named evaluation dimension. PromptTemplate may be empty,
// in which case a built-in template is selected at prompt-build time.
// A Criterion is immutable for the duration of an evaluation call.
type Criterion struct {
	Name           string `json:"type"`
	PromptTemplate string `json:"prompt"`
}

// DefaultCriterionName is the implicit criterion used when a document is
// present but the caller supplied no criteria.
const DefaultCriterionName = "groundedness"

// Judgment is one criterion's verdict on an answer. Label and Explanation
// are extracted from the raw model output by convention and may be empty;
// Raw always holds the full model output.
type Judgment struct {
	CriterionName string `json:"type"`
	Label         string `json:"label"`
	Explanation   string `json:"explanation"`
	Raw           string `json:"evaluation"`
}

// Exchange is one question/answer turn plus its judgments. Exchanges are
// append-only: an improvement produces a new Exchange with IsImproved set,
// never a mutation of the prior one.
type Exchange struct {
	ID          int64      `json:"id"`
	SessionID   string     `json:"session_id"`
	Question    string     `json:"question"`
	Response    string     `json:"response"`
	Judgments   []Judgment `json:"judgments"`
	PDFFilename string     `json:"pdf_filename,omitempty"`
	IsImproved  bool       `json:"is_improved"`
	CreatedAt   time.Time  `json:"timestamp"`
}

// GroundednessLabel returns the label of the exchange's groundedness
// judgment, falling back to the first judgment when none is named
// groundedness. Empty when the exchange carries no judgments.
func (e *Exchange) GroundednessLabel() string {
	if j := e.groundednessJudgment(); j != nil {
		return j.Label
	}
	return ""
}

// GroundednessExplanation is the explanation paired with
// GroundednessLabel.
func (e *Exchange) GroundednessExplanation() string {
	if j := e.groundednessJudgment(); j != nil {
		return j.Explanation
	}
	return ""
}

func (e *Exchange) groundednessJudgment() *Judgment {
	for i := range e.Judgments {
		if e.Judgments[i].CriterionName == DefaultCriterionName {
			return &e.Judgments[i]
		}
	}
	if len(e.Judgments) > 0 {
		return &e.Judgments[0]
	}
	return nil
}

// HistoryFilter narrows a history listing. Zero values mean "no filter".
type HistoryFilter struct {
	Groundedness string
	Search       string
	DateFrom     *time.Time
	DateTo       *time.Time
}

// HistoryStats aggregates a session's evaluation history.
type HistoryStats struct {
	TotalEvaluations  int     `json:"total_evaluations"`
	Grounded          int     `json:"grounded"`
	PartiallyGrounded int     `json:"partially_grounded"`
	NotGrounded       int     `json:"not_grounded"`
	ImprovementRate   float64 `json:"improvement_rate"`
}
