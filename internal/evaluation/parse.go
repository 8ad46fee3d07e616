package evaluation

import (
	"strings"

	"github.com/chateval/backend/internal/storage/models"
)

// ParseJudgment extracts a label and explanation from raw model output
// following the "Label: ..." / "Explanation: ..." convention. Parsing is
// best-effort and total: continuation lines after the explanation are
// appended, and output with no recognizable lines yields an empty label
// with the full raw text as the explanation. It never fails.
func ParseJudgment(criterionName, raw string) models.Judgment {
	var label, explanation string

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "Label:"):
			label = strings.TrimSpace(strings.TrimPrefix(line, "Label:"))
		case strings.HasPrefix(line, "Explanation:"):
			explanation = strings.TrimSpace(strings.TrimPrefix(line, "Explanation:"))
		case explanation != "" && strings.TrimSpace(line) != "":
			explanation += " " + strings.TrimSpace(line)
		}
	}

	if label == "" && explanation == "" {
		explanation = raw
	}

	return models.Judgment{
		CriterionName: criterionName,
		Label:         label,
		Explanation:   explanation,
		Raw:           raw,
	}
}
