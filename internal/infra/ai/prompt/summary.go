package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/auditor/internal/domain/audits"
)

// MaxFixes is the number of fixes the model is asked for and the number kept.
const MaxFixes = 5

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return fmt.Sprintf(`You are a senior SEO consultant writing for a small business owner. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- summary is 2 to 4 plain sentences describing the overall health of the site and the biggest opportunity.
- fixes holds at most %d items ordered by expected impact, highest first.
- Each fix has a short imperative title and a one or two sentence description a non-developer can act on.
- Only use facts present in the audit data. Do not invent metrics.

Schema (example with empty values):
{
  "summary": "<string>",
  "fixes": [
    {"title": "<string>", "description": "<string>"}
  ]
}`, MaxFixes)
}

type categoryDigest struct {
	Category audits.Category `json:"category"`
	Score    int             `json:"score"`
	Issues   []IssueDigest   `json:"issues,omitempty"`
}

// GetUserPrompt builds a compact user message around the audit result.
func GetUserPrompt(url string, score int, analysis audits.Analysis) (string, error) {
	digest := make([]categoryDigest, 0, len(audits.Categories))
	for _, c := range audits.Categories {
		r := analysis.Category(c)
		if r == nil {
			continue
		}
		digest = append(digest, categoryDigest{Category: c, Score: r.Score, Issues: TopIssues(r.Issues, maxIssuesPerCategory)})
	}
	b, err := json.Marshal(digest)
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit digest: %w", err)
	}
	return fmt.Sprintf("Website: %s\nOverall score: %d/100\nAudit data (JSON): %s\nRespond with the JSON per schema.", url, score, b), nil
}
