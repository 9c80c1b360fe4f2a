package prompt

import (
	"sort"
	"strings"

	"github.com/bryanwahyu/auditor/internal/domain/audits"
)

const (
	maxIssuesPerCategory = 8
	maxTextLen           = 240
)

// IssueDigest is the trimmed form of an issue sent to the model.
type IssueDigest struct {
	Severity       audits.Severity `json:"severity"`
	Message        string          `json:"message"`
	Recommendation string          `json:"recommendation,omitempty"`
	Impact         string          `json:"impact,omitempty"`
}

var severityRank = map[audits.Severity]int{
	audits.SeverityError:   0,
	audits.SeverityWarning: 1,
	audits.SeverityInfo:    2,
}

var impactRank = map[string]int{"high": 0, "medium": 1, "low": 2}

func rank(m map[string]int, k string) int {
	if r, ok := m[strings.ToLower(k)]; ok {
		return r
	}
	return len(m)
}

// TopIssues orders issues by severity then impact and keeps the first n,
// trimming long text so the prompt stays small.
func TopIssues(issues []audits.Issue, n int) []IssueDigest {
	sorted := make([]audits.Issue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, ok := severityRank[sorted[i].Type]
		if !ok {
			si = len(severityRank)
		}
		sj, ok := severityRank[sorted[j].Type]
		if !ok {
			sj = len(severityRank)
		}
		if si != sj {
			return si < sj
		}
		return rank(impactRank, sorted[i].Impact) < rank(impactRank, sorted[j].Impact)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	// Helper to keep summaries concise
	trim := func(s string) string {
		s = strings.TrimSpace(s)
		if len(s) <= maxTextLen {
			return s
		}
		return s[:maxTextLen] + "..."
	}

	out := make([]IssueDigest, 0, len(sorted))
	for _, is := range sorted {
		out = append(out, IssueDigest{
			Severity:       is.Type,
			Message:        trim(is.Message),
			Recommendation: trim(is.Recommendation),
			Impact:         is.Impact,
		})
	}
	return out
}
