package ai

import (
	"context"

	"github.com/bryanwahyu/auditor/internal/domain/audits"
)

// Summary is the AI digest of an analysis payload.
type Summary struct {
	Summary string       `json:"summary"`
	Fixes   []audits.Fix `json:"fixes"`
}

// Summarizer turns a full analysis payload into a short summary and ranked fixes.
type Summarizer interface {
	Summarize(ctx context.Context, url string, analysis audits.Analysis) (Summary, error)
}
