package ai

import (
	"context"

	"github.com/bryanwahyu/auditor/internal/domain/ai"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
)

type Service struct {
	client ai.Summarizer
}

// NewService wraps client. A nil client disables summarization.
func NewService(client ai.Summarizer) *Service {
	return &Service{client: client}
}

func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *Service) Summarize(ctx context.Context, url string, analysis audits.Analysis) (ai.Summary, error) {
	if !s.Enabled() {
		return ai.Summary{}, ai.ErrNotConfigured
	}
	return s.client.Summarize(ctx, url, analysis)
}
