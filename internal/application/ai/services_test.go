package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/auditor/internal/domain/ai"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
)

type stubSummarizer struct{ calls int }

func (s *stubSummarizer) Summarize(context.Context, string, audits.Analysis) (ai.Summary, error) {
	s.calls++
	return ai.Summary{Summary: "ok"}, nil
}

func TestServiceDisabled(t *testing.T) {
	var nilSvc *Service
	assert.False(t, nilSvc.Enabled())

	svc := NewService(nil)
	assert.False(t, svc.Enabled())
	_, err := svc.Summarize(context.Background(), "https://example.com", audits.Analysis{})
	assert.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestServiceDelegates(t *testing.T) {
	stub := &stubSummarizer{}
	svc := NewService(stub)
	require.True(t, svc.Enabled())
	s, err := svc.Summarize(context.Background(), "https://example.com", audits.Analysis{})
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Summary)
	assert.Equal(t, 1, stub.calls)
}
