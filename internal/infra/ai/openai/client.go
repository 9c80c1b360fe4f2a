package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/auditor/internal/domain/adapter"
	"github.com/bryanwahyu/auditor/internal/domain/ai"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
	"github.com/bryanwahyu/auditor/internal/infra/ai/prompt"
)

const (
	maxTokens    = 1024
	service      = "ai"
	defaultModel = "gpt-4o-mini"
)

type Client struct {
	*openai.Client
	Model   string
	Timeout time.Duration
}

// NewClient builds a chat client. baseURL is optional and lets the adapter
// talk to any OpenAI compatible endpoint.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, Timeout: timeout}
}

type summaryPayload struct {
	Summary string       `json:"summary"`
	Fixes   []audits.Fix `json:"fixes"`
}

// Summarize asks the model for a short digest and up to prompt.MaxFixes fixes.
func (c *Client) Summarize(ctx context.Context, url string, analysis audits.Analysis) (ai.Summary, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	score := audits.CompositeScore(analysis.SubScores())
	userPrompt, err := prompt.GetUserPrompt(url, score, analysis)
	if err != nil {
		return ai.Summary{}, adapter.InvalidResponse(service, err)
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return ai.Summary{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return ai.Summary{}, adapter.InvalidResponse(service, errors.New("no choices returned"))
	}
	return parseSummary(resp.Choices[0].Message.Content)
}

func parseSummary(content string) (ai.Summary, error) {
	content = strings.TrimSpace(content)
	// some models still wrap JSON mode output in a fence
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var p summaryPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return ai.Summary{}, adapter.InvalidResponse(service, fmt.Errorf("decode completion: %w", err))
	}
	if strings.TrimSpace(p.Summary) == "" {
		return ai.Summary{}, adapter.InvalidResponse(service, errors.New("empty summary"))
	}
	fixes := make([]audits.Fix, 0, len(p.Fixes))
	for _, f := range p.Fixes {
		if strings.TrimSpace(f.Title) == "" {
			continue
		}
		fixes = append(fixes, f)
		if len(fixes) == prompt.MaxFixes {
			break
		}
	}
	return ai.Summary{Summary: strings.TrimSpace(p.Summary), Fixes: fixes}, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return adapter.Unavailable(service, fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, apiErr.Message))
		case apiErr.HTTPStatusCode >= 500:
			return adapter.Unavailable(service, err)
		case apiErr.HTTPStatusCode >= 400:
			return adapter.InvalidResponse(service, err)
		}
	}
	return adapter.Classify(service, fmt.Errorf("failed to create chat completion: %w", err))
}
