// Package analysis calls the external website analysis engine.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/domain/adapter"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
)

const service = "analysis"

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	log     logrus.FieldLogger
}

// NewClient builds an engine client. httpClient may be nil.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client, log logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    httpClient,
		log:     log.WithField("component", "analysis"),
	}
}

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	URL string `json:"url"`
	audits.Analysis
	OverallScore *int `json:"overallScore,omitempty"`
}

// Analyze posts the URL to {base}/analyze and returns the category payload.
func (c *Client) Analyze(ctx context.Context, url string) (audits.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, _ := json.Marshal(analyzeRequest{URL: url})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return audits.Analysis{}, adapter.InvalidResponse(service, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("url", url).Warn("analysis request failed")
		return audits.Analysis{}, adapter.Classify(service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return audits.Analysis{}, adapter.Classify(service, fmt.Errorf("read body: %w", err))
	}
	c.log.WithFields(logrus.Fields{
		"url":         url,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("analysis response")

	if err := statusError(resp.StatusCode, raw); err != nil {
		return audits.Analysis{}, err
	}

	var out analyzeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return audits.Analysis{}, adapter.InvalidResponse(service, fmt.Errorf("decode: %w", err))
	}
	if out.Analysis.Empty() {
		return audits.Analysis{}, adapter.InvalidResponse(service, errors.New("no category results"))
	}
	return out.Analysis, nil
}

// statusError maps non-2xx responses: 5xx and 429 mean the engine is
// unavailable, other codes mean it rejected or garbled the exchange.
func statusError(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := fmt.Errorf("status %d: %s", code, snippet(body))
	if code >= 500 || code == http.StatusTooManyRequests {
		return adapter.Unavailable(service, err)
	}
	return adapter.InvalidResponse(service, err)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
