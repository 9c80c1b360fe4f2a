// Package render produces the audit document, either through the remote
// rendering engine or with the built-in HTML template.
package render

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

const service = "render"

// Client calls the remote rendering engine.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	log     logrus.FieldLogger
}

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
		log:     log.WithField("component", "render"),
	}
}

type renderResponse struct {
	ArtifactURL string `json:"artifactURL"`
}

func (c *Client) Render(ctx context.Context, req audits.RenderRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return "", adapter.InvalidResponse(service, fmt.Errorf("encode request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return "", adapter.InvalidResponse(service, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.WithError(err).WithField("audit_id", req.AuditID).Warn("render request failed")
		return "", adapter.Classify(service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", adapter.Classify(service, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", adapter.Unavailable(service, err)
		}
		return "", adapter.InvalidResponse(service, err)
	}

	var out renderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", adapter.InvalidResponse(service, fmt.Errorf("decode: %w", err))
	}
	if strings.TrimSpace(out.ArtifactURL) == "" {
		return "", adapter.InvalidResponse(service, errors.New("missing artifactURL"))
	}
	return out.ArtifactURL, nil
}
