package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/auditor/internal/domain/adapter"
	"github.com/bryanwahyu/auditor/internal/domain/ai"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewClient("sk-test", ts.URL+"/v1", "gpt-4o-mini", timeout)
}

var sample = audits.Analysis{
	Technical: &audits.CategoryResult{Score: 80, Issues: []audits.Issue{{Type: audits.SeverityError, Message: "No HTTPS redirect"}}},
	OnPage:    &audits.CategoryResult{Score: 70},
}

func TestSummarize(t *testing.T) {
	var req map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &req)
		fixes := `[{"title":"a","description":"1"},{"title":"b","description":"2"},{"title":"","description":"skip"},{"title":"c","description":"3"},{"title":"d","description":"4"},{"title":"e","description":"5"},{"title":"f","description":"6"}]`
		_, _ = io.WriteString(w, completion(`{"summary":" Decent site. ","fixes":`+fixes+`}`))
	}, time.Second)

	s, err := c.Summarize(context.Background(), "https://example.com", sample)
	require.NoError(t, err)
	assert.Equal(t, "Decent site.", s.Summary)
	require.Len(t, s.Fixes, 5)
	assert.Equal(t, "a", s.Fixes[0].Title)
	assert.Equal(t, "e", s.Fixes[4].Title)

	assert.Equal(t, "gpt-4o-mini", req["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])
}

func TestSummarizeErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
		also    error
	}{
		{"quota", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
		}, adapter.ErrUnavailable, ai.ErrQuotaExceeded},
		{"server", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"error":{"message":"upstream","type":"server_error"}}`)
		}, adapter.ErrUnavailable, nil},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, completion("Here is your summary!"))
		}, adapter.ErrInvalidResponse, nil},
		{"empty summary", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, completion(`{"summary":"","fixes":[]}`))
		}, adapter.ErrInvalidResponse, nil},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, adapter.ErrTimeout, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler, 100*time.Millisecond)
			_, err := c.Summarize(context.Background(), "https://example.com", sample)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			if tc.also != nil {
				assert.ErrorIs(t, err, tc.also)
			}
		})
	}
}

func TestParseSummaryStripsFence(t *testing.T) {
	s, err := parseSummary("```json\n{\"summary\":\"ok\",\"fixes\":[]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Summary)
	assert.Empty(t, s.Fixes)
}
