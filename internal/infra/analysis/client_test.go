package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/auditor/internal/domain/adapter"
)

const enginePayload = `{
  "url": "https://example.com",
  "technical": {"score": 80, "issues": [{"type": "warning", "code": "no_sitemap", "message": "Missing sitemap", "recommendation": "Add /sitemap.xml", "impact": "medium"}], "checks": {"https": true}},
  "onPage": {"score": 70, "issues": []},
  "performance": {"score": 90, "issues": [], "data": {"loadTime": 1.2}},
  "security": {"score": 60, "issues": []},
  "mobile": {"score": 75, "issues": []},
  "overallScore": 77
}`

func newClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	log, _ := test.NewNullLogger()
	return NewClient(ts.URL+"/", timeout, ts.Client(), log)
}

func TestAnalyzeDecodesCategories(t *testing.T) {
	var gotPath, gotBody string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, enginePayload)
	}, time.Second)

	res, err := c.Analyze(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "/analyze", gotPath)
	assert.JSONEq(t, `{"url":"https://example.com"}`, gotBody)

	require.NotNil(t, res.Technical)
	assert.Equal(t, 80, res.Technical.Score)
	assert.Equal(t, "no_sitemap", res.Technical.Issues[0].Code)
	assert.True(t, res.Technical.Checks["https"])
	require.NotNil(t, res.Mobile)
	assert.Equal(t, 75, res.Mobile.Score)
	assert.Equal(t, 1.2, res.Performance.Data["loadTime"])
}

func TestAnalyzeFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}, adapter.ErrUnavailable},
		{"throttled", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, adapter.ErrUnavailable},
		{"crawl rejected", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"Failed to crawl URL"}`, http.StatusBadRequest)
		}, adapter.ErrInvalidResponse},
		{"garbage", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>")
		}, adapter.ErrInvalidResponse},
		{"empty object", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"url": "https://example.com"})
		}, adapter.ErrInvalidResponse},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, adapter.ErrTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(t, tc.handler, 100*time.Millisecond)
			_, err := c.Analyze(context.Background(), "https://example.com")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
