package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenantRouter(keys map[string]string) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1/{tenant}", func(r chi.Router) {
		r.Use(APIKeyAuth(keys), RequireValidTenant)
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(GetTenantFromContext(r.Context())))
		})
	})
	return r
}

func TestAPIKeyAuth(t *testing.T) {
	h := tenantRouter(map[string]string{"k-acme": "acme"})

	cases := []struct {
		name, path, auth string
		want             int
	}{
		{"missing header", "/v1/acme/ping", "", http.StatusUnauthorized},
		{"wrong key", "/v1/acme/ping", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "/v1/acme/ping", "Bearer k-acme", http.StatusOK},
		{"bare key", "/v1/acme/ping", "k-acme", http.StatusOK},
		{"other tenant", "/v1/globex/ping", "Bearer k-acme", http.StatusForbidden},
		{"bad tenant id", "/v1/a$b/ping", "Bearer k-acme", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAuthDisabledWithoutKeys(t *testing.T) {
	rec := httptest.NewRecorder()
	tenantRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/acme/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _ := rl.Allow(ctx, "k")
		assert.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "k")
	assert.False(t, ok)
	ok, _ = rl.Allow(ctx, "other")
	assert.True(t, ok, "buckets are per key")

	now = now.Add(31 * time.Second)
	ok, _ = rl.Allow(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	rl.Cleanup(10 * time.Minute)
	assert.Empty(t, rl.buckets)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	log, _ := test.NewNullLogger()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	h := RateLimit(NewRateLimiter(1, time.Minute), time.Minute, log)(ok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	RateLimit(failingLimiter{}, time.Minute, log)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code, "limiter outage fails open")
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"db":    CheckFunc(func(context.Context) error { return nil }),
		"redis": CheckFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":{"status":"unhealthy","message":"connection refused"}`)
	assert.Contains(t, rec.Body.String(), `"db":{"status":"healthy"}`)
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		URL   string `json:"url" validate:"required"`
		Email string `json:"email" validate:"omitempty,email"`
	}
	var b body
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://example.com","email":"a@b.co"}`))
	require.NoError(t, DecodeJSON(req, &b))
	assert.Equal(t, "https://example.com", b.URL)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"not-an-email"}`))
	err := DecodeJSON(req, &body{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `url failed "required"`)
	assert.Contains(t, err.Error(), `email failed "email"`)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.Error(t, DecodeJSON(req, &body{}))
}

func TestValidateIDs(t *testing.T) {
	assert.NoError(t, ValidateTenantID("acme_01"))
	assert.Error(t, ValidateTenantID(""))
	assert.Error(t, ValidateTenantID(strings.Repeat("a", 65)))

	assert.NoError(t, ValidateAuditID("6f1c1a3e-2d4b-4c8e-9a55-1f0e2b3c4d5e"))
	assert.Error(t, ValidateAuditID("a1"))

	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, "hello", SanitizeString(" hel\x00lo\x07 "))
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics("test")
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/v1/{tenant}/quota", func(w http.ResponseWriter, r *http.Request) {})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/acme/quota", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.requests))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("200", "GET", "/v1/{tenant}/quota")))
}
