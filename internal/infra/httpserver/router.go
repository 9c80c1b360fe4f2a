package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	appaudits "github.com/bryanwahyu/auditor/internal/application/audits"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
	"github.com/bryanwahyu/auditor/internal/domain/tenants"
	"github.com/bryanwahyu/auditor/internal/domain/widgets"
	"github.com/bryanwahyu/auditor/internal/middleware"
)

// Options wires the router. Zero values disable the optional parts.
type Options struct {
	Audits      *appaudits.Service
	Checkers    map[string]middleware.HealthChecker
	APIKeys     map[string]string
	CORSOrigins []string
	Limiter     middleware.Limiter
	RateWindow  time.Duration
	Metrics     *middleware.Metrics
	Log         logrus.FieldLogger
}

type Router struct {
	audits *appaudits.Service
	log    logrus.FieldLogger
}

func NewRouter(opts Options) http.Handler {
	r := &Router{audits: opts.Audits, log: opts.Log.WithField("component", "http")}
	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.Recoverer, middleware.Logging(opts.Log))
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Handler)
	}

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.HealthHandler(opts.Checkers))
	mux.Get("/readyz", middleware.ReadinessHandler)
	mux.Handle("/metrics", promhttp.Handler())

	limit := func(h http.Handler) http.Handler { return h }
	if opts.Limiter != nil {
		limit = middleware.RateLimit(opts.Limiter, opts.RateWindow, opts.Log)
	}

	// public lead capture, embedded on customer sites
	mux.Group(func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		rt.With(limit).Post("/v1/widgets/{widgetID}/leads", r.wrap(r.handleLead))
		// preflight only reaches the cors handler through a matching route
		rt.Options("/v1/widgets/{widgetID}/leads", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys), middleware.RequireValidTenant)
		rt.With(limit).Post("/audits", r.wrap(r.handleSubmit))
		rt.Get("/audits", r.wrap(r.handleLatest))
		rt.Get("/audits/{id}", r.wrap(r.handleGet))
		rt.Get("/audits/{id}/errors", r.wrap(r.handleErrors))
		rt.Get("/quota", r.wrap(r.handleQuota))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type badRequest struct{ error }

func (e badRequest) Unwrap() error { return e.error }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var br badRequest
		switch {
		case errors.As(err, &br),
			errors.Is(err, audits.ErrInvalidURL),
			errors.Is(err, widgets.ErrLeadEmailRequired),
			errors.Is(err, widgets.ErrLeadNameRequired):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		case errors.Is(err, tenants.ErrQuotaExceeded):
			writeJSON(w, http.StatusPaymentRequired, errorBody{Error: "upgrade your plan", Code: "quota_exceeded"})
		case errors.Is(err, tenants.ErrTenantNotFound),
			errors.Is(err, widgets.ErrWidgetNotFound),
			errors.Is(err, audits.ErrAuditNotFound):
			writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		default:
			r.log.WithError(err).WithField("path", req.URL.Path).Error("request failed")
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		}
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /v1/{tenant}/audits
// Body: {"url": "...", "email": "...", "clientId": "..."}
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URL      string `json:"url" validate:"required,max=2048"`
		Email    string `json:"email" validate:"omitempty,email"`
		ClientID string `json:"clientId" validate:"omitempty,max=64"`
	}
	if err := middleware.DecodeJSON(req, &body); err != nil {
		return badRequest{err}
	}

	res, err := r.audits.Submit(req.Context(), appaudits.SubmitCommand{
		TenantID: chi.URLParam(req, "tenant"),
		URL:      body.URL,
		Email:    body.Email,
		ClientID: middleware.SanitizeString(body.ClientID),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, res)
	return nil
}

// POST /v1/widgets/{widgetID}/leads
// Body: {"url": "...", "email": "...", "name": "..."}
func (r *Router) handleLead(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URL   string `json:"url" validate:"required,max=2048"`
		Email string `json:"email" validate:"omitempty,email"`
		Name  string `json:"name" validate:"omitempty,max=200"`
	}
	if err := middleware.DecodeJSON(req, &body); err != nil {
		return badRequest{err}
	}

	res, err := r.audits.SubmitLead(req.Context(), appaudits.LeadCommand{
		WidgetID: chi.URLParam(req, "widgetID"),
		URL:      body.URL,
		Email:    body.Email,
		Name:     middleware.SanitizeString(body.Name),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Your audit is being prepared.",
		"auditId": res.AuditID,
	})
	return nil
}

// GET /v1/{tenant}/audits?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.audits.Latest(req.Context(), chi.URLParam(req, "tenant"), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*audits.Audit{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/{tenant}/audits/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAuditID(id); err != nil {
		return badRequest{err}
	}
	a, err := r.audits.Get(req.Context(), chi.URLParam(req, "tenant"), audits.AuditID(id))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, a)
	return nil
}

// GET /v1/{tenant}/audits/{id}/errors?limit=50
func (r *Router) handleErrors(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAuditID(id); err != nil {
		return badRequest{err}
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.audits.StageErrors(req.Context(), chi.URLParam(req, "tenant"), audits.AuditID(id), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*audits.StageError{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/{tenant}/quota
func (r *Router) handleQuota(w http.ResponseWriter, req *http.Request) error {
	u, err := r.audits.Usage(req.Context(), chi.URLParam(req, "tenant"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, u)
	return nil
}
