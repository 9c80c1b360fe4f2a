// Package notify fans out terminal audit transitions to email and widget webhooks.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/domain/audits"
	"github.com/bryanwahyu/auditor/internal/domain/tenants"
	"github.com/bryanwahyu/auditor/internal/domain/widgets"
	"github.com/bryanwahyu/auditor/internal/metrics"
)

// EventLeadCreated is the webhook event posted for widget audits.
const EventLeadCreated = "lead.created"

type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

type WebhookPoster interface {
	Post(ctx context.Context, url, secret string, payload any) error
}

// LeadCreated is the webhook body.
type LeadCreated struct {
	Event       string  `json:"event"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	AuditID     string  `json:"auditID"`
	Score       *int    `json:"score"`
	ArtifactURL *string `json:"artifactURL"`
}

type Dispatcher struct {
	mailer   Mailer
	webhooks WebhookPoster
	tenants  tenants.Repository
	widgets  widgets.Repository
	links    audits.LinkSigner
	log      logrus.FieldLogger
}

// NewDispatcher builds a dispatcher. A nil mailer or poster disables that channel.
func NewDispatcher(mailer Mailer, webhooks WebhookPoster, tenantRepo tenants.Repository, widgetRepo widgets.Repository, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		mailer:   mailer,
		webhooks: webhooks,
		tenants:  tenantRepo,
		widgets:  widgetRepo,
		log:      log.WithField("component", "notify"),
	}
}

// WithLinks signs the artifact URL placed in emails and webhooks.
func (d *Dispatcher) WithLinks(l audits.LinkSigner) *Dispatcher {
	d.links = l
	return d
}

// Completed sends the completion email and the widget webhook. Failures are
// logged and never returned: the audit is already complete.
func (d *Dispatcher) Completed(ctx context.Context, a *audits.Audit) {
	log := d.log.WithFields(logrus.Fields{"audit_id": a.ID, "tenant_id": a.TenantID})

	var tenant *tenants.Tenant
	if t, err := d.tenants.Get(ctx, a.TenantID); err != nil {
		log.WithError(err).Warn("load tenant for notification")
	} else {
		tenant = t
	}

	a = d.signed(ctx, log, a)
	d.email(ctx, log, a, tenant)
	d.webhook(ctx, log, a)
}

// signed returns a copy of a carrying a signed artifact URL. On error the
// stored URL is kept.
func (d *Dispatcher) signed(ctx context.Context, log logrus.FieldLogger, a *audits.Audit) *audits.Audit {
	if d.links == nil || a.ArtifactURL == nil {
		return a
	}
	u, err := d.links.Sign(ctx, *a.ArtifactURL)
	if err != nil {
		log.WithError(err).Warn("sign artifact url")
		return a
	}
	c := *a
	c.ArtifactURL = &u
	return &c
}

// Failed only records the transition; users poll status for failures.
func (d *Dispatcher) Failed(_ context.Context, a *audits.Audit, cause error) {
	d.log.WithFields(logrus.Fields{"audit_id": a.ID, "tenant_id": a.TenantID}).
		WithError(cause).Warn("audit failed")
	metrics.IncreaseNotifications("failed", "logged")
}

func (d *Dispatcher) email(ctx context.Context, log logrus.FieldLogger, a *audits.Audit, tenant *tenants.Tenant) {
	if d.mailer == nil {
		return
	}
	to := a.NotifyEmail
	if to == "" && tenant != nil {
		to = tenant.Email
	}
	if to == "" {
		log.Debug("no recipient for completion email")
		return
	}

	subject, body, err := completionEmail(a, tenant)
	if err != nil {
		log.WithError(err).Error("render completion email")
		metrics.IncreaseNotifications("email", "error")
		return
	}
	if err := d.mailer.Send(ctx, to, subject, body); err != nil {
		log.WithError(err).Warn("send completion email")
		metrics.IncreaseNotifications("email", "error")
		return
	}
	metrics.IncreaseNotifications("email", "sent")
}

func (d *Dispatcher) webhook(ctx context.Context, log logrus.FieldLogger, a *audits.Audit) {
	if d.webhooks == nil || a.WidgetID == "" || d.widgets == nil {
		return
	}
	w, err := d.widgets.Get(ctx, a.WidgetID)
	if err != nil {
		log.WithError(err).WithField("widget_id", a.WidgetID).Warn("load widget for webhook")
		return
	}
	if w.WebhookURL == "" {
		return
	}

	payload := LeadCreated{
		Event:       EventLeadCreated,
		URL:         a.URL,
		AuditID:     string(a.ID),
		Score:       a.Score,
		ArtifactURL: a.ArtifactURL,
	}
	if a.Lead != nil {
		payload.Email = a.Lead.Email
		payload.Name = a.Lead.Name
	}
	if err := d.webhooks.Post(ctx, w.WebhookURL, w.WebhookSecret, payload); err != nil {
		log.WithError(err).WithField("widget_id", w.ID).Warn("post lead webhook")
		metrics.IncreaseNotifications("webhook", "error")
		return
	}
	metrics.IncreaseNotifications("webhook", "sent")
}

var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<h2>{{.Brand}}: your website audit is ready</h2>
<p>We analysed <strong>{{.URL}}</strong>.</p>
<p style="font-size:28px;margin:16px 0">Score: <strong>{{.Score}}/100</strong></p>
{{if .Summary}}<p>{{.Summary}}</p>{{end}}
<p><a href="{{.ArtifactURL}}">Open the full report</a></p>
</body></html>
`))

func completionEmail(a *audits.Audit, tenant *tenants.Tenant) (subject, body string, err error) {
	brand := "Website audit"
	if tenant != nil {
		if tenant.Branding != nil && tenant.Branding.Name != "" {
			brand = tenant.Branding.Name
		} else if tenant.Name != "" {
			brand = tenant.Name
		}
	}
	data := struct {
		Brand, URL, Summary, ArtifactURL string
		Score                            int
	}{Brand: brand, URL: a.URL}
	if a.Score != nil {
		data.Score = *a.Score
	}
	if a.AISummary != nil {
		data.Summary = *a.AISummary
	}
	if a.ArtifactURL != nil {
		data.ArtifactURL = *a.ArtifactURL
	}

	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return fmt.Sprintf("Your audit for %s scored %d", a.URL, data.Score), buf.String(), nil
}
