package audits

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/application"
	"github.com/bryanwahyu/auditor/internal/application/quota"
	domain "github.com/bryanwahyu/auditor/internal/domain/audits"
	"github.com/bryanwahyu/auditor/internal/domain/jobs"
	"github.com/bryanwahyu/auditor/internal/domain/widgets"
	"github.com/bryanwahyu/auditor/internal/metrics"
)

// Service implements intake and the read side of audits.
// It is safe for concurrent use.
type Service struct {
	Repo    domain.Repository
	Errors  domain.StageErrorRepository
	Widgets widgets.Repository
	Quota   *quota.Ledger
	Queue   jobs.Enqueuer
	Clock   application.Clock
	Log     logrus.FieldLogger
	// Links signs artifact URLs on read. Nil serves them as stored.
	Links domain.LinkSigner
}

//
// ==== USE CASES ====
//

// SubmitCommand untuk request audit dari API
type SubmitCommand struct {
	TenantID string
	URL      string
	Email    string
	ClientID string
}

// LeadCommand untuk submission dari widget
type LeadCommand struct {
	WidgetID string
	URL      string
	Email    string
	Name     string
}

type SubmitResult struct {
	AuditID   string        `json:"auditId"`
	Status    domain.Status `json:"status"`
	Remaining *int          `json:"remaining,omitempty"`
}

// Submit validates the URL, admits against quota, records a pending audit and enqueues its job.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	a := &domain.Audit{
		TenantID:    cmd.TenantID,
		ClientID:    strings.TrimSpace(cmd.ClientID),
		URL:         strings.TrimSpace(cmd.URL),
		NotifyEmail: strings.TrimSpace(cmd.Email),
	}
	return s.intake(ctx, "api", a)
}

// SubmitLead checks the widget's required fields before anything is created.
func (s *Service) SubmitLead(ctx context.Context, cmd LeadCommand) (SubmitResult, error) {
	w, err := s.Widgets.Get(ctx, cmd.WidgetID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !w.Active {
		return SubmitResult{}, widgets.ErrWidgetNotFound
	}
	email := strings.TrimSpace(cmd.Email)
	name := strings.TrimSpace(cmd.Name)
	if err := w.CheckLead(email, name); err != nil {
		metrics.IncreaseSubmissionsTotal("widget", "rejected")
		return SubmitResult{}, err
	}

	a := &domain.Audit{
		TenantID:    w.TenantID,
		WidgetID:    w.ID,
		URL:         strings.TrimSpace(cmd.URL),
		NotifyEmail: email,
	}
	if email != "" || name != "" {
		a.Lead = &domain.Lead{Name: name, Email: email}
	}
	return s.intake(ctx, "widget", a)
}

func (s *Service) intake(ctx context.Context, source string, a *domain.Audit) (SubmitResult, error) {
	if err := domain.ValidateURL(a.URL); err != nil {
		metrics.IncreaseSubmissionsTotal(source, "invalid")
		return SubmitResult{}, err
	}
	adm, err := s.Quota.TryAdmit(ctx, a.TenantID)
	if err != nil {
		metrics.IncreaseSubmissionsTotal(source, "rejected")
		return SubmitResult{}, err
	}

	now := s.Clock.Now().UTC()
	a.ID = domain.AuditID(uuid.New().String())
	a.Status = domain.StatusPending
	a.CreatedAt = now
	if err := s.Repo.Create(ctx, a); err != nil {
		return SubmitResult{}, fmt.Errorf("create audit: %w", err)
	}

	log := s.Log.WithFields(logrus.Fields{"audit_id": a.ID, "tenant_id": a.TenantID})
	job := jobs.Job{
		AuditID:     string(a.ID),
		URL:         a.URL,
		TenantID:    a.TenantID,
		EnqueuedAt:  now,
		AvailableAt: now,
	}
	if err := s.Queue.Enqueue(ctx, job); err != nil {
		// without a job nothing would ever pick the audit up
		if _, ferr := s.Repo.MarkFailed(ctx, a.ID, s.Clock.Now().UTC()); ferr != nil {
			log.WithError(ferr).Error("mark audit failed after enqueue error")
		}
		metrics.IncreaseSubmissionsTotal(source, "enqueue_error")
		return SubmitResult{}, fmt.Errorf("enqueue audit %s: %w", a.ID, err)
	}

	log.WithField("source", source).Info("audit submitted")
	metrics.IncreaseSubmissionsTotal(source, "admitted")
	return SubmitResult{AuditID: string(a.ID), Status: a.Status, Remaining: adm.Remaining}, nil
}

// Get ambil 1 audit by id
func (s *Service) Get(ctx context.Context, tenant string, id domain.AuditID) (*domain.Audit, error) {
	a, err := s.Repo.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if err := s.sign(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Latest ambil N audit terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Audit, error) {
	list, err := s.Repo.Latest(ctx, tenant, limit)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		if err := s.sign(ctx, a); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *Service) sign(ctx context.Context, a *domain.Audit) error {
	if s.Links == nil || a.ArtifactURL == nil {
		return nil
	}
	u, err := s.Links.Sign(ctx, *a.ArtifactURL)
	if err != nil {
		return fmt.Errorf("sign artifact of %s: %w", a.ID, err)
	}
	a.ArtifactURL = &u
	return nil
}

// StageErrors returns the failure log of one audit, newest first.
func (s *Service) StageErrors(ctx context.Context, tenant string, id domain.AuditID, limit int) ([]*domain.StageError, error) {
	if _, err := s.Repo.Get(ctx, tenant, id); err != nil {
		return nil, err
	}
	return s.Errors.ListByAudit(ctx, tenant, id, limit)
}

// Usage reports the tenant's plan usage.
func (s *Service) Usage(ctx context.Context, tenant string) (quota.Usage, error) {
	return s.Quota.Usage(ctx, tenant)
}
