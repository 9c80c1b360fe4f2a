package audits

import (
	"context"
	"time"

	"github.com/bryanwahyu/auditor/internal/domain/tenants"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, a *Audit) error
	Get(ctx context.Context, tenant string, id AuditID) (*Audit, error)
	Find(ctx context.Context, id AuditID) (*Audit, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Audit, error)

	// MarkProcessing moves a non-terminal audit to processing and bumps its
	// attempt counter. It reports false when the audit is already terminal.
	MarkProcessing(ctx context.Context, id AuditID) (bool, error)

	// Complete writes the completion fields. It always overwrites them and
	// reports true only when this call performed the transition to complete.
	Complete(ctx context.Context, c Completion) (bool, error)

	// MarkFailed moves a non-complete audit to failed and clears its artifact.
	MarkFailed(ctx context.Context, id AuditID, at time.Time) (bool, error)

	// Stuck lists pending or processing audits last touched before the cutoff.
	Stuck(ctx context.Context, before time.Time, limit int) ([]*Audit, error)
}

// StageErrorRepository stores per-stage failures for troubleshooting.
type StageErrorRepository interface {
	Save(ctx context.Context, e *StageError) error
	ListByAudit(ctx context.Context, tenant string, id AuditID, limit int) ([]*StageError, error)
}

// Analyzer wraps the external website analysis engine.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (Analysis, error)
}

// RenderRequest is the input of the rendering engine.
type RenderRequest struct {
	AuditID   AuditID           `json:"auditID"`
	TenantID  string            `json:"-"`
	URL       string            `json:"url"`
	Score     int               `json:"score"`
	Analysis  Analysis          `json:"analysisResult"`
	AISummary *string           `json:"aiSummary,omitempty"`
	TopFixes  []Fix             `json:"topFixes,omitempty"`
	Branding  *tenants.Branding `json:"branding,omitempty"`
}

// Renderer produces the audit document and returns where it can be fetched.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// LinkSigner turns a stored artifact URL into one a client can open now.
// Stored URLs stay stable; anything time limited is minted on read.
type LinkSigner interface {
	Sign(ctx context.Context, artifactURL string) (string, error)
}

// Transactor runs fn inside one store transaction carried by ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
