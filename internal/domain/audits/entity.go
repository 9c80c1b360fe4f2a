package audits

import (
	"time"
)

// AuditID tipe untuk Audit
type AuditID string

// Status enum
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further stage execution happens in this status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Lead is the contact captured by a widget submission.
type Lead struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Fix is one ranked recommendation produced by the summarizer.
type Fix struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Aggregate Root: Audit
type Audit struct {
	ID          AuditID    `json:"id"`
	TenantID    string     `json:"tenantId"`
	ClientID    string     `json:"clientId,omitempty"`
	WidgetID    string     `json:"widgetId,omitempty"`
	URL         string     `json:"url"`
	Lead        *Lead      `json:"lead,omitempty"`
	NotifyEmail string     `json:"-"`
	Status      Status     `json:"status"`
	Score       *int       `json:"score"`
	Analysis    *Analysis  `json:"analysisResult"`
	AISummary   *string    `json:"aiSummary"`
	TopFixes    []Fix      `json:"topFixes"`
	ArtifactURL *string    `json:"artifactURL"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// Completion carries everything the persist stage writes in one atomic update.
type Completion struct {
	AuditID     AuditID
	Score       int
	Analysis    Analysis
	AISummary   *string
	TopFixes    []Fix
	ArtifactURL string
	CompletedAt time.Time
}

// Stage names a pipeline step.
type Stage string

const (
	StageAnalyze   Stage = "analyze"
	StageScore     Stage = "score"
	StageSummarize Stage = "summarize"
	StageRender    Stage = "render"
	StagePersist   Stage = "persist"
	StageNotify    Stage = "notify"
)

// StageError is a persisted record of one failed stage execution.
type StageError struct {
	ID        int64     `json:"id"`
	AuditID   AuditID   `json:"auditId"`
	TenantID  string    `json:"tenantId"`
	Stage     Stage     `json:"stage"`
	Attempt   int       `json:"attempt"`
	Message   string    `json:"message"`
	Absorbed  bool      `json:"absorbed"`
	CreatedAt time.Time `json:"createdAt"`
}
