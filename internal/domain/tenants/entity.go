package tenants

// Plan tier of a tenant subscription.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanAgency  Plan = "agency"
)

// DefaultLimit returns the audits-per-period allowance of a plan. Nil means unbounded.
func DefaultLimit(p Plan) *int {
	n := 0
	switch p {
	case PlanFree:
		n = 3
	case PlanStarter:
		n = 50
	case PlanPro:
		n = 250
	case PlanAgency:
		return nil
	}
	return &n
}

// Branding is the per-tenant look applied to rendered reports.
type Branding struct {
	Name         string `json:"name,omitempty"`
	PrimaryColor string `json:"primaryColor,omitempty"`
	LogoURL      string `json:"logoUrl,omitempty"`
}

// Tenant is the billing unit whose quota governs admission.
type Tenant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Plan       Plan      `json:"plan"`
	AuditLimit *int      `json:"auditLimit"`
	Consumed   int       `json:"consumed"`
	Branding   *Branding `json:"branding,omitempty"`
}

// Remaining returns how many audits are still admissible, or nil when unbounded.
func (t *Tenant) Remaining() *int {
	if t.AuditLimit == nil {
		return nil
	}
	r := *t.AuditLimit - t.Consumed
	if r < 0 {
		r = 0
	}
	return &r
}

// CanAdmit reports whether one more audit fits the limit.
func (t *Tenant) CanAdmit() bool {
	if t.AuditLimit == nil {
		return true
	}
	limit := *t.AuditLimit
	if limit <= 0 {
		return false
	}
	return t.Consumed < limit
}
