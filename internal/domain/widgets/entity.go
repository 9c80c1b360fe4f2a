package widgets

import (
	"context"
	"errors"
)

var ErrWidgetNotFound = errors.New("widget not found")

// Widget is the embeddable lead-capture form configuration of a tenant.
type Widget struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	RequireEmail  bool   `json:"requireEmail"`
	RequireName   bool   `json:"requireName"`
	WebhookURL    string `json:"webhookUrl,omitempty"`
	WebhookSecret string `json:"-"`
	Active        bool   `json:"active"`
}

// Repository port for widget configs.
type Repository interface {
	Get(ctx context.Context, id string) (*Widget, error)
	Save(ctx context.Context, w *Widget) error
}

// Lead capture validation failures.
var (
	ErrLeadEmailRequired = errors.New("email is required")
	ErrLeadNameRequired  = errors.New("name is required")
)

// CheckLead applies the widget's required-field rules.
func (w *Widget) CheckLead(email, name string) error {
	if w.RequireEmail && email == "" {
		return ErrLeadEmailRequired
	}
	if w.RequireName && name == "" {
		return ErrLeadNameRequired
	}
	return nil
}
