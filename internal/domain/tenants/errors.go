package tenants

import "errors"

var (
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrQuotaExceeded means the tenant used its plan allowance; callers surface it as "upgrade your plan".
	ErrQuotaExceeded = errors.New("audit quota exceeded")
)
