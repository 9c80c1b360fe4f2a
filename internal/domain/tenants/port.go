package tenants

import "context"

// Repository port for tenant quota rows.
type Repository interface {
	Get(ctx context.Context, id string) (*Tenant, error)
	Save(ctx context.Context, t *Tenant) error
	// IncrementConsumed atomically adds one to the consumed counter.
	IncrementConsumed(ctx context.Context, id string) error
}
