package tenants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestCanAdmit(t *testing.T) {
	tests := []struct {
		name     string
		limit    *int
		consumed int
		want     bool
	}{
		{"unbounded", nil, 10000, true},
		{"below limit", intp(5), 3, true},
		{"limit minus one", intp(5), 4, true},
		{"at limit", intp(5), 5, false},
		{"over limit", intp(5), 9, false},
		{"zero limit", intp(0), 0, false},
		{"negative limit", intp(-1), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tn := &Tenant{AuditLimit: tt.limit, Consumed: tt.consumed}
			assert.Equal(t, tt.want, tn.CanAdmit())
		})
	}
}

func TestRemaining(t *testing.T) {
	assert.Nil(t, (&Tenant{}).Remaining())
	assert.Equal(t, 2, *(&Tenant{AuditLimit: intp(5), Consumed: 3}).Remaining())
	assert.Equal(t, 0, *(&Tenant{AuditLimit: intp(5), Consumed: 7}).Remaining())
}

func TestDefaultLimit(t *testing.T) {
	assert.Equal(t, 3, *DefaultLimit(PlanFree))
	assert.Equal(t, 50, *DefaultLimit(PlanStarter))
	assert.Equal(t, 250, *DefaultLimit(PlanPro))
	assert.Nil(t, DefaultLimit(PlanAgency))
	assert.Equal(t, 0, *DefaultLimit(Plan("unknown")))
}
