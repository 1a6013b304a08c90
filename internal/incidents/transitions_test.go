package incidents

import (
	"testing"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissiveTransitions_CompleteGraph(t *testing.T) {
	for _, from := range domain.IncidentStatuses {
		for _, to := range domain.IncidentStatuses {
			assert.NoError(t, PermissiveTransitions(from, to), "%s -> %s", from, to)
		}
	}
	assert.ErrorIs(t, PermissiveTransitions(domain.IncidentStatusInvestigating, "paused"), ErrInvalidStatus)
}

func TestLinearTransitions(t *testing.T) {
	tests := []struct {
		from    domain.IncidentStatus
		to      domain.IncidentStatus
		allowed bool
	}{
		{domain.IncidentStatusInvestigating, domain.IncidentStatusIdentified, true},
		{domain.IncidentStatusInvestigating, domain.IncidentStatusResolved, true},
		{domain.IncidentStatusIdentified, domain.IncidentStatusIdentified, true},
		{domain.IncidentStatusMonitoring, domain.IncidentStatusResolved, true},
		{domain.IncidentStatusMonitoring, domain.IncidentStatusInvestigating, false},
		{domain.IncidentStatusResolved, domain.IncidentStatusResolved, false},
		{domain.IncidentStatusResolved, domain.IncidentStatusMonitoring, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			err := LinearTransitions(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestTransitionPolicyByName(t *testing.T) {
	for _, name := range []string{"", "permissive", "linear"} {
		policy, err := TransitionPolicyByName(name)
		require.NoError(t, err)
		assert.NotNil(t, policy)
	}

	_, err := TransitionPolicyByName("strict")
	assert.Error(t, err)
}
