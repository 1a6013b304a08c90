package incidents

import (
	"fmt"

	"github.com/bissquit/orgstatus/internal/domain"
)

// TransitionPolicy decides whether an incident may move between two statuses.
// It returns an error wrapping ErrInvalidTransition when the move is refused.
type TransitionPolicy func(from, to domain.IncidentStatus) error

// PermissiveTransitions allows any status to follow any other, including
// updates on resolved incidents, which reopen them.
func PermissiveTransitions(_, to domain.IncidentStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, to)
	}
	return nil
}

// LinearTransitions only allows moving forward along
// investigating, identified, monitoring, resolved. Repeating the current
// status is allowed. Resolved incidents are closed.
func LinearTransitions(from, to domain.IncidentStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, to)
	}
	if from.IsResolved() {
		return fmt.Errorf("%w: incident is resolved", ErrInvalidTransition)
	}
	if statusIndex(to) < statusIndex(from) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// TransitionPolicyByName returns the named policy: "permissive" or "linear".
func TransitionPolicyByName(name string) (TransitionPolicy, error) {
	switch name {
	case "", "permissive":
		return PermissiveTransitions, nil
	case "linear":
		return LinearTransitions, nil
	}
	return nil, fmt.Errorf("unknown transition policy %q", name)
}

func statusIndex(s domain.IncidentStatus) int {
	for i, status := range domain.IncidentStatuses {
		if status == s {
			return i
		}
	}
	return -1
}
