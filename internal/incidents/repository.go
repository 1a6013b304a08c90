package incidents

import (
	"context"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
)

// Repository defines the interface for incident data operations.
type Repository interface {
	// CreateIncident inserts the incident, its first update and its service
	// associations in one transaction.
	CreateIncident(ctx context.Context, incident *domain.Incident, first *domain.IncidentUpdate) error
	GetIncidentByID(ctx context.Context, id string) (*domain.Incident, error)

	// AppendUpdate inserts the update and writes the incident's status and
	// end time in one transaction.
	AppendUpdate(ctx context.Context, incident *domain.Incident, update *domain.IncidentUpdate) error

	// UpdateIncident writes incident fields. When replaceServices is set the
	// service associations are replaced in the same transaction.
	UpdateIncident(ctx context.Context, incident *domain.Incident, replaceServices bool) error
	DeleteIncident(ctx context.Context, id string) error

	// ListActiveIncidents returns unresolved incidents, newest start first.
	ListActiveIncidents(ctx context.Context, orgID string) ([]domain.Incident, error)
	// ListResolvedSince returns incidents resolved at or after since, newest
	// end first.
	ListResolvedSince(ctx context.Context, orgID string, since time.Time) ([]domain.Incident, error)

	// CountServicesInOrganization counts how many of serviceIDs belong to orgID.
	CountServicesInOrganization(ctx context.Context, orgID string, serviceIDs []string) (int, error)
}
