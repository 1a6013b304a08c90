// Package incidents drives the incident lifecycle and, through the status
// engine, the status of the services an incident affects.
package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/pkg/ctxlog"
	"github.com/bissquit/orgstatus/internal/pkg/metrics"
	"github.com/bissquit/orgstatus/internal/realtime"
)

// Incident errors.
var (
	ErrIncidentNotFound  = errors.New("incident not found")
	ErrInvalidStatus     = errors.New("invalid incident status")
	ErrInvalidSeverity   = errors.New("invalid incident severity")
	ErrInvalidType       = errors.New("invalid incident type")
	ErrInvalidTransition = errors.New("incident status transition not allowed")
	ErrServicesRequired  = errors.New("services must be an array")
	ErrUnknownServices   = errors.New("services must exist in the incident's organization")
)

// Authorizer checks organization membership.
type Authorizer interface {
	RequireMember(ctx context.Context, orgID, userID string) error
}

// StatusApplier projects incidents onto service status.
type StatusApplier interface {
	ApplyIncident(ctx context.Context, incident *domain.Incident) ([]*domain.Service, error)
	ResolveAffectedServices(ctx context.Context, incident *domain.Incident) ([]*domain.Service, error)
}

// Publisher receives committed changes.
type Publisher interface {
	Publish(ctx context.Context, event realtime.Event)
}

// Option configures a Service.
type Option func(*Service)

// WithTransitionPolicy replaces the default permissive policy.
func WithTransitionPolicy(policy TransitionPolicy) Option {
	return func(s *Service) {
		if policy != nil {
			s.transitions = policy
		}
	}
}

// Service implements incident business logic.
type Service struct {
	repo        Repository
	authority   Authorizer
	statuses    StatusApplier
	publisher   Publisher
	transitions TransitionPolicy
	now         func() time.Time
}

// NewService creates a new incidents service.
func NewService(repo Repository, authority Authorizer, statuses StatusApplier, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		authority:   authority,
		statuses:    statuses,
		publisher:   publisher,
		transitions: PermissiveTransitions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput contains data for creating an incident. A nil ServiceIDs is
// rejected; an empty one is allowed.
type CreateInput struct {
	OrganizationID string
	Title          string
	Description    string
	Severity       domain.Severity
	Type           domain.IncidentType
	Status         domain.IncidentStatus
	ServiceIDs     []string
	StartTime      *time.Time
}

// CreateIncident stores an incident with its first update, then degrades
// the affected services.
//
// The incident commits before any service changes. If a service update
// fails, the incident and the services already updated stay committed.
func (s *Service) CreateIncident(ctx context.Context, input CreateInput, userID string) (*domain.Incident, error) {
	if err := s.authority.RequireMember(ctx, input.OrganizationID, userID); err != nil {
		return nil, err
	}

	if input.ServiceIDs == nil {
		return nil, ErrServicesRequired
	}

	incident := &domain.Incident{
		OrganizationID: input.OrganizationID,
		Title:          input.Title,
		Description:    input.Description,
		Severity:       input.Severity,
		Type:           input.Type,
		Status:         input.Status,
		ServiceIDs:     uniqueIDs(input.ServiceIDs),
		CreatedBy:      userID,
	}
	if incident.Severity == "" {
		incident.Severity = domain.SeverityMinor
	}
	if incident.Type == "" {
		incident.Type = domain.IncidentTypeIncident
	}
	if incident.Status == "" {
		incident.Status = domain.IncidentStatusInvestigating
	}
	if err := validateEnums(incident.Severity, incident.Type, incident.Status); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	incident.StartTime = now
	if input.StartTime != nil {
		incident.StartTime = input.StartTime.UTC()
	}
	if incident.Status.IsResolved() {
		incident.EndTime = &now
	}

	if err := s.checkServices(ctx, incident.OrganizationID, incident.ServiceIDs); err != nil {
		return nil, err
	}

	first := &domain.IncidentUpdate{
		Message:   input.Description,
		Status:    incident.Status,
		CreatedBy: userID,
		CreatedAt: now,
	}

	if err := s.repo.CreateIncident(ctx, incident, first); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	ctxlog.FromContext(ctx).Info("incident created",
		slog.String("incident_id", incident.ID),
		slog.String("organization_id", incident.OrganizationID),
		slog.String("severity", string(incident.Severity)),
		slog.Int("services", len(incident.ServiceIDs)),
	)
	s.publish(ctx, realtime.IncidentEvent(realtime.ActionCreate, incident))

	if _, err := s.statuses.ApplyIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("apply incident to services: %w", err)
	}

	return incident, nil
}

// AppendUpdate posts an update and moves the incident to its status.
// Resolving sets the end time and returns the affected services to
// operational. Updating a resolved incident reopens it and clears the end
// time; service status is left to manual changes in that case.
func (s *Service) AppendUpdate(ctx context.Context, incidentID, message string, status domain.IncidentStatus, userID string) (*domain.Incident, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	incident, err := s.repo.GetIncidentByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.authority.RequireMember(ctx, incident.OrganizationID, userID); err != nil {
		return nil, err
	}
	if err := s.transitions(incident.Status, status); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reopened := incident.Status.IsResolved() && !status.IsResolved()

	incident.Status = status
	switch {
	case status.IsResolved():
		incident.EndTime = &now
	case reopened:
		incident.EndTime = nil
	}

	update := &domain.IncidentUpdate{
		IncidentID: incident.ID,
		Message:    message,
		Status:     status,
		CreatedBy:  userID,
		CreatedAt:  now,
	}
	if err := s.repo.AppendUpdate(ctx, incident, update); err != nil {
		return nil, fmt.Errorf("append incident update: %w", err)
	}
	incident.Updates = append(incident.Updates, *update)

	metrics.IncidentUpdates.WithLabelValues(string(status)).Inc()
	logger := ctxlog.FromContext(ctx)
	if reopened {
		logger.Info("incident reopened", slog.String("incident_id", incident.ID))
	}
	s.publish(ctx, realtime.IncidentEvent(realtime.ActionUpdate, incident))

	if status.IsResolved() && incident.Type == domain.IncidentTypeIncident {
		if _, err := s.statuses.ResolveAffectedServices(ctx, incident); err != nil {
			return nil, fmt.Errorf("resolve affected services: %w", err)
		}
		logger.Info("incident resolved",
			slog.String("incident_id", incident.ID),
			slog.Int("services", len(incident.ServiceIDs)),
		)
	}

	return incident, nil
}

// NullableTime is a patch field that can be omitted, set, or cleared.
type NullableTime struct {
	Set   bool
	Value *time.Time
}

// EditInput lists the fields an edit may overwrite. Nil fields are kept.
type EditInput struct {
	Title       *string
	Description *string
	Severity    *domain.Severity
	Status      *domain.IncidentStatus
	Type        *domain.IncidentType
	ServiceIDs  *[]string
	StartTime   *time.Time
	EndTime     NullableTime
}

// EditIncident overwrites the provided fields. It never appends an update
// and never changes service status.
func (s *Service) EditIncident(ctx context.Context, incidentID string, input EditInput, userID string) (*domain.Incident, error) {
	incident, err := s.repo.GetIncidentByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if err := s.authority.RequireMember(ctx, incident.OrganizationID, userID); err != nil {
		return nil, err
	}

	if input.Title != nil {
		incident.Title = *input.Title
	}
	if input.Description != nil {
		incident.Description = *input.Description
	}
	if input.Severity != nil {
		incident.Severity = *input.Severity
	}
	if input.Type != nil {
		incident.Type = *input.Type
	}
	if input.Status != nil {
		if err := s.transitions(incident.Status, *input.Status); err != nil {
			return nil, err
		}
		incident.Status = *input.Status
	}
	if input.StartTime != nil {
		incident.StartTime = input.StartTime.UTC()
	}
	if input.EndTime.Set {
		incident.EndTime = nil
		if input.EndTime.Value != nil {
			end := input.EndTime.Value.UTC()
			incident.EndTime = &end
		}
	}
	if err := validateEnums(incident.Severity, incident.Type, incident.Status); err != nil {
		return nil, err
	}

	replaceServices := input.ServiceIDs != nil
	if replaceServices {
		if *input.ServiceIDs == nil {
			return nil, ErrServicesRequired
		}
		ids := uniqueIDs(*input.ServiceIDs)
		if err := s.checkServices(ctx, incident.OrganizationID, ids); err != nil {
			return nil, err
		}
		incident.ServiceIDs = ids
	}

	if err := s.repo.UpdateIncident(ctx, incident, replaceServices); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	s.publish(ctx, realtime.IncidentEvent(realtime.ActionUpdate, incident))
	return incident, nil
}

// DeleteIncident removes an incident with its updates. Service status is
// not reverted.
func (s *Service) DeleteIncident(ctx context.Context, incidentID, userID string) error {
	incident, err := s.repo.GetIncidentByID(ctx, incidentID)
	if err != nil {
		return err
	}
	if err := s.authority.RequireMember(ctx, incident.OrganizationID, userID); err != nil {
		return err
	}

	if err := s.repo.DeleteIncident(ctx, incidentID); err != nil {
		return err
	}

	s.publish(ctx, realtime.IncidentDeletedEvent(incident.OrganizationID, incidentID))
	return nil
}

// GetIncident returns an incident with its updates.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.GetIncidentByID(ctx, id)
}

// ListActiveIncidents returns the organization's unresolved incidents.
func (s *Service) ListActiveIncidents(ctx context.Context, orgID string) ([]domain.Incident, error) {
	incidents, err := s.repo.ListActiveIncidents(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}
	return incidents, nil
}

// ListRecentlyResolved returns incidents resolved since the given time.
func (s *Service) ListRecentlyResolved(ctx context.Context, orgID string, since time.Time) ([]domain.Incident, error) {
	incidents, err := s.repo.ListResolvedSince(ctx, orgID, since)
	if err != nil {
		return nil, fmt.Errorf("list resolved incidents: %w", err)
	}
	return incidents, nil
}

func (s *Service) checkServices(ctx context.Context, orgID string, serviceIDs []string) error {
	if len(serviceIDs) == 0 {
		return nil
	}
	count, err := s.repo.CountServicesInOrganization(ctx, orgID, serviceIDs)
	if err != nil {
		return fmt.Errorf("check services: %w", err)
	}
	if count != len(serviceIDs) {
		return ErrUnknownServices
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event realtime.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, event)
	}
}

func validateEnums(severity domain.Severity, incidentType domain.IncidentType, status domain.IncidentStatus) error {
	if !severity.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidSeverity, severity)
	}
	if !incidentType.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidType, incidentType)
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	return nil
}

// uniqueIDs drops repeated ids, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
