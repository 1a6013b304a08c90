// Package catalog manages the services an organization exposes on its
// status page.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/realtime"
	"github.com/bissquit/orgstatus/internal/status"
)

// Catalog errors.
var (
	ErrServiceNotFound = status.ErrServiceNotFound
)

const initialStatusMessage = "Initial status"

// Authorizer checks organization membership.
type Authorizer interface {
	RequireMember(ctx context.Context, orgID, userID string) error
}

// StatusRecorder changes a service's status.
type StatusRecorder interface {
	RecordStatusChange(ctx context.Context, serviceID string, status domain.ServiceStatus, message string) (*domain.Service, error)
}

// Publisher receives committed changes.
type Publisher interface {
	Publish(ctx context.Context, event realtime.Event)
}

// Service implements catalog business logic.
type Service struct {
	repo      Repository
	authority Authorizer
	statuses  StatusRecorder
	publisher Publisher
	now       func() time.Time
}

// NewService creates a new catalog service.
func NewService(repo Repository, authority Authorizer, statuses StatusRecorder, publisher Publisher) *Service {
	return &Service{
		repo:      repo,
		authority: authority,
		statuses:  statuses,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateServiceInput contains data for creating a service.
type CreateServiceInput struct {
	OrganizationID string
	Name           string
	Description    string
	Status         domain.ServiceStatus
}

// CreateService creates a service together with its first history entry.
func (s *Service) CreateService(ctx context.Context, input CreateServiceInput, userID string) (*domain.Service, error) {
	if err := s.authority.RequireMember(ctx, input.OrganizationID, userID); err != nil {
		return nil, err
	}

	initial := input.Status
	if initial == "" {
		initial = domain.ServiceStatusOperational
	}
	if !initial.IsValid() {
		return nil, fmt.Errorf("%w: %s", status.ErrInvalidStatus, initial)
	}

	now := s.now().UTC()
	service := &domain.Service{
		OrganizationID: input.OrganizationID,
		Name:           input.Name,
		Description:    input.Description,
		Status:         initial,
	}
	entry := &domain.StatusHistoryEntry{
		Status:    initial,
		Message:   initialStatusMessage,
		Timestamp: now,
	}

	if err := s.repo.CreateService(ctx, service, entry); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	s.publish(ctx, realtime.ServiceEvent(realtime.ActionCreate, service))
	return service, nil
}

// GetService returns a service with its full history.
func (s *Service) GetService(ctx context.Context, id string) (*domain.Service, error) {
	return s.repo.GetServiceByID(ctx, id)
}

// ListServices returns every service of an organization, oldest first.
func (s *Service) ListServices(ctx context.Context, orgID string) ([]domain.Service, error) {
	services, err := s.repo.ListServicesByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// UpdateStatus records a manual status change.
func (s *Service) UpdateStatus(ctx context.Context, serviceID string, newStatus domain.ServiceStatus, message, userID string) (*domain.Service, error) {
	service, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if err := s.authority.RequireMember(ctx, service.OrganizationID, userID); err != nil {
		return nil, err
	}

	return s.statuses.RecordStatusChange(ctx, serviceID, newStatus, message)
}

// StatusHistoryPage is one page of a service's status history.
type StatusHistoryPage struct {
	Entries []domain.StatusHistoryEntry `json:"entries"`
	Total   int                         `json:"total"`
	Limit   int                         `json:"limit"`
	Offset  int                         `json:"offset"`
}

// ListStatusHistory returns status history newest first.
func (s *Service) ListStatusHistory(ctx context.Context, serviceID, userID string, limit, offset int) (*StatusHistoryPage, error) {
	service, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if err := s.authority.RequireMember(ctx, service.OrganizationID, userID); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListStatusHistory(ctx, serviceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}

	total, err := s.repo.CountStatusHistory(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("count status history: %w", err)
	}

	return &StatusHistoryPage{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// DeleteService removes a service with its history and incident links.
func (s *Service) DeleteService(ctx context.Context, serviceID, userID string) error {
	service, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return err
	}
	if err := s.authority.RequireMember(ctx, service.OrganizationID, userID); err != nil {
		return err
	}

	if err := s.repo.DeleteService(ctx, serviceID); err != nil {
		return err
	}

	s.publish(ctx, realtime.ServiceDeletedEvent(service.OrganizationID, serviceID))
	return nil
}

func (s *Service) publish(ctx context.Context, event realtime.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, event)
	}
}
