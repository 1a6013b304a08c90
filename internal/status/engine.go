// Package status is the single authority that changes a service's status
// and appends to its status history.
package status

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

// Engine errors.
var (
	ErrInvalidStatus   = errors.New("invalid service status")
	ErrServiceNotFound = errors.New("service not found")
)

// Store persists status changes. AppendStatus must update services.status
// and insert the history entry atomically, returning the service with its
// full history loaded.
type Store interface {
	AppendStatus(ctx context.Context, serviceID string, entry *domain.StatusHistoryEntry) (*domain.Service, error)
}

// Publisher receives change events after they are committed.
type Publisher interface {
	Publish(ctx context.Context, event realtime.Event)
}

// Engine derives and records service status changes.
type Engine struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

// NewEngine creates a new status engine.
func NewEngine(store Store, publisher Publisher) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// RecordStatusChange appends {status, message, now} to the service history
// and sets the service status. Repeating the same status appends a new entry.
// The store may restamp the entry with its own clock inside the transaction.
func (e *Engine) RecordStatusChange(ctx context.Context, serviceID string, status domain.ServiceStatus, message string) (*domain.Service, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	entry := &domain.StatusHistoryEntry{
		ServiceID: serviceID,
		Status:    status,
		Message:   message,
		Timestamp: e.now().UTC(),
	}

	service, err := e.store.AppendStatus(ctx, serviceID, entry)
	if err != nil {
		return nil, err
	}

	metrics.StatusChanges.WithLabelValues(string(status)).Inc()

	if e.publisher != nil {
		e.publisher.Publish(ctx, realtime.ServiceEvent(realtime.ActionStatusUpdate, service))
	}

	return service, nil
}

// DeriveStatusFromIncident maps incident severity onto the status an
// affected service takes.
func DeriveStatusFromIncident(severity domain.Severity) domain.ServiceStatus {
	switch severity {
	case domain.SeverityCritical:
		return domain.ServiceStatusMajorOutage
	case domain.SeverityMajor:
		return domain.ServiceStatusPartialOutage
	default:
		return domain.ServiceStatusDegraded
	}
}

// ApplyIncident sets every affected service to the status derived from the
// incident severity. Maintenance never changes service status.
//
// Each service is committed on its own. If one fails, services already
// updated stay updated and the error is returned.
func (e *Engine) ApplyIncident(ctx context.Context, incident *domain.Incident) ([]*domain.Service, error) {
	if incident.Type != domain.IncidentTypeIncident {
		return nil, nil
	}

	status := DeriveStatusFromIncident(incident.Severity)
	message := fmt.Sprintf("Affected by incident: %s", incident.Title)

	return e.applyToAll(ctx, incident.ServiceIDs, status, message)
}

// ResolveAffectedServices sets every affected service back to operational.
// It does not check whether other open incidents still affect a service.
func (e *Engine) ResolveAffectedServices(ctx context.Context, incident *domain.Incident) ([]*domain.Service, error) {
	message := fmt.Sprintf("Incident resolved: %s", incident.Title)
	return e.applyToAll(ctx, incident.ServiceIDs, domain.ServiceStatusOperational, message)
}

func (e *Engine) applyToAll(ctx context.Context, serviceIDs []string, status domain.ServiceStatus, message string) ([]*domain.Service, error) {
	updated := make([]*domain.Service, 0, len(serviceIDs))
	for _, serviceID := range serviceIDs {
		service, err := e.RecordStatusChange(ctx, serviceID, status, message)
		if err != nil {
			if errors.Is(err, ErrServiceNotFound) {
				ctxlog.FromContext(ctx).Warn("affected service no longer exists, skipping",
					slog.String("service_id", serviceID))
				continue
			}
			return updated, fmt.Errorf("update service %s status: %w", serviceID, err)
		}
		updated = append(updated, service)
	}
	return updated, nil
}
