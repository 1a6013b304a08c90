package catalog

import (
	"context"

	"github.com/bissquit/orgstatus/internal/domain"
)

// Repository defines the interface for catalog data operations.
type Repository interface {
	// CreateService inserts the service and its first history entry in one
	// transaction.
	CreateService(ctx context.Context, service *domain.Service, initial *domain.StatusHistoryEntry) error
	GetServiceByID(ctx context.Context, id string) (*domain.Service, error)
	ListServicesByOrganization(ctx context.Context, orgID string) ([]domain.Service, error)
	DeleteService(ctx context.Context, id string) error

	// AppendStatus sets the service status and appends a history entry in
	// one transaction.
	AppendStatus(ctx context.Context, serviceID string, entry *domain.StatusHistoryEntry) (*domain.Service, error)
	ListStatusHistory(ctx context.Context, serviceID string, limit, offset int) ([]domain.StatusHistoryEntry, error)
	CountStatusHistory(ctx context.Context, serviceID string) (int, error)
}
