package domain

import "time"

// ServiceStatus represents the operational status of a service.
type ServiceStatus string

// Service statuses.
const (
	ServiceStatusOperational   ServiceStatus = "operational"
	ServiceStatusDegraded      ServiceStatus = "degraded"
	ServiceStatusPartialOutage ServiceStatus = "partial_outage"
	ServiceStatusMajorOutage   ServiceStatus = "major_outage"
)

// IsValid checks if the service status is valid.
func (s ServiceStatus) IsValid() bool {
	switch s {
	case ServiceStatusOperational, ServiceStatusDegraded,
		ServiceStatusPartialOutage, ServiceStatusMajorOutage:
		return true
	}
	return false
}

// Rank orders statuses by severity. Operational is 0, unknown values are -1.
func (s ServiceStatus) Rank() int {
	switch s {
	case ServiceStatusOperational:
		return 0
	case ServiceStatusDegraded:
		return 1
	case ServiceStatusPartialOutage:
		return 2
	case ServiceStatusMajorOutage:
		return 3
	}
	return -1
}

// Service represents a monitored component owned by an organization.
type Service struct {
	ID             string               `json:"id"`
	OrganizationID string               `json:"organization_id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Status         ServiceStatus        `json:"status"`
	StatusHistory  []StatusHistoryEntry `json:"status_history"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// StatusHistoryEntry is a single append-only record of a service status change.
type StatusHistoryEntry struct {
	ID        string        `json:"id"`
	ServiceID string        `json:"-"`
	Status    ServiceStatus `json:"status"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}
