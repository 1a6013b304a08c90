package domain

import "time"

// IncidentType distinguishes outages from planned maintenance.
type IncidentType string

// Incident types.
const (
	IncidentTypeIncident    IncidentType = "incident"
	IncidentTypeMaintenance IncidentType = "maintenance"
)

// IsValid checks if the incident type is valid.
func (t IncidentType) IsValid() bool {
	return t == IncidentTypeIncident || t == IncidentTypeMaintenance
}

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusIdentified    IncidentStatus = "identified"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// IncidentStatuses lists all incident statuses in their nominal order.
var IncidentStatuses = []IncidentStatus{
	IncidentStatusInvestigating,
	IncidentStatusIdentified,
	IncidentStatusMonitoring,
	IncidentStatusResolved,
}

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusInvestigating, IncidentStatusIdentified,
		IncidentStatusMonitoring, IncidentStatusResolved:
		return true
	}
	return false
}

// IsResolved reports whether the status is terminal.
func (s IncidentStatus) IsResolved() bool {
	return s == IncidentStatusResolved
}

// Severity represents the severity level of an incident.
type Severity string

// Severity levels.
const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	return s == SeverityMinor || s == SeverityMajor || s == SeverityCritical
}

// Incident represents a reported outage or maintenance window.
type Incident struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Severity       Severity         `json:"severity"`
	Type           IncidentType     `json:"type"`
	Status         IncidentStatus   `json:"status"`
	ServiceIDs     []string         `json:"services"`
	Updates        []IncidentUpdate `json:"updates"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        *time.Time       `json:"end_time"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IncidentUpdate is an append-only status message posted on an incident.
type IncidentUpdate struct {
	ID         string         `json:"id"`
	IncidentID string         `json:"-"`
	Message    string         `json:"message"`
	Status     IncidentStatus `json:"status"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
}
