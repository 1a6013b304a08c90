// Package realtime broadcasts committed service and incident changes to
// connected subscribers.
package realtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/google/uuid"
)

// Action describes what happened to the entity carried by an event.
type Action string

// Event actions.
const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionStatusUpdate Action = "status-update"
	ActionDelete       Action = "delete"
)

// Kind is the entity kind of a channel.
type Kind string

// Channel kinds.
const (
	KindServices  Kind = "services"
	KindIncidents Kind = "incidents"
)

// Channel returns the channel name for an organization and entity kind.
func Channel(orgID string, kind Kind) string {
	return fmt.Sprintf("organization:%s:%s:update", orgID, kind)
}

// OrganizationChannels returns every channel of an organization.
func OrganizationChannels(orgID string) []string {
	return []string{Channel(orgID, KindServices), Channel(orgID, KindIncidents)}
}

// ParseChannel validates a channel name and returns its organization and kind.
func ParseChannel(channel string) (string, Kind, error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[0] != "organization" || parts[3] != "update" {
		return "", "", fmt.Errorf("invalid channel %q", channel)
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return "", "", fmt.Errorf("invalid organization id in channel %q", channel)
	}
	kind := Kind(parts[2])
	if kind != KindServices && kind != KindIncidents {
		return "", "", fmt.Errorf("invalid kind in channel %q", channel)
	}
	return parts[1], kind, nil
}

// Event is a single change notification.
type Event struct {
	Channel        string           `json:"channel"`
	OrganizationID string           `json:"organization_id"`
	Action         Action           `json:"action"`
	Service        *domain.Service  `json:"service,omitempty"`
	ServiceID      string           `json:"serviceId,omitempty"`
	Incident       *domain.Incident `json:"incident,omitempty"`
	IncidentID     string           `json:"incidentId,omitempty"`
	PublishedAt    time.Time        `json:"published_at"`
}

// ServiceEvent creates an event carrying a service.
func ServiceEvent(action Action, service *domain.Service) Event {
	return Event{
		Channel:        Channel(service.OrganizationID, KindServices),
		OrganizationID: service.OrganizationID,
		Action:         action,
		Service:        service,
	}
}

// ServiceDeletedEvent creates a delete event for a service.
func ServiceDeletedEvent(orgID, serviceID string) Event {
	return Event{
		Channel:        Channel(orgID, KindServices),
		OrganizationID: orgID,
		Action:         ActionDelete,
		ServiceID:      serviceID,
	}
}

// IncidentEvent creates an event carrying an incident.
func IncidentEvent(action Action, incident *domain.Incident) Event {
	return Event{
		Channel:        Channel(incident.OrganizationID, KindIncidents),
		OrganizationID: incident.OrganizationID,
		Action:         action,
		Incident:       incident,
	}
}

// IncidentDeletedEvent creates a delete event for an incident.
func IncidentDeletedEvent(orgID, incidentID string) Event {
	return Event{
		Channel:        Channel(orgID, KindIncidents),
		OrganizationID: orgID,
		Action:         ActionDelete,
		IncidentID:     incidentID,
	}
}
