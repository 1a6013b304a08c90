// Package publicstatus builds the read-only status page of an organization.
package publicstatus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/status"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RecentWindow bounds how far back resolved incidents are shown.
const RecentWindow = 7 * 24 * time.Hour

const allOperationalLabel = "All Systems Operational"

// OrganizationReader looks organizations up by slug.
type OrganizationReader interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Organization, error)
}

// ServiceLister lists an organization's services with their history.
type ServiceLister interface {
	ListServices(ctx context.Context, orgID string) ([]domain.Service, error)
}

// IncidentLister lists an organization's incidents.
type IncidentLister interface {
	ListActiveIncidents(ctx context.Context, orgID string) ([]domain.Incident, error)
	ListRecentlyResolved(ctx context.Context, orgID string, since time.Time) ([]domain.Incident, error)
}

// Page is the public status page of one organization.
type Page struct {
	Organization Organization `json:"organization"`
	Status       Status       `json:"status"`
	Incidents    Incidents    `json:"incidents"`
}

// Organization is the public subset of organization metadata.
type Organization struct {
	Name    string `json:"name"`
	Website string `json:"website"`
	Logo    string `json:"logo"`
}

// Status holds the overall and per-service status.
type Status struct {
	Overall  domain.ServiceStatus `json:"overall"`
	Label    string               `json:"label"`
	Services []ServiceStatus      `json:"services"`
}

// ServiceStatus is the public view of one service.
type ServiceStatus struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      domain.ServiceStatus `json:"status"`
	Label       string               `json:"label"`
	Uptime      string               `json:"uptime"`
}

// Incidents splits incidents into open ones and recently resolved ones.
type Incidents struct {
	Active []domain.Incident `json:"active"`
	Recent []domain.Incident `json:"recent"`
}

// Projector assembles status pages from current state.
type Projector struct {
	orgs      OrganizationReader
	services  ServiceLister
	incidents IncidentLister
	now       func() time.Time
}

// NewProjector creates a new status page projector.
func NewProjector(orgs OrganizationReader, services ServiceLister, incidents IncidentLister) *Projector {
	return &Projector{
		orgs:      orgs,
		services:  services,
		incidents: incidents,
		now:       time.Now,
	}
}

// Project returns the status page of the organization with the given slug.
func (p *Projector) Project(ctx context.Context, slug string) (*Page, error) {
	org, err := p.orgs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()

	var (
		services []domain.Service
		active   []domain.Incident
		recent   []domain.Incident
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		services, err = p.services.ListServices(gctx, org.ID)
		if err != nil {
			return fmt.Errorf("load services: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		active, err = p.incidents.ListActiveIncidents(gctx, org.ID)
		if err != nil {
			return fmt.Errorf("load active incidents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = p.incidents.ListRecentlyResolved(gctx, org.ID, now.Add(-RecentWindow))
		if err != nil {
			return fmt.Errorf("load resolved incidents: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]ServiceStatus, 0, len(services))
	for _, s := range services {
		views = append(views, ServiceStatus{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Status:      s.Status,
			Label:       StatusLabel(s.Status),
			Uptime:      status.FormatUptime(status.Uptime(s.StatusHistory, now)),
		})
	}

	overall := status.AggregateStatus(services)

	return &Page{
		Organization: Organization{
			Name:    org.Name,
			Website: org.Website,
			Logo:    org.Logo,
		},
		Status: Status{
			Overall:  overall,
			Label:    OverallLabel(overall),
			Services: views,
		},
		Incidents: Incidents{
			Active: nonNil(active),
			Recent: nonNil(recent),
		},
	}, nil
}

// StatusLabel renders a status for people, for example "Partial Outage".
func StatusLabel(s domain.ServiceStatus) string {
	// Casers are stateful and must not be shared between goroutines.
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// OverallLabel renders the headline of a status page.
func OverallLabel(s domain.ServiceStatus) string {
	if s == domain.ServiceStatusOperational {
		return allOperationalLabel
	}
	return StatusLabel(s)
}

func nonNil(incidents []domain.Incident) []domain.Incident {
	if incidents == nil {
		return make([]domain.Incident, 0)
	}
	return incidents
}
