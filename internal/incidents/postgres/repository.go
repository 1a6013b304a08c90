// Package postgres provides PostgreSQL implementation of the incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/incidents"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements the incidents.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `id, organization_id, title, description, severity, type, status,
	start_time, end_time, COALESCE(created_by::text, ''), created_at, updated_at`

// CreateIncident inserts an incident with its first update and services.
func (r *Repository) CreateIncident(ctx context.Context, incident *domain.Incident, first *domain.IncidentUpdate) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO incidents (organization_id, title, description, severity, type, status,
				start_time, end_time, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid, $10, $10)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			incident.OrganizationID,
			incident.Title,
			incident.Description,
			incident.Severity,
			incident.Type,
			incident.Status,
			incident.StartTime,
			incident.EndTime,
			incident.CreatedBy,
			first.CreatedAt,
		).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert incident: %w", err)
		}

		if err := insertServices(ctx, tx, incident.ID, incident.ServiceIDs); err != nil {
			return err
		}

		first.IncidentID = incident.ID
		if err := insertUpdate(ctx, tx, first); err != nil {
			return err
		}

		incident.Updates = []domain.IncidentUpdate{*first}
		return nil
	})
}

// GetIncidentByID retrieves an incident with its updates and services.
func (r *Repository) GetIncidentByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	var incident domain.Incident
	if err := scanIncident(r.db.QueryRow(ctx, query, id), &incident); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident by id: %w", err)
	}

	list := []domain.Incident{incident}
	if err := loadDetails(ctx, r.db, list); err != nil {
		return nil, err
	}

	return &list[0], nil
}

// AppendUpdate inserts the update and writes status and end time.
func (r *Repository) AppendUpdate(ctx context.Context, incident *domain.Incident, update *domain.IncidentUpdate) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE incidents SET status = $2, end_time = $3, updated_at = $4
			WHERE id = $1
			RETURNING updated_at
		`, incident.ID, incident.Status, incident.EndTime, update.CreatedAt).Scan(&incident.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return incidents.ErrIncidentNotFound
			}
			return fmt.Errorf("update incident status: %w", err)
		}

		update.IncidentID = incident.ID
		return insertUpdate(ctx, tx, update)
	})
}

// UpdateIncident writes incident fields and optionally replaces services.
func (r *Repository) UpdateIncident(ctx context.Context, incident *domain.Incident, replaceServices bool) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			UPDATE incidents
			SET title = $2, description = $3, severity = $4, type = $5, status = $6,
				start_time = $7, end_time = $8, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		err := tx.QueryRow(ctx, query,
			incident.ID,
			incident.Title,
			incident.Description,
			incident.Severity,
			incident.Type,
			incident.Status,
			incident.StartTime,
			incident.EndTime,
		).Scan(&incident.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return incidents.ErrIncidentNotFound
			}
			return fmt.Errorf("update incident: %w", err)
		}

		if !replaceServices {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM incident_services WHERE incident_id = $1`, incident.ID); err != nil {
			return fmt.Errorf("clear incident services: %w", err)
		}
		return insertServices(ctx, tx, incident.ID, incident.ServiceIDs)
	})
}

// DeleteIncident deletes an incident. Updates and service links cascade.
func (r *Repository) DeleteIncident(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	if result.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}
	return nil
}

// ListActiveIncidents returns unresolved incidents, newest start first.
func (r *Repository) ListActiveIncidents(ctx context.Context, orgID string) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE organization_id = $1 AND status <> 'resolved'
		ORDER BY start_time DESC, id
	`
	return r.listIncidents(ctx, query, orgID)
}

// ListResolvedSince returns incidents resolved at or after since, newest
// end first.
func (r *Repository) ListResolvedSince(ctx context.Context, orgID string, since time.Time) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE organization_id = $1 AND status = 'resolved' AND end_time >= $2
		ORDER BY end_time DESC, id
	`
	return r.listIncidents(ctx, query, orgID, since)
}

// CountServicesInOrganization counts the given services owned by orgID.
func (r *Repository) CountServicesInOrganization(ctx context.Context, orgID string, serviceIDs []string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM services WHERE organization_id = $1 AND id = ANY($2)`,
		orgID, serviceIDs,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return count, nil
}

func (r *Repository) listIncidents(ctx context.Context, query string, args ...any) ([]domain.Incident, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Incident, 0)
	for rows.Next() {
		var incident domain.Incident
		if err := scanIncident(rows, &incident); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		list = append(list, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	if err := loadDetails(ctx, r.db, list); err != nil {
		return nil, err
	}
	return list, nil
}

func scanIncident(row pgx.Row, i *domain.Incident) error {
	return row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.Title,
		&i.Description,
		&i.Severity,
		&i.Type,
		&i.Status,
		&i.StartTime,
		&i.EndTime,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}

// loadDetails fills services and updates of every incident in place.
func loadDetails(ctx context.Context, q querier, list []domain.Incident) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]string, len(list))
	index := make(map[string]int, len(list))
	for i := range list {
		ids[i] = list[i].ID
		index[list[i].ID] = i
		list[i].ServiceIDs = make([]string, 0)
		list[i].Updates = make([]domain.IncidentUpdate, 0)
	}

	rows, err := q.Query(ctx, `
		SELECT incident_id, service_id::text
		FROM incident_services
		WHERE incident_id = ANY($1)
		ORDER BY incident_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("list incident services: %w", err)
	}
	for rows.Next() {
		var incidentID, serviceID string
		if err := rows.Scan(&incidentID, &serviceID); err != nil {
			rows.Close()
			return fmt.Errorf("scan incident service: %w", err)
		}
		i := index[incidentID]
		list[i].ServiceIDs = append(list[i].ServiceIDs, serviceID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate incident services: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, incident_id, status, message, COALESCE(created_by::text, ''), created_at
		FROM incident_updates
		WHERE incident_id = ANY($1)
		ORDER BY incident_id, seq
	`, ids)
	if err != nil {
		return fmt.Errorf("list incident updates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u domain.IncidentUpdate
		if err := rows.Scan(&u.ID, &u.IncidentID, &u.Status, &u.Message, &u.CreatedBy, &u.CreatedAt); err != nil {
			return fmt.Errorf("scan incident update: %w", err)
		}
		i := index[u.IncidentID]
		list[i].Updates = append(list[i].Updates, u)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate incident updates: %w", err)
	}

	return nil
}

func insertServices(ctx context.Context, q querier, incidentID string, serviceIDs []string) error {
	for position, serviceID := range serviceIDs {
		_, err := q.Exec(ctx, `
			INSERT INTO incident_services (incident_id, service_id, position)
			VALUES ($1, $2, $3)
		`, incidentID, serviceID, position)
		if err != nil {
			return fmt.Errorf("insert incident service: %w", err)
		}
	}
	return nil
}

func insertUpdate(ctx context.Context, q querier, update *domain.IncidentUpdate) error {
	query := `
		INSERT INTO incident_updates (incident_id, status, message, created_by, created_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5)
		RETURNING id
	`
	if err := q.QueryRow(ctx, query,
		update.IncidentID,
		update.Status,
		update.Message,
		update.CreatedBy,
		update.CreatedAt,
	).Scan(&update.ID); err != nil {
		return fmt.Errorf("insert incident update: %w", err)
	}
	return nil
}
