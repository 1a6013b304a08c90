// Package postgres provides PostgreSQL implementation of the catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/orgstatus/internal/catalog"
	"github.com/bissquit/orgstatus/internal/domain"
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

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const serviceColumns = `id, organization_id, name, description, status, created_at, updated_at`

// CreateService inserts a service and its initial history entry.
func (r *Repository) CreateService(ctx context.Context, service *domain.Service, initial *domain.StatusHistoryEntry) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO services (organization_id, name, description, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			service.OrganizationID,
			service.Name,
			service.Description,
			service.Status,
			initial.Timestamp,
		).Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert service: %w", err)
		}

		initial.ServiceID = service.ID
		if err := insertHistoryEntry(ctx, tx, initial); err != nil {
			return err
		}

		service.StatusHistory = []domain.StatusHistoryEntry{*initial}
		return nil
	})
}

// GetServiceByID retrieves a service with its full history.
func (r *Repository) GetServiceByID(ctx context.Context, id string) (*domain.Service, error) {
	return getService(ctx, r.db, id)
}

// ListServicesByOrganization retrieves all services of an organization
// ordered by creation time, each with its full history.
func (r *Repository) ListServicesByOrganization(ctx context.Context, orgID string) ([]domain.Service, error) {
	query := `SELECT ` + serviceColumns + `
		FROM services
		WHERE organization_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		var s domain.Service
		if err := scanService(rows, &s); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}

	if len(services) == 0 {
		return services, nil
	}

	ids := make([]string, len(services))
	for i := range services {
		ids[i] = services[i].ID
	}

	history, err := listHistoryForServices(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range services {
		services[i].StatusHistory = history[services[i].ID]
		if services[i].StatusHistory == nil {
			services[i].StatusHistory = make([]domain.StatusHistoryEntry, 0)
		}
	}

	return services, nil
}

// DeleteService deletes a service. History and incident links cascade.
func (r *Repository) DeleteService(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if result.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

// AppendStatus updates the service status and appends the history entry in
// one transaction, then returns the service as committed.
//
// The entry is stamped with the database clock once the service row is
// locked, so concurrent changes to one service get timestamps in the same
// order as their history sequence.
func (r *Repository) AppendStatus(ctx context.Context, serviceID string, entry *domain.StatusHistoryEntry) (*domain.Service, error) {
	var service *domain.Service
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE services SET status = $2, updated_at = clock_timestamp() WHERE id = $1 RETURNING updated_at`,
			serviceID, entry.Status,
		).Scan(&entry.Timestamp)
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrServiceNotFound
		}
		if err != nil {
			return fmt.Errorf("update service status: %w", err)
		}

		entry.ServiceID = serviceID
		if err := insertHistoryEntry(ctx, tx, entry); err != nil {
			return err
		}

		service, err = getService(ctx, tx, serviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return service, nil
}

// ListStatusHistory returns history entries newest first.
func (r *Repository) ListStatusHistory(ctx context.Context, serviceID string, limit, offset int) ([]domain.StatusHistoryEntry, error) {
	query := `
		SELECT id, service_id, status, message, created_at
		FROM service_status_history
		WHERE service_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, serviceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.StatusHistoryEntry, 0)
	for rows.Next() {
		var e domain.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.ServiceID, &e.Status, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan status history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}

	return entries, nil
}

// CountStatusHistory returns the number of history entries of a service.
func (r *Repository) CountStatusHistory(ctx context.Context, serviceID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM service_status_history WHERE service_id = $1`, serviceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count status history: %w", err)
	}
	return count, nil
}

func getService(ctx context.Context, q querier, id string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	var s domain.Service
	if err := scanService(q.QueryRow(ctx, query, id), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service by id: %w", err)
	}

	history, err := listHistoryForServices(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	s.StatusHistory = history[id]
	if s.StatusHistory == nil {
		s.StatusHistory = make([]domain.StatusHistoryEntry, 0)
	}

	return &s, nil
}

func scanService(row pgx.Row, s *domain.Service) error {
	return row.Scan(
		&s.ID,
		&s.OrganizationID,
		&s.Name,
		&s.Description,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
}

// listHistoryForServices loads history in insertion order, grouped by service.
func listHistoryForServices(ctx context.Context, q querier, serviceIDs []string) (map[string][]domain.StatusHistoryEntry, error) {
	query := `
		SELECT id, service_id, status, message, created_at
		FROM service_status_history
		WHERE service_id = ANY($1)
		ORDER BY service_id, seq
	`
	rows, err := q.Query(ctx, query, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.StatusHistoryEntry, len(serviceIDs))
	for rows.Next() {
		var e domain.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.ServiceID, &e.Status, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan status history entry: %w", err)
		}
		result[e.ServiceID] = append(result[e.ServiceID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}

	return result, nil
}

func insertHistoryEntry(ctx context.Context, q querier, entry *domain.StatusHistoryEntry) error {
	query := `
		INSERT INTO service_status_history (service_id, status, message, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := q.QueryRow(ctx, query,
		entry.ServiceID,
		entry.Status,
		entry.Message,
		entry.Timestamp,
	).Scan(&entry.ID); err != nil {
		return fmt.Errorf("insert status history entry: %w", err)
	}
	return nil
}
