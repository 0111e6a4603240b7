package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Viewpoint is a saved, named observation location.
type Viewpoint struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	ObserverHeight float64   `json:"observerHeight"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ViewpointRepository provides methods for managing saved viewpoints
type ViewpointRepository struct {
	db *DB
}

// NewViewpointRepository creates a new viewpoint repository
func NewViewpointRepository(db *DB) *ViewpointRepository {
	return &ViewpointRepository{db: db}
}

const viewpointColumns = `id, name, latitude, longitude, observer_height, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanViewpoint(row rowScanner) (*Viewpoint, error) {
	var v Viewpoint
	err := row.Scan(
		&v.ID,
		&v.Name,
		&v.Latitude,
		&v.Longitude,
		&v.ObserverHeight,
		&v.Notes,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns all viewpoints ordered by name
func (r *ViewpointRepository) List(ctx context.Context) ([]Viewpoint, error) {
	query := `SELECT ` + viewpointColumns + ` FROM viewpoints ORDER BY name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query viewpoints: %w", err)
	}
	defer rows.Close()

	points := make([]Viewpoint, 0)
	for rows.Next() {
		v, err := scanViewpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan viewpoint: %w", err)
		}
		points = append(points, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate viewpoints: %w", err)
	}

	return points, nil
}

// GetByID returns a specific viewpoint
func (r *ViewpointRepository) GetByID(ctx context.Context, id int64) (*Viewpoint, error) {
	query := `SELECT ` + viewpointColumns + ` FROM viewpoints WHERE id = $1`

	v, err := scanViewpoint(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("viewpoint %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get viewpoint: %w", err)
	}

	return v, nil
}

// Create inserts a viewpoint and fills in its ID and timestamps
func (r *ViewpointRepository) Create(ctx context.Context, v *Viewpoint) error {
	query := `
		INSERT INTO viewpoints (name, latitude, longitude, observer_height, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		v.Name,
		v.Latitude,
		v.Longitude,
		v.ObserverHeight,
		v.Notes,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create viewpoint: %w", err)
	}

	return nil
}

// Update replaces the editable fields of an existing viewpoint
func (r *ViewpointRepository) Update(ctx context.Context, v *Viewpoint) error {
	query := `
		UPDATE viewpoints
		SET name = $1, latitude = $2, longitude = $3, observer_height = $4, notes = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		v.Name,
		v.Latitude,
		v.Longitude,
		v.ObserverHeight,
		v.Notes,
		v.ID,
	).Scan(&v.CreatedAt, &v.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("viewpoint %d: %w", v.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update viewpoint: %w", err)
	}

	return nil
}

// Delete removes a viewpoint
func (r *ViewpointRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM viewpoints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete viewpoint: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("viewpoint %d: %w", id, ErrNotFound)
	}

	return nil
}
