package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MimoJanra/DriftWatch/internal/models"
)

type APIRepo struct {
	db *sql.DB
}

func NewAPIRepo(db *sql.DB) *APIRepo { return &APIRepo{db: db} }

// Upsert returns the API named name, creating it on first sight. An existing
// row keeps its original base URL.
func (r *APIRepo) Upsert(ctx context.Context, name, baseURL string) (models.API, error) {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO apis(name, base_url, created_at) VALUES(?, ?, ?) ON CONFLICT(name) DO NOTHING",
		name, baseURL, formatTime(time.Now()),
	)
	if err != nil {
		return models.API{}, fmt.Errorf("upsert api %s: %w", name, err)
	}
	return r.GetByName(ctx, name)
}

func (r *APIRepo) GetByName(ctx context.Context, name string) (models.API, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, name, base_url FROM apis WHERE name = ?", name)
	return scanAPI(row)
}

func (r *APIRepo) GetByID(ctx context.Context, id int) (models.API, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, name, base_url FROM apis WHERE id = ?", id)
	return scanAPI(row)
}

func (r *APIRepo) GetAll(ctx context.Context) ([]models.API, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, base_url FROM apis ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apis := make([]models.API, 0)
	for rows.Next() {
		var a models.API
		if err := rows.Scan(&a.ID, &a.Name, &a.BaseURL); err != nil {
			return nil, err
		}
		apis = append(apis, a)
	}
	return apis, rows.Err()
}

// DeleteByID removes the API and, through the foreign keys, its endpoints,
// probes and baselines.
func (r *APIRepo) DeleteByID(ctx context.Context, id int) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM apis WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanAPI(row *sql.Row) (models.API, error) {
	var a models.API
	if err := row.Scan(&a.ID, &a.Name, &a.BaseURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.API{}, ErrNotFound
		}
		return models.API{}, err
	}
	return a, nil
}
