package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MimoJanra/DriftWatch/internal/models"
)

type EndpointRepo struct {
	db *sql.DB
}

func NewEndpointRepo(db *sql.DB) *EndpointRepo { return &EndpointRepo{db: db} }

const endpointColumns = "id, api_id, path, method, expected_status, expected_fields, param_keys"

// Upsert creates the endpoint identified by (api_id, path, method) or, when it
// already exists, updates its expectations and parameter keys in place.
func (r *EndpointRepo) Upsert(ctx context.Context, ep models.Endpoint) (models.Endpoint, error) {
	fieldsJSON, err := marshalList(ep.ExpectedFields)
	if err != nil {
		return models.Endpoint{}, fmt.Errorf("marshal expected fields: %w", err)
	}
	keysJSON, err := marshalList(ep.ParamKeys)
	if err != nil {
		return models.Endpoint{}, fmt.Errorf("marshal param keys: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO endpoints(api_id, path, method, expected_status, expected_fields, param_keys)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(api_id, path, method) DO UPDATE SET
			expected_status = excluded.expected_status,
			expected_fields = excluded.expected_fields,
			param_keys = excluded.param_keys
	`, ep.APIID, ep.Path, ep.Method, ep.ExpectedStatus, fieldsJSON, keysJSON)
	if err != nil {
		return models.Endpoint{}, fmt.Errorf("upsert endpoint %s %s: %w", ep.Method, ep.Path, err)
	}

	return r.Find(ctx, ep.APIID, ep.Method, ep.Path)
}

func (r *EndpointRepo) Find(ctx context.Context, apiID int, method, path string) (models.Endpoint, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+endpointColumns+" FROM endpoints WHERE api_id = ? AND method = ? AND path = ?",
		apiID, method, path,
	)
	return scanEndpoint(row)
}

func (r *EndpointRepo) GetByID(ctx context.Context, id int) (models.Endpoint, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+endpointColumns+" FROM endpoints WHERE id = ?", id)
	return scanEndpoint(row)
}

func (r *EndpointRepo) GetByAPIID(ctx context.Context, apiID int) ([]models.Endpoint, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+endpointColumns+" FROM endpoints WHERE api_id = ? ORDER BY id", apiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	endpoints := make([]models.Endpoint, 0)
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(s scanner) (models.Endpoint, error) {
	var (
		ep         models.Endpoint
		fieldsJSON string
		keysJSON   string
	)
	err := s.Scan(&ep.ID, &ep.APIID, &ep.Path, &ep.Method, &ep.ExpectedStatus, &fieldsJSON, &keysJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Endpoint{}, ErrNotFound
		}
		return models.Endpoint{}, err
	}
	ep.ExpectedFields = parseList(fieldsJSON)
	ep.ParamKeys = parseList(keysJSON)
	return ep, nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseList(raw string) []string {
	list := []string{}
	if raw == "" {
		return list
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return []string{}
	}
	return list
}
