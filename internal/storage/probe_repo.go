package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MimoJanra/DriftWatch/internal/models"
)

type ProbeRepo struct {
	db *sql.DB
}

func NewProbeRepo(db *sql.DB) *ProbeRepo { return &ProbeRepo{db: db} }

const probeColumns = "id, api_id, endpoint_id, run_id, passed, status_code, content_type, latency, latency_ms, error_message, created_at"

// Add inserts p and returns it with its ID and timestamp set.
func (r *ProbeRepo) Add(ctx context.Context, p models.Probe) (models.Probe, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CreatedAt = p.CreatedAt.UTC()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO probes(api_id, endpoint_id, run_id, passed, status_code, content_type, latency, latency_ms, error_message, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.APIID, p.EndpointID, p.RunID, boolToInt(p.Passed), p.StatusCode, p.ContentType,
		string(p.Latency), p.LatencyMS, p.ErrorMessage, formatTime(p.CreatedAt))
	if err != nil {
		return models.Probe{}, fmt.Errorf("insert probe for endpoint %d: %w", p.EndpointID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Probe{}, err
	}
	p.ID = int(id)
	return p, nil
}

func (r *ProbeRepo) GetByID(ctx context.Context, id int) (models.Probe, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+probeColumns+" FROM probes WHERE id = ?", id)
	p, err := scanProbe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Probe{}, ErrNotFound
	}
	return p, err
}

// Recent returns up to limit probes for the endpoint, most recent first.
func (r *ProbeRepo) Recent(ctx context.Context, apiID, endpointID, limit int) ([]models.Probe, error) {
	return r.query(ctx, `
		SELECT `+probeColumns+`
		FROM probes
		WHERE api_id = ? AND endpoint_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, apiID, endpointID, limit)
}

// GetByEndpointID returns up to limit probes for the endpoint regardless of API,
// most recent first.
func (r *ProbeRepo) GetByEndpointID(ctx context.Context, endpointID, limit int) ([]models.Probe, error) {
	return r.query(ctx, `
		SELECT `+probeColumns+`
		FROM probes
		WHERE endpoint_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, endpointID, limit)
}

func (r *ProbeRepo) GetByRunID(ctx context.Context, runID string) ([]models.Probe, error) {
	return r.query(ctx, `
		SELECT `+probeColumns+`
		FROM probes
		WHERE run_id = ?
		ORDER BY id
	`, runID)
}

func (r *ProbeRepo) query(ctx context.Context, q string, args ...any) ([]models.Probe, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	probes := make([]models.Probe, 0)
	for rows.Next() {
		p, err := scanProbe(rows)
		if err != nil {
			return nil, err
		}
		probes = append(probes, p)
	}
	return probes, rows.Err()
}

func scanProbe(s scanner) (models.Probe, error) {
	var (
		p         models.Probe
		passed    int
		latency   string
		createdAt string
	)
	err := s.Scan(&p.ID, &p.APIID, &p.EndpointID, &p.RunID, &passed, &p.StatusCode, &p.ContentType,
		&latency, &p.LatencyMS, &p.ErrorMessage, &createdAt)
	if err != nil {
		return models.Probe{}, err
	}
	p.Passed = passed == 1
	p.Latency = models.LatencyBucket(latency)
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}
