package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MimoJanra/DriftWatch/internal/models"
)

// ErrProbeMismatch is returned when a baseline would pin a probe that belongs
// to a different API or endpoint.
var ErrProbeMismatch = errors.New("probe does not belong to endpoint")

type BaselineRepo struct {
	db *sql.DB
}

func NewBaselineRepo(db *sql.DB) *BaselineRepo { return &BaselineRepo{db: db} }

const baselineSelect = `
	SELECT b.id, b.api_id, b.endpoint_id, b.probe_id, b.created_at,
		p.id, p.api_id, p.endpoint_id, p.run_id, p.passed, p.status_code, p.content_type,
		p.latency, p.latency_ms, p.error_message, p.created_at
	FROM baselines b
	JOIN probes p ON p.id = b.probe_id
`

// Add pins probeID as a baseline for the endpoint. The probe must belong to
// the same API and endpoint.
func (r *BaselineRepo) Add(ctx context.Context, apiID, endpointID, probeID int) (models.Baseline, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO baselines(api_id, endpoint_id, probe_id, created_at)
		SELECT api_id, endpoint_id, id, ? FROM probes
		WHERE id = ? AND api_id = ? AND endpoint_id = ?
	`, formatTime(time.Now()), probeID, apiID, endpointID)
	if err != nil {
		return models.Baseline{}, fmt.Errorf("insert baseline for endpoint %d: %w", endpointID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Baseline{}, err
	}
	if n == 0 {
		return models.Baseline{}, fmt.Errorf("baseline probe %d: %w", probeID, ErrProbeMismatch)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Baseline{}, err
	}
	return r.GetByID(ctx, int(id))
}

func (r *BaselineRepo) GetByID(ctx context.Context, id int) (models.Baseline, error) {
	row := r.db.QueryRowContext(ctx, baselineSelect+" WHERE b.id = ?", id)
	return scanBaseline(row)
}

// Latest returns the most recently created baseline for the endpoint, with
// its pinned probe, or ErrNotFound.
func (r *BaselineRepo) Latest(ctx context.Context, apiID, endpointID int) (models.Baseline, error) {
	row := r.db.QueryRowContext(ctx, baselineSelect+`
		WHERE b.api_id = ? AND b.endpoint_id = ?
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT 1
	`, apiID, endpointID)
	return scanBaseline(row)
}

func (r *BaselineRepo) CountForEndpoint(ctx context.Context, apiID, endpointID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM baselines WHERE api_id = ? AND endpoint_id = ?", apiID, endpointID,
	).Scan(&n)
	return n, err
}

// DeleteForEndpoint removes every baseline of the endpoint. Only explicit
// reset requests call this.
func (r *BaselineRepo) DeleteForEndpoint(ctx context.Context, apiID, endpointID int) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM baselines WHERE api_id = ? AND endpoint_id = ?", apiID, endpointID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanBaseline(row *sql.Row) (models.Baseline, error) {
	var (
		b          models.Baseline
		p          models.Probe
		bCreatedAt string
		passed     int
		latency    string
		pCreatedAt string
	)
	err := row.Scan(&b.ID, &b.APIID, &b.EndpointID, &b.ProbeID, &bCreatedAt,
		&p.ID, &p.APIID, &p.EndpointID, &p.RunID, &passed, &p.StatusCode, &p.ContentType,
		&latency, &p.LatencyMS, &p.ErrorMessage, &pCreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Baseline{}, ErrNotFound
		}
		return models.Baseline{}, err
	}
	b.CreatedAt = parseTime(bCreatedAt)
	p.Passed = passed == 1
	p.Latency = models.LatencyBucket(latency)
	p.CreatedAt = parseTime(pCreatedAt)
	b.Probe = &p
	return b, nil
}
