// Package baseline establishes the reference probe an endpoint is compared
// against. A baseline is created once the most recent N probes all passed and
// is kept until it is reset explicitly.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MimoJanra/DriftWatch/internal/logging"
	"github.com/MimoJanra/DriftWatch/internal/models"
	"github.com/MimoJanra/DriftWatch/internal/storage"
)

type Status string

const (
	// StatusNone means the endpoint has no probes yet.
	StatusNone Status = "none"
	// StatusPending means probes exist but the success window is not met.
	StatusPending Status = "pending"
	// StatusEstablished means a baseline is pinned.
	StatusEstablished Status = "established"
)

// State describes where an endpoint is in the baseline lifecycle.
type State struct {
	Status Status `json:"status" example:"pending"`
	// Streak is the number of consecutive passed probes, newest first,
	// within the required window.
	Streak   int              `json:"streak" example:"2"`
	Required int              `json:"required" example:"3"`
	Baseline *models.Baseline `json:"baseline,omitempty"`
	// Created is set when this call pinned the baseline.
	Created bool `json:"created"`
}

type Store interface {
	Latest(ctx context.Context, apiID, endpointID int) (models.Baseline, error)
	Add(ctx context.Context, apiID, endpointID, probeID int) (models.Baseline, error)
	DeleteForEndpoint(ctx context.Context, apiID, endpointID int) (int64, error)
}

type History interface {
	Recent(ctx context.Context, apiID, endpointID, limit int) ([]models.Probe, error)
}

type Manager struct {
	store   Store
	history History
	logger  *slog.Logger
}

func NewManager(store Store, history History, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{store: store, history: history, logger: logger}
}

// Latest returns the endpoint's current baseline, or nil when none exists.
func (m *Manager) Latest(ctx context.Context, apiID, endpointID int) (*models.Baseline, error) {
	b, err := m.store.Latest(ctx, apiID, endpointID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline for endpoint %d: %w", endpointID, err)
	}
	return &b, nil
}

// Ensure returns the established baseline unchanged, or pins the most recent
// probe when the required most recent probes all passed.
func (m *Manager) Ensure(ctx context.Context, apiID, endpointID, required int) (State, error) {
	st, recent, err := m.evaluate(ctx, apiID, endpointID, required)
	if err != nil || st.Status == StatusEstablished || st.Streak < st.Required {
		return st, err
	}

	b, err := m.store.Add(ctx, apiID, endpointID, recent[0].ID)
	if err != nil {
		return st, fmt.Errorf("create baseline for endpoint %d: %w", endpointID, err)
	}

	m.logger.Info("baseline established",
		"api_id", apiID, "endpoint_id", endpointID, "probe_id", b.ProbeID, "required", st.Required)

	st.Status = StatusEstablished
	st.Baseline = &b
	st.Created = true
	return st, nil
}

// Evaluate reports the lifecycle state without creating anything.
func (m *Manager) Evaluate(ctx context.Context, apiID, endpointID, required int) (State, error) {
	st, _, err := m.evaluate(ctx, apiID, endpointID, required)
	return st, err
}

func (m *Manager) evaluate(ctx context.Context, apiID, endpointID, required int) (State, []models.Probe, error) {
	if required < 1 {
		required = 1
	}
	st := State{Required: required}

	existing, err := m.Latest(ctx, apiID, endpointID)
	if err != nil {
		return st, nil, err
	}
	if existing != nil {
		st.Status = StatusEstablished
		st.Baseline = existing
		return st, nil, nil
	}

	recent, err := m.history.Recent(ctx, apiID, endpointID, required)
	if err != nil {
		return st, nil, fmt.Errorf("load probe history for endpoint %d: %w", endpointID, err)
	}
	if len(recent) == 0 {
		st.Status = StatusNone
		return st, nil, nil
	}

	st.Status = StatusPending
	for _, p := range recent {
		if !p.Passed {
			break
		}
		st.Streak++
	}
	return st, recent, nil
}

// Reset drops every baseline of the endpoint so the next run starts a new
// success window.
func (m *Manager) Reset(ctx context.Context, apiID, endpointID int) (int64, error) {
	n, err := m.store.DeleteForEndpoint(ctx, apiID, endpointID)
	if err != nil {
		return 0, fmt.Errorf("reset baseline for endpoint %d: %w", endpointID, err)
	}
	m.logger.Info("baseline reset", "api_id", apiID, "endpoint_id", endpointID, "deleted", n)
	return n, nil
}
