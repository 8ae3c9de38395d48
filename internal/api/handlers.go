package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MimoJanra/DriftWatch/internal/baseline"
	"github.com/MimoJanra/DriftWatch/internal/config"
	"github.com/MimoJanra/DriftWatch/internal/logging"
	"github.com/MimoJanra/DriftWatch/internal/runner"
	"github.com/MimoJanra/DriftWatch/internal/storage"
)

const (
	defaultProbeLimit = 50
	maxProbeLimit     = 500
)

type Server struct {
	APIRepo      *storage.APIRepo
	EndpointRepo *storage.EndpointRepo
	ProbeRepo    *storage.ProbeRepo
	Baselines    *baseline.Manager
	Scheduler    *runner.Scheduler
	Settings     *config.Settings
	Logger       *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return logging.Default()
	}
	return s.Logger
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) GetAPIs(w http.ResponseWriter, r *http.Request) {
	apis, err := s.APIRepo.GetAll(r.Context())
	if err != nil {
		s.logger().Error("list apis", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get apis")
		return
	}
	writeJSON(w, http.StatusOK, apis)
}

func (s *Server) GetEndpoints(w http.ResponseWriter, r *http.Request) {
	apiID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid api id")
		return
	}
	if _, err := s.APIRepo.GetByID(r.Context(), apiID); err != nil {
		s.notFoundOr500(w, err, "api not found", "failed to get api")
		return
	}

	endpoints, err := s.EndpointRepo.GetByAPIID(r.Context(), apiID)
	if err != nil {
		s.logger().Error("list endpoints", "api_id", apiID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get endpoints")
		return
	}
	writeJSON(w, http.StatusOK, endpoints)
}

func (s *Server) GetProbes(w http.ResponseWriter, r *http.Request) {
	endpointID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid endpoint id")
		return
	}

	limit := defaultProbeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxProbeLimit)
	}

	if _, err := s.EndpointRepo.GetByID(r.Context(), endpointID); err != nil {
		s.notFoundOr500(w, err, "endpoint not found", "failed to get endpoint")
		return
	}

	probes, err := s.ProbeRepo.GetByEndpointID(r.Context(), endpointID, limit)
	if err != nil {
		s.logger().Error("list probes", "endpoint_id", endpointID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get probes")
		return
	}
	writeJSON(w, http.StatusOK, probes)
}

func (s *Server) GetBaseline(w http.ResponseWriter, r *http.Request) {
	endpointID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid endpoint id")
		return
	}
	ep, err := s.EndpointRepo.GetByID(r.Context(), endpointID)
	if err != nil {
		s.notFoundOr500(w, err, "endpoint not found", "failed to get endpoint")
		return
	}

	st, err := s.Baselines.Evaluate(r.Context(), ep.APIID, ep.ID, s.Settings.RequiredSuccessfulProbes)
	if err != nil {
		s.logger().Error("evaluate baseline", "endpoint_id", endpointID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get baseline")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) ResetBaseline(w http.ResponseWriter, r *http.Request) {
	endpointID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid endpoint id")
		return
	}
	ep, err := s.EndpointRepo.GetByID(r.Context(), endpointID)
	if err != nil {
		s.notFoundOr500(w, err, "endpoint not found", "failed to get endpoint")
		return
	}

	n, err := s.Baselines.Reset(r.Context(), ep.APIID, ep.ID)
	if err != nil {
		s.logger().Error("reset baseline", "endpoint_id", endpointID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset baseline")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"endpoint_id": ep.ID, "deleted": n})
}

// CreateRun runs synchronously and returns the result. The run is detached
// from the request so a disconnecting client does not abort it.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	res := s.Scheduler.RunNow(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) GetLastRun(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.Scheduler.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no run yet")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) notFoundOr500(w http.ResponseWriter, err error, notFound, internal string) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	s.logger().Error(internal, "error", err)
	writeError(w, http.StatusInternalServerError, internal)
}
