// Package runner drives a probing run: every enabled API and endpoint is
// probed in declaration order, validated, persisted and considered for
// baselining. Variables stashed by one endpoint are visible to every later
// endpoint of the same run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MimoJanra/DriftWatch/internal/baseline"
	"github.com/MimoJanra/DriftWatch/internal/checker"
	"github.com/MimoJanra/DriftWatch/internal/config"
	"github.com/MimoJanra/DriftWatch/internal/logging"
	"github.com/MimoJanra/DriftWatch/internal/metrics"
	"github.com/MimoJanra/DriftWatch/internal/models"
	"github.com/MimoJanra/DriftWatch/internal/validation"
	"github.com/MimoJanra/DriftWatch/internal/variables"
)

type APIStore interface {
	Upsert(ctx context.Context, name, baseURL string) (models.API, error)
}

type EndpointStore interface {
	Upsert(ctx context.Context, ep models.Endpoint) (models.Endpoint, error)
}

type ProbeStore interface {
	Add(ctx context.Context, p models.Probe) (models.Probe, error)
}

type Prober interface {
	Probe(ctx context.Context, req checker.Request) (checker.Outcome, error)
}

type Baselines interface {
	Latest(ctx context.Context, apiID, endpointID int) (*models.Baseline, error)
	Ensure(ctx context.Context, apiID, endpointID, required int) (baseline.State, error)
}

type Deps struct {
	APIs      APIStore
	Endpoints EndpointStore
	Probes    ProbeStore
	Prober    Prober
	Baselines Baselines
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type Runner struct {
	apis      APIStore
	endpoints EndpointStore
	probes    ProbeStore
	prober    Prober
	baselines Baselines
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(d Deps) *Runner {
	logger := d.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		apis:      d.APIs,
		endpoints: d.Endpoints,
		probes:    d.Probes,
		prober:    d.Prober,
		baselines: d.Baselines,
		metrics:   d.Metrics,
		logger:    logger,
	}
}

type APISummary struct {
	Name        string  `json:"name" example:"users"`
	APIID       int     `json:"api_id,omitempty"`
	Endpoints   int     `json:"endpoints" example:"4"`
	Passed      int     `json:"passed" example:"3"`
	Failed      int     `json:"failed" example:"1"`
	SuccessRate float64 `json:"success_rate" example:"75"`
	// Error is set when the API could not be prepared and was skipped.
	Error string `json:"error,omitempty"`
}

type Summary struct {
	APIs        int     `json:"apis" example:"2"`
	SkippedAPIs int     `json:"skipped_apis" example:"0"`
	Endpoints   int     `json:"endpoints" example:"6"`
	Passed      int     `json:"passed" example:"5"`
	Failed      int     `json:"failed" example:"1"`
	SuccessRate float64 `json:"success_rate" example:"83.33"`
}

type RunResult struct {
	RunID      string              `json:"run_id" example:"4f1c2a9e-0d5b-4e2b-9a43-3f8f0f5d3c11"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	APIs       []APISummary        `json:"apis"`
	Summary    Summary             `json:"summary"`
	Results    []validation.Result `json:"results"`
	Variables  []string            `json:"variables,omitempty"`
}

// Passed reports whether every endpoint passed and no API was skipped.
func (r RunResult) Passed() bool {
	return r.Summary.Failed == 0 && r.Summary.SkippedAPIs == 0
}

// Run probes every enabled API of resources. It always returns a result;
// failures are recorded per endpoint or per API.
func (r *Runner) Run(ctx context.Context, settings *config.Settings, resources *config.Resources) RunResult {
	run := RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		APIs:      make([]APISummary, 0, len(resources.APIs)),
		Results:   make([]validation.Result, 0),
	}
	logger := r.logger.With("run_id", run.RunID)
	logger.Info("run started", "apis", len(resources.APIs))

	state := &runState{
		settings: settings,
		vars:     variables.NewTable(),
		limiter:  checker.NewRateLimiter(settings.RequestsPerMinute),
		logger:   logger,
		runID:    run.RunID,
	}

	for _, api := range resources.APIs {
		if api.Disabled {
			logger.Debug("api disabled, skipping", "api", api.Name)
			continue
		}

		summary, results := r.runAPI(ctx, state, api)
		run.APIs = append(run.APIs, summary)
		run.Results = append(run.Results, results...)

		run.Summary.APIs++
		if summary.Error != "" {
			run.Summary.SkippedAPIs++
		}
		run.Summary.Endpoints += summary.Endpoints
		run.Summary.Passed += summary.Passed
		run.Summary.Failed += summary.Failed
	}

	run.Summary.SuccessRate = successRate(run.Summary.Passed, run.Summary.Endpoints)
	run.Variables = state.vars.Names()
	run.FinishedAt = time.Now().UTC()
	r.metrics.RunFinished(run.Passed())

	logger.Info("run finished",
		"endpoints", run.Summary.Endpoints,
		"passed", run.Summary.Passed,
		"failed", run.Summary.Failed,
		"skipped_apis", run.Summary.SkippedAPIs,
		"duration", run.FinishedAt.Sub(run.StartedAt).String(),
	)
	return run
}

type runState struct {
	settings *config.Settings
	vars     *variables.Table
	limiter  *checker.RateLimiter
	logger   *slog.Logger
	runID    string
}

type endpointKey struct {
	method string
	path   string
}

func (r *Runner) runAPI(ctx context.Context, state *runState, api config.APIConfig) (APISummary, []validation.Result) {
	summary := APISummary{Name: api.Name}
	logger := state.logger.With("api", api.Name)

	apiID, ids, err := r.prepareAPI(ctx, api)
	if err != nil {
		logger.Error("api setup failed, skipping", "error", err)
		summary.Error = err.Error()
		return summary, nil
	}
	summary.APIID = apiID

	results := make([]validation.Result, 0, len(api.Endpoints))
	for _, ep := range api.Endpoints {
		endpointID := ids[endpointKey{method: ep.Method, path: ep.Path}]

		res, err := r.runEndpoint(ctx, state, api, apiID, endpointID, ep)
		if err != nil {
			logger.Error("endpoint failed", "method", ep.Method, "path", ep.Path, "error", err)
			res = internalErrorResult(api, apiID, endpointID, ep, res, err)
			r.metrics.ObserveProbe(api.Name, "internal_error", 0, false)
		} else {
			r.metrics.ObserveProbe(api.Name, metricResult(res), res.LatencyMS, res.StatusCode != 0)
			logger.Debug("endpoint checked",
				"method", ep.Method, "path", res.ResolvedPath, "passed", res.Passed,
				"status", res.StatusCode, "latency", res.Latency)
		}

		results = append(results, res)
		summary.Endpoints++
		if res.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	summary.SuccessRate = successRate(summary.Passed, summary.Endpoints)
	return summary, results
}

// prepareAPI upserts the API and its endpoints and returns the lookup from
// declared (method, path) to endpoint ID.
func (r *Runner) prepareAPI(ctx context.Context, api config.APIConfig) (apiID int, ids map[endpointKey]int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during setup: %v", rec)
		}
	}()

	row, err := r.apis.Upsert(ctx, api.Name, api.BaseURL)
	if err != nil {
		return 0, nil, fmt.Errorf("register api %s: %w", api.Name, err)
	}

	ids = make(map[endpointKey]int, len(api.Endpoints))
	for _, ep := range api.Endpoints {
		stored, err := r.endpoints.Upsert(ctx, models.Endpoint{
			APIID:          row.ID,
			Path:           ep.Path,
			Method:         ep.Method,
			ExpectedStatus: ep.ExpectedStatus,
			ExpectedFields: ep.ExpectedFields,
			ParamKeys:      ep.BodyKeys(),
		})
		if err != nil {
			return 0, nil, fmt.Errorf("register endpoint %s: %w", ep.Key(), err)
		}
		ids[endpointKey{method: ep.Method, path: ep.Path}] = stored.ID
	}
	return row.ID, ids, nil
}

func (r *Runner) runEndpoint(
	ctx context.Context,
	state *runState,
	api config.APIConfig,
	apiID, endpointID int,
	ep config.EndpointConfig,
) (res validation.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	resolved := variables.Resolve(ep, state.vars)
	res.ResolvedPath = resolved.Path

	if err := state.limiter.Wait(ctx); err != nil {
		return res, fmt.Errorf("rate limit wait: %w", err)
	}

	req := checker.Request{
		URL:     JoinURL(api.BaseURL, resolved.Path),
		Method:  resolved.Method,
		Timeout: state.settings.ProbeTimeout(),
	}
	if resolved.Params != nil {
		req.Query = resolved.Params.Query
		req.Body = resolved.Params.Body
	}

	out, err := r.prober.Probe(ctx, req)
	if err != nil {
		return res, err
	}

	current, err := r.baselines.Latest(ctx, apiID, endpointID)
	if err != nil {
		return res, err
	}

	res = validation.Validate(out, validation.Expectation{
		Status: resolved.ExpectedStatus,
		Fields: resolved.ExpectedFields,
	}, current)
	res.API = api.Name
	res.Method = ep.Method
	res.Path = ep.Path
	res.ResolvedPath = resolved.Path
	res.APIID = apiID
	res.EndpointID = endpointID

	stored, err := r.probes.Add(ctx, models.Probe{
		APIID:        apiID,
		EndpointID:   endpointID,
		RunID:        state.runID,
		Passed:       res.Passed,
		StatusCode:   out.StatusCode,
		ContentType:  out.ContentType,
		Latency:      out.Latency,
		LatencyMS:    out.LatencyMS,
		ErrorMessage: res.ErrorMessage,
	})
	if err != nil {
		return res, fmt.Errorf("save probe: %w", err)
	}
	res.ProbeID = stored.ID

	if res.Passed && len(resolved.Stash) > 0 {
		if set := variables.Stash(state.vars, res.Data, resolved.Stash); len(set) > 0 {
			state.logger.Debug("variables stashed", "api", api.Name, "path", ep.Path, "names", set)
		}
	}

	st, err := r.baselines.Ensure(ctx, apiID, endpointID, state.settings.RequiredSuccessfulProbes)
	if err != nil {
		// The probe is already recorded; a baseline decision failure only
		// delays baselining to a later run.
		state.logger.Warn("baseline check failed", "api", api.Name, "path", ep.Path, "error", err)
	} else if st.Created {
		res.BaselineCreated = true
		r.metrics.BaselineCreated()
	}

	return res, nil
}

func internalErrorResult(
	api config.APIConfig,
	apiID, endpointID int,
	ep config.EndpointConfig,
	partial validation.Result,
	err error,
) validation.Result {
	res := validation.Result{
		API:           api.Name,
		Method:        ep.Method,
		Path:          ep.Path,
		ResolvedPath:  partial.ResolvedPath,
		APIID:         apiID,
		EndpointID:    endpointID,
		ProbeID:       partial.ProbeID,
		Passed:        false,
		InternalError: true,
		ErrorMessage:  err.Error(),
	}
	var probeErr *checker.ProbeError
	if errors.As(err, &probeErr) {
		res.URL = probeErr.URL
	}
	if res.ResolvedPath == "" {
		res.ResolvedPath = ep.Path
	}
	return res
}

func metricResult(res validation.Result) string {
	switch {
	case res.Passed:
		return "passed"
	case res.IsConnectionError:
		return "connection_error"
	case res.IsTimeout:
		return "timeout"
	default:
		return "failed"
	}
}

// JoinURL appends path to baseURL with exactly one slash between them.
func JoinURL(baseURL, path string) string {
	if path == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func successRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(int(float64(passed)/float64(total)*10000+0.5)) / 100
}
