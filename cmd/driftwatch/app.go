package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MimoJanra/DriftWatch/internal/baseline"
	"github.com/MimoJanra/DriftWatch/internal/checker"
	"github.com/MimoJanra/DriftWatch/internal/config"
	"github.com/MimoJanra/DriftWatch/internal/logging"
	"github.com/MimoJanra/DriftWatch/internal/metrics"
	"github.com/MimoJanra/DriftWatch/internal/notifications"
	"github.com/MimoJanra/DriftWatch/internal/report"
	"github.com/MimoJanra/DriftWatch/internal/runner"
	"github.com/MimoJanra/DriftWatch/internal/storage"
)

var errRunFailed = errors.New("run failed")

type globalOptions struct {
	settingsPath  string
	resourcesPath string
	envFile       string
	verbose       bool
	output        string
}

// app holds everything a command needs. Build it with newApp and release it
// with close.
type app struct {
	settings  *config.Settings
	resources *config.Resources
	logger    *slog.Logger
	out       io.Writer

	db        *sql.DB
	apis      *storage.APIRepo
	endpoints *storage.EndpointRepo
	probes    *storage.ProbeRepo
	baselines *baseline.Manager
	registry  *prometheus.Registry
	runner    *runner.Runner
	sender    *notifications.NotificationSender
}

func newApp(opts globalOptions, out io.Writer) (*app, error) {
	settings, resources, err := config.Load(opts.settingsPath, opts.resourcesPath, opts.envFile)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		settings.Verbose = true
	}
	if opts.output != "" {
		if opts.output != config.OutputConsole && opts.output != config.OutputJSON {
			return nil, fmt.Errorf("%w: --output must be %s or %s, got %q",
				config.ErrInvalid, config.OutputConsole, config.OutputJSON, opts.output)
		}
		settings.OutputFormat = opts.output
	}

	logger := logging.ForVerbosity(settings.Verbose, "driftwatch")

	db, err := storage.InitDB(settings.Database)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	probes := storage.NewProbeRepo(db)
	a := &app{
		settings:  settings,
		resources: resources,
		logger:    logger,
		out:       out,
		db:        db,
		apis:      storage.NewAPIRepo(db),
		endpoints: storage.NewEndpointRepo(db),
		probes:    probes,
		baselines: baseline.NewManager(storage.NewBaselineRepo(db), probes, logger),
		registry:  registry,
		sender:    notifications.NewNotificationSender(logger),
	}
	a.runner = runner.New(runner.Deps{
		APIs:      a.apis,
		Endpoints: a.endpoints,
		Probes:    a.probes,
		Prober:    checker.NewExecutor(&http.Client{}),
		Baselines: a.baselines,
		Metrics:   metrics.New(registry),
		Logger:    logger,
	})
	return a, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close db", "error", err)
	}
}

func (a *app) scheduler() *runner.Scheduler {
	return runner.NewScheduler(a.runner, a.settings, a.resources, a.handleResult, a.logger)
}

// handleResult prints, exports and announces a finished run. Export and
// notification failures are logged and do not fail the run.
func (a *app) handleResult(res runner.RunResult) {
	if err := report.Write(a.out, a.settings.OutputFormat, res, a.settings.Verbose); err != nil {
		a.logger.Error("failed to write report", "error", err)
	}

	if a.settings.SaveToFile {
		path, err := report.Save(a.settings.ResultsDir, res)
		if err != nil {
			a.logger.Error("failed to save report", "error", err)
		} else {
			a.logger.Info("report saved", "path", path)
		}
	}

	if len(a.settings.Notifications) > 0 {
		if err := a.sender.NotifyRun(context.Background(), a.settings.Notifications, res); err != nil {
			a.logger.Warn("some notifications were not delivered", "error", err)
		}
	}
}

// findEndpoint resolves an endpoint by API name, method and declared path.
func (a *app) findEndpoint(ctx context.Context, apiName, method, path string) (int, int, error) {
	api, err := a.apis.GetByName(ctx, apiName)
	if err != nil {
		return 0, 0, fmt.Errorf("api %q: %w", apiName, err)
	}
	ep, err := a.endpoints.Find(ctx, api.ID, method, path)
	if err != nil {
		return 0, 0, fmt.Errorf("endpoint %s %s of %q: %w", method, path, apiName, err)
	}
	return api.ID, ep.ID, nil
}
