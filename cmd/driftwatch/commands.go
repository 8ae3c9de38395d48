package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimoJanra/DriftWatch/internal/api"
)

func newRootCmd() *cobra.Command {
	opts := globalOptions{}

	root := &cobra.Command{
		Use:   "driftwatch",
		Short: "Detect HTTP API contract drift against expectations and baselines",
		Long: `DriftWatch probes the configured API endpoints, compares every response
with its declared expectation and with the pinned baseline, and records the
outcome so regressions show up run over run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.settingsPath, "settings", "configs/settings.yaml", "path to the settings file")
	flags.StringVar(&opts.resourcesPath, "resources", "configs/resources.yaml", "path to the resources file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file loaded before the settings")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging and detailed report")
	flags.StringVarP(&opts.output, "output", "o", "", "report format: console or json (overrides settings)")

	root.AddCommand(
		newRunCmd(&opts),
		newWatchCmd(&opts),
		newServeCmd(&opts),
		newBaselineCmd(&opts),
	)
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Probe every endpoint once and report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext()
			defer stop()

			res := a.runner.Run(ctx, a.settings, a.resources)
			a.handleResult(res)
			if !res.Passed() {
				return errRunFailed
			}
			return nil
		},
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run repeatedly on an interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			if interval > 0 {
				a.settings.WatchInterval = interval
			}

			ctx, stop := signalContext()
			defer stop()

			s := a.scheduler()
			if err := s.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			a.logger.Info("shutting down")
			return s.Stop()
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between runs (overrides settings watch_interval)")
	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, optionally running on a schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			if addr != "" {
				a.settings.ListenAddr = addr
			}

			ctx, stop := signalContext()
			defer stop()

			s := a.scheduler()
			if watch {
				if err := s.Start(ctx); err != nil {
					return err
				}
				defer func() {
					if err := s.Stop(); err != nil {
						a.logger.Error("failed to stop scheduler", "error", err)
					}
				}()
			}

			server := &api.Server{
				APIRepo:      a.apis,
				EndpointRepo: a.endpoints,
				ProbeRepo:    a.probes,
				Baselines:    a.baselines,
				Scheduler:    s,
				Settings:     a.settings,
				Logger:       a.logger,
			}
			srv := &http.Server{
				Addr:              a.settings.ListenAddr,
				Handler:           api.SetupRouter(server, a.registry),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server started", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides settings listen_addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "also run on the settings watch_interval")
	return cmd
}

func newBaselineCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect or reset endpoint baselines",
	}

	var apiName, method, path string
	addTarget := func(c *cobra.Command) {
		c.Flags().StringVar(&apiName, "api", "", "API name")
		c.Flags().StringVar(&method, "method", "GET", "HTTP method")
		c.Flags().StringVar(&path, "path", "", "declared endpoint path")
		_ = c.MarkFlagRequired("api")
		_ = c.MarkFlagRequired("path")
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the baseline state of an endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			apiID, endpointID, err := a.findEndpoint(ctx, apiName, strings.ToUpper(method), path)
			if err != nil {
				return err
			}
			st, err := a.baselines.Evaluate(ctx, apiID, endpointID, a.settings.RequiredSuccessfulProbes)
			if err != nil {
				return err
			}
			detail := fmt.Sprintf("%d/%d consecutive passes", st.Streak, st.Required)
			if st.Baseline != nil {
				detail = fmt.Sprintf("probe %d since %s", st.Baseline.ProbeID, st.Baseline.CreatedAt.Format(time.RFC3339))
			}
			_, err = fmt.Fprintf(a.out, "%s %s %s: %s (%s)\n",
				apiName, strings.ToUpper(method), path, st.Status, detail)
			return err
		},
	}
	addTarget(status)

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Drop an endpoint's baseline so later runs establish a new one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			apiID, endpointID, err := a.findEndpoint(ctx, apiName, strings.ToUpper(method), path)
			if err != nil {
				return err
			}
			n, err := a.baselines.Reset(ctx, apiID, endpointID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "removed %d baseline(s) for %s %s %s\n", n, apiName, strings.ToUpper(method), path)
			return err
		},
	}
	addTarget(reset)

	cmd.AddCommand(status, reset)
	return cmd
}
