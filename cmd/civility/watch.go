package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/decision"
	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/evidence/recorder"
	"civility-hq/kernel/pkg/evidence/retention"
	"civility-hq/kernel/pkg/policy/lint"
	"civility-hq/kernel/pkg/policy/watcher"
	"civility-hq/kernel/pkg/server"
	"civility-hq/kernel/pkg/telemetry/health"
	"civility-hq/kernel/pkg/telemetry/metrics"
)

var watchFlags struct {
	listenAddress  string
	acceptWarnings bool
	noServer       bool
}

var watchCmd = &cobra.Command{
	Use:   "watch [POLICY]",
	Short: "Hot-reload a policy and serve decisions over HTTP",
	Long: `Watch a policy file and reload it whenever it changes. A new version is
linted first; a version that fails lint is rejected and the last accepted
version stays in effect.

Unless --no-server is given, the decision API is served on
watch.listen_address:

  POST /v1/decide          decide among candidate plans
  GET  /v1/policy          current canonical policy, hash and lint report
  POST /v1/lint            lint a policy document
  GET  /v1/traces          query recorded decisions
  GET  /v1/traces/{id}     one recorded decision with hash check
  GET  /metrics            Prometheus metrics
  GET  /health, /ready     liveness and readiness
  GET  /version            build information

Evidence retention runs on evidence.retention.schedule while watching.

Examples:
  civility watch
  civility watch policy.yaml --listen 0.0.0.0:8080
  civility watch --no-server --accept-warnings=false`,
	Args: cobra.MaximumNArgs(1),
	RunE: watchPolicy,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchFlags.listenAddress, "listen", "l", "", "override watch.listen_address")
	watchCmd.Flags().BoolVar(&watchFlags.acceptWarnings, "accept-warnings", true, "accept reloads whose lint report has only warnings (default: watch.accept_warnings)")
	watchCmd.Flags().BoolVar(&watchFlags.noServer, "no-server", false, "only watch the policy; do not serve the decision API")
}

func watchPolicy(cmd *cobra.Command, args []string) error {
	s := current
	ctx := cmd.Context()
	cfg := s.cfg
	out := cmd.OutOrStdout()

	cfg.Policy.Path = s.policyFile(args)
	if watchFlags.listenAddress != "" {
		cfg.Watch.ListenAddress = watchFlags.listenAddress
	}
	if cmd.Flags().Changed("accept-warnings") {
		cfg.Watch.AcceptWarnings = watchFlags.acceptWarnings
	}
	if !watchFlags.noServer && cfg.Watch.ListenAddress == "" {
		return cli.NewConfigError("watch.listen_address", "listen address is required unless --no-server is given")
	}

	w, err := watcher.New(&watcher.Config{
		Path:             cfg.Policy.Path,
		DebounceInterval: cfg.Watch.Debounce,
		AcceptWarnings:   cfg.Watch.AcceptWarnings,
	}, s.deps, s.logger)
	if err != nil {
		return cli.NewCommandError("watch", err)
	}
	defer w.Stop()

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
		if err := collector.RegisterRuntimeCollectors(); err != nil {
			return cli.NewCommandError("watch", fmt.Errorf("failed to register runtime collectors: %w", err))
		}
	}

	onChange := func(ev watcher.Event) {
		reportReload(collector, ev)
		switch {
		case ev.Err != nil:
			fmt.Fprintf(out, "Reload failed: %v\n", ev.Err)
		case !ev.Accepted:
			fmt.Fprintf(out, "Rejected policy %s (version %s); keeping the previous version.\n", ev.Path, ev.Policy.Version)
			writeIssues(out, ev.Report.Issues)
		default:
			fmt.Fprintf(out, "Loaded policy %s (version %s).\n", ev.Path, ev.Policy.Version)
		}
	}
	onChange(w.Reload())

	var store evidence.Storage
	var rec *recorder.Recorder
	if cfg.Evidence.Enabled {
		store, err = s.openStorage()
		if err != nil {
			return cli.NewCommandError("watch", err)
		}
		var opts []recorder.Option
		if collector != nil {
			opts = append(opts, recorder.WithWriteHook(func(r *evidence.Record, d time.Duration, err error) {
				collector.RecordEvidenceWrite(d, err)
			}))
			if n, err := store.Count(ctx, &evidence.Query{}); err == nil {
				collector.SetEvidenceRecords(n)
			}
		}
		rec = s.newRecorder(store, opts...)

		pruner, err := startPruner(ctx, s, store, collector)
		if err != nil {
			return cli.NewCommandError("watch", err)
		}
		if pruner != nil {
			defer pruner.Stop()
		}
	}

	opts := []decision.Option{
		decision.WithTracer(s.tracer),
		decision.WithLogger(s.logger),
		decision.WithSourceName(cfg.Policy.Path),
	}
	if rec != nil {
		opts = append(opts, decision.WithRecorder(rec))
	}
	if collector != nil {
		opts = append(opts, decision.WithMetrics(collector))
	}
	svc := decision.New(s.newEngine(), w, opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 2)
	running := 1
	go func() {
		errChan <- w.Watch(ctx, onChange)
	}()

	if !watchFlags.noServer {
		checker := health.New(cfg.Telemetry.Health.CheckTimeout)
		checker.RegisterCheck("policy", health.PolicyCheck(w.Current))
		if store != nil {
			checker.RegisterCheck("evidence", health.StorageCheck(store))
		}

		srv, err := server.New(cfg, server.Deps{
			Decisions: svc,
			Policy:    w,
			Lint:      s.deps,
			Storage:   store,
			Metrics:   collector,
			Health:    checker,
			Tracer:    s.tracer,
			Version: health.VersionInfo{
				Version:   Version,
				Commit:    GitCommit,
				BuildTime: BuildDate,
				GoVersion: runtime.Version(),
			},
		}, s.logger)
		if err != nil {
			return cli.NewCommandError("watch", err)
		}
		running++
		go func() {
			errChan <- srv.Start(ctx)
		}()
		fmt.Fprintf(out, "Serving decisions on http://%s/v1/decide\n", cfg.Watch.ListenAddress)
	}
	fmt.Fprintf(out, "Watching %s. Press Ctrl+C to stop.\n", cfg.Policy.Path)

	var firstErr error
	select {
	case <-ctx.Done():
	case firstErr = <-errChan:
		running--
	}
	cancel()
	for ; running > 0; running-- {
		if err := <-errChan; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return cli.NewCommandError("watch", firstErr)
	}
	fmt.Fprintln(out, "Stopped.")
	return nil
}

// reportReload records a reload attempt in the policy metrics.
func reportReload(c *metrics.Collector, ev watcher.Event) {
	if c == nil {
		return
	}
	switch {
	case ev.Err != nil:
		c.RecordPolicyReload("error")
		return
	case !ev.Accepted:
		c.RecordPolicyReload("rejected")
	default:
		c.RecordPolicyReload("accepted")
		c.SetPolicyLoaded(ev.Time)
	}
	recordLintIssues(c, ev.Report)
}

func recordLintIssues(c *metrics.Collector, r lint.Report) {
	for _, is := range r.Issues {
		c.RecordLintIssue(is.Code, string(is.Severity))
	}
}

// startPruner schedules evidence retention when a schedule and at least
// one limit are configured.
func startPruner(ctx context.Context, s *session, store evidence.Storage, c *metrics.Collector) (*retention.Pruner, error) {
	ret := s.cfg.Evidence.Retention
	if ret.Schedule == "" || (ret.MaxAge == 0 && ret.MaxRecords == 0) {
		return nil, nil
	}

	pruner := retention.NewPruner(store, &retention.Config{
		MaxAge:              ret.MaxAge,
		MaxRecords:          ret.MaxRecords,
		PruneSchedule:       ret.Schedule,
		ArchiveBeforeDelete: ret.ArchiveBeforeDelete,
		ArchivePath:         ret.ArchivePath,
	}, s.logger)
	if c != nil {
		pruner.SetPruneHook(func(deleted int64, err error) {
			c.RecordPruned(deleted, err)
			if n, cerr := store.Count(ctx, &evidence.Query{}); cerr == nil {
				c.SetEvidenceRecords(n)
			}
		})
	}
	if err := pruner.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start retention scheduler: %w", err)
	}
	if next := pruner.NextPruning(); next != nil {
		s.logger.Debug("Evidence retention scheduled", "next_pruning", next)
	}
	return pruner, nil
}
