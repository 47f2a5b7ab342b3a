package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/config"
	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/evidence/recorder"
	"civility-hq/kernel/pkg/evidence/storage"
	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/canonical"
	"civility-hq/kernel/pkg/policy/constraints"
	"civility-hq/kernel/pkg/policy/engine"
	"civility-hq/kernel/pkg/policy/lint"
	"civility-hq/kernel/pkg/policy/loader"
	"civility-hq/kernel/pkg/policy/scoring"
	"civility-hq/kernel/pkg/telemetry/logging"
	"civility-hq/kernel/pkg/telemetry/tracing"
)

// errEvidenceDisabled is returned by commands that need the evidence store
// when evidence.enabled is false.
var errEvidenceDisabled = errors.New("evidence is disabled (evidence.enabled: false)")

// session holds what a command run shares: configuration, telemetry, and
// the registries policies are checked against.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  *tracing.Tracer
	span    trace.Span
	deps    lint.Deps
	closers []func() error
}

// current is the session of the running command.
var current *session

func needsSession(cmd *cobra.Command) bool {
	if cmd.Annotations[annotationNoSession] == "true" {
		return false
	}
	switch cmd.Name() {
	case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	return cmd.Parent() == nil || cmd.Parent().Name() != "completion"
}

// startSession loads configuration and sets up logging and tracing. An
// implicit --config path may be missing; an explicit one must exist.
func startSession(cmd *cobra.Command, args []string) error {
	if !needsSession(cmd) {
		return nil
	}

	allowMissing := !cmd.Flags().Changed("config")
	if err := config.ReloadConfig(cfgFile, allowMissing); err != nil {
		return cli.NewConfigError("--config", err.Error())
	}
	cfg := *config.GetConfig()
	if policyPath != "" {
		cfg.Policy.Path = policyPath
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, cmd.ErrOrStderr()))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}

	s := &session{
		cfg:    &cfg,
		logger: logger,
		tracer: tracer,
		deps: lint.Deps{
			Registry: constraints.NewDefaultRegistry().Freeze(),
			Scorers:  scoring.NewDefaultRegistry().Freeze(),
		},
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.ExtractFromEnv(ctx)
	ctx = logging.WithCommand(ctx, cmd.Name())
	ctx, s.span = tracer.Start(ctx, "civility."+cmd.Name())
	cmd.SetContext(ctx)

	current = s
	logger.DebugContext(ctx, "Session started",
		"config", cfgFile,
		"policy", cfg.Policy.Path,
		"tracing", tracer.Enabled(),
	)
	return nil
}

// onClose registers fn to run when the session ends. Functions run in
// reverse registration order.
func (s *session) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// close ends the command span, runs the registered closers, and flushes
// the tracer.
func (s *session) close(cmdErr error) error {
	tracing.SetError(s.span, cmdErr)
	s.span.End()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs = append(errs, s.tracer.Shutdown(ctx))
	return errors.Join(errs...)
}

// policyFile returns the policy path from the positional args or the
// configuration.
func (s *session) policyFile(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return s.cfg.Policy.Path
}

// loadCanonical reads a policy document and returns its canonical form.
func (s *session) loadCanonical(ctx context.Context, path string) (*policy.Policy, error) {
	p, err := loader.LoadPolicy(path)
	if err != nil {
		return nil, err
	}
	c := canonical.Policy(p, s.deps.Registry)
	tracing.SetPolicyAttributes(trace.SpanFromContext(ctx), c, recorder.HashPolicy(c))
	s.logger.DebugContext(ctx, "Policy loaded", "path", path, "version", c.Version)
	return c, nil
}

// lint lints p and annotates the command span with the result.
func (s *session) lint(ctx context.Context, p *policy.Policy) lint.Report {
	report := lint.Policy(p, s.deps)
	tracing.SetLintAttributes(trace.SpanFromContext(ctx), report)
	return report
}

// strict reports whether warnings reject a policy.
func (s *session) strict(flag bool) bool {
	return flag || s.cfg.Lint.Strict
}

// newEngine creates a decision engine over the session registries.
func (s *session) newEngine() *engine.Engine {
	return engine.New(s.deps.Registry, s.deps.Scorers, engine.WithLogger(s.logger))
}

// openStorage opens the configured evidence store. It is closed with the
// session.
func (s *session) openStorage() (evidence.Storage, error) {
	ev := s.cfg.Evidence
	if !ev.Enabled {
		return nil, errEvidenceDisabled
	}

	var store evidence.Storage
	switch ev.Backend {
	case "sqlite":
		if ev.SQLite.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(ev.SQLite.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create evidence directory: %w", err)
			}
		}
		sqlite, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         ev.SQLite.Path,
			Driver:       ev.SQLite.Driver,
			MaxOpenConns: ev.SQLite.MaxOpenConns,
			MaxIdleConns: ev.SQLite.MaxIdleConns,
			WALMode:      ev.SQLite.WALMode,
			BusyTimeout:  ev.SQLite.BusyTimeout,
		}, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite storage: %w", err)
		}
		store = sqlite
	case "memory":
		store = storage.NewMemoryStorage()
	default:
		return nil, cli.NewConfigError("evidence.backend", fmt.Sprintf("unsupported backend %q (supported: sqlite, memory)", ev.Backend))
	}

	s.onClose(store.Close)
	return store, nil
}

// newRecorder creates a recorder writing to store. It is closed, and its
// queue drained, before the store.
func (s *session) newRecorder(store evidence.Storage, opts ...recorder.Option) *recorder.Recorder {
	rec := recorder.NewRecorder(store, &recorder.Config{
		Enabled:      true,
		AsyncBuffer:  s.cfg.Evidence.Recorder.AsyncBuffer,
		WriteTimeout: s.cfg.Evidence.Recorder.WriteTimeout,
	}, s.logger, opts...)
	s.onClose(rec.Close)
	return rec
}
