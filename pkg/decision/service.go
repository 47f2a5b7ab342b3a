// Package decision runs decisions under the current policy and records
// their evidence. It ties the engine to the telemetry and evidence layers
// for both the civility CLI and the watch daemon's HTTP API.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"civility-hq/kernel/pkg/evidence/recorder"
	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/engine"
	"civility-hq/kernel/pkg/policy/features"
	"civility-hq/kernel/pkg/telemetry/logging"
	"civility-hq/kernel/pkg/telemetry/metrics"
	"civility-hq/kernel/pkg/telemetry/tracing"
)

var (
	// ErrNoPolicy is returned when the policy source has nothing loaded.
	ErrNoPolicy = errors.New("no policy loaded")

	// ErrRecordingDisabled is returned when a request asks for recording
	// but the service has no recorder.
	ErrRecordingDisabled = errors.New("evidence recording is disabled")
)

// PolicySource supplies the policy decisions are made under. The policy
// watcher satisfies it.
type PolicySource interface {
	Current() *policy.Policy
}

// StaticSource serves a fixed policy.
type StaticSource struct {
	Policy *policy.Policy
}

// Current returns the fixed policy.
func (s StaticSource) Current() *policy.Policy {
	return s.Policy
}

// Request asks for one decision.
type Request struct {
	Context string        `json:"context"`
	Plans   []policy.Plan `json:"plans"`

	// Annotate derives plan tags from step details before deciding.
	Annotate bool `json:"annotate,omitempty"`

	// Record persists the decision trace as evidence.
	Record bool `json:"record,omitempty"`
}

// Result is the outcome of a request.
type Result struct {
	Chosen *policy.Plan         `json:"chosen,omitempty"`
	Trace  engine.DecisionTrace `json:"trace"`

	// RecordID and TraceHash are set when the trace was queued for
	// storage.
	RecordID  string `json:"recordId,omitempty"`
	TraceHash string `json:"traceHash,omitempty"`
}

// Service makes decisions.
type Service struct {
	engine     *engine.Engine
	source     PolicySource
	sourceName string
	recorder   *recorder.Recorder
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder enables evidence recording.
func WithRecorder(r *recorder.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithMetrics reports every decision to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithTracer wraps every decision in a span from t.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSourceName names the policy origin in evidence records, usually a
// file path.
func WithSourceName(name string) Option {
	return func(s *Service) { s.sourceName = name }
}

// New creates a service deciding with e under the policy from source.
func New(e *engine.Engine, source PolicySource, opts ...Option) *Service {
	s := &Service{
		engine: e,
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "decision")
	return s
}

// CanRecord reports whether the service has a recorder.
func (s *Service) CanRecord() bool {
	return s.recorder != nil
}

// Decide runs req under the current policy. When recording fails the
// decision is still returned alongside the error.
func (s *Service) Decide(ctx context.Context, req Request) (Result, error) {
	p := s.source.Current()
	if p == nil {
		return Result{}, ErrNoPolicy
	}

	ctx, span := s.start(ctx, "decision.decide")
	defer span.End()

	hash := recorder.HashPolicy(p)
	tracing.SetPolicyAttributes(span, p, hash)
	ctx = logging.WithDecisionContext(ctx, req.Context)
	ctx = logging.WithPolicyVersion(ctx, p.Version)

	plans := req.Plans
	if req.Annotate {
		plans = features.AnnotatePlans(plans)
	}

	start := time.Now()
	d := s.engine.Decide(p, req.Context, plans)
	elapsed := time.Since(start)

	survivors := len(d.Trace.Survivors())
	tracing.SetDecisionAttributes(span, d.Trace)
	if s.metrics != nil {
		s.metrics.RecordDecision(req.Context, string(d.Trace.Outcome), elapsed, len(d.Trace.Candidates), survivors)
	}

	ctx = logging.WithDecisionID(ctx, d.Trace.DecisionID)
	s.logger.InfoContext(ctx, "Decision made",
		"outcome", d.Trace.Outcome,
		"chosen_plan", d.Trace.ChosenPlanID,
		"candidates", len(d.Trace.Candidates),
		"survivors", survivors,
		"duration_us", elapsed.Microseconds(),
	)

	res := Result{Chosen: d.Chosen, Trace: d.Trace}
	if !req.Record {
		tracing.SetError(span, nil)
		return res, nil
	}
	if s.recorder == nil {
		tracing.SetError(span, ErrRecordingDisabled)
		return res, ErrRecordingDisabled
	}

	rec, err := s.recorder.Record(ctx, d.Trace, recorder.PolicyInfo{
		Version: p.Version,
		Hash:    hash,
		Source:  s.sourceName,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to record decision", "error", err)
		tracing.SetError(span, err)
		return res, fmt.Errorf("record decision: %w", err)
	}

	tracing.SetEvidenceAttributes(span, rec)
	tracing.SetError(span, nil)
	res.RecordID = rec.ID
	res.TraceHash = rec.TraceHash
	return res, nil
}

func (s *Service) start(ctx context.Context, name string) (context.Context, trace.Span) {
	if s.tracer != nil {
		return s.tracer.Start(ctx, name)
	}
	return otel.Tracer(tracing.InstrumentationName).Start(ctx, name)
}
