package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/policy/engine"
)

// TimestampLayout is the layout of DecisionTrace.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("recorder closed")

// Config contains configuration for the evidence recorder.
type Config struct {
	// Enabled enables evidence recording. A disabled recorder builds
	// records but never stores them.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds each storage write and how long Record waits
	// for room in a full buffer.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// PolicyInfo identifies the policy a decision was made under.
type PolicyInfo struct {
	Version string
	Hash    string
	Source  string
}

// WriteHook observes every completed storage write.
type WriteHook func(record *evidence.Record, duration time.Duration, err error)

// Recorder writes evidence records asynchronously.
type Recorder struct {
	storage    evidence.Storage
	config     *Config
	recordChan chan *evidence.Record
	wg         sync.WaitGroup
	done       chan struct{}
	mu         sync.RWMutex
	closed     bool
	logger     *slog.Logger
	now        func() time.Time
	onWrite    WriteHook
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the clock used for RecordedTime.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithWriteHook registers a hook called after every storage write.
func WithWriteHook(hook WriteHook) Option {
	return func(r *Recorder) { r.onWrite = hook }
}

// NewRecorder creates a recorder writing to storage and starts its
// background worker.
func NewRecorder(storage evidence.Storage, config *Config, logger *slog.Logger, opts ...Option) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = DefaultConfig().AsyncBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *evidence.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "evidence.recorder"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("evidence recorder initialized",
		"enabled", config.Enabled,
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// NewRecord builds the evidence record for trace. DecidedTime comes from
// the trace timestamp and falls back to now when it cannot be parsed.
func NewRecord(trace engine.DecisionTrace, info PolicyInfo, now time.Time) *evidence.Record {
	now = now.UTC()
	decided, err := time.Parse(TimestampLayout, trace.Timestamp)
	if err != nil {
		decided = now
	}

	return &evidence.Record{
		ID:             uuid.New().String(),
		DecisionID:     trace.DecisionID,
		DecidedTime:    decided.UTC(),
		RecordedTime:   now,
		Context:        trace.Context,
		Outcome:        trace.Outcome,
		ChosenPlanID:   trace.ChosenPlanID,
		CandidateCount: len(trace.Candidates),
		SurvivorCount:  len(trace.Survivors()),
		PolicyVersion:  info.Version,
		PolicyHash:     info.Hash,
		PolicySource:   info.Source,
		TraceHash:      HashTrace(trace),
		Trace:          trace,
	}
}

// Record builds a record for trace and enqueues it for writing. It returns
// as soon as the record is queued.
func (r *Recorder) Record(ctx context.Context, trace engine.DecisionTrace, info PolicyInfo) (*evidence.Record, error) {
	record := NewRecord(trace, info, r.now())
	if !r.config.Enabled {
		return record, nil
	}

	// Holding the read lock keeps Close from finishing the drain while a
	// send is in flight.
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, evidence.NewRecorderError(record.ID, ErrClosed)
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.recordChan <- record:
		r.logger.Debug("evidence record enqueued",
			"record_id", record.ID,
			"decision_id", record.DecisionID,
		)
		return record, nil
	case <-timer.C:
		r.logger.Error("evidence record channel full, dropping record",
			"record_id", record.ID,
			"decision_id", record.DecisionID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return nil, evidence.NewRecorderError(record.ID, context.DeadlineExceeded)
	case <-ctx.Done():
		return nil, evidence.NewRecorderError(record.ID, ctx.Err())
	}
}

// Close stops the recorder, draining queued records before returning.
// It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("evidence recorder shut down")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *evidence.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := r.storage.Store(ctx, record)
	duration := time.Since(start)

	if r.onWrite != nil {
		r.onWrite(record, duration, err)
	}

	if err != nil {
		r.logger.Error("failed to store evidence record",
			"record_id", record.ID,
			"decision_id", record.DecisionID,
			"error", err,
		)
		return
	}

	r.logger.Info("evidence recorded",
		"record_id", record.ID,
		"decision_id", record.DecisionID,
		"outcome", record.Outcome,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow evidence write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
