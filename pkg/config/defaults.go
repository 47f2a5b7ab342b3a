package config

import "time"

// Default values for configuration fields.
const (
	// Policy defaults
	DefaultPolicyPath     = "policy.yaml"
	DefaultPolicyPrevPath = "policy.prev.json"

	// Evidence defaults
	DefaultEvidenceEnabled              = true
	DefaultEvidenceBackend              = "sqlite"
	DefaultEvidenceSQLiteDriver         = "sqlite"
	DefaultEvidenceSQLitePath           = "data/traces.db"
	DefaultEvidenceSQLiteMaxOpenConns   = 10
	DefaultEvidenceSQLiteMaxIdleConns   = 5
	DefaultEvidenceSQLiteWALMode        = true
	DefaultEvidenceSQLiteBusyTimeout    = 5 * time.Second
	DefaultEvidenceRecorderAsyncBuffer  = 1000
	DefaultEvidenceRecorderWriteTimeout = 5 * time.Second
	DefaultEvidenceRetentionMaxAge      = 90 * 24 * time.Hour
	DefaultEvidenceRetentionSchedule    = "0 3 * * *"
	DefaultEvidenceRetentionArchivePath = "data/archives/"

	// Watch defaults
	DefaultWatchDebounce        = 100 * time.Millisecond
	DefaultWatchAcceptWarnings  = true
	DefaultWatchListenAddress   = "127.0.0.1:9464"
	DefaultWatchShutdownTimeout = 5 * time.Second
	DefaultWatchReadTimeout     = 10 * time.Second
	DefaultWatchWriteTimeout    = 30 * time.Second
	DefaultWatchMaxRequestBytes = 1 << 20

	// Telemetry defaults
	DefaultLoggingLevel        = "warn"
	DefaultLoggingFormat       = "console"
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "civility"
	DefaultMetricsSubsystem    = "kernel"
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "civility"
	DefaultOTLPInsecure        = true
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultHealthEnabled       = true
	DefaultLivenessPath        = "/health"
	DefaultReadinessPath       = "/ready"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// DefaultDecisionDurationBuckets covers 10µs to roughly 80ms.
var DefaultDecisionDurationBuckets = []float64{
	0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.08,
}

// Defaults returns a fully populated configuration. Boolean fields whose
// default is true are only set here, since ApplyDefaults cannot tell an
// explicit false from a missing value.
func Defaults() *Config {
	cfg := &Config{
		Evidence: EvidenceConfig{
			Enabled: DefaultEvidenceEnabled,
			SQLite: SQLiteConfig{
				WALMode: DefaultEvidenceSQLiteWALMode,
			},
		},
		Watch: WatchConfig{
			AcceptWarnings: DefaultWatchAcceptWarnings,
			ListenAddress:  DefaultWatchListenAddress,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{
				Enabled:     DefaultTracingEnabled,
				SampleRatio: DefaultTracingSamplingRate,
				OTLP:        OTLPConfig{Insecure: DefaultOTLPInsecure},
			},
			Health: HealthConfig{Enabled: DefaultHealthEnabled},
		},
	}
	cfg.Evidence.Retention.MaxAge = DefaultEvidenceRetentionMaxAge
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for fields that have zero values. It is
// idempotent. Zero durations for MaxAge and zero MaxRecords are meaningful
// and left alone.
func ApplyDefaults(cfg *Config) {
	if cfg.Policy.Path == "" {
		cfg.Policy.Path = DefaultPolicyPath
	}
	if cfg.Policy.PrevPath == "" {
		cfg.Policy.PrevPath = DefaultPolicyPrevPath
	}

	ev := &cfg.Evidence
	if ev.Backend == "" {
		ev.Backend = DefaultEvidenceBackend
	}
	if ev.SQLite.Driver == "" {
		ev.SQLite.Driver = DefaultEvidenceSQLiteDriver
	}
	if ev.SQLite.Path == "" {
		ev.SQLite.Path = DefaultEvidenceSQLitePath
	}
	if ev.SQLite.MaxOpenConns == 0 {
		ev.SQLite.MaxOpenConns = DefaultEvidenceSQLiteMaxOpenConns
	}
	if ev.SQLite.MaxIdleConns == 0 {
		ev.SQLite.MaxIdleConns = DefaultEvidenceSQLiteMaxIdleConns
	}
	if ev.SQLite.BusyTimeout == 0 {
		ev.SQLite.BusyTimeout = DefaultEvidenceSQLiteBusyTimeout
	}
	if ev.Recorder.AsyncBuffer == 0 {
		ev.Recorder.AsyncBuffer = DefaultEvidenceRecorderAsyncBuffer
	}
	if ev.Recorder.WriteTimeout == 0 {
		ev.Recorder.WriteTimeout = DefaultEvidenceRecorderWriteTimeout
	}
	if ev.Retention.Schedule == "" {
		ev.Retention.Schedule = DefaultEvidenceRetentionSchedule
	}
	if ev.Retention.ArchivePath == "" {
		ev.Retention.ArchivePath = DefaultEvidenceRetentionArchivePath
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
	if cfg.Watch.ShutdownTimeout == 0 {
		cfg.Watch.ShutdownTimeout = DefaultWatchShutdownTimeout
	}
	if cfg.Watch.ReadTimeout == 0 {
		cfg.Watch.ReadTimeout = DefaultWatchReadTimeout
	}
	if cfg.Watch.WriteTimeout == 0 {
		cfg.Watch.WriteTimeout = DefaultWatchWriteTimeout
	}
	if cfg.Watch.MaxRequestBytes == 0 {
		cfg.Watch.MaxRequestBytes = DefaultWatchMaxRequestBytes
	}

	tel := &cfg.Telemetry
	if tel.Logging.Level == "" {
		tel.Logging.Level = DefaultLoggingLevel
	}
	if tel.Logging.Format == "" {
		tel.Logging.Format = DefaultLoggingFormat
	}
	if tel.Metrics.Path == "" {
		tel.Metrics.Path = DefaultPrometheusPath
	}
	if tel.Metrics.Namespace == "" {
		tel.Metrics.Namespace = DefaultMetricsNamespace
	}
	if tel.Metrics.Subsystem == "" {
		tel.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(tel.Metrics.DecisionDurationBuckets) == 0 {
		tel.Metrics.DecisionDurationBuckets = append([]float64(nil), DefaultDecisionDurationBuckets...)
	}
	if tel.Tracing.Sampler == "" {
		tel.Tracing.Sampler = DefaultTracingSampler
	}
	if tel.Tracing.Endpoint == "" {
		tel.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if tel.Tracing.ServiceName == "" {
		tel.Tracing.ServiceName = DefaultTracingServiceName
	}
	if tel.Tracing.OTLP.Timeout == 0 {
		tel.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
	if tel.Health.LivenessPath == "" {
		tel.Health.LivenessPath = DefaultLivenessPath
	}
	if tel.Health.ReadinessPath == "" {
		tel.Health.ReadinessPath = DefaultReadinessPath
	}
	if tel.Health.CheckTimeout == 0 {
		tel.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
