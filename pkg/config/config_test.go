package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "civility.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Policy.Path != DefaultPolicyPath {
		t.Errorf("Policy.Path = %q, want %q", cfg.Policy.Path, DefaultPolicyPath)
	}
	if !cfg.Evidence.Enabled || cfg.Evidence.Backend != "sqlite" || cfg.Evidence.SQLite.Driver != "sqlite" {
		t.Errorf("Evidence = %+v", cfg.Evidence)
	}
	if !cfg.Evidence.SQLite.WALMode {
		t.Error("SQLite.WALMode = false, want true")
	}
	if cfg.Evidence.Retention.MaxAge != 90*24*time.Hour {
		t.Errorf("Retention.MaxAge = %v", cfg.Evidence.Retention.MaxAge)
	}
	if cfg.Watch.Debounce != 100*time.Millisecond || !cfg.Watch.AcceptWarnings {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
	if cfg.Watch.WriteTimeout != 30*time.Second || cfg.Watch.MaxRequestBytes != 1<<20 {
		t.Errorf("Watch server limits = %+v", cfg.Watch)
	}
	if cfg.Telemetry.Logging.Level != "warn" || cfg.Telemetry.Tracing.Enabled {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(Defaults()) error = %v", err)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Defaults()
	cfg.Evidence.Backend = "memory"
	cfg.Telemetry.Metrics.DecisionDurationBuckets = []float64{0.1, 1}

	ApplyDefaults(cfg)
	ApplyDefaults(cfg)

	if cfg.Evidence.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Evidence.Backend)
	}
	if len(cfg.Telemetry.Metrics.DecisionDurationBuckets) != 2 {
		t.Errorf("buckets = %v", cfg.Telemetry.Metrics.DecisionDurationBuckets)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
policy:
  path: rules/policy.json
evidence:
  backend: memory
  retention:
    max_age: 720h
    max_records: 500
watch:
  debounce: 250ms
  accept_warnings: false
telemetry:
  logging:
    level: debug
    format: json
  tracing:
    enabled: true
    endpoint: collector:4317
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Policy.Path != "rules/policy.json" {
		t.Errorf("Policy.Path = %q", cfg.Policy.Path)
	}
	if cfg.Policy.PrevPath != DefaultPolicyPrevPath {
		t.Errorf("Policy.PrevPath = %q, want default", cfg.Policy.PrevPath)
	}
	if cfg.Evidence.Backend != "memory" || cfg.Evidence.Retention.MaxRecords != 500 {
		t.Errorf("Evidence = %+v", cfg.Evidence)
	}
	if cfg.Evidence.Retention.MaxAge != 720*time.Hour {
		t.Errorf("MaxAge = %v", cfg.Evidence.Retention.MaxAge)
	}
	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Watch.Debounce)
	}
	if cfg.Watch.AcceptWarnings {
		t.Error("AcceptWarnings = true, want explicit false")
	}
	if !cfg.Evidence.Enabled {
		t.Error("Evidence.Enabled = false, want default true")
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Telemetry.Logging)
	}
	if !cfg.Telemetry.Tracing.Enabled || cfg.Telemetry.Tracing.Endpoint != "collector:4317" {
		t.Errorf("Tracing = %+v", cfg.Telemetry.Tracing)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 1.0 {
		t.Errorf("SampleRatio = %v, want 1.0", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax", "policy: [", "failed to parse"},
		{"bad backend", "evidence:\n  backend: postgres\n", "evidence.backend"},
		{"bad schedule", "evidence:\n  retention:\n    schedule: \"every day\"\n", "evidence.retention.schedule"},
		{"negative max records", "evidence:\n  retention:\n    max_records: -1\n", "evidence.retention.max_records"},
		{"bad level", "telemetry:\n  logging:\n    level: loud\n", "telemetry.logging.level"},
		{"bad ratio", "telemetry:\n  tracing:\n    enabled: true\n    sample_ratio: 1.5\n", "telemetry.tracing.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() error = nil for missing file")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "evidence:\n  backend: sqlite\n")

	t.Setenv("CIVILITY_POLICY_PATH", "env-policy.yaml")
	t.Setenv("CIVILITY_EVIDENCE_BACKEND", "memory")
	t.Setenv("CIVILITY_EVIDENCE_RETENTION_MAX_AGE", "48h")
	t.Setenv("CIVILITY_EVIDENCE_RETENTION_MAX_RECORDS", "10")
	t.Setenv("CIVILITY_LINT_STRICT", "true")
	t.Setenv("CIVILITY_TELEMETRY_METRICS_ENABLED", "false")
	t.Setenv("CIVILITY_WATCH_DEBOUNCE", "not-a-duration")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Policy.Path != "env-policy.yaml" {
		t.Errorf("Policy.Path = %q", cfg.Policy.Path)
	}
	if cfg.Evidence.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Evidence.Backend)
	}
	if cfg.Evidence.Retention.MaxAge != 48*time.Hour || cfg.Evidence.Retention.MaxRecords != 10 {
		t.Errorf("Retention = %+v", cfg.Evidence.Retention)
	}
	if !cfg.Lint.Strict {
		t.Error("Lint.Strict = false")
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Metrics.Enabled = true")
	}
	if cfg.Watch.Debounce != DefaultWatchDebounce {
		t.Errorf("Debounce = %v, malformed override should be ignored", cfg.Watch.Debounce)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidResult(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("CIVILITY_EVIDENCE_SQLITE_DRIVER", "postgres")

	_, err := LoadConfigWithEnvOverrides(path)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Errors[0].Field != "evidence.sqlite.driver" {
		t.Errorf("Field = %q", verr.Errors[0].Field)
	}
}

func TestLoadConfigOrDefaults(t *testing.T) {
	t.Setenv("CIVILITY_EVIDENCE_SQLITE_PATH", "/tmp/env.db")

	cfg, err := LoadConfigOrDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfigOrDefaults() error = %v", err)
	}
	if cfg.Policy.Path != DefaultPolicyPath {
		t.Errorf("Policy.Path = %q", cfg.Policy.Path)
	}
	if cfg.Evidence.SQLite.Path != "/tmp/env.db" {
		t.Errorf("SQLite.Path = %q, want env override", cfg.Evidence.SQLite.Path)
	}

	path := writeConfig(t, "evidence:\n  backend: postgres\n")
	if _, err := LoadConfigOrDefaults(path); err == nil {
		t.Error("LoadConfigOrDefaults() error = nil for invalid existing file")
	}
}

func TestValidationError_Format(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := one.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("Error() = %q", got)
	}

	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := two.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Defaults()
	cfg.Evidence.Backend = "nosql"
	cfg.Watch.Debounce = -time.Second
	cfg.Telemetry.Logging.Format = "xml"
	cfg.Telemetry.Metrics.DecisionDurationBuckets = []float64{1, 0.5}
	cfg.Evidence.Retention.ArchiveBeforeDelete = true
	cfg.Evidence.Retention.ArchivePath = ""

	var verr ValidationError
	if !errors.As(Validate(cfg), &verr) {
		t.Fatal("Validate() did not return ValidationError")
	}

	fields := make(map[string]bool)
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{
		"evidence.backend",
		"evidence.retention.archive_path",
		"watch.debounce",
		"telemetry.logging.format",
		"telemetry.metrics.decision_duration_buckets",
	} {
		if !fields[want] {
			t.Errorf("missing error for %s in %v", want, verr.Errors)
		}
	}
}

func TestValidate_TracingDisabledSkipsSampler(t *testing.T) {
	cfg := Defaults()
	cfg.Telemetry.Tracing.Sampler = "sometimes"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v, tracing is disabled", err)
	}
}
