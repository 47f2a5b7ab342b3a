// Package config provides configuration management for the civility CLI.
//
// Configuration is read from a YAML file, overlaid on Defaults(), and then
// overridden by environment variables:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("civility.yaml")
//
// LoadConfigOrDefaults accepts a missing file and returns the defaults, which
// is what the CLI does for its implicit default path.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CIVILITY_SECTION_FIELD.
// For example:
//
//   - CIVILITY_POLICY_PATH overrides policy.path
//   - CIVILITY_EVIDENCE_SQLITE_PATH overrides evidence.sqlite.path
//   - CIVILITY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// The CLI stores the loaded configuration with Initialize or ReloadConfig
// and reads it back with GetConfig. Library packages take explicit values
// instead.
//
// # Example Configuration
//
//	policy:
//	  path: "policy.yaml"
//
//	evidence:
//	  backend: "sqlite"
//	  sqlite:
//	    driver: "sqlite"
//	    path: "data/traces.db"
//	  retention:
//	    max_age: "720h"
//	    max_records: 100000
//	    schedule: "0 3 * * *"
//
//	watch:
//	  debounce: "250ms"
//	  listen_address: "127.0.0.1:9464"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//	  tracing:
//	    enabled: true
//	    endpoint: "otel-collector:4317"
package config
