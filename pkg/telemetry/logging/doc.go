// Package logging builds the structured loggers used across the kernel.
//
// Loggers are plain *slog.Logger values. Components derive child loggers
// with With("component", "..."), and calls made with a context pick up the
// fields stored by WithDecisionID, WithDecisionContext, WithPolicyVersion,
// and WithCommand, plus the ids of the active OpenTelemetry span.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	ctx = logging.WithDecisionID(ctx, trace.DecisionID)
//	logger.InfoContext(ctx, "Decision recorded", "outcome", trace.Outcome)
//
// The console format is text without timestamps and is the CLI default.
package logging
