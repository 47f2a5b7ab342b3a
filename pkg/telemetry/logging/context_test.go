package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	ctx = WithDecisionID(ctx, "d-1")
	ctx = WithDecisionContext(ctx, "work")
	ctx = WithPolicyVersion(ctx, "3")
	ctx = WithCommand(ctx, "decide")

	if got := GetDecisionID(ctx); got != "d-1" {
		t.Errorf("GetDecisionID() = %q", got)
	}
	if got := GetDecisionContext(ctx); got != "work" {
		t.Errorf("GetDecisionContext() = %q", got)
	}
	if got := GetPolicyVersion(ctx); got != "3" {
		t.Errorf("GetPolicyVersion() = %q", got)
	}
	if got := GetCommand(ctx); got != "decide" {
		t.Errorf("GetCommand() = %q", got)
	}
}

func TestContextKeys_Empty(t *testing.T) {
	ctx := context.Background()
	if GetDecisionID(ctx) != "" || GetDecisionContext(ctx) != "" || GetPolicyVersion(ctx) != "" || GetCommand(ctx) != "" {
		t.Error("empty context returned values")
	}
	if attrs := contextAttrs(ctx); len(attrs) != 0 {
		t.Errorf("contextAttrs() = %v, want none", attrs)
	}
}

func TestContextHandler_AddsFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithDecisionID(ctx, "d-42")
	ctx = WithDecisionContext(ctx, "home")

	logger.With("component", "test").InfoContext(ctx, "decided")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["decision_id"] != "d-42" || entry["context"] != "home" {
		t.Errorf("entry = %v", entry)
	}
	if entry["trace_id"] != sc.TraceID().String() || entry["span_id"] != sc.SpanID().String() {
		t.Errorf("entry = %v, want span ids", entry)
	}
	if _, ok := entry["policy_version"]; ok {
		t.Error("unset policy_version was logged")
	}
}

func TestContextHandler_NoContextFieldsWithoutContext(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if _, ok := entry["decision_id"]; ok {
		t.Errorf("entry = %v", entry)
	}
}

func TestContextHandler_WithGroup(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.WithGroup("evidence").InfoContext(WithDecisionID(context.Background(), "d-7"), "stored", "id", "r-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	group, ok := entry["evidence"].(map[string]any)
	if !ok || group["id"] != "r-1" || group["decision_id"] != "d-7" {
		t.Errorf("entry = %v", entry)
	}
}
