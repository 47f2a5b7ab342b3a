package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civility-hq/kernel/pkg/cli"
	"civility-hq/kernel/pkg/policy/engine"
)

func TestDecide(t *testing.T) {
	ws := newWorkspace(t, "policy.json", "plans.json")

	res := ws.run(t, "", "decide", "--plans", ws.path("plans.json"), "--context", "work", "--annotate")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Outcome: EXECUTE")
	assert.Contains(t, res.stdout, "Chosen: B - archive")
	assert.Contains(t, res.stdout, "A  rejected")
	assert.Contains(t, res.stdout, "max_spend_without_confirm: ")
	assert.NotContains(t, res.stdout, "Recorded as")
	assert.NoFileExists(t, ws.path("traces.db"))
}

func TestDecide_MissingFlags(t *testing.T) {
	ws := newWorkspace(t, "policy.json", "plans.json")

	res := ws.run(t, "", "decide", "--plans", ws.path("plans.json"))
	assert.Error(t, res.err)
}

func TestDecide_RecordDisabled(t *testing.T) {
	ws := newWorkspace(t, "policy.json", "plans.json")
	require.NoError(t, writeFile(ws.config, []byte("evidence:\n  enabled: false\ntelemetry:\n  logging:\n    level: error\n")))

	res := ws.run(t, "", "decide", ws.path("policy.json"), "--plans", ws.path("plans.json"), "--context", "work", "--record")
	assert.Equal(t, cli.ExitFailure, cli.ExitCode(res.err))
	assert.ErrorIs(t, res.err, errEvidenceDisabled)
}

func TestDecide_JSON(t *testing.T) {
	ws := newWorkspace(t, "policy.json", "plans.json")

	res := ws.run(t, "", "decide", "--plans", ws.path("plans.json"), "--context", "work", "--format", "json")
	require.NoError(t, res.err)

	var out struct {
		Chosen *struct {
			ID string `json:"id"`
		} `json:"chosen"`
		RecordID string               `json:"recordId"`
		Trace    engine.DecisionTrace `json:"trace"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	require.NotNil(t, out.Chosen)
	assert.Equal(t, "B", out.Chosen.ID)
	assert.Empty(t, out.RecordID)
	assert.Equal(t, "work", out.Trace.Context)
	assert.Len(t, out.Trace.Candidates, 2)
}
