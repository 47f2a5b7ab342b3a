package feedback

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"civility-hq/kernel/pkg/policy"
)

func testPolicy() *policy.Policy {
	return &policy.Policy{
		Version:     "1",
		Weights:     map[string]float64{"concise": 1},
		Calibration: policy.Calibration{RiskTolerance: 0.3, Verbosity: 0.5, Initiative: 0.05},
	}
}

func events(specs ...Event) []Event { return specs }

func repeat(e Event, n int) []Event {
	out := make([]Event, n)
	for i := range out {
		out[i] = e
	}
	return out
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPropose(t *testing.T) {
	undo := Event{Type: Undo}
	down := Event{Type: ThumbsDown}
	conciseDown := Event{Type: ThumbsDown, WeightKey: "concise"}

	tests := []struct {
		name        string
		events      []Event
		wantReasons []string
	}{
		{"no events", nil, nil},
		{"two undos", repeat(undo, 2), nil},
		{"three undos", repeat(undo, 3), []string{ReasonTooProactive}},
		{"one concise down", events(conciseDown), nil},
		{"two concise downs", repeat(conciseDown, 2), []string{ReasonTooVerbose}},
		{"four downs", repeat(down, 4), nil},
		{"five downs", repeat(down, 5), []string{ReasonNeedClarification}},
		{
			name:        "clarification suppressed by other proposals",
			events:      append(repeat(down, 3), repeat(conciseDown, 2)...),
			wantReasons: []string{ReasonTooVerbose},
		},
		{
			name:        "undo then verbosity order",
			events:      append(repeat(conciseDown, 2), repeat(undo, 3)...),
			wantReasons: []string{ReasonTooProactive, ReasonTooVerbose},
		},
		{"thumbs up ignored", repeat(Event{Type: ThumbsUp}, 10), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Propose(testPolicy(), tt.events)
			if len(got) != len(tt.wantReasons) {
				t.Fatalf("Propose() returned %d proposals, want %d: %+v", len(got), len(tt.wantReasons), got)
			}
			for i, want := range tt.wantReasons {
				if got[i].Reason != want {
					t.Errorf("Proposal[%d].Reason = %q, want %q", i, got[i].Reason, want)
				}
			}
		})
	}
}

func TestPropose_Patches(t *testing.T) {
	p := testPolicy()
	got := Propose(p, append(repeat(Event{Type: Undo}, 3), repeat(Event{Type: ThumbsDown, WeightKey: "concise"}, 2)...))

	initiative := got[0].Patch.Calibration
	if initiative == nil || initiative.Initiative == nil || *initiative.Initiative != 0 {
		t.Fatalf("initiative patch = %+v, want initiative floored at 0", initiative)
	}
	if initiative.Verbosity != nil || initiative.RiskTolerance != nil {
		t.Errorf("initiative patch touches other fields: %+v", initiative)
	}

	verbosity := got[1].Patch.Calibration
	if verbosity == nil || verbosity.Verbosity == nil || !approx(*verbosity.Verbosity, 0.4) {
		t.Errorf("verbosity patch = %+v, want verbosity 0.4", verbosity)
	}

	if p.Calibration.Initiative != 0.05 || p.Calibration.Verbosity != 0.5 {
		t.Errorf("Propose() mutated the policy: %+v", p.Calibration)
	}
}

func TestPropose_ClarificationPatchIsEmpty(t *testing.T) {
	got := Propose(testPolicy(), repeat(Event{Type: ThumbsDown}, 6))
	if len(got) != 1 || !got[0].Patch.IsEmpty() {
		t.Errorf("Propose() = %+v, want one empty patch", got)
	}
}

func TestApplyAll(t *testing.T) {
	p := testPolicy()
	p.Calibration.Initiative = 0.5
	proposals := Propose(p, append(repeat(Event{Type: Undo}, 3), repeat(Event{Type: ThumbsDown, WeightKey: "concise"}, 2)...))

	got := ApplyAll(p, proposals)

	if !approx(got.Calibration.Verbosity, 0.4) || !approx(got.Calibration.Initiative, 0.4) || got.Calibration.RiskTolerance != 0.3 {
		t.Errorf("ApplyAll() calibration = %+v", got.Calibration)
	}
	if p.Calibration.Verbosity != 0.5 {
		t.Error("ApplyAll() mutated its input")
	}
}

func TestLoadEvents(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "events.json")
	if err := os.WriteFile(good, []byte(`[
  {"type": "UNDO", "timestamp": "2024-01-01T00:00:00Z"},
  {"type": "THUMBS_DOWN", "weightKey": "concise", "timestamp": "2024-01-01T00:01:00Z"}
]`), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadEvents(good)
	if err != nil {
		t.Fatalf("LoadEvents() error = %v", err)
	}
	if len(got) != 2 || got[1].WeightKey != "concise" || got[0].Timestamp.Year() != 2024 {
		t.Errorf("LoadEvents() = %+v", got)
	}

	bad := filepath.Join(dir, "events.yaml")
	if err := os.WriteFile(bad, []byte("- type: SHRUG\n  timestamp: 2024-01-01T00:00:00Z\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEvents(bad); err == nil {
		t.Error("LoadEvents() error = nil, want unknown type error")
	}
}
