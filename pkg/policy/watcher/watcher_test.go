package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"civility-hq/kernel/pkg/policy/constraints"
	"civility-hq/kernel/pkg/policy/lint"
	"civility-hq/kernel/pkg/policy/scoring"
)

const (
	goodPolicy = `{"version":"1","weights":{"efficiency":1},"constraints":["no_irreversible_changes"],"uncertaintyThreshold":0.5}`
	nextPolicy = `{"version":"2","weights":{"efficiency":1},"constraints":[],"uncertaintyThreshold":0.4}`
	badPolicy  = `{"version":"3","weights":{"efficiency":1},"constraints":["mystery"],"uncertaintyThreshold":0.5}`
	warnPolicy = `{"version":"4","weights":{"efficiency":1,"vibes":1},"constraints":[],"uncertaintyThreshold":0.5}`
)

func testDeps() lint.Deps {
	return lint.Deps{Registry: constraints.NewDefaultRegistry(), Scorers: scoring.NewDefaultRegistry()}
}

func writePolicy(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newWatcher(t *testing.T, content string, mutate func(*Config)) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.json")
	writePolicy(t, path, content)

	cfg := DefaultConfig()
	cfg.Path = path
	cfg.DebounceInterval = 20 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	w, err := New(cfg, testDeps(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w, path
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New(&Config{}, testDeps(), nil); err == nil {
		t.Error("New() error = nil, want error for empty path")
	}
	if _, err := New(nil, testDeps(), nil); err == nil {
		t.Error("New(nil) error = nil, want error")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DebounceInterval != 100*time.Millisecond {
		t.Errorf("DebounceInterval = %v, want 100ms", cfg.DebounceInterval)
	}
	if !cfg.AcceptWarnings {
		t.Error("AcceptWarnings = false, want true")
	}
}

func TestWatcher_Reload(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		strict       bool
		wantAccepted bool
		wantErr      bool
	}{
		{"clean policy", goodPolicy, false, true, false},
		{"lint error rejected", badPolicy, false, false, false},
		{"warnings accepted", warnPolicy, false, true, false},
		{"warnings rejected when strict", warnPolicy, true, false, false},
		{"undecodable", `{"version":`, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newWatcher(t, tt.content, func(c *Config) { c.AcceptWarnings = !tt.strict })

			ev := w.Reload()
			if ev.Accepted != tt.wantAccepted {
				t.Errorf("Accepted = %v, want %v (report %+v)", ev.Accepted, tt.wantAccepted, ev.Report)
			}
			if (ev.Err != nil) != tt.wantErr {
				t.Errorf("Err = %v, wantErr %v", ev.Err, tt.wantErr)
			}
			if got := w.Current() != nil; got != tt.wantAccepted {
				t.Errorf("Current() set = %v, want %v", got, tt.wantAccepted)
			}
		})
	}
}

func TestWatcher_RejectedReloadKeepsPrevious(t *testing.T) {
	w, path := newWatcher(t, goodPolicy, nil)
	if ev := w.Reload(); !ev.Accepted {
		t.Fatalf("initial Reload() = %+v", ev)
	}

	writePolicy(t, path, badPolicy)
	if ev := w.Reload(); ev.Accepted {
		t.Fatal("Reload() accepted a policy with lint errors")
	}
	if got := w.Current(); got == nil || got.Version != "1" {
		t.Errorf("Current() = %+v, want version 1", got)
	}
}

func TestWatcher_Watch(t *testing.T) {
	w, path := newWatcher(t, goodPolicy, nil)
	w.Reload()

	events := make(chan Event, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, func(ev Event) { events <- ev }) }()

	time.Sleep(100 * time.Millisecond)
	writePolicy(t, path, nextPolicy)

	select {
	case ev := <-events:
		if !ev.Accepted || ev.Policy.Version != "2" {
			t.Errorf("Event = %+v, want accepted version 2", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after file modification")
	}
	if got := w.Current(); got.Version != "2" {
		t.Errorf("Current().Version = %q, want 2", got.Version)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch() did not return after cancel")
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	w, path := newWatcher(t, goodPolicy, nil)

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx, func(Event) { reloads.Add(1) }) }()

	time.Sleep(100 * time.Millisecond)
	writePolicy(t, filepath.Join(filepath.Dir(path), "other.json"), nextPolicy)
	time.Sleep(200 * time.Millisecond)

	if n := reloads.Load(); n != 0 {
		t.Errorf("reloads = %d, want 0", n)
	}
}

func TestWatcher_WatchTwice(t *testing.T) {
	w, _ := newWatcher(t, goodPolicy, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Watch(ctx, nil) }()
	time.Sleep(50 * time.Millisecond)

	if err := w.Watch(ctx, nil); err != ErrRunning {
		t.Errorf("second Watch() error = %v, want ErrRunning", err)
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls, last atomic.Int32
	for i := 1; i <= 5; i++ {
		i := i
		d.Trigger(func() {
			calls.Add(1)
			last.Store(int32(i))
		})
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if calls.Load() != 1 || last.Load() != 5 {
		t.Errorf("calls = %d, last = %d, want 1 call with the latest callback", calls.Load(), last.Load())
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(80 * time.Millisecond)

	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
}

func TestWatcher_ReloadLintsCanonicalForm(t *testing.T) {
	// Identical once the irreversible default is filled in.
	const dupPolicy = `{"version":"5","weights":{"efficiency":1},"constraints":[` +
		`{"id":"require_confirm_if","params":{"stakeGte":0.5}},` +
		`{"id":"require_confirm_if","params":{"stakeGte":0.5,"irreversible":false}}],"uncertaintyThreshold":0.5}`

	w, _ := newWatcher(t, dupPolicy, func(c *Config) { c.AcceptWarnings = false })
	ev := w.Reload()
	if ev.Err != nil {
		t.Fatalf("Reload() error = %v", ev.Err)
	}
	if ev.Accepted {
		t.Error("Reload() accepted a policy with duplicate constraints under AcceptWarnings=false")
	}
	codes := ev.Report.Codes()
	if len(codes) != 1 || codes[0] != lint.CodeDuplicateConstraint {
		t.Errorf("Report.Codes() = %v, want [%s]", codes, lint.CodeDuplicateConstraint)
	}
	if w.Current() != nil {
		t.Error("Current() != nil after a rejected first load")
	}

	w, _ = newWatcher(t, dupPolicy, nil)
	if ev := w.Reload(); !ev.Accepted {
		t.Fatalf("Reload() rejected a warnings-only policy with AcceptWarnings=true: %+v", ev.Report)
	}
	cur := w.Current()
	if cur == nil || len(cur.Constraints) != 2 || cur.Constraints[0].Params["irreversible"] != false {
		t.Errorf("Current() = %+v, want the canonical policy with defaults filled", cur)
	}
}
