// Package watcher reloads a policy file when it changes on disk and lints
// each new version before handing it out.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/canonical"
	"civility-hq/kernel/pkg/policy/lint"
	"civility-hq/kernel/pkg/policy/loader"
)

// ErrRunning is returned by Watch when the watcher is already running.
var ErrRunning = errors.New("watcher already running")

// Config contains configuration for the policy watcher.
type Config struct {
	// Path is the policy file to watch
	Path string

	// DebounceInterval is the quiet period after the last file event
	// before the policy is reloaded (default: 100ms)
	DebounceInterval time.Duration

	// AcceptWarnings controls whether a policy whose lint report has
	// warnings but no errors is accepted
	AcceptWarnings bool
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 100 * time.Millisecond,
		AcceptWarnings:   true,
	}
}

// Event describes one reload attempt.
type Event struct {
	Path     string
	Policy   *policy.Policy
	Report   lint.Report
	Accepted bool
	Err      error
	Time     time.Time
}

// Watcher keeps the last accepted version of a policy file.
type Watcher struct {
	config   *Config
	deps     lint.Deps
	logger   *slog.Logger
	fs       *fsnotify.Watcher
	debounce *Debouncer

	current atomic.Pointer[policy.Policy]

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a watcher for cfg.Path. Policies are linted against deps.
func New(cfg *Config, deps lint.Deps, logger *slog.Logger) (*Watcher, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("watcher path cannot be empty")
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = DefaultConfig().DebounceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		config:   cfg,
		deps:     deps,
		logger:   logger.With("component", "policy.watcher"),
		fs:       fs,
		debounce: NewDebouncer(cfg.DebounceInterval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Current returns the last accepted policy, or nil before the first
// successful load. Callers must not modify it.
func (w *Watcher) Current() *policy.Policy {
	return w.current.Load()
}

// Reload loads, canonicalizes and lints the policy file. The canonical
// policy becomes current only if its lint report is acceptable, so the
// gate matches the one civility lint applies.
func (w *Watcher) Reload() Event {
	ev := Event{Path: w.config.Path, Time: time.Now()}

	raw, err := loader.LoadPolicy(w.config.Path)
	if err != nil {
		ev.Err = err
		w.logger.Error("Policy reload failed", "path", w.config.Path, "error", err)
		return ev
	}
	p := canonical.Policy(raw, w.deps.Registry)
	ev.Policy = p
	ev.Report = lint.Policy(p, w.deps)

	ev.Accepted = ev.Report.OK && (w.config.AcceptWarnings || !ev.Report.HasWarnings())
	if !ev.Accepted {
		w.logger.Warn("Policy rejected by lint",
			"path", w.config.Path,
			"issues", len(ev.Report.Issues),
		)
		return ev
	}

	w.current.Store(p)
	w.logger.Info("Policy loaded",
		"path", w.config.Path,
		"version", p.Version,
		"warnings", ev.Report.HasWarnings(),
	)
	return ev
}

// Watch reloads the policy on every debounced change and reports each
// attempt to onChange. It blocks until ctx is cancelled or Stop is called.
// The directory containing the file is watched, so editors that replace
// the file on save are handled.
func (w *Watcher) Watch(ctx context.Context, onChange func(Event)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrRunning
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	target, err := filepath.Abs(w.config.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", w.config.Path, err)
	}
	if err := w.fs.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	w.logger.Info("Policy watcher started",
		"path", target,
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Policy watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("Policy watcher stopped")
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !relevant(event, target) {
				continue
			}

			w.logger.Debug("File event detected", "path", event.Name, "op", event.Op.String())
			w.debounce.Trigger(func() {
				ev := w.Reload()
				if onChange != nil {
					onChange(ev)
				}
			})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("File watcher error", "error", err)
		}
	}
}

// Stop stops a running watcher and releases its resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	w.debounce.Stop()

	if err := w.fs.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func relevant(event fsnotify.Event, target string) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == target
}
